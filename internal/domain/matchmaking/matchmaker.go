// Package matchmaking selects which two pedals to present next.
//
// Selection runs in one of two modes chosen per call from the rating spread
// of the pool. While ratings carry little signal (BOOTSTRAP) pairs are drawn
// at random with a cross-brand preference. Once ratings separate (RANKED)
// pairs are drawn from nearby positions in the rating order, relaxing their
// constraints in three phases as attempts run out. Both modes always return
// a pair when at least two pedals are available.
package matchmaking

import (
	"math/rand"
	"sort"
	"time"

	"github.com/okian/pedalrank/internal/domain/model"
	"github.com/okian/pedalrank/internal/domain/population"
)

// Source supplies uniform random integers in [0, n). *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// Excluder reports whether a pedal was shown recently.
type Excluder interface {
	Contains(id string) bool
}

// Mode is the operating mode used for one decision.
type Mode string

// Modes.
const (
	ModeBootstrap Mode = "bootstrap"
	ModeRanked    Mode = "ranked"
	ModeBattle    Mode = "battle"
)

// Phase names the constraint set under which a pair was accepted.
type Phase string

// Phases.
const (
	PhaseExplore    Phase = "explore"
	PhaseAnchor     Phase = "anchor"
	PhaseCrossBrand Phase = "cross_brand"
	PhaseOpen       Phase = "open"
	PhaseFallback   Phase = "fallback"
)

// Pair is one matchup decision.
type Pair struct {
	A      model.Entity
	B      model.Entity
	Mode   Mode
	Phase  Phase
	Spread float64
}

// Matchmaker picks pairs. It keeps no state between calls apart from its
// random source, which is not safe for concurrent use unless the supplied
// Source is.
type Matchmaker struct {
	src    Source
	params Params
}

// New creates a Matchmaker with the default constants and a time-seeded source.
func New(opts ...Option) *Matchmaker {
	m := &Matchmaker{
		src:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // matchmaking is not security sensitive
		params: DefaultParams(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ModeFor returns the mode a pool with the given spread is matched in.
func (m *Matchmaker) ModeFor(spread float64) Mode {
	if spread < m.params.BootstrapSpread {
		return ModeBootstrap
	}
	return ModeRanked
}

// Pick selects two distinct pedals from pool. It returns false when fewer
// than two pedals are available. exclude may be nil.
func (m *Matchmaker) Pick(pool []model.Entity, exclude Excluder) (Pair, bool) {
	if len(pool) < 2 {
		return Pair{}, false
	}
	spread := population.Spread(pool)
	var p Pair
	if m.ModeFor(spread) == ModeBootstrap {
		p = m.bootstrap(pool, exclude)
		p.Mode = ModeBootstrap
	} else {
		p = m.ranked(pool, exclude)
		p.Mode = ModeRanked
	}
	p.Spread = spread
	return p, true
}

func (m *Matchmaker) bootstrap(pool []model.Entity, exclude Excluder) Pair {
	sh := m.shuffle(pool)
	for i := 0; i < len(sh); i++ {
		if excluded(exclude, sh[i].ID) {
			continue
		}
		for j := i + 1; j < len(sh); j++ {
			a, b := sh[i], sh[j]
			if a.ID == b.ID || a.Brand == b.Brand || excluded(exclude, b.ID) {
				continue
			}
			return Pair{A: a, B: b, Phase: PhaseExplore}
		}
	}
	return Pair{A: sh[0], B: sh[1], Phase: PhaseFallback}
}

func (m *Matchmaker) ranked(pool []model.Entity, exclude Excluder) Pair {
	sorted := make([]model.Entity, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rating < sorted[j].Rating })

	n := len(sorted)
	for attempt := 0; attempt < m.params.MaxAttempts; attempt++ {
		i := m.src.Intn(n - 1)
		offset := m.src.Intn(min(m.params.MaxOffset, n-1-i)) + 1
		a, b := sorted[i], sorted[i+offset]

		phase := m.phase(attempt)
		if a.ID == b.ID || !m.accepts(phase, a, b) {
			continue
		}
		if excluded(exclude, a.ID) || excluded(exclude, b.ID) {
			continue
		}
		return Pair{A: a, B: b, Phase: phase}
	}

	sh := m.shuffle(pool)
	return Pair{A: sh[0], B: sh[1], Phase: PhaseFallback}
}

func (m *Matchmaker) phase(attempt int) Phase {
	switch {
	case attempt < m.params.AnchorPhaseEnd:
		return PhaseAnchor
	case attempt < m.params.BrandPhaseEnd:
		return PhaseCrossBrand
	default:
		return PhaseOpen
	}
}

func (m *Matchmaker) accepts(phase Phase, a, b model.Entity) bool {
	switch phase {
	case PhaseAnchor:
		return a.Brand != b.Brand && (m.isAnchor(a) || m.isAnchor(b))
	case PhaseCrossBrand:
		return a.Brand != b.Brand
	default:
		return true
	}
}

func (m *Matchmaker) isAnchor(e model.Entity) bool {
	return e.Matches >= m.params.AnchorMatches
}

// shuffle returns a Fisher-Yates shuffled copy of pool.
func (m *Matchmaker) shuffle(pool []model.Entity) []model.Entity {
	out := make([]model.Entity, len(pool))
	copy(out, pool)
	for i := len(out) - 1; i > 0; i-- {
		j := m.src.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func excluded(exclude Excluder, id string) bool {
	return exclude != nil && exclude.Contains(id)
}
