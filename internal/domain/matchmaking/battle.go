package matchmaking

import (
	"regexp"
	"sort"
	"strings"

	"github.com/okian/pedalrank/internal/domain/model"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// PickBattle pairs one pedal from brandA's pool with one from brandB's,
// drawing from the top-rated pedals of each so the matchup stays meaningful.
// It returns false when either pool is empty.
func (m *Matchmaker) PickBattle(poolA, poolB []model.Entity, exclude Excluder) (Pair, bool) {
	if len(poolA) == 0 || len(poolB) == 0 {
		return Pair{}, false
	}
	a := byRatingDesc(poolA)
	b := byRatingDesc(poolB)
	depth := min(m.params.BattleDepth, len(a), len(b))

	for attempt := 0; attempt < m.params.BattleAttempts; attempt++ {
		x := a[m.src.Intn(depth)]
		y := b[m.src.Intn(depth)]
		if x.ID == y.ID || excluded(exclude, x.ID) || excluded(exclude, y.ID) {
			continue
		}
		return Pair{A: x, B: y, Mode: ModeBattle, Phase: PhaseExplore}, true
	}
	return Pair{A: a[0], B: b[0], Mode: ModeBattle, Phase: PhaseFallback}, true
}

// BattleKey returns the storage key of a brand battle. The key does not
// depend on argument order.
func BattleKey(brandA, brandB string) string {
	parts := []string{slug(brandA), slug(brandB)}
	sort.Strings(parts)
	return strings.Join(parts, "-vs-")
}

func slug(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
}

func byRatingDesc(pool []model.Entity) []model.Entity {
	out := make([]model.Entity, len(pool))
	copy(out, pool)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out
}
