// Package service owns the rating state and implements the operations served
// by the HTTP API: matchmaking, vote resolution, analysis and resets.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/okian/pedalrank/internal/adapters/repository"
	"github.com/okian/pedalrank/internal/domain/analysis"
	"github.com/okian/pedalrank/internal/domain/catalogue"
	"github.com/okian/pedalrank/internal/domain/dedupe"
	"github.com/okian/pedalrank/internal/domain/history"
	"github.com/okian/pedalrank/internal/domain/matchmaking"
	"github.com/okian/pedalrank/internal/domain/model"
	"github.com/okian/pedalrank/internal/domain/population"
	"github.com/okian/pedalrank/internal/domain/rating"
	"github.com/okian/pedalrank/pkg/logger"
	"github.com/okian/pedalrank/pkg/metrics"
)

const (
	tracerName = "github.com/okian/pedalrank/internal/app"

	defaultVotedSize = 4096
	defaultMaxLimit  = 500
)

// RatingStore loads and persists rating pools and history.
// *repository.Ratings satisfies it.
type RatingStore interface {
	LoadAll(ctx context.Context) (repository.Snapshot, error)
	LoadBattle(ctx context.Context, battle string) (model.PoolData, error)
	SaveGlobal(ctx context.Context, p model.PoolData) error
	SaveBattle(ctx context.Context, battle string, p model.PoolData) error
	SaveHistory(ctx context.Context, h []model.MatchRecord) error
}

// Catalogue provides the pedal list. *catalogue.Loader satisfies it.
type Catalogue interface {
	Load(ctx context.Context) ([]model.Pedal, catalogue.Source, error)
}

// Matchup is one pair presented for a vote. Only Available is set when the
// pool holds fewer than two pedals.
type Matchup struct {
	Available bool          `json:"available"`
	ID        string        `json:"matchup_id,omitempty"`
	Left      *model.Entity `json:"left,omitempty"`
	Right     *model.Entity `json:"right,omitempty"`
	Mode      string        `json:"mode,omitempty"`
	Phase     string        `json:"phase,omitempty"`
	Spread    float64       `json:"spread,omitempty"`
	Battle    string        `json:"battle,omitempty"`
}

// VoteRequest identifies one vote. MatchupID makes resubmission idempotent.
type VoteRequest struct {
	MatchupID string
	WinnerID  string
	LoserID   string
}

// VoteResult reports the outcome of a vote. Record is nil for duplicates.
type VoteResult struct {
	Duplicate  bool               `json:"duplicate"`
	Upset      bool               `json:"upset"`
	TotalVotes int                `json:"totalVotes"`
	Record     *model.MatchRecord `json:"record,omitempty"`
}

// Service holds the catalogue, the global and battle pools, and the history
// log. A single mutex serialises every state change so each vote resolves
// against one consistent before-state.
type Service struct {
	mu sync.Mutex

	// Collaborators
	ratings   RatingStore
	catalogue Catalogue
	matcher   *matchmaking.Matchmaker
	tracer    trace.Tracer
	loads     singleflight.Group

	// Configuration
	fixed      []model.Pedal
	recentSize int
	votedSize  int
	maxLimit   int

	// State
	started   bool
	source    catalogue.Source
	pedals    []model.Pedal
	byID      map[string]model.Pedal
	brands    map[string]string
	global    model.PoolData
	log       []model.MatchRecord
	battles   map[string]model.PoolData
	recent    *dedupe.Window
	battleWin *dedupe.Window
	voted     dedupe.Deduper
	filter    string
	battleKey string

	logger logger.Logger
}

// New constructs a Service. Call Start before serving requests.
func New(opts ...Option) *Service {
	s := &Service{
		recentSize: dedupe.DefaultCapacity,
		votedSize:  defaultVotedSize,
		maxLimit:   defaultMaxLimit,
		tracer:     otel.Tracer(tracerName),
		global:     model.NewPoolData(),
		log:        []model.MatchRecord{},
		battles:    make(map[string]model.PoolData),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.ratings == nil {
		s.ratings = repository.NewRatings(repository.NewMemoryStore())
	}
	if s.catalogue == nil {
		s.catalogue = catalogue.NewLoader()
	}
	if s.matcher == nil {
		s.matcher = matchmaking.New()
	}
	s.recent = dedupe.NewWindow(dedupe.WithCapacity(s.recentSize))
	s.battleWin = dedupe.NewWindow(dedupe.WithCapacity(s.recentSize))
	s.voted = dedupe.NewWindow(dedupe.WithCapacity(s.votedSize))
	return s
}

// Start loads the catalogue and the persisted ratings. A store that cannot
// be read leaves the service running on empty state.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	pedals, source := s.fixed, catalogue.Source("fixed")
	if pedals == nil {
		var err error
		pedals, source, err = s.catalogue.Load(ctx)
		if err != nil {
			return fmt.Errorf("load catalogue: %w", err)
		}
	}

	snap, err := s.ratings.LoadAll(ctx)
	if err != nil {
		s.logger.Warn(ctx, "rating store unavailable, starting with empty state", logger.Error(err))
		snap = repository.Snapshot{Global: model.NewPoolData(), History: []model.MatchRecord{}}
	}

	s.setCatalogue(pedals, source)
	s.global = snap.Global
	s.log = snap.History
	s.started = true

	metrics.UpdatePedalCount(len(pedals))
	s.logger.Info(ctx, "service started",
		logger.String("catalogue", string(source)),
		logger.Int("pedals", len(pedals)),
		logger.Int("total_votes", s.global.TotalVotes),
		logger.Int("history", len(s.log)),
	)
	return nil
}

// setCatalogue installs pedals. Brand spellings that differ only in case
// are folded into the first one seen.
func (s *Service) setCatalogue(pedals []model.Pedal, source catalogue.Source) {
	s.pedals = make([]model.Pedal, len(pedals))
	s.source = source
	s.byID = make(map[string]model.Pedal, len(pedals))
	s.brands = make(map[string]string)
	for i, p := range pedals {
		key := strings.ToLower(p.Brand)
		if canonical, ok := s.brands[key]; ok {
			p.Brand = canonical
		} else {
			s.brands[key] = p.Brand
		}
		s.pedals[i] = p
		s.byID[p.ID] = p
	}
}

// NextMatchup returns the next global pair, optionally restricted to
// brands. Changing the brand filter clears the recent window.
func (s *Service) NextMatchup(ctx context.Context, brands []string) (Matchup, error) {
	ctx, span := s.tracer.Start(ctx, "NextMatchup")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return Matchup{}, ErrNotStarted
	}
	set, err := s.resolveBrands(brands)
	if err != nil {
		return Matchup{}, err
	}
	if key := filterKey(set); key != s.filter {
		s.recent.Reset()
		s.filter = key
	}

	pool := filterPool(model.Merge(s.pedals, s.global.Rankings), set)
	pair, ok := s.matcher.Pick(pool, s.recent)
	if !ok {
		metrics.RecordNoMatchup()
		span.SetAttributes(attribute.Bool("available", false))
		return Matchup{Available: false}, nil
	}
	s.recent.Add(pair.A.ID, pair.B.ID)
	metrics.RecordMatchup(string(pair.Mode), string(pair.Phase), pair.Spread)

	m := newMatchup(pair, "")
	span.SetAttributes(
		attribute.String("mode", m.Mode),
		attribute.String("phase", m.Phase),
		attribute.String("left", m.Left.ID),
		attribute.String("right", m.Right.ID),
	)
	s.logger.Debug(ctx, "matchup served",
		logger.String("matchup_id", m.ID),
		logger.String("mode", m.Mode),
		logger.String("phase", m.Phase),
		logger.Float64("spread", m.Spread),
	)
	return m, nil
}

// Vote resolves one global vote. A matchup id that was already applied is
// reported as a duplicate and changes nothing.
func (s *Service) Vote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	ctx, span := s.tracer.Start(ctx, "Vote", trace.WithAttributes(
		attribute.String("mode", model.ModeGlobal),
		attribute.String("winner", req.WinnerID),
		attribute.String("loser", req.LoserID),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVote(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return VoteResult{}, err
	}
	if s.duplicate(ctx, req.MatchupID) {
		return VoteResult{Duplicate: true, TotalVotes: s.global.TotalVotes}, nil
	}

	next, rec := s.resolve(s.global, req, model.ModeGlobal, "")
	s.global = next
	s.log = history.Append(s.log, rec)
	s.recent.Add(req.WinnerID, req.LoserID)

	s.persist(ctx, func() error { return s.ratings.SaveGlobal(ctx, next) })
	s.persist(ctx, func() error { return s.ratings.SaveHistory(ctx, s.log) })

	metrics.RecordVote(model.ModeGlobal, rec.Delta, rec.Upset())
	span.SetAttributes(attribute.Float64("delta", rec.Delta), attribute.Float64("gap", rec.Gap))
	return VoteResult{Upset: rec.Upset(), TotalVotes: next.TotalVotes, Record: &rec}, nil
}

// Skip discards the recent window so the next pairs may repeat anything.
func (s *Service) Skip(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	s.recent.Reset()
	s.battleWin.Reset()
	s.logger.Debug(ctx, "recent window cleared")
	return nil
}

// Reset returns every pedal to the initial rating and clears history.
// Battle pools are left untouched.
func (s *Service) Reset(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	blank := model.Blank(s.pedals)
	s.global = blank
	s.log = []model.MatchRecord{}
	s.recent.Reset()

	s.persist(ctx, func() error { return s.ratings.SaveGlobal(ctx, blank) })
	s.persist(ctx, func() error { return s.ratings.SaveHistory(ctx, []model.MatchRecord{}) })

	metrics.RecordReset()
	s.logger.Info(ctx, "ratings reset", logger.Int("pedals", len(s.pedals)))
	return nil
}

// Leaderboard returns global standings, ranked pedals first. limit is
// clamped to the configured maximum; a non-positive limit means the maximum.
func (s *Service) Leaderboard(_ context.Context, limit int, brands []string) ([]analysis.Standing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	set, err := s.resolveBrands(brands)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	standings := analysis.FilterBrands(analysis.Standings(model.Merge(s.pedals, s.global.Rankings)), set)
	return analysis.Top(standings, limit), nil
}

// Rank returns the standing of one pedal.
func (s *Service) Rank(_ context.Context, id string) (analysis.Standing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return analysis.Standing{}, ErrNotStarted
	}
	st, ok := analysis.Find(analysis.Standings(model.Merge(s.pedals, s.global.Rankings)), id)
	if !ok {
		return analysis.Standing{}, fmt.Errorf("%w: %s", ErrUnknownPedal, id)
	}
	return st, nil
}

// History returns up to limit records of mode, newest first. An empty mode
// returns every record.
func (s *Service) History(_ context.Context, mode string, limit int) ([]model.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	return history.Recent(s.log, mode, limit), nil
}

// Analysis builds the brand, contested, upset and recent report over the
// global pool, optionally restricted to brands.
func (s *Service) Analysis(_ context.Context, brands []string) (analysis.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return analysis.Report{}, ErrNotStarted
	}
	set, err := s.resolveBrands(brands)
	if err != nil {
		return analysis.Report{}, err
	}
	pool := filterPool(model.Merge(s.pedals, s.global.Rankings), set)
	return analysis.Build(pool, s.log), nil
}

// Brands lists catalogue brands with their pedal counts.
func (s *Service) Brands(_ context.Context) ([]analysis.BrandCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	return analysis.Brands(s.pedals), nil
}

// Search finds pedals by name or brand.
func (s *Service) Search(_ context.Context, q string, limit int) ([]analysis.Standing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	if limit <= 0 {
		limit = analysis.SearchLimit
	}
	return analysis.Search(analysis.Standings(model.Merge(s.pedals, s.global.Rankings)), q, limit), nil
}

// NextBattleMatchup returns a pair with one pedal from each brand, rated in
// the battle's own pool.
func (s *Service) NextBattleMatchup(ctx context.Context, brandA, brandB string) (Matchup, error) {
	ctx, span := s.tracer.Start(ctx, "NextBattleMatchup")
	defer span.End()

	a, b, key, err := s.battle(brandA, brandB)
	if err != nil {
		return Matchup{}, err
	}
	if _, err := s.battlePool(ctx, key); err != nil {
		return Matchup{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key != s.battleKey {
		s.battleWin.Reset()
		s.battleKey = key
	}
	entities := model.Merge(s.pedals, s.battles[key].Rankings)
	pair, ok := s.matcher.PickBattle(
		filterPool(entities, map[string]bool{a: true}),
		filterPool(entities, map[string]bool{b: true}),
		s.battleWin,
	)
	if !ok {
		metrics.RecordNoMatchup()
		return Matchup{Available: false}, nil
	}
	s.battleWin.Add(pair.A.ID, pair.B.ID)
	metrics.RecordMatchup(string(pair.Mode), string(pair.Phase), 0)
	span.SetAttributes(attribute.String("battle", key))
	return newMatchup(pair, key), nil
}

// BattleVote resolves a vote inside a brand battle. The winner and loser
// must come from opposite brands of the battle.
func (s *Service) BattleVote(ctx context.Context, brandA, brandB string, req VoteRequest) (VoteResult, error) {
	ctx, span := s.tracer.Start(ctx, "BattleVote", trace.WithAttributes(
		attribute.String("mode", model.ModeBattle),
		attribute.String("winner", req.WinnerID),
		attribute.String("loser", req.LoserID),
	))
	defer span.End()

	a, b, key, err := s.battle(brandA, brandB)
	if err != nil {
		return VoteResult{}, err
	}
	if _, err := s.battlePool(ctx, key); err != nil {
		return VoteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVote(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return VoteResult{}, err
	}
	wb, lb := s.byID[req.WinnerID].Brand, s.byID[req.LoserID].Brand
	if !(wb == a && lb == b) && !(wb == b && lb == a) {
		return VoteResult{}, fmt.Errorf("%w: %s", ErrNotInBattle, key)
	}
	if s.duplicate(ctx, req.MatchupID) {
		return VoteResult{Duplicate: true, TotalVotes: s.battles[key].TotalVotes}, nil
	}

	next, rec := s.resolve(s.battles[key], req, model.ModeBattle, key)
	s.battles[key] = next
	s.log = history.Append(s.log, rec)
	s.battleWin.Add(req.WinnerID, req.LoserID)

	s.persist(ctx, func() error { return s.ratings.SaveBattle(ctx, key, next) })
	s.persist(ctx, func() error { return s.ratings.SaveHistory(ctx, s.log) })

	metrics.RecordVote(model.ModeBattle, rec.Delta, rec.Upset())
	span.SetAttributes(attribute.String("battle", key), attribute.Float64("delta", rec.Delta))
	return VoteResult{Upset: rec.Upset(), TotalVotes: next.TotalVotes, Record: &rec}, nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(_ context.Context) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]any{
		"started": s.started,
	}
	if !s.started {
		return stats
	}
	pool := model.Merge(s.pedals, s.global.Rankings)
	spread := population.Spread(pool)
	stats["catalogue"] = string(s.source)
	stats["pedals"] = len(s.pedals)
	stats["brands"] = len(s.brands)
	stats["rankedPedals"] = len(analysis.Ranked(pool))
	stats["totalVotes"] = s.global.TotalVotes
	stats["history"] = len(s.log)
	stats["battles"] = len(s.battles)
	stats["spread"] = spread
	stats["meanRating"] = population.Mean(pool)
	stats["mode"] = string(s.matcher.ModeFor(spread))
	stats["recent"] = s.recent.Len()
	stats["recentPedals"] = s.recent.IDs()
	stats["votedTracked"] = s.voted.Size()
	return stats
}

// checkVote validates ids. Callers hold s.mu.
func (s *Service) checkVote(req VoteRequest) error {
	if !s.started {
		return ErrNotStarted
	}
	if req.WinnerID == req.LoserID {
		return fmt.Errorf("%w: %s", ErrSamePedal, req.WinnerID)
	}
	for _, id := range []string{req.WinnerID, req.LoserID} {
		if _, ok := s.byID[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPedal, id)
		}
	}
	return nil
}

// duplicate records matchupID and reports whether it was applied before.
// Votes without an id are never treated as duplicates.
func (s *Service) duplicate(ctx context.Context, matchupID string) bool {
	if matchupID == "" {
		return false
	}
	if s.voted.SeenAndRecord(ctx, matchupID) {
		metrics.RecordDuplicateVote()
		s.logger.Debug(ctx, "duplicate vote ignored", logger.String("matchup_id", matchupID))
		return true
	}
	return false
}

// resolve applies one vote to a copy of pool and returns it with the
// matching history record.
func (s *Service) resolve(pool model.PoolData, req VoteRequest, mode, battle string) (model.PoolData, model.MatchRecord) {
	w := model.Lookup(pool.Rankings, req.WinnerID)
	l := model.Lookup(pool.Rankings, req.LoserID)
	res := rating.Resolve(w, l)
	nw, nl := rating.Apply(w, l, res)

	next := pool.Clone()
	next.Rankings[req.WinnerID] = nw
	next.Rankings[req.LoserID] = nl
	next.TotalVotes++

	winner, loser := s.byID[req.WinnerID], s.byID[req.LoserID]
	rec := model.MatchRecord{
		ID:     uuid.NewString(),
		TS:     time.Now().UnixMilli(),
		Mode:   mode,
		Battle: battle,
		Winner: model.Side{ID: winner.ID, Name: winner.Name, Brand: winner.Brand, RatingBefore: w.Rating, RatingAfter: nw.Rating},
		Loser:  model.Side{ID: loser.ID, Name: loser.Name, Brand: loser.Brand, RatingBefore: l.Rating, RatingAfter: nl.Rating},
		Delta:  res.Delta,
		Gap:    res.Gap,
	}
	return next, rec
}

// persist hands a save to the store. Failures are logged; the in-memory
// state stays authoritative.
func (s *Service) persist(ctx context.Context, save func() error) {
	if err := save(); err != nil {
		s.logger.Warn(ctx, "persist failed", logger.Error(err))
	}
}

// battle resolves both brand names and the battle key.
func (s *Service) battle(brandA, brandB string) (string, string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return "", "", "", ErrNotStarted
	}
	a, ok := s.brands[strings.ToLower(brandA)]
	if !ok {
		return "", "", "", fmt.Errorf("%w: %s", ErrUnknownBrand, brandA)
	}
	b, ok := s.brands[strings.ToLower(brandB)]
	if !ok {
		return "", "", "", fmt.Errorf("%w: %s", ErrUnknownBrand, brandB)
	}
	if a == b {
		return "", "", "", fmt.Errorf("%w: %s", ErrSameBrand, a)
	}
	return a, b, matchmaking.BattleKey(a, b), nil
}

// battlePool returns the pool of a battle, loading it on first use.
// Concurrent first loads of one key share a single store read.
func (s *Service) battlePool(ctx context.Context, key string) (model.PoolData, error) {
	s.mu.Lock()
	p, ok := s.battles[key]
	s.mu.Unlock()
	if ok {
		return p, nil
	}

	v, err, _ := s.loads.Do(key, func() (any, error) {
		loaded, err := s.ratings.LoadBattle(ctx, key)
		if err != nil {
			s.logger.Warn(ctx, "battle pool unavailable, starting empty",
				logger.String("battle", key), logger.Error(err))
			loaded = model.NewPoolData()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.battles[key]; ok {
			return existing, nil
		}
		s.battles[key] = loaded
		return loaded, nil
	})
	if err != nil {
		return model.PoolData{}, err
	}
	return v.(model.PoolData), nil
}

// resolveBrands maps requested brand names to catalogue spelling.
// Callers hold s.mu.
func (s *Service) resolveBrands(brands []string) (map[string]bool, error) {
	set := make(map[string]bool, len(brands))
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		canonical, ok := s.brands[strings.ToLower(b)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBrand, b)
		}
		set[canonical] = true
	}
	return set, nil
}

func filterKey(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for b := range set {
		keys = append(keys, b)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func filterPool(pool []model.Entity, set map[string]bool) []model.Entity {
	if len(set) == 0 {
		return pool
	}
	out := make([]model.Entity, 0, len(pool))
	for _, e := range pool {
		if set[e.Brand] {
			out = append(out, e)
		}
	}
	return out
}

func newMatchup(p matchmaking.Pair, battle string) Matchup {
	a, b := p.A, p.B
	return Matchup{
		Available: true,
		ID:        uuid.NewString(),
		Left:      &a,
		Right:     &b,
		Mode:      string(p.Mode),
		Phase:     string(p.Phase),
		Spread:    p.Spread,
		Battle:    battle,
	}
}
