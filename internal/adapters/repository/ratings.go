package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/pedalrank/internal/domain/model"
	"github.com/okian/pedalrank/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Storage keys.
const (
	GlobalKey    = "pedal-elo:global"
	HistoryKey   = "pedal-elo:history"
	BattlePrefix = "pedal-elo:battle:"
)

// BattleKey returns the storage key of a battle pool.
func BattleKey(battle string) string { return BattlePrefix + battle }

// Writer accepts values to persist under a key.
type Writer interface {
	Enqueue(ctx context.Context, key string, value any) error
}

// Snapshot is the state loaded at startup.
type Snapshot struct {
	Global  model.PoolData
	History []model.MatchRecord
}

// Ratings reads and writes rating pools and history on top of a Store.
type Ratings struct {
	store  Store
	writer Writer
	log    logger.Logger
}

// NewRatings creates a Ratings repository. Without WithWriter saves are
// written to the store directly.
func NewRatings(store Store, opts ...Option) *Ratings {
	r := &Ratings{
		store: store,
		log:   logger.Get().Named("repository"),
	}
	r.writer = directWriter{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadAll loads the global pool and the history in parallel.
func (r *Ratings) LoadAll(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.LoadGlobal(gctx)
		snap.Global = p
		return err
	})
	g.Go(func() error {
		h, err := r.LoadHistory(gctx)
		snap.History = h
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{Global: model.NewPoolData(), History: []model.MatchRecord{}}, err
	}
	r.log.Debug(ctx, "state loaded",
		logger.Int("rated", len(snap.Global.Rankings)),
		logger.Int("total_votes", snap.Global.TotalVotes),
		logger.Int("history", len(snap.History)),
	)
	return snap, nil
}

// LoadGlobal returns the global pool, empty when never saved.
func (r *Ratings) LoadGlobal(ctx context.Context) (model.PoolData, error) {
	return r.loadPool(ctx, GlobalKey)
}

// LoadBattle returns the pool of a battle, empty when never saved.
func (r *Ratings) LoadBattle(ctx context.Context, battle string) (model.PoolData, error) {
	return r.loadPool(ctx, BattleKey(battle))
}

// LoadHistory returns the match history, empty when never saved.
func (r *Ratings) LoadHistory(ctx context.Context) ([]model.MatchRecord, error) {
	var h []model.MatchRecord
	if _, err := r.load(ctx, HistoryKey, &h); err != nil {
		return []model.MatchRecord{}, err
	}
	if h == nil {
		h = []model.MatchRecord{}
	}
	return h, nil
}

// SaveGlobal persists the global pool.
func (r *Ratings) SaveGlobal(ctx context.Context, p model.PoolData) error {
	return r.writer.Enqueue(ctx, GlobalKey, p)
}

// SaveBattle persists a battle pool.
func (r *Ratings) SaveBattle(ctx context.Context, battle string, p model.PoolData) error {
	return r.writer.Enqueue(ctx, BattleKey(battle), p)
}

// SaveHistory persists the match history.
func (r *Ratings) SaveHistory(ctx context.Context, h []model.MatchRecord) error {
	return r.writer.Enqueue(ctx, HistoryKey, h)
}

func (r *Ratings) loadPool(ctx context.Context, key string) (model.PoolData, error) {
	p := model.NewPoolData()
	if _, err := r.load(ctx, key, &p); err != nil {
		return model.NewPoolData(), err
	}
	if p.Rankings == nil {
		p.Rankings = make(map[string]model.RatingRecord)
	}
	return p, nil
}

func (r *Ratings) load(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(data) == 0 || string(data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

type directWriter struct {
	store Store
}

func (d directWriter) Enqueue(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return d.store.Set(ctx, key, data)
}
