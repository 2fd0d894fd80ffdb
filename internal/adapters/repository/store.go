// Package repository persists rating pools and match history in a
// key-value store. Values are JSON documents; every backend stores them as
// opaque strings under a key.
package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/pedalrank/pkg/metrics"
)

// Store is a minimal key-value store.
type Store interface {
	// Get returns the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendUpstash  = "upstash"
)

// Config selects and configures a backend.
type Config struct {
	Backend        string
	PostgresDSN    string
	SQLitePath     string
	UpstashURL     string
	UpstashToken   string
	UpstashRPS     float64
	UpstashTimeout time.Duration
	HTTPClient     *http.Client
}

// Open creates the configured backend, wrapped with latency metrics.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendMemory:
		backend = BackendMemory
		s = NewMemoryStore()
	case BackendPostgres:
		s, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case BackendSQLite:
		s, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case BackendUpstash:
		s, err = NewUpstashStore(cfg.UpstashURL, cfg.UpstashToken,
			WithRateLimit(cfg.UpstashRPS),
			WithTimeout(cfg.UpstashTimeout),
			WithClient(cfg.HTTPClient),
		)
	default:
		return nil, fmt.Errorf("open %q: %w", cfg.Backend, ErrUnknownBackend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s, backend), nil
}

// Instrument wraps s so every call records its latency and outcome.
func Instrument(s Store, backend string) Store {
	return &instrumented{Store: s, backend: backend}
}

type instrumented struct {
	Store
	backend string
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	v, ok, err := i.Store.Get(ctx, key)
	metrics.RecordStoreOp(i.backend, "get", time.Since(start), err)
	return v, ok, err
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.Store.Set(ctx, key, value)
	metrics.RecordStoreOp(i.backend, "set", time.Since(start), err)
	return err
}

// Unwrap returns the backend behind the metrics wrapper.
func (i *instrumented) Unwrap() Store { return i.Store }

// Unwrap returns the innermost backend of s.
func Unwrap(s Store) Store {
	for {
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return s
		}
		s = u.Unwrap()
	}
}
