// Package worker runs the flush workers that write coalesced values to the
// store.
package worker

import (
	"context"

	"github.com/okian/pedalrank/internal/adapters/mq/queue"
	"github.com/okian/pedalrank/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithFailureHandler sets the function called when a write fails.
func WithFailureHandler(fn func(ctx context.Context, j queue.Job, err error)) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onFailure = fn
		}
	}
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// WithQueueCapacity sets the capacity of each worker's queue.
func WithQueueCapacity(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.queueCapacity = n
		}
	}
}

// WithPoolLogger sets the logger of the pool and its workers.
func WithPoolLogger(l logger.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPoolFailureHandler sets the failure handler of every worker.
func WithPoolFailureHandler(fn func(ctx context.Context, j queue.Job, err error)) PoolOption {
	return func(p *Pool) {
		p.onFailure = fn
	}
}
