package coalescer

import (
	"time"

	"github.com/okian/pedalrank/pkg/logger"
)

// Option applies a configuration option to the Coalescer.
type Option func(*Coalescer)

// WithDelay sets the quiet period a key must see before it is flushed.
func WithDelay(d time.Duration) Option {
	return func(c *Coalescer) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithWorkers sets the number of flush workers.
func WithWorkers(n int) Option {
	return func(c *Coalescer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity of each flush worker.
func WithQueueSize(n int) Option {
	return func(c *Coalescer) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithMaxAttempts sets how many times a value is written before it is
// dropped.
func WithMaxAttempts(n int) Option {
	return func(c *Coalescer) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coalescer) {
		if l != nil {
			c.log = l
		}
	}
}
