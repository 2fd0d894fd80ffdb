// Package coalescer debounces writes per key. Each Enqueue replaces the
// pending value of its key and restarts that key's quiet-period timer; when
// the timer fires the latest value is handed to the flush worker that owns
// the key. Intermediate values are never written.
package coalescer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pedalrank/internal/adapters/mq/queue"
	"github.com/okian/pedalrank/internal/adapters/mq/worker"
	"github.com/okian/pedalrank/pkg/logger"
	"github.com/okian/pedalrank/pkg/metrics"
)

// Defaults.
const (
	DefaultDelay       = 700 * time.Millisecond
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
	DefaultMaxAttempts = 3
)

type entry struct {
	value   []byte
	attempt int
	version uint64
	gen     uint64
	timer   *time.Timer
}

// Coalescer owns the pending value and timer of every dirty key.
type Coalescer struct {
	delay       time.Duration
	workers     int
	queueSize   int
	maxAttempts int
	log         logger.Logger

	sink worker.Sink
	pool *worker.Pool

	mu      sync.Mutex
	pending map[string]*entry
	latest  map[string]uint64
	gen     uint64
	started bool
	stopped bool
	runCtx  context.Context
}

// New creates a Coalescer writing to sink. Call Start before Enqueue.
func New(sink worker.Sink, opts ...Option) *Coalescer {
	c := &Coalescer{
		delay:       DefaultDelay,
		workers:     DefaultWorkers,
		queueSize:   DefaultQueueSize,
		maxAttempts: DefaultMaxAttempts,
		log:         logger.Get().Named("coalescer"),
		sink:        sink,
		pending:     make(map[string]*entry),
		latest:      make(map[string]uint64),
		runCtx:      context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = worker.NewPool(c.workers, sink,
		worker.WithQueueCapacity(c.queueSize),
		worker.WithPoolLogger(c.log),
		worker.WithPoolFailureHandler(c.onFailure),
	)
	return c
}

// Start launches the flush workers.
func (c *Coalescer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.runCtx = context.WithoutCancel(ctx)
	c.pool.Start(c.runCtx)
	c.log.Info(ctx, "coalescer started",
		logger.Duration("delay", c.delay),
		logger.Int("workers", c.pool.Size()),
	)
}

// Enqueue snapshots value as JSON and schedules it to be written under key
// once key has been quiet for the configured delay.
func (c *Coalescer) Enqueue(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if !c.started {
		return ErrNotStarted
	}
	c.gen++
	c.latest[key] = c.gen
	c.arm(key, data, 0, c.gen)
	metrics.RecordCoalescerEnqueued()
	return nil
}

// arm replaces the pending value of key and restarts its timer. Callers
// hold c.mu.
func (c *Coalescer) arm(key string, data []byte, attempt int, version uint64) {
	if e, ok := c.pending[key]; ok {
		e.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.pending[key] = &entry{
		value:   data,
		attempt: attempt,
		version: version,
		gen:     gen,
		timer:   time.AfterFunc(c.delay, func() { c.fire(key, gen) }),
	}
	metrics.UpdateCoalescerPending(len(c.pending))
}

// fire hands the pending value of key to its worker. A stale timer, one
// whose entry was replaced after it fired, does nothing.
func (c *Coalescer) fire(key string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pending[key]
	if !ok || e.gen != gen || c.stopped {
		return
	}
	delete(c.pending, key)
	metrics.UpdateCoalescerPending(len(c.pending))

	job := queue.Job{Key: key, Value: e.value, Attempt: e.attempt, Version: e.version}
	if !c.pool.Submit(c.runCtx, job) {
		c.log.Warn(c.runCtx, "flush queue full, re-arming", logger.String("key", key))
		metrics.RecordCoalescerRequeued()
		c.arm(key, e.value, e.attempt, e.version)
	}
}

// onFailure re-arms a value whose write failed unless a newer value for
// the key was enqueued since, wherever that value is now, or the attempt
// budget is spent.
func (c *Coalescer) onFailure(ctx context.Context, j queue.Job, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest[j.Key] != j.Version {
		c.log.Debug(ctx, "discarding superseded failed write", logger.String("key", j.Key), logger.Error(err))
		return
	}
	next := j.Attempt + 1
	if c.stopped || next >= c.maxAttempts {
		metrics.RecordCoalescerDropped()
		c.log.Error(ctx, "dropping value after failed writes",
			logger.String("key", j.Key),
			logger.Int("attempts", next),
			logger.Error(err),
		)
		return
	}
	metrics.RecordCoalescerRequeued()
	c.arm(j.Key, j.Value, next, j.Version)
}

// Flush hands every pending value to the workers immediately, waiting for
// queue room when needed. It does not wait for the writes to complete.
func (c *Coalescer) Flush(ctx context.Context) error {
	c.mu.Lock()
	jobs := c.drain()
	c.mu.Unlock()
	return c.submitAll(ctx, jobs)
}

// Stop rejects further Enqueue calls, flushes every pending value and waits
// for the workers to finish writing.
func (c *Coalescer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	started := c.started
	jobs := c.drain()
	c.mu.Unlock()

	if !started {
		return nil
	}
	err := c.submitAll(ctx, jobs)
	if serr := c.pool.Shutdown(ctx); serr != nil && err == nil {
		err = serr
	}
	c.log.Info(ctx, "coalescer stopped", logger.Int("flushed", len(jobs)))
	return err
}

// Pending returns the number of keys waiting for their timer.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// drain removes every pending entry. Callers hold c.mu.
func (c *Coalescer) drain() []queue.Job {
	jobs := make([]queue.Job, 0, len(c.pending))
	for key, e := range c.pending {
		e.timer.Stop()
		jobs = append(jobs, queue.Job{Key: key, Value: e.value, Attempt: e.attempt, Version: e.version})
	}
	clear(c.pending)
	metrics.UpdateCoalescerPending(0)
	return jobs
}

func (c *Coalescer) submitAll(ctx context.Context, jobs []queue.Job) error {
	for _, j := range jobs {
		if err := c.pool.SubmitWait(ctx, j); err != nil {
			return fmt.Errorf("flush %s: %w", j.Key, err)
		}
	}
	return nil
}
