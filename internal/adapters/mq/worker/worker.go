// Package worker runs the flush workers that write coalesced values to the
// store.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/pedalrank/internal/adapters/mq/queue"
	"github.com/okian/pedalrank/pkg/logger"
	"github.com/okian/pedalrank/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount = 4
	writeTimeout       = 10 * time.Second
)

// Sink is where flushed values are written. repository.Store satisfies it.
type Sink interface {
	Set(ctx context.Context, key string, value []byte) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan queue.Job
}

// Worker writes queued jobs to a Sink.
type Worker interface {
	// Run processes jobs until the queue is closed and drained.
	Run(ctx context.Context)
	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	sink      Sink
	name      string
	onFailure func(ctx context.Context, j queue.Job, err error)

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:  q,
		sink:   sink,
		name:   "worker",
		done:   make(chan struct{}),
		logger: logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run drains the queue. Jobs are written even after ctx is cancelled so a
// shutdown does not lose data; each write gets its own timeout.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for j := range w.queue.Dequeue() {
		if err := w.process(context.WithoutCancel(ctx), j); err != nil {
			w.logger.Error(ctx, "flush failed",
				logger.String("key", j.Key),
				logger.Int("attempt", j.Attempt),
				logger.Error(err),
			)
			if w.onFailure != nil {
				w.onFailure(ctx, j, err)
			}
		}
	}
}

// Shutdown waits for the worker to finish draining.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	err := w.sink.Set(ctx, j.Key, j.Value)
	metrics.RecordFlush(time.Since(start), time.Since(j.EnqueuedAt), err)
	if err != nil {
		return fmt.Errorf("write %s: %w", j.Key, err)
	}
	w.logger.Debug(ctx, "flushed", logger.String("key", j.Key), logger.Int("bytes", len(j.Value)))
	return nil
}

// Pool owns one queue per worker and routes every key to the same worker,
// so writes for one key are applied in order.
type Pool struct {
	queues  []*queue.InMemoryQueue
	workers []*InMemoryWorker

	queueCapacity int
	onFailure     func(ctx context.Context, j queue.Job, err error)
	logger        logger.Logger
}

// NewPool creates workerCount workers writing to sink.
func NewPool(workerCount int, sink Sink, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		queues:  make([]*queue.InMemoryQueue, workerCount),
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := 0; i < workerCount; i++ {
		name := "worker-" + strconv.Itoa(i)
		qopts := []queue.Option{queue.WithName(name)}
		if p.queueCapacity > 0 {
			qopts = append(qopts, queue.WithCapacity(p.queueCapacity))
		}
		p.queues[i] = queue.NewInMemoryQueue(qopts...)
		p.workers[i] = NewInMemoryWorker(p.queues[i], sink,
			WithName(name),
			WithLogger(p.logger),
			WithFailureHandler(p.onFailure),
		)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shard returns the index of the worker owning key.
func (p *Pool) Shard(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.workers)))
}

// Submit queues j on its key's worker without blocking. It returns false
// when that queue is full or closed.
func (p *Pool) Submit(ctx context.Context, j queue.Job) bool {
	return p.queues[p.Shard(j.Key)].Enqueue(ctx, j)
}

// SubmitWait queues j on its key's worker, waiting for room.
func (p *Pool) SubmitWait(ctx context.Context, j queue.Job) error {
	return p.queues[p.Shard(j.Key)].EnqueueWait(ctx, j)
}

// Pending returns the number of queued jobs across all workers.
func (p *Pool) Pending() int {
	n := 0
	for _, q := range p.queues {
		n += q.Len()
	}
	return n
}

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes every queue and waits for the workers to drain them.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	var firstErr error
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
