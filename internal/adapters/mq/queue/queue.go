// Package queue provides the bounded job queue feeding flush workers.
//
// Each queue is a buffered channel. Enqueue never blocks; EnqueueWait
// blocks until there is room, used when draining on shutdown.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/pedalrank/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultName          = "flush"
)

// Job is one value waiting to be written under a key.
type Job struct {
	Key        string
	Value      []byte
	EnqueuedAt time.Time
	// Attempt counts earlier failed writes of this value.
	Attempt int
	// Version orders values enqueued under the same key.
	Version uint64
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool
	// EnqueueWait adds a job, waiting for room until ctx is done.
	EnqueueWait(ctx context.Context, j Job) error
	// Dequeue returns the channel jobs are received from. It is closed
	// once the queue is closed and drained.
	Dequeue() <-chan Job
	Len() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     defaultName,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.name, q.capacity)
	metrics.UpdateQueueSize(q.name, 0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected(q.name, "closed")
		return false
	}
	stamp(&j)
	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue(q.name)
		metrics.UpdateQueueSize(q.name, len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordQueueRejected(q.name, "context_cancelled")
		return false
	default:
		metrics.RecordQueueRejected(q.name, "queue_full")
		return false
	}
}

// EnqueueWait adds a job, blocking while the queue is full.
func (q *InMemoryQueue) EnqueueWait(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected(q.name, "closed")
		return ErrClosed
	}
	stamp(&j)
	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue(q.name)
		metrics.UpdateQueueSize(q.name, len(q.jobs))
		return nil
	case <-ctx.Done():
		metrics.RecordQueueRejected(q.name, "context_cancelled")
		return fmt.Errorf("enqueue %s: %w", j.Key, ctx.Err())
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(q.name, size)
	return size
}

// Capacity returns the maximum number of queued jobs.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Name returns the metrics label of the queue.
func (q *InMemoryQueue) Name() string { return q.name }

// Close stops accepting jobs. Jobs already queued can still be received.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func stamp(j *Job) {
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}
}
