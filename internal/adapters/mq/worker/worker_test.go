package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/pedalrank/internal/adapters/mq/queue"
	worker "github.com/okian/pedalrank/internal/adapters/mq/worker"
	logging "github.com/okian/pedalrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockSink records every write and can be told to fail for a key.
type mockSink struct {
	mu     sync.Mutex
	writes []string
	values map[string]string
	fail   map[string]error
}

func newMockSink() *mockSink {
	return &mockSink{values: map[string]string{}, fail: map[string]error{}}
}

func (s *mockSink) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[key]; ok {
		return err
	}
	s.writes = append(s.writes, key+"="+string(value))
	s.values[key] = string(value)
	return nil
}

func (s *mockSink) failKey(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[key] = err
}

func (s *mockSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue { return &mockQueue{jobs: make(chan queue.Job, 10)} }

func (q *mockQueue) Dequeue() <-chan queue.Job { return q.jobs }

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		q := newMockQueue()
		sink := newMockSink()
		var (
			mu     sync.Mutex
			failed []queue.Job
		)
		w := worker.NewInMemoryWorker(q, sink,
			worker.WithName("test-worker"),
			worker.WithLogger(logging.Nop()),
			worker.WithFailureHandler(func(_ context.Context, j queue.Job, _ error) {
				mu.Lock()
				failed = append(failed, j)
				mu.Unlock()
			}),
		)
		ctx := context.Background()
		go w.Run(ctx)

		convey.Convey("When jobs are queued and the queue is closed", func() {
			sink.failKey("bad", errors.New("disk full"))
			q.jobs <- queue.Job{Key: "a", Value: []byte("1"), EnqueuedAt: time.Now()}
			q.jobs <- queue.Job{Key: "bad", Value: []byte("x"), EnqueuedAt: time.Now()}
			q.jobs <- queue.Job{Key: "a", Value: []byte("2"), EnqueuedAt: time.Now()}
			close(q.jobs)

			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then every job is processed in order before shutdown returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.snapshot(), convey.ShouldResemble, []string{"a=1", "a=2"})
			})

			convey.Convey("And the failed job is handed to the failure handler", func() {
				mu.Lock()
				defer mu.Unlock()
				convey.So(failed, convey.ShouldHaveLength, 1)
				convey.So(failed[0].Key, convey.ShouldEqual, "bad")
			})
		})
	})

	convey.Convey("Given a worker whose queue never closes", t, func() {
		w := worker.NewInMemoryWorker(newMockQueue(), newMockSink(), worker.WithLogger(logging.Nop()))
		go w.Run(context.Background())

		convey.Convey("When shutting down with a short deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := w.Shutdown(ctx)

			convey.Convey("Then it times out", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		sink := newMockSink()
		pool := worker.NewPool(4, sink, worker.WithQueueCapacity(64), worker.WithPoolLogger(logging.Nop()))
		ctx := context.Background()

		convey.Convey("Then keys are routed to a stable shard", func() {
			convey.So(pool.Size(), convey.ShouldEqual, 4)
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("pedal-elo:battle:%d", i)
				s := pool.Shard(key)
				convey.So(s, convey.ShouldBeBetweenOrEqual, 0, 3)
				convey.So(pool.Shard(key), convey.ShouldEqual, s)
			}
		})

		convey.Convey("When many values for one key are submitted", func() {
			pool.Start(ctx)
			for i := 0; i < 20; i++ {
				convey.So(pool.SubmitWait(ctx, queue.Job{Key: "k", Value: []byte(fmt.Sprint(i))}), convey.ShouldBeNil)
			}
			convey.So(pool.Submit(ctx, queue.Job{Key: "other", Value: []byte("x")}), convey.ShouldBeTrue)

			shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then they are written in submission order", func() {
				convey.So(sink.values["k"], convey.ShouldEqual, "19")
				convey.So(sink.values["other"], convey.ShouldEqual, "x")
				var ks []string
				for _, w := range sink.snapshot() {
					if w[0] == 'k' {
						ks = append(ks, w)
					}
				}
				convey.So(ks, convey.ShouldHaveLength, 20)
				convey.So(ks[0], convey.ShouldEqual, "k=0")
				convey.So(ks[19], convey.ShouldEqual, "k=19")
				convey.So(pool.Pending(), convey.ShouldEqual, 0)
			})

			convey.Convey("And submissions after shutdown are rejected", func() {
				convey.So(pool.Submit(ctx, queue.Job{Key: "k"}), convey.ShouldBeFalse)
				convey.So(errors.Is(pool.SubmitWait(ctx, queue.Job{Key: "k"}), queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool created with no workers", t, func() {
		pool := worker.NewPool(0, newMockSink(), worker.WithPoolLogger(logging.Nop()))
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}
