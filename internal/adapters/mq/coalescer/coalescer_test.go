package coalescer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/pedalrank/internal/adapters/mq/coalescer"
	"github.com/okian/pedalrank/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type write struct {
	key   string
	value string
}

type recordingSink struct {
	mu       sync.Mutex
	writes   []write
	failures int
}

func (s *recordingSink) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("unavailable")
	}
	s.writes = append(s.writes, write{key: key, value: string(value)})
	return nil
}

func (s *recordingSink) all() []write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]write(nil), s.writes...)
}

func (s *recordingSink) failNext(n int) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
}

func newCoalescer(t *testing.T, sink *recordingSink, opts ...coalescer.Option) *coalescer.Coalescer {
	t.Helper()
	opts = append([]coalescer.Option{
		coalescer.WithDelay(30 * time.Millisecond),
		coalescer.WithWorkers(2),
		coalescer.WithLogger(logger.Nop()),
	}, opts...)
	c := coalescer.New(sink, opts...)
	c.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return c
}

func TestCoalescer_RapidEnqueuesProduceOneWrite(t *testing.T) {
	sink := &recordingSink{}
	c := newCoalescer(t, sink)
	ctx := context.Background()

	require.NoError(t, c.Enqueue(ctx, "pedal-elo:global", map[string]int{"v": 1}))
	require.NoError(t, c.Enqueue(ctx, "pedal-elo:global", map[string]int{"v": 2}))
	require.NoError(t, c.Enqueue(ctx, "pedal-elo:global", map[string]int{"v": 3}))
	assert.Equal(t, 1, c.Pending())

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	writes := sink.all()
	require.Len(t, writes, 1)
	assert.Equal(t, "pedal-elo:global", writes[0].key)
	assert.JSONEq(t, `{"v":3}`, writes[0].value)
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescer_KeysAreIndependent(t *testing.T) {
	sink := &recordingSink{}
	c := newCoalescer(t, sink)
	ctx := context.Background()

	require.NoError(t, c.Enqueue(ctx, "pedal-elo:global", 1))
	require.NoError(t, c.Enqueue(ctx, "pedal-elo:history", []string{"a"}))
	require.NoError(t, c.Enqueue(ctx, "pedal-elo:battle:boss-vs-mxr", 2))

	require.Eventually(t, func() bool { return len(sink.all()) == 3 }, time.Second, 5*time.Millisecond)
	got := map[string]string{}
	for _, w := range sink.all() {
		got[w.key] = w.value
	}
	assert.Equal(t, map[string]string{
		"pedal-elo:global":             "1",
		"pedal-elo:history":            `["a"]`,
		"pedal-elo:battle:boss-vs-mxr": "2",
	}, got)
}

func TestCoalescer_SnapshotsValueAtEnqueue(t *testing.T) {
	sink := &recordingSink{}
	c := newCoalescer(t, sink)

	m := map[string]int{"v": 1}
	require.NoError(t, c.Enqueue(context.Background(), "k", m))
	m["v"] = 99

	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"v":1}`, sink.all()[0].value)
}

func TestCoalescer_StopFlushesPending(t *testing.T) {
	sink := &recordingSink{}
	c := coalescer.New(sink,
		coalescer.WithDelay(time.Hour),
		coalescer.WithLogger(logger.Nop()),
	)
	ctx := context.Background()
	c.Start(ctx)

	require.NoError(t, c.Enqueue(ctx, "a", 1))
	require.NoError(t, c.Enqueue(ctx, "b", 2))
	assert.Empty(t, sink.all())

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Stop(stopCtx))

	assert.Len(t, sink.all(), 2)
	assert.Equal(t, 0, c.Pending())
	assert.ErrorIs(t, c.Enqueue(ctx, "a", 3), coalescer.ErrStopped)
	assert.NoError(t, c.Stop(stopCtx), "second stop is a no-op")
}

func TestCoalescer_Flush(t *testing.T) {
	sink := &recordingSink{}
	c := newCoalescer(t, sink, coalescer.WithDelay(time.Hour))
	ctx := context.Background()

	require.NoError(t, c.Enqueue(ctx, "a", 1))
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 0, c.Pending())
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Enqueue(ctx, "a", 2), "coalescer keeps accepting after a flush")
}

func TestCoalescer_RetriesFailedWrites(t *testing.T) {
	sink := &recordingSink{}
	sink.failNext(1)
	c := newCoalescer(t, sink)

	require.NoError(t, c.Enqueue(context.Background(), "k", "v"))
	require.Eventually(t, func() bool { return len(sink.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, `"v"`, sink.all()[0].value)
}

func TestCoalescer_DropsAfterMaxAttempts(t *testing.T) {
	sink := &recordingSink{}
	sink.failNext(10)
	c := newCoalescer(t, sink, coalescer.WithMaxAttempts(2))

	require.NoError(t, c.Enqueue(context.Background(), "k", "v"))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, sink.all())
	assert.Equal(t, 0, c.Pending())
}

func TestCoalescer_RejectsBeforeStartAndBadValues(t *testing.T) {
	c := coalescer.New(&recordingSink{}, coalescer.WithLogger(logger.Nop()))
	assert.ErrorIs(t, c.Enqueue(context.Background(), "k", 1), coalescer.ErrNotStarted)

	c.Start(context.Background())
	defer func() { _ = c.Stop(context.Background()) }()
	assert.Error(t, c.Enqueue(context.Background(), "k", make(chan int)))
}

// slowFailingSink fails its first write after a pause, so later values for
// the same key queue up behind it.
type slowFailingSink struct {
	recordingSink
	pause time.Duration
	once  sync.Once
}

func (s *slowFailingSink) Set(ctx context.Context, key string, value []byte) error {
	failed := false
	s.once.Do(func() {
		time.Sleep(s.pause)
		failed = true
	})
	if failed {
		return errors.New("timeout")
	}
	return s.recordingSink.Set(ctx, key, value)
}

func TestCoalescer_FailedWriteDoesNotOverwriteNewerValue(t *testing.T) {
	sink := &slowFailingSink{pause: 100 * time.Millisecond}
	c := coalescer.New(sink,
		coalescer.WithDelay(20*time.Millisecond),
		coalescer.WithWorkers(1),
		coalescer.WithLogger(logger.Nop()),
	)
	c.Start(context.Background())
	ctx := context.Background()

	require.NoError(t, c.Enqueue(ctx, "k", "v1"))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, c.Enqueue(ctx, "k", "v2"))

	// v2 is queued behind the stalled v1 write; let v1 fail and any retry fire.
	time.Sleep(250 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Stop(stopCtx))

	writes := sink.all()
	require.Len(t, writes, 1)
	assert.Equal(t, `"v2"`, writes[0].value)
}
