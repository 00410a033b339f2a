package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mmeshcher/hanaro-shop/internal/metrics"
	"github.com/mmeshcher/hanaro-shop/internal/model"
)

type fakeLock struct {
	mu       sync.Mutex
	acquired bool
	busy     bool
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.busy || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired = false
	return nil
}

type testJob struct {
	mu   sync.Mutex
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	return t.err
}

func (t *testJob) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

type stubAdvancer struct {
	from, to       model.OrderStatus
	threshold, now time.Time
	affected       int64
	err            error
	calls          int
}

func (s *stubAdvancer) AdvanceOrderStatus(_ context.Context, from, to model.OrderStatus, threshold, now time.Time) (int64, error) {
	s.calls++
	s.from, s.to, s.threshold, s.now = from, to, threshold, now
	return s.affected, s.err
}

func TestNewTransitionJob_RejectsInvalidEdges(t *testing.T) {
	store := &stubAdvancer{}
	tests := []struct {
		name     string
		from, to model.OrderStatus
		after    time.Duration
	}{
		{"backwards", model.OrderStatusShipping, model.OrderStatusPreparing, time.Minute},
		{"skips a step", model.OrderStatusOrdered, model.OrderStatusShipping, time.Minute},
		{"cancel", model.OrderStatusOrdered, model.OrderStatusCanceled, time.Minute},
		{"from terminal", model.OrderStatusDelivered, model.OrderStatusCanceled, time.Minute},
		{"zero threshold", model.OrderStatusOrdered, model.OrderStatusPreparing, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransitionJob(TransitionParams{From: tt.from, To: tt.to, After: tt.after, Store: store})
			require.Error(t, err)
		})
	}
}

func TestTransitionJob_Run(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store := &stubAdvancer{affected: 2}
	reg := prometheus.NewRegistry()

	job, err := NewTransitionJob(TransitionParams{
		Name:    "orders-to-preparing",
		From:    model.OrderStatusOrdered,
		To:      model.OrderStatusPreparing,
		After:   5 * time.Minute,
		Store:   store,
		Now:     func() time.Time { return now },
		Metrics: metrics.NewJobMetrics(reg),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-to-preparing", job.Name())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, model.OrderStatusOrdered, store.from)
	assert.Equal(t, model.OrderStatusPreparing, store.to)
	assert.Equal(t, now.Add(-5*time.Minute), store.threshold)
	assert.Equal(t, now, store.now)

	store.err = errors.New("db down")
	require.ErrorContains(t, job.Run(context.Background()), "db down")
}

func TestTransitionJob_DefaultName(t *testing.T) {
	job, err := NewTransitionJob(TransitionParams{
		From:  model.OrderStatusShipping,
		To:    model.OrderStatusDelivered,
		After: time.Hour,
		Store: &stubAdvancer{},
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-SHIPPING-to-DELIVERED", job.Name())
}

type stubAggregator struct{ calls int }

func (s *stubAggregator) AggregateYesterday(context.Context) error {
	s.calls++
	return nil
}

func TestDailySalesJob(t *testing.T) {
	agg := &stubAggregator{}
	job, err := NewDailySalesJob(agg)
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, agg.calls)
	assert.Equal(t, "daily-sales", job.Name())

	_, err = NewDailySalesJob(nil)
	require.Error(t, err)
}

func TestSchedulerRunOnce_RunsAllJobsAndCombinesErrors(t *testing.T) {
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	reg := prometheus.NewRegistry()

	s, err := New(Params{
		Logger:  zap.NewNop(),
		Metrics: metrics.NewJobMetrics(reg),
		Entries: []Entry{
			{Job: failing, Schedule: Every(time.Minute)},
			{Job: ok, Schedule: Every(time.Minute)},
		},
	})
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.ErrorContains(t, err, "failing: boom")
	assert.Equal(t, 1, ok.Runs())
	assert.Equal(t, 1, failing.Runs())
}

func TestSchedulerSkipsJobLockedElsewhere(t *testing.T) {
	job := &testJob{name: "locked"}
	lock := &fakeLock{busy: true}

	s, err := New(Params{
		Logger:  zap.NewNop(),
		Locks:   func(string) Lock { return lock },
		Entries: []Entry{{Job: job, Schedule: Every(time.Minute)}},
	})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 0, job.Runs())

	lock.busy = false
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, job.Runs())
	assert.False(t, lock.acquired, "lock must be released after the run")
}

func TestSchedulerLockError(t *testing.T) {
	job := &testJob{name: "job"}
	s, err := New(Params{
		Logger:  zap.NewNop(),
		Locks:   func(string) Lock { return &fakeLock{err: errors.New("redis down")} },
		Entries: []Entry{{Job: job, Schedule: Every(time.Minute)}},
	})
	require.NoError(t, err)

	require.ErrorContains(t, s.RunOnce(context.Background()), "redis down")
	assert.Equal(t, 0, job.Runs())
}

func TestNewRejectsDuplicateJobs(t *testing.T) {
	_, err := New(Params{
		Logger: zap.NewNop(),
		Entries: []Entry{
			{Job: &testJob{name: "same"}, Schedule: Every(time.Minute)},
			{Job: &testJob{name: "same"}, Schedule: Every(time.Minute)},
		},
	})
	require.Error(t, err)
}

func TestNewRejectsZeroInterval(t *testing.T) {
	_, err := New(Params{
		Logger:  zap.NewNop(),
		Entries: []Entry{{Job: &testJob{name: "tick"}, Schedule: Every(0)}},
	})
	require.Error(t, err)
}

func TestSchedulerRunTicksUntilCanceled(t *testing.T) {
	job := &testJob{name: "fast"}
	s, err := New(Params{
		Logger:  zap.NewNop(),
		Entries: []Entry{{Job: job, Schedule: Every(5 * time.Millisecond)}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return job.Runs() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestDailyAtNext(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	d, err := ParseDailyAt("00:10", kst)
	require.NoError(t, err)

	// 2026-10-17 14:00 UTC = 23:00 KST, следующий запуск в 00:10 KST 18 октября
	next := d.Next(time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 17, 15, 10, 0, 0, time.UTC), next.UTC())

	// ровно в момент запуска следующий запуск переносится на сутки
	next = d.Next(time.Date(2026, 10, 17, 15, 10, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 18, 15, 10, 0, 0, time.UTC), next.UTC())

	_, err = ParseDailyAt("25:99", kst)
	require.Error(t, err)
}

func TestEveryNext(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(15*time.Minute), Every(15*time.Minute).Next(now))
}

type fakeRedis struct {
	values map[string]string
	err    error
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLock(t *testing.T) {
	store := &fakeRedis{values: map[string]string{}}
	ctx := context.Background()

	first, err := NewRedisLock(store, "hanaro:scheduler:job", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "hanaro:scheduler:job", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// чужой владелец не снимает блокировку
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "hanaro:scheduler:job")

	require.NoError(t, first.Release(ctx))
	assert.NotContains(t, store.values, "hanaro:scheduler:job")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(&fakeRedis{}, "", time.Minute)
	require.Error(t, err)

	lock, err := NewRedisLock(&fakeRedis{}, "key", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
}
