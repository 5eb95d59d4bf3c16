package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(Options{PreDelay: time.Millisecond, PostDelay: 2 * time.Millisecond})
	t.Cleanup(func() { s.Close() })
	return s
}

func await[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := f.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future never settled")
	return v, err
}

func TestRunsInSubmissionOrder(t *testing.T) {
	s := newTestScheduler(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	a := Submit(s, record("A"))
	b := Submit(s, record("B"))
	c := Submit(s, record("C"))

	for want, f := range map[string]*Future[string]{"A": a, "B": b, "C": c} {
		v, err := await(t, f)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestNoOverlap(t *testing.T) {
	s := newTestScheduler(t)

	type window struct{ start, end time.Time }
	var running atomic.Int32
	var maxRunning atomic.Int32
	windows := make([]window, 6)
	futures := make([]*Future[int], 6)

	for i := range futures {
		i := i
		futures[i] = Submit(s, func(context.Context) (int, error) {
			n := running.Add(1)
			if n > maxRunning.Load() {
				maxRunning.Store(n)
			}
			windows[i].start = time.Now()
			time.Sleep(3 * time.Millisecond)
			windows[i].end = time.Now()
			running.Add(-1)
			return i, nil
		})
	}
	for _, f := range futures {
		_, err := await(t, f)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), maxRunning.Load())
	for i := 1; i < len(windows); i++ {
		assert.False(t, windows[i].start.Before(windows[i-1].end), "task %d started before %d ended", i, i-1)
		gap := windows[i].start.Sub(windows[i-1].end)
		assert.GreaterOrEqual(t, gap, 3*time.Millisecond, "post+pre delay between tasks")
	}
}

func TestFailureDoesNotStopQueue(t *testing.T) {
	s := newTestScheduler(t)
	boom := errors.New("boom")

	bad := Submit(s, func(context.Context) (int, error) { return 0, boom })
	good := Submit(s, func(context.Context) (int, error) { return 7, nil })

	_, err := await(t, bad)
	assert.ErrorIs(t, err, boom)
	v, err := await(t, good)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPanicSettlesAsFailure(t *testing.T) {
	s := newTestScheduler(t)

	bad := Submit(s, func(context.Context) (int, error) { panic("kaboom") })
	good := Submit(s, func(context.Context) (string, error) { return "ok", nil })

	_, err := await(t, bad)
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "kaboom")
	v, err := await(t, good)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestClearRejectsQueued(t *testing.T) {
	s := newTestScheduler(t)

	release := make(chan struct{})
	started := make(chan struct{})
	running := Submit(s, func(context.Context) (string, error) {
		close(started)
		<-release
		return "finished", nil
	})
	<-started

	queued1 := Submit(s, func(context.Context) (string, error) { return "never", nil })
	queued2 := Submit(s, func(context.Context) (string, error) { return "never", nil })

	assert.Equal(t, Status{Busy: true, Pending: 2}, s.Status())
	assert.Equal(t, 2, s.Clear())
	assert.Equal(t, Status{Busy: true, Pending: 0}, s.Status(), "running task keeps the queue busy")

	_, err := await(t, queued1)
	assert.ErrorIs(t, err, ErrQueueCleared)
	_, err = await(t, queued2)
	assert.ErrorIs(t, err, ErrQueueCleared)

	close(release)
	v, err := await(t, running)
	require.NoError(t, err)
	assert.Equal(t, "finished", v)
}

func TestClearIdleQueue(t *testing.T) {
	s := newTestScheduler(t)
	assert.Equal(t, 0, s.Clear())
	assert.Equal(t, Status{}, s.Status())
}

func TestStatusIdleAfterDrain(t *testing.T) {
	s := newTestScheduler(t)
	_, err := await(t, Submit(s, func(context.Context) (int, error) { return 1, nil }))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.Status() == Status{} }, time.Second, time.Millisecond)
}

func TestIdleDuringCoolDown(t *testing.T) {
	const post = 300 * time.Millisecond
	s := New(Options{PostDelay: post})
	defer s.Close()

	_, err := await(t, Submit(s, func(context.Context) (int, error) { return 1, nil }))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return !s.Status().Busy }, post/3, time.Millisecond,
		"queue should report idle while cooling down")

	submitted := time.Now()
	var started time.Time
	_, err = await(t, Submit(s, func(context.Context) (int, error) {
		started = time.Now()
		return 2, nil
	}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, started.Sub(submitted), post/2, "next task still waits out the cool-down")
}

func TestReentrantSubmitRunsAfterCurrent(t *testing.T) {
	s := newTestScheduler(t)

	var mu sync.Mutex
	var order []string
	log := func(x string) {
		mu.Lock()
		order = append(order, x)
		mu.Unlock()
	}

	gate := make(chan struct{})
	var inner *Future[string]
	outer := Submit(s, func(context.Context) (string, error) {
		<-gate
		log("outer-start")
		inner = Submit(s, func(context.Context) (string, error) {
			log("inner")
			return "inner", nil
		})
		log("outer-end")
		return "outer", nil
	})
	after := Submit(s, func(context.Context) (string, error) {
		log("after")
		return "after", nil
	})
	close(gate)

	_, err := await(t, outer)
	require.NoError(t, err)
	_, err = await(t, after)
	require.NoError(t, err)
	_, err = await(t, inner)
	require.NoError(t, err)

	assert.Equal(t, []string{"outer-start", "outer-end", "after", "inner"}, order)
}

func TestCloseRejectsQueuedAndLater(t *testing.T) {
	s := New(Options{PreDelay: time.Millisecond, PostDelay: time.Millisecond})

	started := make(chan struct{})
	running := Submit(s, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started
	queued := Submit(s, func(context.Context) (int, error) { return 1, nil })

	require.NoError(t, s.Close())

	_, err := await(t, running)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = await(t, queued)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = await(t, Submit(s, func(context.Context) (int, error) { return 2, nil }))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}

func TestFutureSettlesOnce(t *testing.T) {
	f := newFuture[int]()
	_, _, ok := f.Result()
	assert.False(t, ok)

	assert.True(t, f.settle(1, nil))
	assert.False(t, f.settle(2, errors.New("late")))

	v, err, ok := f.Result()
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAwaitRespectsContext(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
