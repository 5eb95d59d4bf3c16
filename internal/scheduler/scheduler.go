// Package scheduler serializes work against a backend that cannot take concurrent requests.
// Tasks run one at a time in submission order with a cool-down before and after each.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	// ErrQueueCleared settles tasks dropped by Clear before they started.
	ErrQueueCleared = errors.New("queue cleared")
	// ErrClosed settles tasks submitted to, or still queued in, a closed scheduler.
	ErrClosed = errors.New("scheduler closed")
	// ErrTaskPanicked wraps a panic recovered from a task.
	ErrTaskPanicked = errors.New("task panicked")
)

const (
	DefaultPreDelay  = 100 * time.Millisecond
	DefaultPostDelay = 200 * time.Millisecond
)

// Options configures a Scheduler. Negative delays are treated as zero.
type Options struct {
	PreDelay  time.Duration
	PostDelay time.Duration
	Logger    *zap.Logger
}

// DefaultOptions returns the standard cool-down delays.
func DefaultOptions() Options {
	return Options{PreDelay: DefaultPreDelay, PostDelay: DefaultPostDelay}
}

// Status is a snapshot of the queue. Busy covers the pre-delay and the task itself, not the
// cool-down after it.
type Status struct {
	Busy    bool `json:"busy"`
	Pending int  `json:"pending"`
}

type task struct {
	id     string
	run    func(ctx context.Context)
	reject func(err error)
}

// Scheduler runs at most one task at a time.
type Scheduler struct {
	pre, post time.Duration
	log       *zap.Logger

	mu       sync.Mutex
	queue    []*task
	busy     bool
	draining bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an idle scheduler.
func New(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		pre:    max(opts.PreDelay, 0),
		post:   max(opts.PostDelay, 0),
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit appends fn to the queue and returns its future. Submitting from inside a running task is
// allowed; the new task runs after the current one's post-delay.
func Submit[T any](s *Scheduler, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	t := &task{
		id: ulid.Make().String(),
		reject: func(err error) {
			var zero T
			f.settle(zero, err)
		},
	}
	t.run = func(ctx context.Context) {
		v, err := call(ctx, fn)
		f.settle(v, err)
		if err != nil {
			s.log.Warn("task failed", zap.String("task", t.id), zap.Error(err))
		}
	}
	s.enqueue(t)
	return f
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) enqueue(t *task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.reject(ErrClosed)
		return
	}
	s.queue = append(s.queue, t)
	start := !s.draining
	s.draining = true
	if start {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
}

// drain runs queued tasks until the queue is empty. Only one drain goroutine exists at a time.
func (s *Scheduler) drain() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.closed {
			s.draining = false
			s.mu.Unlock()
			return
		}
		t := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.busy = true
		s.mu.Unlock()

		if !s.sleep(s.pre) {
			t.reject(ErrClosed)
			s.setIdle()
			continue
		}
		t.run(s.ctx)
		s.setIdle()
		s.sleep(s.post)
	}
}

func (s *Scheduler) setIdle() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// sleep waits d, returning false if the scheduler was closed first.
func (s *Scheduler) sleep(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Status reports whether a task is in flight and how many are waiting.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Busy: s.busy, Pending: len(s.queue)}
}

// Clear rejects every queued task that has not started with ErrQueueCleared and returns how many
// were dropped. A running task is left alone and settles normally.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	dropped := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range dropped {
		t.reject(ErrQueueCleared)
	}
	if len(dropped) > 0 {
		s.log.Info("queue cleared", zap.Int("dropped", len(dropped)))
	}
	return len(dropped)
}

// Close rejects queued tasks with ErrClosed, cancels the context passed to the running task and
// waits for the drain goroutine to exit. It is safe to call more than once.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	dropped := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range dropped {
		t.reject(ErrClosed)
	}
	s.cancel()
	s.wg.Wait()
	return nil
}
