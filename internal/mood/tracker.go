package mood

import (
	"sync"
	"time"
)

// Reading is a point-in-time view of the mood.
type Reading struct {
	State State `json:"mood"`
	Tier  Tier  `json:"tier"`
}

// Snapshot is the persisted part of a Tracker.
type Snapshot struct {
	State            State
	InteractionCount int
	LastInteraction  time.Time // zero if there was none
}

// Tracker owns the live mood. All mutation goes through it.
type Tracker struct {
	mu     sync.RWMutex
	engine Engine
	now    func() time.Time

	state State
	count int
	last  time.Time
}

// NewTracker starts at Default with no interactions. A nil clock means time.Now.
func NewTracker(engine Engine, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{engine: engine, now: now, state: Default}
}

// Engine returns the tracker's engine.
func (t *Tracker) Engine() Engine { return t.engine }

// Observe records one user interaction and moves the mood accordingly.
// Elapsed time is measured from the previous interaction; the first one sees none.
func (t *Tracker) Observe(input string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var elapsed time.Duration
	if !t.last.IsZero() {
		elapsed = now.Sub(t.last)
	}
	t.count++
	out := t.engine.Evaluate(t.state, elapsed, input, t.count)
	t.state = out.Next
	t.last = now
	return out
}

// Explain evaluates input against the current state without recording anything.
func (t *Tracker) Explain(input string) Outcome {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var elapsed time.Duration
	if !t.last.IsZero() {
		elapsed = t.now().Sub(t.last)
	}
	return t.engine.Evaluate(t.state, elapsed, input, t.count+1)
}

// Current returns the state and its tier.
func (t *Tracker) Current() Reading {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Reading{State: t.state, Tier: t.engine.TierOf(t.state)}
}

// Set overrides the mood, clamping out-of-range values.
func (t *Tracker) Set(n int) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Clamp(n)
	return t.state
}

// Reset returns to Default and forgets the interaction history.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Default
	t.count = 0
	t.last = time.Time{}
}

// Idle reports time since the last interaction, or zero if there was none.
func (t *Tracker) Idle() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last.IsZero() {
		return 0
	}
	return t.now().Sub(t.last)
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{State: t.state, InteractionCount: t.count, LastInteraction: t.last}
}

// Restore loads persisted values. The state is clamped.
func (t *Tracker) Restore(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Clamp(int(s.State))
	if s.InteractionCount > 0 {
		t.count = s.InteractionCount
	} else {
		t.count = 0
	}
	t.last = s.LastInteraction
}
