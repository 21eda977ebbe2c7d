// Package scheduler replaces scattered timer chains with one tracked,
// cancellable task model. Every delayed action the engine takes is registered
// here under an owner key (one key per mount container), so deselecting a
// payment method can cancel everything outstanding in a single call.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jetd7/snapembed/log"
)

// Task is a bounded-attempt readiness poll. Ready is evaluated once per
// attempt; the first true invokes OnReady and stops. Past MaxAttempts the
// task stops via OnGiveUp (nil means give up silently).
type Task struct {
	Ready       func() bool
	OnReady     func()
	OnGiveUp    func()
	Delay       func(attempt int) time.Duration
	MaxAttempts int
}

// Scheduler tracks outstanding timers per owner. Suspended owners refuse new
// timers until resumed, which is how deselection freezes a container.
type Scheduler struct {
	mu        sync.Mutex
	logger    log.Logger
	timers    map[string]map[int64]*time.Timer
	suspended map[string]bool
	nextID    int64
}

// New creates a scheduler. A nil logger degrades to nop.
func New(logger log.Logger) *Scheduler {
	return &Scheduler{
		logger:    log.OrNop(logger),
		timers:    make(map[string]map[int64]*time.Timer),
		suspended: make(map[string]bool),
	}
}

// After schedules fn to run once after d, tracked under owner. The returned
// cancel is idempotent. If the owner is suspended, fn is dropped and cancel
// is a no-op.
func (s *Scheduler) After(owner string, d time.Duration, fn func()) (cancel func()) {
	s.mu.Lock()

	if s.suspended[owner] {
		s.mu.Unlock()

		return func() {}
	}

	s.nextID++
	id := s.nextID

	timer := time.AfterFunc(d, func() {
		if !s.claim(owner, id) {
			return
		}

		fn()
	})

	if s.timers[owner] == nil {
		s.timers[owner] = make(map[int64]*time.Timer)
	}

	s.timers[owner][id] = timer
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if t, ok := s.timers[owner][id]; ok {
			t.Stop()
			delete(s.timers[owner], id)
		}
		s.mu.Unlock()
	}
}

// claim removes the timer entry before its callback runs. It returns false
// when the entry is gone, meaning the timer was cancelled between firing and
// acquiring the lock.
func (s *Scheduler) claim(owner string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[owner][id]; !ok {
		return false
	}

	delete(s.timers[owner], id)

	return true
}

// Run starts a bounded-attempt poll for the task under owner. Attempt zero is
// evaluated after Delay(0), matching the original fixed-period readiness
// polls. Cancellation happens through Suspend or the returned cancel.
func (s *Scheduler) Run(ctx context.Context, owner string, task Task) (cancel func()) {
	var (
		mu        sync.Mutex
		cancelled bool
		inner     func()
	)

	attempt := 0

	var step func()

	step = func() {
		mu.Lock()
		if cancelled || ctx.Err() != nil {
			mu.Unlock()

			return
		}
		mu.Unlock()

		if task.Ready != nil && task.Ready() {
			task.OnReady()

			return
		}

		attempt++
		if attempt >= task.MaxAttempts {
			if task.OnGiveUp != nil {
				task.OnGiveUp()
			} else {
				s.logger.Log(ctx, log.LevelDebug, "readiness poll exhausted",
					log.String("owner", owner), log.Int("attempts", attempt))
			}

			return
		}

		mu.Lock()
		inner = s.After(owner, task.Delay(attempt), step)
		mu.Unlock()
	}

	mu.Lock()
	inner = s.After(owner, task.Delay(0), step)
	mu.Unlock()

	return func() {
		mu.Lock()
		cancelled = true
		if inner != nil {
			inner()
		}
		mu.Unlock()
	}
}

// Every repeats fn at a fixed interval under owner until stopped. The first
// call happens after one interval.
func (s *Scheduler) Every(owner string, interval time.Duration, fn func()) (stop func()) {
	var (
		mu      sync.Mutex
		stopped bool
		inner   func()
	)

	var tick func()

	tick = func() {
		fn()

		mu.Lock()
		if !stopped {
			inner = s.After(owner, interval, tick)
		}
		mu.Unlock()
	}

	mu.Lock()
	inner = s.After(owner, interval, tick)
	mu.Unlock()

	return func() {
		mu.Lock()
		stopped = true
		if inner != nil {
			inner()
		}
		mu.Unlock()
	}
}

// Suspend cancels every outstanding timer for owner and refuses new ones
// until Resume. Used on host deselection.
func (s *Scheduler) Suspend(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suspended[owner] = true

	for id, timer := range s.timers[owner] {
		timer.Stop()
		delete(s.timers[owner], id)
	}
}

// Resume lifts a suspension so the owner accepts timers again.
func (s *Scheduler) Resume(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.suspended, owner)
}

// Pending reports how many timers are outstanding for owner.
func (s *Scheduler) Pending(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers[owner])
}
