package scheduler

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of triggers into one trailing call after a
// quiet window. Re-validation storms from reactive host stores go through
// one of these so a dozen field edits cost one preflight pass.
type Debouncer struct {
	sched  *Scheduler
	owner  string
	window time.Duration

	mu      sync.Mutex
	pending func()
}

// NewDebouncer creates a debouncer tracked under owner in sched.
func NewDebouncer(sched *Scheduler, owner string, window time.Duration) *Debouncer {
	return &Debouncer{sched: sched, owner: owner, window: window}
}

// Trigger schedules fn after the window, replacing any pending call. The
// last fn of a burst wins.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending()
		d.pending = nil
	}

	d.pending = d.sched.After(d.owner, d.window, func() {
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()

		fn()
	})
}

// Cancel drops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending()
		d.pending = nil
	}
}
