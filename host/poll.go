package host

import (
	"sync"
	"time"

	"github.com/jetd7/snapembed/page"
)

// FormView is the classic host flavor: a native form whose selected payment
// radio must be polled, plus a change-event hook for cheap notification.
type FormView interface {
	SelectedPaymentMethod() string
	// OnChange registers for the form's change events and returns a cancel.
	OnChange(fn func()) (cancel func())
}

// PollAdapter is the poll/event-based flavor. It combines the form's change
// events with a fixed-interval poll that catches replacements the events
// miss (AJAX fragment refreshes re-render the form without firing change).
type PollAdapter struct {
	form     FormView
	page     Page
	methodID string
	interval time.Duration

	mu          sync.Mutex
	subscribers map[int]func()
	nextID      int
	stopPoll    chan struct{}
	lastMethod  string
	cancelForm  func()
}

// Compile-time assertion: *PollAdapter implements Adapter.
var _ Adapter = (*PollAdapter)(nil)

// NewPollAdapter wires the adapter for the given payment method id. The
// poll loop starts with the first subscriber and stops with the last cancel.
func NewPollAdapter(form FormView, hostPage Page, methodID string, interval time.Duration) *PollAdapter {
	if interval <= 0 {
		interval = time.Second
	}

	return &PollAdapter{
		form:        form,
		page:        hostPage,
		methodID:    methodID,
		interval:    interval,
		subscribers: make(map[int]func()),
	}
}

// Selected implements Adapter.
func (a *PollAdapter) Selected() bool {
	return a.form.SelectedPaymentMethod() == a.methodID
}

// Subscribe implements Adapter.
func (a *PollAdapter) Subscribe(onChange func()) (cancel func()) {
	a.mu.Lock()

	a.nextID++
	id := a.nextID
	a.subscribers[id] = onChange

	if len(a.subscribers) == 1 {
		a.lastMethod = a.form.SelectedPaymentMethod()
		a.stopPoll = make(chan struct{})
		a.cancelForm = a.form.OnChange(a.notify)

		go a.pollLoop(a.stopPoll)
	}

	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		if _, ok := a.subscribers[id]; !ok {
			return
		}

		delete(a.subscribers, id)

		if len(a.subscribers) == 0 {
			close(a.stopPoll)
			a.stopPoll = nil

			if a.cancelForm != nil {
				a.cancelForm()
				a.cancelForm = nil
			}
		}
	}
}

// pollLoop watches for selection changes the form events missed.
func (a *PollAdapter) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			current := a.form.SelectedPaymentMethod()

			a.mu.Lock()
			changed := current != a.lastMethod
			a.lastMethod = current
			a.mu.Unlock()

			if changed {
				a.notify()
			}
		}
	}
}

func (a *PollAdapter) notify() {
	a.mu.Lock()
	subs := make([]func(), 0, len(a.subscribers))

	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// MountContainer implements Adapter.
//
//nolint:ireturn
func (a *PollAdapter) MountContainer() page.Container {
	return a.page.MountContainer()
}

// State implements Adapter.
func (a *PollAdapter) State() State {
	return a.page.State()
}

// InterceptSubmission implements Adapter.
func (a *PollAdapter) InterceptSubmission(gate Gate) {
	a.page.InstallSubmissionGate(gate)
}
