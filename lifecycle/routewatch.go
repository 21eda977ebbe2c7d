package lifecycle

import (
	"strings"
	"time"

	"github.com/jetd7/snapembed/scheduler"
)

// routeSignal maps a location fragment to the lifecycle handler it implies.
// Direct callback delivery from the widget popup is unreliable on some
// hosts; the route the popup navigates the opener to is the fallback.
type routeSignal struct {
	fragment string
	apply    func(t *Tracker, id, token string)
}

var routeSignals = []routeSignal{
	{fragment: "success", apply: (*Tracker).OnSuccess},
	{fragment: "complete", apply: (*Tracker).OnSuccess},
	{fragment: "approved", apply: (*Tracker).OnApproved},
	{fragment: "denied", apply: (*Tracker).OnDenied},
	{fragment: "declined", apply: (*Tracker).OnDenied},
	{fragment: "error", apply: (*Tracker).OnError},
	{fragment: "failure", apply: (*Tracker).OnError},
}

// armRouteWatcher starts the bounded location watcher for the current
// application. Past the ceiling it stops without error.
func (t *Tracker) armRouteWatcher() {
	if t.route == nil {
		return
	}

	t.stopRouteWatcher()

	interval := t.cfg.RouteWatchInterval
	if interval <= 0 {
		interval = time.Second
	}

	attempts := t.cfg.RouteWatchAttempts
	if attempts <= 0 {
		attempts = 120
	}

	var matched *routeSignal

	cancel := t.sched.Run(t.ctxNow(), t.cfg.Owner, scheduler.Task{
		Ready: func() bool {
			matched = matchRoute(t.route())

			return matched != nil
		},
		OnReady: func() {
			t.mu.Lock()
			id, token := t.state.ID, t.state.Token
			t.mu.Unlock()

			// Fragment matching is substring-based; the server's progress
			// report wins when it is definitive.
			apply := matched.apply
			if confirmed := t.confirmSignal(id, token); confirmed != nil {
				apply = confirmed
			}

			apply(t, id, token)
		},
		Delay:       func(int) time.Duration { return interval },
		MaxAttempts: attempts,
	})

	t.mu.Lock()
	t.watchCancel = cancel
	t.mu.Unlock()
}

func (t *Tracker) stopRouteWatcher() {
	t.mu.Lock()
	cancel := t.watchCancel
	t.watchCancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// confirmSignal asks the application server for the authoritative progress
// status. Nil when the server is unreachable or noncommittal; the
// route-derived signal applies then.
func (t *Tracker) confirmSignal(id, token string) func(*Tracker, string, string) {
	resp, err := t.server.Status(t.ctxNow(), id, token)
	if err != nil {
		return nil
	}

	switch strings.ToLower(resp.ProgressStatus) {
	case "success", "complete", "completed":
		return (*Tracker).OnSuccess
	case "approved":
		return (*Tracker).OnApproved
	case "denied", "declined":
		return (*Tracker).OnDenied
	case "error", "failed":
		return (*Tracker).OnError
	default:
		return nil
	}
}

func matchRoute(fragment string) *routeSignal {
	if fragment == "" {
		return nil
	}

	fragment = strings.ToLower(fragment)

	for i := range routeSignals {
		if strings.Contains(fragment, routeSignals[i].fragment) {
			return &routeSignals[i]
		}
	}

	return nil
}
