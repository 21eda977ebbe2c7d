package lifecycle

import "fmt"

// ensureGuard installs the submission gate on the host's native entry point.
// The adapter wrap happens at most once; repeated calls are no-ops while the
// gate is installed. Blocking is evaluated at submission time, not install
// time, so the gate stays correct as state changes underneath it.
func (t *Tracker) ensureGuard() {
	t.mu.Lock()
	if t.guardInstalled {
		t.mu.Unlock()

		return
	}

	t.guardInstalled = true
	t.mu.Unlock()

	t.adapter.InterceptSubmission(t.gate)
}

// maybeRestoreGuard removes the gate when nothing blocks anymore.
func (t *Tracker) maybeRestoreGuard() {
	t.mu.Lock()
	installed := t.guardInstalled
	status := t.state.Status
	finalizePending := t.finalizePending
	t.mu.Unlock()

	if !installed || finalizePending || status.blocksSubmission() {
		return
	}

	if t.limits != nil && t.limits().Invalid {
		return
	}

	t.mu.Lock()
	t.guardInstalled = false
	t.mu.Unlock()

	t.adapter.InterceptSubmission(nil)
}

// gate is consulted by the host on every submission attempt. It only blocks
// when this payment method is the selected one.
func (t *Tracker) gate() (bool, string) {
	if !t.adapter.Selected() {
		return false, ""
	}

	if t.limits != nil {
		if guard := t.limits(); guard.Invalid {
			return true, fmt.Sprintf(
				"financing is available for orders between %s and %s (your total is %s)",
				guard.Min.StringFixed(2), guard.Max.StringFixed(2), guard.Total.StringFixed(2))
		}
	}

	t.mu.Lock()
	status := t.state.Status
	finalizePending := t.finalizePending
	t.mu.Unlock()

	// Signed but not finalized: no completed financing order backs the
	// submission yet.
	if finalizePending {
		return true, msgFinishPopup
	}

	switch status {
	case StatusPending:
		return true, msgPending
	case StatusDenied:
		return true, msgDenied
	default:
		return false, ""
	}
}

// Blocked reports whether a submission attempt would be stopped right now.
func (t *Tracker) Blocked() bool {
	blocked, _ := t.gate()

	return blocked
}
