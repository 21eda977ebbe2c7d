package render

// State is the orchestrator's position in the mount lifecycle of one
// container.
type State string

const (
	// StateIdle means this payment method is not selected.
	StateIdle State = "idle"
	// StateActiveUnmounted means selected but the widget is not mounted yet;
	// the readiness poll may be running.
	StateActiveUnmounted State = "active_unmounted"
	// StateMounting means a mount call is in flight.
	StateMounting State = "mounting"
	// StateMountedValid means mounted with passing validation.
	StateMountedValid State = "mounted_valid"
	// StateMountedGuarded means mounted with failing validation; the overlay
	// is active and remounting is suppressed.
	StateMountedGuarded State = "mounted_guarded"
	// StateReplacing means a remount cycle is tearing the old mount down.
	StateReplacing State = "replacing"
)

// mounted reports whether the widget is (nominally) on the page.
func (s State) mounted() bool {
	return s == StateMountedValid || s == StateMountedGuarded
}

// markerRendered is the container dataset marker recording a completed mount.
const markerRendered = "rendered"

// remountReason tags why a remount was requested, for logging.
type remountReason string

const (
	reasonHashChanged   remountReason = "transaction_changed"
	reasonForceRefresh  remountReason = "force_refresh"
	reasonContainerLost remountReason = "container_lost"
	reasonHeartbeatMiss remountReason = "heartbeat_miss"
	reasonClickPassed   remountReason = "click_validation_passed"
)

// remountRequest is one entry in the serialized remount queue. Requests that
// arrive while a replace is pending are merged: the replay flag is sticky, so
// a click-triggered remount racing a heartbeat-triggered one still replays
// the shopper's click after the single effective remount.
type remountRequest struct {
	reason      remountReason
	replayClick bool
}
