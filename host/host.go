// Package host abstracts over the two checkout flavors: a reactive,
// subscribable data store and a classic form that must be polled. The
// adapter is chosen once at session initialization and never changes
// mid-session; the rest of the engine never branches on host flavor.
package host

import (
	"github.com/jetd7/snapembed/page"
)

// Banner is one visible host error message. Terms marks the banner as the
// host's terms-acceptance error, which goes stale once the control is
// actually checked.
type Banner struct {
	Text  string
	Terms bool
}

// State is the host-platform half of the preflight gate.
type State struct {
	// TermsPresent reports whether a terms-acceptance control exists.
	TermsPresent bool
	// TermsAccepted reports whether that control is checked.
	TermsAccepted bool
	// ShippingMethods is the number of available shipping methods.
	ShippingMethods int
	// ShippingSelected reports an explicit shipping selection.
	ShippingSelected bool
	// NoShipping is the host's explicit "no shipping available" signal.
	NoShipping bool
	// ErrorBanners are the visible host error messages.
	ErrorBanners []Banner
}

// ShippingResolved reports whether a shipping method is usable: a single
// implicit method counts, multiple methods require an explicit selection,
// and the no-shipping signal always fails.
func (s State) ShippingResolved() bool {
	if s.NoShipping {
		return false
	}

	// Zero methods without the explicit signal means the host lists nothing
	// to choose; the concern does not apply.
	if s.ShippingMethods <= 1 {
		return true
	}

	return s.ShippingSelected
}

// Gate is consulted at submission time. A blocked result stops the native
// submission and surfaces the message inline.
type Gate func() (blocked bool, message string)

// Adapter is the single interface the orchestrator consumes (chosen once).
type Adapter interface {
	// Selected reports whether this payment method is the active one.
	Selected() bool
	// Subscribe registers a change callback for "active method or checkout
	// state changed" and returns its cancel.
	Subscribe(onChange func()) (cancel func())
	// MountContainer returns the widget mount point, nil when absent.
	MountContainer() page.Container
	// State reads the current host-platform state.
	State() State
	// InterceptSubmission installs gate on the host's native submission
	// entry point; nil restores the original entry.
	InterceptSubmission(gate Gate)
}

// Page is the host-page surface shared by both adapter flavors.
type Page interface {
	MountContainer() page.Container
	State() State
	InstallSubmissionGate(gate Gate)
}
