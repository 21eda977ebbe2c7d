// Package page abstracts the mount point the widget renders into and the
// mutation signals the host platform emits around it. The engine only ever
// talks to these interfaces; the host-specific bootstrap supplies the real
// implementations, and memorypage supplies a scriptable fake for tests.
package page

// EventKind classifies a container mutation signal.
type EventKind int

const (
	// HostLost signals the container or its widget host left the DOM.
	HostLost EventKind = iota
	// HostRestored signals the container reappeared after a loss.
	HostRestored
)

// Event is one mutation notification. The observer notifies; the render
// state machine decides whether a remount is warranted.
type Event struct {
	Kind EventKind
}

// Observer emits container mutation events. Implementations are expected to
// deliver a loss within one mutation tick of the underlying change.
type Observer interface {
	Events() <-chan Event
}

// OverlayAnchor is a candidate element to place the overlay over, in
// search order.
type OverlayAnchor int

const (
	// AnchorLightControl is the widget's light-DOM control.
	AnchorLightControl OverlayAnchor = iota
	// AnchorShadowControl is the widget's control behind its shadow boundary.
	AnchorShadowControl
	// AnchorBoundingBox is the best-guess bounding-box fallback.
	AnchorBoundingBox
)

// Anchors lists the overlay placement candidates in search order.
var Anchors = []OverlayAnchor{AnchorLightControl, AnchorShadowControl, AnchorBoundingBox}

// Container is the widget mount point. All methods must be cheap and
// side-effect free except the overlay/banner/marker mutators.
type Container interface {
	// Present reports whether the container is attached to the page.
	Present() bool
	// Size returns the laid-out width and height.
	Size() (width, height float64)
	// ControlPresent reports whether the widget's mounted control is still
	// observably inside the container.
	ControlPresent() bool

	// Marker reads a named dataset value ("" when absent).
	Marker(name string) string
	// SetMarker writes a named dataset value.
	SetMarker(name, value string)
	// ClearMarker removes a named dataset value.
	ClearMarker(name string)

	// TryPlaceOverlay attempts to place the click-intercepting overlay over
	// the given anchor with the given message ("" shows the overlay without
	// text). It reports whether the anchor was usable.
	TryPlaceOverlay(anchor OverlayAnchor, message string) bool
	// RefreshOverlay updates only the overlay message.
	RefreshOverlay(message string)
	// RemoveOverlay removes the overlay if present.
	RemoveOverlay()
	// OverlayVisible reports whether the overlay is placed.
	OverlayVisible() bool

	// ShowBanner renders an inline message adjacent to the container.
	ShowBanner(message string)
	// ClearBanner removes the inline message.
	ClearBanner()

	// ReplayClick programmatically re-fires the shopper's click on the
	// freshly mounted control.
	ReplayClick()
}
