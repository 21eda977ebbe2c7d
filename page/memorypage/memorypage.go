// Package memorypage is a scriptable in-memory page.Container and
// page.Observer used throughout the engine's tests.
package memorypage

import (
	"sync"

	"github.com/jetd7/snapembed/page"
)

// Container simulates a mount point. All fields are safe for concurrent use.
type Container struct {
	mu sync.Mutex

	present        bool
	width, height  float64
	controlPresent bool
	markers        map[string]string

	overlayShown   bool
	overlayMessage string
	overlayAnchor  page.OverlayAnchor
	bannerMessage  string
	blockedAnchors map[page.OverlayAnchor]bool

	overlayShows    int
	overlayRefreshs int
	clickReplays    int
}

// Compile-time assertion: *Container implements page.Container.
var _ page.Container = (*Container)(nil)

// New creates a present, laid-out container with no control mounted.
func New() *Container {
	return &Container{
		present:        true,
		width:          300,
		height:         48,
		markers:        make(map[string]string),
		blockedAnchors: make(map[page.OverlayAnchor]bool),
	}
}

// Present implements page.Container.
func (c *Container) Present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.present
}

// Size implements page.Container.
func (c *Container) Size() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.width, c.height
}

// ControlPresent implements page.Container.
func (c *Container) ControlPresent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.present && c.controlPresent
}

// Marker implements page.Container.
func (c *Container) Marker(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.markers[name]
}

// SetMarker implements page.Container.
func (c *Container) SetMarker(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.markers[name] = value
}

// ClearMarker implements page.Container.
func (c *Container) ClearMarker(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.markers, name)
}

// TryPlaceOverlay implements page.Container. Anchors blocked via
// BlockAnchor report failure, letting tests exercise the fallback search.
func (c *Container) TryPlaceOverlay(anchor page.OverlayAnchor, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blockedAnchors[anchor] {
		return false
	}

	c.overlayShown = true
	c.overlayMessage = message
	c.overlayAnchor = anchor
	c.overlayShows++

	return true
}

// RefreshOverlay implements page.Container.
func (c *Container) RefreshOverlay(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overlayMessage = message
	c.overlayRefreshs++
}

// RemoveOverlay implements page.Container.
func (c *Container) RemoveOverlay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overlayShown = false
	c.overlayMessage = ""
}

// OverlayVisible implements page.Container.
func (c *Container) OverlayVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.overlayShown
}

// ShowBanner implements page.Container.
func (c *Container) ShowBanner(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bannerMessage = message
}

// ClearBanner implements page.Container.
func (c *Container) ClearBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bannerMessage = ""
}

// ReplayClick implements page.Container.
func (c *Container) ReplayClick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clickReplays++
}

// ---------------------------------------------------------------------------
// Scripting and inspection hooks
// ---------------------------------------------------------------------------

// SetPresent attaches or detaches the container. Detaching also removes the
// widget control, as a real DOM removal would.
func (c *Container) SetPresent(present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.present = present
	if !present {
		c.controlPresent = false
	}
}

// SetSize scripts the laid-out dimensions.
func (c *Container) SetSize(width, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.width, c.height = width, height
}

// SetControlPresent scripts the widget control's presence.
func (c *Container) SetControlPresent(present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.controlPresent = present
}

// BlockAnchor makes TryPlaceOverlay fail for the given anchor.
func (c *Container) BlockAnchor(anchor page.OverlayAnchor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blockedAnchors[anchor] = true
}

// OverlayAnchor returns the anchor of the last successful placement.
func (c *Container) OverlayAnchor() page.OverlayAnchor {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.overlayAnchor
}

// OverlayMessage returns the current overlay text.
func (c *Container) OverlayMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.overlayMessage
}

// BannerMessage returns the current banner text.
func (c *Container) BannerMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.bannerMessage
}

// OverlayShows returns how many times ShowOverlay ran.
func (c *Container) OverlayShows() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.overlayShows
}

// OverlayRefreshes returns how many times RefreshOverlay ran.
func (c *Container) OverlayRefreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.overlayRefreshs
}

// ClickReplays returns how many times ReplayClick ran.
func (c *Container) ClickReplays() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.clickReplays
}

// Observer is a manual page.Observer; tests push events through Emit.
type Observer struct {
	events chan page.Event
}

// Compile-time assertion: *Observer implements page.Observer.
var _ page.Observer = (*Observer)(nil)

// NewObserver creates an observer with a small buffer.
func NewObserver() *Observer {
	return &Observer{events: make(chan page.Event, 16)}
}

// Events implements page.Observer.
func (o *Observer) Events() <-chan page.Event {
	return o.events
}

// Emit pushes an event to subscribers.
func (o *Observer) Emit(kind page.EventKind) {
	o.events <- page.Event{Kind: kind}
}
