// Package widgettest provides a scriptable widget.SDK for tests.
package widgettest

import (
	"context"
	"sync"

	"github.com/jetd7/snapembed/page"
	"github.com/jetd7/snapembed/widget"
)

// ControlSetter is the subset of the memory container the fake needs to
// simulate a successful mount.
type ControlSetter interface {
	SetControlPresent(bool)
}

// FakeSDK records Init and Mount calls and simulates control placement.
type FakeSDK struct {
	mu sync.Mutex

	loaded    bool
	initCalls []string
	mounts    []widget.MountRequest
	mountErr  error
}

// Compile-time assertion: *FakeSDK implements widget.SDK.
var _ widget.SDK = (*FakeSDK)(nil)

// New creates a loaded fake.
func New() *FakeSDK {
	return &FakeSDK{loaded: true}
}

// Loaded implements widget.SDK.
func (f *FakeSDK) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loaded
}

// SetLoaded scripts library readiness.
func (f *FakeSDK) SetLoaded(loaded bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loaded = loaded
}

// Init implements widget.SDK.
func (f *FakeSDK) Init(_ context.Context, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.initCalls = append(f.initCalls, clientID)

	return nil
}

// Mount implements widget.SDK. On success it marks the target's control as
// present when the target supports it.
func (f *FakeSDK) Mount(_ context.Context, req widget.MountRequest) error {
	f.mu.Lock()
	mountErr := f.mountErr
	f.mounts = append(f.mounts, req)
	f.mu.Unlock()

	if mountErr != nil {
		return mountErr
	}

	if setter, ok := req.Target.(ControlSetter); ok {
		setter.SetControlPresent(true)
	}

	return nil
}

// FailMounts makes subsequent Mount calls return err.
func (f *FakeSDK) FailMounts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mountErr = err
}

// MountCount returns how many mounts ran.
func (f *FakeSDK) MountCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.mounts)
}

// LastMount returns the most recent mount request and whether one exists.
func (f *FakeSDK) LastMount() (widget.MountRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.mounts) == 0 {
		return widget.MountRequest{}, false
	}

	return f.mounts[len(f.mounts)-1], true
}

// InitCalls returns the client ids Init ran with.
func (f *FakeSDK) InitCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.initCalls))
	copy(out, f.initCalls)

	return out
}

// Callbacks returns the callback set of the most recent mount.
func (f *FakeSDK) Callbacks() widget.Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.mounts) == 0 {
		return widget.Callbacks{}
	}

	return f.mounts[len(f.mounts)-1].Callbacks
}

// Target returns the container of the most recent mount.
//
//nolint:ireturn
func (f *FakeSDK) Target() page.Container {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.mounts) == 0 {
		return nil
	}

	return f.mounts[len(f.mounts)-1].Target
}
