// Package widget declares the contract of the embeddable financing widget.
// The engine treats the widget as an opaque black box: it initializes it,
// mounts it with a transaction, and listens to its lifecycle callbacks. It
// never introspects the widget beyond the container's ControlPresent check.
package widget

import (
	"context"

	"github.com/jetd7/snapembed/page"
	"github.com/jetd7/snapembed/transaction"
)

// Callback receives the application id and session token the widget reports.
type Callback func(id, token string)

// Callbacks is the full lifecycle callback set of a mount. Nil entries are
// ignored by conforming SDK implementations.
type Callbacks struct {
	OnApplicationID     Callback
	OnApproved          Callback
	OnApprovedWithConds Callback
	OnSuccess           Callback
	OnError             Callback
	OnDenied            Callback
	OnUnverifiedAccount Callback
	OnPaymentFailure    Callback
	OnWithdrawn         Callback
}

// MountRequest carries everything one mount call needs.
type MountRequest struct {
	MerchantID  string
	Theme       string
	Transaction transaction.Snapshot
	Target      page.Container
	Callbacks   Callbacks
}

// SDK is the external widget dependency.
type SDK interface {
	// Loaded reports whether the widget library has finished loading. The
	// orchestrator polls this with a bounded schedule before mounting.
	Loaded() bool
	// Init prepares the SDK for a client. Idempotent.
	Init(ctx context.Context, clientID string) error
	// Mount renders the widget into the target container.
	Mount(ctx context.Context, req MountRequest) error
}
