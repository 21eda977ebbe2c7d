package host

import (
	"github.com/jetd7/snapembed/page"
)

// StateStore is the reactive checkout data store the modern host flavor
// exposes. Subscribers fire on any relevant checkout change.
type StateStore interface {
	Subscribe(onChange func()) (cancel func())
	SelectedPaymentMethod() string
}

// StoreAdapter is the subscribe-based flavor.
type StoreAdapter struct {
	store    StateStore
	page     Page
	methodID string
}

// Compile-time assertion: *StoreAdapter implements Adapter.
var _ Adapter = (*StoreAdapter)(nil)

// NewStoreAdapter wires the adapter for the given payment method id.
func NewStoreAdapter(store StateStore, hostPage Page, methodID string) *StoreAdapter {
	return &StoreAdapter{store: store, page: hostPage, methodID: methodID}
}

// Selected implements Adapter.
func (a *StoreAdapter) Selected() bool {
	return a.store.SelectedPaymentMethod() == a.methodID
}

// Subscribe implements Adapter.
func (a *StoreAdapter) Subscribe(onChange func()) (cancel func()) {
	return a.store.Subscribe(onChange)
}

// MountContainer implements Adapter.
//
//nolint:ireturn
func (a *StoreAdapter) MountContainer() page.Container {
	return a.page.MountContainer()
}

// State implements Adapter.
func (a *StoreAdapter) State() State {
	return a.page.State()
}

// InterceptSubmission implements Adapter.
func (a *StoreAdapter) InterceptSubmission(gate Gate) {
	a.page.InstallSubmissionGate(gate)
}
