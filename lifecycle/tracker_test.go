package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jetd7/snapembed/appserver"
	"github.com/jetd7/snapembed/host"
	"github.com/jetd7/snapembed/page"
	"github.com/jetd7/snapembed/page/memorypage"
	"github.com/jetd7/snapembed/scheduler"
	"github.com/jetd7/snapembed/storage/memory"
	"github.com/jetd7/snapembed/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer records lifecycle calls and scripts their outcomes.
type fakeServer struct {
	mu sync.Mutex

	saves     []string
	attaches  []appserver.OrderContext
	journeys  []string
	finalizes []string

	finalizeErr   error
	finalizeReply appserver.FinalizeResponse
	statusErr     error
	statusReply   appserver.StatusResponse
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		finalizeReply: appserver.FinalizeResponse{
			Success:          true,
			OrderReceivedURL: "https://shop.example/order-received/42",
		},
	}
}

func (s *fakeServer) SaveApplication(_ context.Context, id, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves = append(s.saves, id)

	return nil
}

func (s *fakeServer) Attach(_ context.Context, _ string, order appserver.OrderContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attaches = append(s.attaches, order)

	return nil
}

func (s *fakeServer) Journey(_ context.Context, stage, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journeys = append(s.journeys, stage)

	return nil
}

func (s *fakeServer) Status(context.Context, string, string) (appserver.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statusReply, s.statusErr
}

func (s *fakeServer) Finalize(_ context.Context, id, _, _ string) (appserver.FinalizeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalizes = append(s.finalizes, id)

	return s.finalizeReply, s.finalizeErr
}

func (s *fakeServer) finalizeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.finalizes)
}

func (s *fakeServer) journeyStages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.journeys))
	copy(out, s.journeys)

	return out
}

// gateAdapter records the installed submission gate.
type gateAdapter struct {
	mu        sync.Mutex
	selected  bool
	container *memorypage.Container
	gate      host.Gate
	installs  int
}

func newGateAdapter() *gateAdapter {
	return &gateAdapter{selected: true, container: memorypage.New()}
}

func (a *gateAdapter) Selected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.selected
}

func (a *gateAdapter) Subscribe(func()) (cancel func()) { return func() {} }

func (a *gateAdapter) MountContainer() page.Container {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.container
}

func (a *gateAdapter) State() host.State { return host.State{} }

func (a *gateAdapter) InterceptSubmission(gate host.Gate) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gate = gate

	if gate != nil {
		a.installs++
	}
}

func (a *gateAdapter) installedGate() host.Gate {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.gate
}

func (a *gateAdapter) installCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.installs
}

func (a *gateAdapter) setSelected(selected bool) {
	a.mu.Lock()
	a.selected = selected
	a.mu.Unlock()
}

// staticSources resolves a fixed cart for invoice capture.
type staticSources struct{}

func (staticSources) CartCustomer() (transaction.Customer, bool) {
	return transaction.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Postcode: "SW1A 1AA"}, true
}

func (staticSources) CheckoutCustomer() (transaction.Customer, bool) {
	return transaction.Customer{}, false
}

func (staticSources) FormCustomer() (transaction.Customer, bool) {
	return transaction.Customer{}, false
}

func (staticSources) CartTotal() (decimal.Decimal, bool) {
	return decimal.NewFromInt(150), true
}

func (staticSources) ShippingCost() (decimal.Decimal, bool) {
	return decimal.NewFromFloat(4.99), true
}

func (staticSources) Products() ([]transaction.Product, bool) { return nil, false }
func (staticSources) DeliveryDate() (string, bool)            { return "", false }

type trackerRig struct {
	tracker *Tracker
	adapter *gateAdapter
	server  *fakeServer
	store   *memory.Store
	builder *transaction.Builder
	route   *routeScript
}

// routeScript is a settable location fragment.
type routeScript struct {
	mu       sync.Mutex
	fragment string
}

func (r *routeScript) get() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.fragment
}

func (r *routeScript) set(fragment string) {
	r.mu.Lock()
	r.fragment = fragment
	r.mu.Unlock()
}

func newTrackerRig(t *testing.T, opts Options) *trackerRig {
	t.Helper()

	adapter := newGateAdapter()
	server := newFakeServer()
	store := memory.New()
	sched := scheduler.New(nil)
	builder := transaction.NewBuilder(staticSources{}, transaction.Fallback{})
	route := &routeScript{}

	if opts.Route == nil {
		opts.Route = route.get
	}

	cfg := Config{
		Owner:              "tracker-under-test",
		RouteWatchInterval: 5 * time.Millisecond,
		RouteWatchAttempts: 200,
	}

	tracker := New(context.Background(), cfg, adapter, server, store, sched, builder, opts, nil)

	return &trackerRig{
		tracker: tracker,
		adapter: adapter,
		server:  server,
		store:   store,
		builder: builder,
		route:   route,
	}
}

// ---------------------------------------------------------------------------
// Application start
// ---------------------------------------------------------------------------

func TestOnApplicationIDBlocksAndPersists(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})

	invoiceBefore := r.builder.Build().InvoiceNumber

	r.tracker.OnApplicationID("app-1", "tok-1")

	snap := r.tracker.Snapshot()
	assert.Equal(t, "app-1", snap.ID)
	assert.Equal(t, "tok-1", snap.Token)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Equal(t, invoiceBefore, snap.InvoiceNumber)

	// Submission is gated.
	assert.True(t, r.tracker.Blocked())

	gate := r.adapter.installedGate()
	require.NotNil(t, gate)

	blocked, message := gate()
	assert.True(t, blocked)
	assert.Equal(t, msgPending, message)

	// State survived to storage.
	raw, ok, err := r.store.Get(context.Background(), stateKey)
	require.NoError(t, err)
	require.True(t, ok)

	restored, err := decodeState(raw)
	require.NoError(t, err)
	assert.Equal(t, "app-1", restored.ID)
	assert.Equal(t, StatusPending, restored.Status)

	// Best-effort reporting fired.
	assert.Equal(t, []string{"app-1"}, r.server.saves)
	require.Len(t, r.server.attaches, 1)
	assert.Equal(t, invoiceBefore, r.server.attaches[0].InvoiceNumber)
	assert.Equal(t, []string{"pending"}, r.server.journeyStages())
}

func TestGuardWrapsOnce(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})

	r.tracker.OnApplicationID("app-1", "tok-1")
	r.tracker.OnApproved("app-1", "tok-1")
	r.tracker.OnApplicationID("app-2", "tok-2")

	assert.Equal(t, 1, r.adapter.installCount())
}

func TestGateIgnoresOtherPaymentMethods(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.tracker.OnApplicationID("app-1", "tok-1")

	r.adapter.setSelected(false)

	assert.False(t, r.tracker.Blocked())
}

func TestGateBlocksOnInvalidLimits(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{
		Limits: func() LimitsGuard {
			return CheckLimits(decimal.NewFromInt(10), decimal.NewFromInt(50), decimal.NewFromInt(500))
		},
	})

	r.tracker.OnApplicationID("app-1", "tok-1")
	r.tracker.OnError("app-1", "tok-1")

	// Error status alone would unblock, but the limits guard still bites.
	blocked, message := r.tracker.gate()
	assert.True(t, blocked)
	assert.Contains(t, message, "between 50.00 and 500.00")
	assert.Contains(t, message, "10.00")
}

// ---------------------------------------------------------------------------
// Terminal outcomes
// ---------------------------------------------------------------------------

func TestOnApprovedStaysBlocked(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.tracker.OnApplicationID("app-1", "tok-1")
	r.tracker.OnApproved("app-1", "tok-1")

	assert.Equal(t, StatusApproved, r.tracker.Snapshot().Status)

	// Approved is not usable yet: the signing step remains, and the gate
	// stays installed even though approved itself does not block.
	require.NotNil(t, r.adapter.installedGate())
}

func TestOnSuccessFinalizesExactlyOnce(t *testing.T) {
	t.Parallel()

	var redirects []string

	r := newTrackerRig(t, Options{
		Redirect: func(url string) { redirects = append(redirects, url) },
	})

	r.tracker.OnApplicationID("app-1", "tok-1")

	r.tracker.OnSuccess("app-1", "tok-1")
	r.tracker.OnSuccess("app-1", "tok-1")
	r.tracker.OnSuccess("app-1", "tok-1")

	assert.Equal(t, 1, r.server.finalizeCount())
	assert.Equal(t, []string{"https://shop.example/order-received/42"}, redirects)

	snap := r.tracker.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.True(t, snap.Submitted)
}

func TestOnSuccessFinalizeFailureKeepsGuard(t *testing.T) {
	t.Parallel()

	var redirects []string

	r := newTrackerRig(t, Options{
		Redirect: func(url string) { redirects = append(redirects, url) },
	})
	r.server.finalizeErr = errors.New("finalize timed out")

	r.tracker.OnApplicationID("app-1", "tok-1")
	r.tracker.OnSuccess("app-1", "tok-1")

	assert.Empty(t, redirects)
	assert.False(t, r.tracker.Snapshot().Submitted)
	assert.Equal(t, msgFinishPopup, r.adapter.container.BannerMessage())

	// The installed gate must actually stop the native submission: success
	// without a completed finalize is not a placed order.
	assert.True(t, r.tracker.Blocked())

	gate := r.adapter.installedGate()
	require.NotNil(t, gate)

	blocked, message := gate()
	assert.True(t, blocked)
	assert.Equal(t, msgFinishPopup, message)
}

func TestOnSuccessFinalizeRejectionBlocksSubmission(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.server.finalizeReply = appserver.FinalizeResponse{Success: false}

	r.tracker.OnApplicationID("app-1", "tok-1")
	r.tracker.OnSuccess("app-1", "tok-1")

	blocked, message := r.tracker.gate()
	assert.True(t, blocked)
	assert.Equal(t, msgFinishPopup, message)
}

func TestOnDeniedBlocksAndReports(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.tracker.OnApplicationID("app-1", "tok-1")
	r.tracker.OnDenied("app-1", "tok-1")

	assert.Equal(t, StatusDenied, r.tracker.Snapshot().Status)
	assert.True(t, r.tracker.Blocked())
	assert.Equal(t, msgDenied, r.adapter.container.BannerMessage())
	assert.Equal(t, []string{"pending", "denied"}, r.server.journeyStages())

	gate := r.adapter.installedGate()
	require.NotNil(t, gate)

	blocked, message := gate()
	assert.True(t, blocked)
	assert.Equal(t, msgDenied, message)
}

func TestOnErrorReleasesGuard(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.tracker.OnApplicationID("app-1", "tok-1")
	require.True(t, r.tracker.Blocked())

	r.tracker.OnError("app-1", "tok-1")

	assert.Equal(t, StatusError, r.tracker.Snapshot().Status)
	assert.False(t, r.tracker.Blocked())

	// The wrap is removed so the shopper can pay another way.
	assert.Nil(t, r.adapter.installedGate())
}

// ---------------------------------------------------------------------------
// Persistence across page loads
// ---------------------------------------------------------------------------

func TestRestoreReinstatesPendingGuard(t *testing.T) {
	t.Parallel()

	first := newTrackerRig(t, Options{})
	first.tracker.OnApplicationID("app-1", "tok-1")

	// A new page load builds a fresh tracker over the same store.
	adapter := newGateAdapter()
	tracker := New(context.Background(), Config{Owner: "second-page"}, adapter, newFakeServer(),
		first.store, scheduler.New(nil), transaction.NewBuilder(staticSources{}, transaction.Fallback{}),
		Options{}, nil)

	snap := tracker.Snapshot()
	assert.Equal(t, "app-1", snap.ID)
	assert.Equal(t, StatusPending, snap.Status)
	assert.True(t, tracker.Blocked())
	require.NotNil(t, adapter.installedGate())
}

func TestRestoreBlocksWhileFinalizeIncomplete(t *testing.T) {
	t.Parallel()

	first := newTrackerRig(t, Options{})
	first.server.finalizeErr = errors.New("finalize timed out")
	first.tracker.OnApplicationID("app-1", "tok-1")
	first.tracker.OnSuccess("app-1", "tok-1")

	// The page reloads mid-finalize: signed but never placed.
	adapter := newGateAdapter()
	tracker := New(context.Background(), Config{Owner: "second-page"}, adapter, newFakeServer(),
		first.store, scheduler.New(nil), transaction.NewBuilder(staticSources{}, transaction.Fallback{}),
		Options{}, nil)

	snap := tracker.Snapshot()
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.False(t, snap.Submitted)
	assert.True(t, tracker.Blocked())

	gate := adapter.installedGate()
	require.NotNil(t, gate)

	blocked, message := gate()
	assert.True(t, blocked)
	assert.Equal(t, msgFinishPopup, message)
}

func TestRestoreDiscardsCorruptState(t *testing.T) {
	t.Parallel()

	store := memory.New()
	require.NoError(t, store.Set(context.Background(), stateKey, "{not json", 0))

	adapter := newGateAdapter()
	tracker := New(context.Background(), Config{Owner: "page"}, adapter, newFakeServer(),
		store, scheduler.New(nil), transaction.NewBuilder(staticSources{}, transaction.Fallback{}),
		Options{}, nil)

	assert.Equal(t, StatusNone, tracker.Snapshot().Status)

	_, ok, err := store.Get(context.Background(), stateKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Route-fallback watcher
// ---------------------------------------------------------------------------

func TestRouteWatcherDeliversMissedSuccess(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.tracker.OnApplicationID("app-1", "tok-1")

	// The popup callback never arrives; the opener's route changes instead.
	r.route.set("#/checkout/financing-success")

	require.Eventually(t, func() bool { return r.server.finalizeCount() == 1 },
		2*time.Second, time.Millisecond)
	assert.Equal(t, StatusSuccess, r.tracker.Snapshot().Status)
}

func TestRouteWatcherDeliversMissedDenial(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.tracker.OnApplicationID("app-1", "tok-1")

	r.route.set("#/checkout/application-declined")

	require.Eventually(t, func() bool { return r.tracker.Snapshot().Status == StatusDenied },
		2*time.Second, time.Millisecond)
	assert.True(t, r.tracker.Blocked())
}

func TestRouteWatcherPrefersServerStatus(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.server.statusReply = appserver.StatusResponse{ProgressStatus: "success"}

	r.tracker.OnApplicationID("app-1", "tok-1")

	// The fragment looks like a denial, but the server knows better.
	r.route.set("#/checkout/application-declined")

	require.Eventually(t, func() bool { return r.server.finalizeCount() == 1 },
		2*time.Second, time.Millisecond)
	assert.Equal(t, StatusSuccess, r.tracker.Snapshot().Status)
}

func TestRouteWatcherStopsAfterCallbackOutcome(t *testing.T) {
	t.Parallel()

	r := newTrackerRig(t, Options{})
	r.tracker.OnApplicationID("app-1", "tok-1")

	// The real callback wins the race; the watcher must stand down.
	r.tracker.OnSuccess("app-1", "tok-1")

	r.route.set("#/checkout/application-declined")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusSuccess, r.tracker.Snapshot().Status)
}

func TestMatchRoute(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		matched  bool
	}{
		{name: "empty fragment", fragment: "", matched: false},
		{name: "unrelated route", fragment: "#/checkout/review", matched: false},
		{name: "success route", fragment: "#/financing-SUCCESS", matched: true},
		{name: "complete route", fragment: "order/complete", matched: true},
		{name: "denied route", fragment: "application/denied", matched: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.matched, matchRoute(tt.fragment) != nil)
		})
	}
}

// ---------------------------------------------------------------------------
// Limits
// ---------------------------------------------------------------------------

func TestCheckLimits(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		invalid bool
	}{
		{name: "inside window", total: 150, invalid: false},
		{name: "below minimum", total: 10, invalid: true},
		{name: "above maximum", total: 900, invalid: true},
		{name: "exactly minimum", total: 50, invalid: false},
		{name: "exactly maximum", total: 500, invalid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			guard := CheckLimits(decimal.NewFromInt(tt.total), decimal.NewFromInt(50), decimal.NewFromInt(500))

			assert.Equal(t, tt.invalid, guard.Invalid)
		})
	}
}
