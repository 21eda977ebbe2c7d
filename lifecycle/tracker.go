package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/jetd7/snapembed/appserver"
	"github.com/jetd7/snapembed/host"
	"github.com/jetd7/snapembed/log"
	"github.com/jetd7/snapembed/scheduler"
	"github.com/jetd7/snapembed/storage"
	"github.com/jetd7/snapembed/transaction"
	"github.com/jetd7/snapembed/widget"
)

// Server is the slice of the application server client the tracker uses.
type Server interface {
	SaveApplication(ctx context.Context, id, token string) error
	Attach(ctx context.Context, applicationID string, order appserver.OrderContext) error
	Journey(ctx context.Context, stage, applicationID string) error
	Status(ctx context.Context, applicationID, token string) (appserver.StatusResponse, error)
	Finalize(ctx context.Context, applicationID, token, invoiceNumber string) (appserver.FinalizeResponse, error)
}

const (
	stateKey     = "application"
	stateTTL     = 24 * time.Hour
	stagePending = "pending"
	stageDenied  = "denied"
)

// User-facing messages rendered next to the mount container.
const (
	msgPending     = "Your financing application is still in progress."
	msgDenied      = "Your financing application was declined. Please choose another payment method."
	msgFinishPopup = "Please finish signing in the financing popup to complete your order."
)

// Config wires a tracker.
type Config struct {
	// Owner is the scheduler owner key shared with the orchestrator.
	Owner string
	// RouteWatchInterval and RouteWatchAttempts bound the fallback watcher.
	RouteWatchInterval time.Duration
	RouteWatchAttempts int
}

// Tracker owns the application state for one checkout page.
type Tracker struct {
	cfg     Config
	adapter host.Adapter
	server  Server
	store   storage.Store
	sched   *scheduler.Scheduler
	builder *transaction.Builder
	logger  log.Logger

	// Limits recomputes the basket-limits guard at submission time.
	limits func() LimitsGuard
	// Route returns the current location fragment for the fallback watcher.
	route func() string
	// Redirect sends the shopper to the order-received page.
	redirect func(url string)

	mu              sync.Mutex
	state           State
	finalized       bool
	finalizePending bool
	guardInstalled  bool
	watchCancel     func()
	ctx             context.Context
	now             func() time.Time
}

// Options are the host-specific hooks the tracker needs.
type Options struct {
	Limits   func() LimitsGuard
	Route    func() string
	Redirect func(url string)
}

// New creates a tracker and restores any persisted application state.
func New(ctx context.Context, cfg Config, adapter host.Adapter, server Server,
	store storage.Store, sched *scheduler.Scheduler, builder *transaction.Builder,
	opts Options, logger log.Logger,
) *Tracker {
	t := &Tracker{
		cfg:      cfg,
		adapter:  adapter,
		server:   server,
		store:    store,
		sched:    sched,
		builder:  builder,
		logger:   log.OrNop(logger),
		limits:   opts.Limits,
		route:    opts.Route,
		redirect: opts.Redirect,
		ctx:      ctx,
		now:      time.Now,
		state:    State{Status: StatusNone},
	}

	t.restore(ctx)

	return t
}

// restore loads a previous page's application state, so a reload mid-signing
// keeps submission gated.
func (t *Tracker) restore(ctx context.Context) {
	raw, ok, err := t.store.Get(ctx, stateKey)
	if err != nil {
		t.logger.Log(ctx, log.LevelWarn, "application state restore failed", log.Err(err))

		return
	}

	if !ok {
		return
	}

	state, err := decodeState(raw)
	if err != nil {
		t.logger.Log(ctx, log.LevelWarn, "application state corrupt, discarding", log.Err(err))
		_ = t.store.Remove(ctx, stateKey)

		return
	}

	t.mu.Lock()
	t.state = state
	t.finalized = state.Status == StatusSuccess
	// Success without Submitted means the previous page died between signing
	// and finalize; the gate must come back up until finalize completes.
	t.finalizePending = state.Status == StatusSuccess && !state.Submitted
	pending := t.finalizePending
	t.mu.Unlock()

	if pending || state.Status.blocksSubmission() {
		t.ensureGuard()
	}
}

// Snapshot returns a copy of the current application state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Callbacks returns the widget callback set bound to this tracker. The
// secondary negative callbacks all route to OnError: the shopper can pick
// another method after any of them.
func (t *Tracker) Callbacks() widget.Callbacks {
	return widget.Callbacks{
		OnApplicationID:     t.OnApplicationID,
		OnApproved:          t.OnApproved,
		OnApprovedWithConds: t.OnApproved,
		OnSuccess:           t.OnSuccess,
		OnError:             t.OnError,
		OnDenied:            t.OnDenied,
		OnUnverifiedAccount: t.OnError,
		OnPaymentFailure:    t.OnError,
		OnWithdrawn:         t.OnError,
	}
}

// OnApplicationID marks a new application as pending, persists it, blocks
// submission, and arms the route-fallback watcher.
func (t *Tracker) OnApplicationID(id, token string) {
	ctx := t.ctxNow()

	// The invoice mounted with the widget belongs to this application; the
	// cache resets so the next application gets a fresh number.
	snap := t.builder.Build()
	t.builder.ResetInvoice()

	t.mu.Lock()
	t.state = State{
		ID:            id,
		Token:         token,
		Status:        StatusPending,
		InvoiceNumber: snap.InvoiceNumber,
		LastUpdatedAt: t.now(),
	}
	t.finalized = false
	t.mu.Unlock()

	t.persist(ctx)

	// Best effort: the local copy is authoritative for gating.
	_ = t.server.SaveApplication(ctx, id, token)
	_ = t.server.Attach(ctx, id, appserver.OrderContext{
		InvoiceNumber: snap.InvoiceNumber,
		Total:         snap.Total.StringFixed(2),
	})
	_ = t.server.Journey(ctx, stagePending, id)

	t.ensureGuard()
	t.armRouteWatcher()
}

// OnApproved records approval. Submission stays blocked: a signing step
// remains before the application is usable.
func (t *Tracker) OnApproved(id, token string) {
	ctx := t.ctxNow()

	t.mu.Lock()
	t.adopt(id, token)
	t.state.Status = StatusApproved
	t.state.LastUpdatedAt = t.now()
	t.mu.Unlock()

	t.persist(ctx)
	_ = t.server.SaveApplication(ctx, id, token)
	t.ensureGuard()
}

// OnSuccess finalizes the order exactly once. Repeat deliveries are no-ops.
func (t *Tracker) OnSuccess(id, token string) {
	ctx := t.ctxNow()

	t.mu.Lock()
	if t.finalized {
		t.mu.Unlock()

		return
	}

	t.finalized = true
	// Pending until finalize confirms: the gate blocks submission while the
	// order has no completed financing behind it.
	t.finalizePending = true
	t.adopt(id, token)
	t.state.Status = StatusSuccess
	t.state.LastUpdatedAt = t.now()
	invoice := t.state.InvoiceNumber
	t.mu.Unlock()

	t.stopRouteWatcher()
	t.persist(ctx)
	_ = t.server.SaveApplication(ctx, id, token)

	resp, err := t.server.Finalize(ctx, id, token, invoice)
	if err != nil || !resp.Success {
		t.logger.Log(ctx, log.LevelError, "finalize failed", log.Err(err))
		t.showBanner(msgFinishPopup)
		t.ensureGuard()

		return
	}

	t.mu.Lock()
	t.state.Submitted = true
	t.finalizePending = false
	t.mu.Unlock()

	t.persist(ctx)

	if t.redirect != nil && resp.OrderReceivedURL != "" {
		t.redirect(resp.OrderReceivedURL)
	}
}

// OnDenied records the terminal negative outcome, reports it, and keeps
// submission blocked.
func (t *Tracker) OnDenied(id, token string) {
	ctx := t.ctxNow()

	t.mu.Lock()
	t.adopt(id, token)
	t.state.Status = StatusDenied
	t.state.LastUpdatedAt = t.now()
	t.mu.Unlock()

	t.stopRouteWatcher()
	t.persist(ctx)
	_ = t.server.Journey(ctx, stageDenied, id)

	t.showBanner(msgDenied)
	t.ensureGuard()
}

// OnError records a failed application. The shopper may pick another method,
// so submission is not blocked by this status.
func (t *Tracker) OnError(id, token string) {
	ctx := t.ctxNow()

	t.mu.Lock()
	t.adopt(id, token)
	t.state.Status = StatusError
	t.state.LastUpdatedAt = t.now()
	t.mu.Unlock()

	t.stopRouteWatcher()
	t.persist(ctx)
	t.maybeRestoreGuard()
}

// adopt fills id/token when the callback carries fresher values. Callers
// hold t.mu.
func (t *Tracker) adopt(id, token string) {
	if id != "" {
		t.state.ID = id
	}

	if token != "" {
		t.state.Token = token
	}
}

func (t *Tracker) persist(ctx context.Context) {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	encoded, err := encodeState(state)
	if err != nil {
		t.logger.Log(ctx, log.LevelWarn, "application state encode failed", log.Err(err))

		return
	}

	if err := t.store.Set(ctx, stateKey, encoded, stateTTL); err != nil {
		t.logger.Log(ctx, log.LevelWarn, "application state persist failed", log.Err(err))
	}
}

func (t *Tracker) showBanner(message string) {
	if container := t.adapter.MountContainer(); container != nil {
		container.ShowBanner(message)
	}
}

func (t *Tracker) ctxNow() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ctx != nil {
		return t.ctx
	}

	return context.Background()
}
