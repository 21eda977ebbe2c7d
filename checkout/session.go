// Package checkout wires one Session per checkout page: the transaction
// builder, preflight aggregator, render orchestrator, and lifecycle tracker,
// sharing a scheduler and one host adapter chosen at construction. The
// session replaces the global mutable state of ad hoc embeds with a single
// context object, so independent test instances coexist.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jetd7/snapembed/appserver"
	"github.com/jetd7/snapembed/config"
	"github.com/jetd7/snapembed/host"
	"github.com/jetd7/snapembed/lifecycle"
	"github.com/jetd7/snapembed/log"
	"github.com/jetd7/snapembed/page"
	"github.com/jetd7/snapembed/preflight"
	"github.com/jetd7/snapembed/render"
	"github.com/jetd7/snapembed/scheduler"
	"github.com/jetd7/snapembed/storage"
	"github.com/jetd7/snapembed/storage/memory"
	"github.com/jetd7/snapembed/transaction"
	"github.com/jetd7/snapembed/widget"
	"github.com/shopspring/decimal"
)

// ErrNoHostFlavor is returned when neither a reactive state store nor a
// pollable form view is provided.
var ErrNoHostFlavor = errors.New("no host flavor: provide a state store or a form view")

// ErrNoSDK is returned when no widget SDK is provided.
var ErrNoSDK = errors.New("widget sdk is required")

// Option configures a session.
type Option func(s *Session)

// WithLogger sets the session logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithStore sets the persistent storage backend. Defaults to in-memory.
func WithStore(store storage.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithStateStore selects the reactive (subscribe-based) host flavor.
func WithStateStore(store host.StateStore) Option {
	return func(s *Session) { s.stateStore = store }
}

// WithForm selects the polling host flavor.
func WithForm(form host.FormView) Option {
	return func(s *Session) { s.form = form }
}

// WithPage sets the host page surface (mount container, host state,
// submission wrap point).
func WithPage(hostPage host.Page) Option {
	return func(s *Session) { s.page = hostPage }
}

// WithSources sets the transaction data sources.
func WithSources(sources transaction.Sources) Option {
	return func(s *Session) { s.sources = sources }
}

// WithObserver sets the container mutation event source.
func WithObserver(observer page.Observer) Option {
	return func(s *Session) { s.observer = observer }
}

// WithSDK sets the widget SDK.
func WithSDK(sdk widget.SDK) Option {
	return func(s *Session) { s.sdk = sdk }
}

// WithServer sets the application server client. Defaults to an HTTP client
// against the configured server URL.
func WithServer(server lifecycle.Server) Option {
	return func(s *Session) { s.server = server }
}

// WithRoute sets the location-fragment reader for the fallback watcher.
func WithRoute(route func() string) Option {
	return func(s *Session) { s.route = route }
}

// WithRedirect sets the redirect hook used after finalize.
func WithRedirect(redirect func(url string)) Option {
	return func(s *Session) { s.redirect = redirect }
}

// Session owns every engine component of one checkout page.
type Session struct {
	id  string
	cfg config.Config

	logger     log.Logger
	store      storage.Store
	stateStore host.StateStore
	form       host.FormView
	page       host.Page
	sources    transaction.Sources
	observer   page.Observer
	sdk        widget.SDK
	server     lifecycle.Server
	route      func() string
	redirect   func(url string)

	adapter      host.Adapter
	sched        *scheduler.Scheduler
	builder      *transaction.Builder
	aggregator   *preflight.Aggregator
	orchestrator *render.Orchestrator
	tracker      *lifecycle.Tracker
}

// New builds a session. The host adapter flavor is chosen here, once: the
// reactive store wins when both are provided. Construction fails on missing
// configuration or collaborators; nothing is retried.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{id: uuid.NewString(), cfg: cfg}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = log.OrNop(s.logger).With(log.String("session_id", s.id))

	if s.sdk == nil {
		return nil, ErrNoSDK
	}

	if s.page == nil {
		return nil, fmt.Errorf("host page surface is required")
	}

	if s.store == nil {
		s.store = memory.New()
	}

	s.store = storage.Namespaced(s.store, "snapembed:"+cfg.MethodID)

	switch {
	case s.stateStore != nil:
		s.adapter = host.NewStoreAdapter(s.stateStore, s.page, cfg.MethodID)
	case s.form != nil:
		s.adapter = host.NewPollAdapter(s.form, s.page, cfg.MethodID, cfg.Tuning.PollInterval)
	default:
		return nil, ErrNoHostFlavor
	}

	if s.server == nil {
		s.server = appserver.New(appserver.Config{
			BaseURL: cfg.ServerURL,
			Timeout: cfg.Tuning.RequestTimeout,
			Logger:  s.logger,
		})
	}

	s.sched = scheduler.New(s.logger)

	s.builder = transaction.NewBuilder(s.sources, transaction.Fallback{
		Customer: transaction.Customer{
			FirstName: cfg.Fallback.FirstName,
			LastName:  cfg.Fallback.LastName,
			Email:     cfg.Fallback.Email,
			Postcode:  cfg.Fallback.Postcode,
			Country:   cfg.Fallback.Country,
		},
		Total: decimal.NewFromFloat(cfg.Fallback.Total),
	})

	bounds := transaction.Bounds{Min: cfg.Min(), Max: cfg.Max(), PostcodeFormat: cfg.PostcodeFormat}
	s.aggregator = preflight.New(s.builder, s.adapter, bounds)

	s.tracker = lifecycle.New(ctx, lifecycle.Config{
		Owner:              s.id,
		RouteWatchInterval: cfg.Tuning.RouteWatchInterval,
		RouteWatchAttempts: cfg.Tuning.RouteWatchAttempts,
	}, s.adapter, s.server, s.store, s.sched, s.builder, lifecycle.Options{
		Limits: func() lifecycle.LimitsGuard {
			return lifecycle.CheckLimits(s.builder.Build().Total, cfg.Min(), cfg.Max())
		},
		Route:    s.route,
		Redirect: s.redirect,
	}, s.logger)

	s.orchestrator = render.New(render.Config{
		Owner:              s.id,
		ClientID:           cfg.ClientID,
		MerchantID:         cfg.MerchantID,
		Theme:              cfg.Theme,
		DebounceWindow:     cfg.Tuning.DebounceWindow,
		HeartbeatInterval:  cfg.Tuning.HeartbeatInterval,
		RenderCooldown:     cfg.Tuning.RenderCooldown,
		RecoveryCooldown:   cfg.Tuning.RecoveryCooldown,
		ReadinessInterval:  cfg.Tuning.ReadinessInterval,
		ReadinessAttempts:  cfg.Tuning.ReadinessAttempts,
		OverlayRetryBase:   cfg.Tuning.OverlayRetryBase,
		OverlayRetryCount:  cfg.Tuning.OverlayRetryCount,
		MinContainerWidth:  cfg.Tuning.MinContainerWidth,
		MinContainerHeight: cfg.Tuning.MinContainerHeight,
	}, s.adapter, s.sdk, s.aggregator, s.sched, s.observer, s.tracker.Callbacks(), s.logger)

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Orchestrator exposes the render orchestrator (the bootstrap wires overlay
// clicks to it).
func (s *Session) Orchestrator() *render.Orchestrator { return s.orchestrator }

// Tracker exposes the lifecycle tracker.
func (s *Session) Tracker() *lifecycle.Tracker { return s.tracker }

// Builder exposes the transaction builder.
func (s *Session) Builder() *transaction.Builder { return s.builder }

// Start begins driving the page.
func (s *Session) Start(ctx context.Context) {
	s.orchestrator.Start(ctx)
}

// Stop tears the session down and cancels all outstanding work.
func (s *Session) Stop() {
	s.orchestrator.Stop()
	s.sched.Suspend(s.id)
}
