// Package render owns the widget mount lifecycle for one container: when to
// mount, when to tear down and replace, how to recover from the host page
// deleting the mount point, and how the click-gating overlay behaves. It is
// a small state machine (see state.go) with four hard invariants:
//
//  1. render lock -- re-entrant mount operations are rejected; the lock is
//     released after a fixed cooldown, never synchronously, so rapid
//     repeated triggers collapse into one effective mount.
//  2. idempotent mount -- a container that carries the rendered marker with
//     its control still present turns a mount request into a no-op.
//  3. guard suppression -- while guarded, transaction rebuilds only refresh
//     the overlay; they never remount.
//  4. single remount on recovery -- one remount per container-loss event,
//     governed by a cooldown.
//
// Every remount path (hash change, force flag, container loss, heartbeat
// miss, click-time validation pass) funnels through one serialized queue, so
// near-simultaneous triggers cannot double-mount.
package render

import (
	"context"
	"sync"
	"time"

	"github.com/jetd7/snapembed/host"
	"github.com/jetd7/snapembed/log"
	"github.com/jetd7/snapembed/page"
	"github.com/jetd7/snapembed/preflight"
	"github.com/jetd7/snapembed/scheduler"
	"github.com/jetd7/snapembed/transaction"
	"github.com/jetd7/snapembed/widget"
)

// Config carries the identifiers and timing knobs of one orchestrator.
type Config struct {
	// Owner is the scheduler owner key for this container.
	Owner      string
	ClientID   string
	MerchantID string
	Theme      string

	DebounceWindow    time.Duration
	HeartbeatInterval time.Duration
	RenderCooldown    time.Duration
	RecoveryCooldown  time.Duration
	ReadinessInterval time.Duration
	ReadinessAttempts int
	OverlayRetryBase  time.Duration
	OverlayRetryCount int

	MinContainerWidth  float64
	MinContainerHeight float64
}

// Orchestrator drives the mount lifecycle of one container.
type Orchestrator struct {
	cfg       Config
	adapter   host.Adapter
	sdk       widget.SDK
	agg       *preflight.Aggregator
	sched     *scheduler.Scheduler
	observer  page.Observer
	callbacks widget.Callbacks
	logger    log.Logger

	ctx       context.Context
	debouncer *scheduler.Debouncer

	mu              sync.Mutex
	state           State
	lastHash        string
	renderAttempts  int
	renderLock      bool
	forceRefresh    bool
	recoveryArmed   bool
	heartbeatMisses int
	userInteracted  bool
	readinessActive bool
	queue           []remountRequest
	processing      bool
	stopHeartbeat   func()
	cancelSub       func()
	stopObserver    chan struct{}
}

// New creates an orchestrator. The callbacks are forwarded verbatim to every
// widget mount (the lifecycle tracker owns them).
func New(cfg Config, adapter host.Adapter, sdk widget.SDK, agg *preflight.Aggregator,
	sched *scheduler.Scheduler, observer page.Observer, callbacks widget.Callbacks, logger log.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		adapter:   adapter,
		sdk:       sdk,
		agg:       agg,
		sched:     sched,
		observer:  observer,
		callbacks: callbacks,
		logger:    log.OrNop(logger),
		state:     StateIdle,
	}
}

// Start subscribes to host changes and mutation events and performs the
// initial evaluation. It returns immediately; all work is timer-driven.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.ctx = ctx
	o.debouncer = scheduler.NewDebouncer(o.sched, o.cfg.Owner, o.cfg.DebounceWindow)
	o.stopObserver = make(chan struct{})
	stop := o.stopObserver
	o.mu.Unlock()

	o.cancelSub = o.adapter.Subscribe(o.onHostChange)

	if o.observer != nil {
		go o.observeLoop(stop)
	}

	o.evaluate()
}

// Stop tears everything down: subscription, observer loop, timers, overlay.
func (o *Orchestrator) Stop() {
	if o.cancelSub != nil {
		o.cancelSub()
		o.cancelSub = nil
	}

	o.mu.Lock()
	if o.stopObserver != nil {
		close(o.stopObserver)
		o.stopObserver = nil
	}
	o.mu.Unlock()

	o.deactivate()
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// RenderAttempts returns how many mount cycles completed.
func (o *Orchestrator) RenderAttempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.renderAttempts
}

// ForceRefresh arms the one-shot full-remount flag, honored on the next
// evaluation pass.
func (o *Orchestrator) ForceRefresh() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.forceRefresh = true
}

// Render requests a mount pass right now, bypassing the debounce window.
// Under the render lock and the idempotent-mount rule, immediate repeated
// calls collapse into at most one underlying mount.
func (o *Orchestrator) Render() {
	if !o.adapter.Selected() {
		return
	}

	o.mu.Lock()
	if o.state == StateIdle {
		o.sched.Resume(o.cfg.Owner)
		o.state = StateActiveUnmounted
	}
	o.mu.Unlock()

	o.mount(mountOptions{})
}

// onHostChange is the debounced entry for every host notification.
func (o *Orchestrator) onHostChange() {
	o.mu.Lock()
	debouncer := o.debouncer
	o.mu.Unlock()

	if debouncer == nil {
		return
	}

	// Deselection must not wait out the debounce window: timers need to die
	// before anything else runs for this container.
	if !o.adapter.Selected() {
		debouncer.Cancel()
		o.evaluate()

		return
	}

	// A prior deselection suspended the owner; the debounce window for the
	// reselection needs the owner live again to schedule at all.
	o.sched.Resume(o.cfg.Owner)
	debouncer.Trigger(o.evaluate)
}

// evaluate is the state dispatcher for selection and revalidation changes.
func (o *Orchestrator) evaluate() {
	if !o.adapter.Selected() {
		o.deactivate()

		return
	}

	o.mu.Lock()
	state := o.state
	force := o.forceRefresh
	o.mu.Unlock()

	switch state {
	case StateIdle:
		o.activate()
	case StateActiveUnmounted:
		o.ensureReadinessPoll()
	case StateMountedValid, StateMountedGuarded:
		o.revalidate(force)
	case StateMounting, StateReplacing:
		// A mount is in flight; the render lock serializes everything.
	}
}

// activate moves Idle to ActiveUnmounted and starts the readiness poll.
func (o *Orchestrator) activate() {
	o.sched.Resume(o.cfg.Owner)

	o.mu.Lock()
	o.state = StateActiveUnmounted
	o.mu.Unlock()

	o.logger.Log(o.ctx, log.LevelDebug, "method selected", log.String("owner", o.cfg.Owner))
	o.ensureReadinessPoll()
}

// deactivate handles deselection: cancel every pending timer for this
// container, remove overlay and messages, reset the render state.
func (o *Orchestrator) deactivate() {
	o.sched.Suspend(o.cfg.Owner)

	o.mu.Lock()
	o.state = StateIdle
	o.lastHash = ""
	o.renderAttempts = 0
	o.renderLock = false
	o.forceRefresh = false
	o.recoveryArmed = false
	o.heartbeatMisses = 0
	o.readinessActive = false
	o.queue = nil
	o.processing = false
	o.stopHeartbeat = nil
	o.mu.Unlock()

	if container := o.adapter.MountContainer(); container != nil {
		container.RemoveOverlay()
		container.ClearBanner()
		container.ClearMarker(markerRendered)
	}

	o.logger.Log(o.ctx, log.LevelDebug, "method deselected", log.String("owner", o.cfg.Owner))
}

// ---------------------------------------------------------------------------
// Readiness and mounting
// ---------------------------------------------------------------------------

// containerReady reports whether the mount container exists with stabilized
// layout and the widget library is loaded.
func (o *Orchestrator) containerReady() bool {
	container := o.adapter.MountContainer()
	if container == nil || !container.Present() {
		return false
	}

	width, height := container.Size()
	if width < o.cfg.MinContainerWidth || height < o.cfg.MinContainerHeight {
		return false
	}

	return o.sdk.Loaded()
}

// ensureReadinessPoll starts the bounded fixed-period poll unless one is
// already running. Past the ceiling it stops silently.
func (o *Orchestrator) ensureReadinessPoll() {
	o.mu.Lock()
	if o.readinessActive {
		o.mu.Unlock()

		return
	}

	o.readinessActive = true
	ctx := o.ctx
	o.mu.Unlock()

	o.sched.Run(ctx, o.cfg.Owner, scheduler.Task{
		// A held render lock counts as not-ready, so the poll keeps waiting
		// instead of handing its one mount request to a locked mount.
		Ready: func() bool {
			o.mu.Lock()
			locked := o.renderLock
			o.mu.Unlock()

			return !locked && o.containerReady()
		},
		OnReady: func() {
			o.mu.Lock()
			o.readinessActive = false
			o.mu.Unlock()

			o.mount(mountOptions{})
		},
		OnGiveUp: func() {
			o.mu.Lock()
			o.readinessActive = false
			o.mu.Unlock()

			o.logger.Log(ctx, log.LevelDebug, "dependency not ready, giving up",
				log.String("owner", o.cfg.Owner), log.Int("attempts", o.cfg.ReadinessAttempts))
		},
		Delay:       func(int) time.Duration { return o.cfg.ReadinessInterval },
		MaxAttempts: o.cfg.ReadinessAttempts,
	})
}

type mountOptions struct {
	force       bool
	replayClick bool
	fromQueue   bool
	request     remountRequest
}

// mount performs one guarded mount cycle. Invariants 1 and 2 live here.
func (o *Orchestrator) mount(opts mountOptions) {
	o.mu.Lock()

	if o.renderLock {
		o.mu.Unlock()

		if opts.fromQueue {
			// A queued replace must not be lost to the cooldown; try again
			// once the lock window passes.
			o.sched.After(o.cfg.Owner, o.cfg.RenderCooldown, func() {
				o.enqueue(opts.request)
			})
		}

		return
	}

	o.renderLock = true
	o.mu.Unlock()

	ctx := o.ctxNow()

	defer o.releaseLockLater()

	container := o.adapter.MountContainer()
	if container == nil || !o.containerReady() {
		o.mu.Lock()
		o.state = StateActiveUnmounted
		o.mu.Unlock()

		o.ensureReadinessPoll()

		return
	}

	result := o.agg.Preflight(ctx)

	// Idempotent mount: rendered marker plus a live control means there is
	// nothing to do except refresh gating.
	if !opts.force && container.Marker(markerRendered) != "" && container.ControlPresent() {
		o.finishMount(container, result, opts, false)

		return
	}

	o.mu.Lock()
	o.state = StateMounting
	o.mu.Unlock()

	if err := o.sdk.Init(ctx, o.cfg.ClientID); err != nil {
		o.logger.Log(ctx, log.LevelWarn, "widget init failed", log.Err(err))
		o.retreatToUnmounted()

		return
	}

	err := o.sdk.Mount(ctx, widget.MountRequest{
		MerchantID:  o.cfg.MerchantID,
		Theme:       o.cfg.Theme,
		Transaction: result.Snapshot,
		Target:      container,
		Callbacks:   o.callbacks,
	})
	if err != nil {
		o.logger.Log(ctx, log.LevelWarn, "widget mount failed", log.Err(err))
		o.retreatToUnmounted()

		return
	}

	o.finishMount(container, result, opts, true)
}

// retreatToUnmounted returns to ActiveUnmounted after a failed mount and
// lets the bounded readiness poll try again.
func (o *Orchestrator) retreatToUnmounted() {
	o.mu.Lock()
	o.state = StateActiveUnmounted
	o.mu.Unlock()

	o.ensureReadinessPoll()
}

// finishMount records the mount outcome, gates via the overlay, and starts
// the heartbeat.
func (o *Orchestrator) finishMount(container page.Container, result preflight.Result, opts mountOptions, mounted bool) {
	container.SetMarker(markerRendered, "1")

	o.mu.Lock()
	o.lastHash = transaction.StableHash(result.Snapshot)
	o.forceRefresh = false
	o.heartbeatMisses = 0

	if mounted {
		o.renderAttempts++
	}

	if result.OK {
		o.state = StateMountedValid
	} else {
		o.state = StateMountedGuarded
	}

	message := o.gateMessageLocked(result)
	o.mu.Unlock()

	o.placeOverlay(container, message)
	o.ensureHeartbeat()

	if opts.replayClick {
		container.ReplayClick()
	}
}

// releaseLockLater releases the render lock after the cooldown window. The
// lock is never released synchronously, so triggers racing the mount keep
// collapsing into it.
func (o *Orchestrator) releaseLockLater() {
	o.sched.After(o.cfg.Owner, o.cfg.RenderCooldown, func() {
		o.mu.Lock()
		o.renderLock = false
		o.mu.Unlock()
	})
}

// gateMessageLocked picks the overlay message. Field warnings stay
// suppressed until the shopper has interacted once; host reasons always show.
func (o *Orchestrator) gateMessageLocked(result preflight.Result) string {
	if result.OK {
		return ""
	}

	if len(result.Host.Reasons) > 0 {
		return result.Host.Reasons[0]
	}

	if o.userInteracted && len(result.Messages) > 0 {
		return result.Messages[0]
	}

	return ""
}

// ---------------------------------------------------------------------------
// Revalidation, guarding, and the click gate
// ---------------------------------------------------------------------------

// revalidate handles a debounced host change while mounted.
func (o *Orchestrator) revalidate(force bool) {
	ctx := o.ctxNow()
	result := o.agg.Preflight(ctx)
	hash := transaction.StableHash(result.Snapshot)

	o.mu.Lock()
	state := o.state
	changed := hash != o.lastHash
	o.mu.Unlock()

	container := o.adapter.MountContainer()
	if container == nil || !container.Present() {
		// The observer path owns loss recovery; nothing to refresh here.
		return
	}

	if state == StateMountedGuarded {
		// Guard suppression: no remount while guarded, only gating updates,
		// unless the container itself disappeared (handled above).
		o.mu.Lock()
		message := o.gateMessageLocked(result)

		if result.OK && !changed {
			// Validation recovered and the basis is untouched; drop the
			// guard without touching the mounted widget.
			o.state = StateMountedValid
		}
		o.mu.Unlock()

		container.RefreshOverlay(message)

		return
	}

	if changed || force {
		reason := reasonHashChanged
		if force && !changed {
			reason = reasonForceRefresh
		}

		o.enqueue(remountRequest{reason: reason})

		return
	}

	o.mu.Lock()
	if !result.OK {
		o.state = StateMountedGuarded
	}
	message := o.gateMessageLocked(result)
	o.mu.Unlock()

	container.RefreshOverlay(message)
}

// Click is the overlay click handler. It forces the user-interacted flag,
// re-runs preflight against live values, and either refreshes the gate or
// performs exactly one replace cycle with a click replay.
func (o *Orchestrator) Click() {
	o.mu.Lock()
	o.userInteracted = true
	ctx := o.ctx
	mounted := o.state.mounted()
	o.mu.Unlock()

	if !mounted {
		return
	}

	result := o.agg.Preflight(ctx)

	if !result.OK {
		o.mu.Lock()
		o.state = StateMountedGuarded
		message := o.gateMessageLocked(result)
		o.mu.Unlock()

		if container := o.adapter.MountContainer(); container != nil {
			container.RefreshOverlay(message)
			container.ShowBanner(message)
		}

		return
	}

	if container := o.adapter.MountContainer(); container != nil {
		container.ClearBanner()
	}

	o.enqueue(remountRequest{reason: reasonClickPassed, replayClick: true})
}

// ---------------------------------------------------------------------------
// Serialized remount queue
// ---------------------------------------------------------------------------

// enqueue adds a remount request and processes the queue unless someone
// already is. Requests arriving mid-replace merge into the pending one.
func (o *Orchestrator) enqueue(req remountRequest) {
	o.mu.Lock()

	if !o.state.mounted() && o.state != StateReplacing && o.state != StateActiveUnmounted {
		o.mu.Unlock()

		return
	}

	o.queue = append(o.queue, req)

	if o.processing {
		o.mu.Unlock()

		return
	}

	o.processing = true
	o.mu.Unlock()

	o.processQueue()
}

func (o *Orchestrator) processQueue() {
	for {
		o.mu.Lock()
		if len(o.queue) == 0 || o.state == StateIdle {
			o.processing = false
			o.queue = nil
			o.mu.Unlock()

			return
		}

		merged := o.queue[0]
		for _, req := range o.queue[1:] {
			merged.replayClick = merged.replayClick || req.replayClick
		}

		o.queue = nil
		o.state = StateReplacing
		ctx := o.ctx
		o.mu.Unlock()

		o.logger.Log(ctx, log.LevelDebug, "replacing mount",
			log.String("owner", o.cfg.Owner), log.String("reason", string(merged.reason)))

		if container := o.adapter.MountContainer(); container != nil {
			container.ClearMarker(markerRendered)
			container.RemoveOverlay()
		}

		o.mount(mountOptions{force: true, replayClick: merged.replayClick, fromQueue: true, request: merged})
	}
}

// ---------------------------------------------------------------------------
// Recovery: mutation events and heartbeat
// ---------------------------------------------------------------------------

func (o *Orchestrator) observeLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-o.observer.Events():
			if !ok {
				return
			}

			switch event.Kind {
			case page.HostLost:
				o.onHostLost()
			case page.HostRestored:
				o.evaluate()
			}
		}
	}
}

// onHostLost schedules exactly one remount per loss event; the recovery
// cooldown absorbs bursty mutation storms.
func (o *Orchestrator) onHostLost() {
	o.mu.Lock()

	if !o.state.mounted() || o.recoveryArmed {
		o.mu.Unlock()

		return
	}

	o.recoveryArmed = true
	ctx := o.ctx
	o.mu.Unlock()

	o.logger.Log(ctx, log.LevelInfo, "mount container lost", log.String("owner", o.cfg.Owner))

	if container := o.adapter.MountContainer(); container != nil {
		container.ClearMarker(markerRendered)
	}

	o.enqueue(remountRequest{reason: reasonContainerLost})

	o.sched.After(o.cfg.Owner, o.cfg.RecoveryCooldown, func() {
		o.mu.Lock()
		o.recoveryArmed = false
		o.mu.Unlock()
	})
}

// ensureHeartbeat starts the periodic presence check once per active period.
func (o *Orchestrator) ensureHeartbeat() {
	o.mu.Lock()
	if o.stopHeartbeat != nil {
		o.mu.Unlock()

		return
	}

	stop := o.sched.Every(o.cfg.Owner, o.cfg.HeartbeatInterval, o.heartbeat)
	o.stopHeartbeat = stop
	o.mu.Unlock()
}

// heartbeat confirms the widget control is still present. Two consecutive
// misses trigger recovery; a single miss does too when preflight already
// passes, because a valid mount with no control is unambiguously broken.
func (o *Orchestrator) heartbeat() {
	o.mu.Lock()
	state := o.state
	ctx := o.ctx
	o.mu.Unlock()

	if !state.mounted() {
		return
	}

	container := o.adapter.MountContainer()
	if container != nil && container.ControlPresent() {
		o.mu.Lock()
		o.heartbeatMisses = 0
		o.mu.Unlock()

		return
	}

	o.mu.Lock()
	o.heartbeatMisses++
	misses := o.heartbeatMisses
	o.mu.Unlock()

	shouldRecover := misses >= 2
	if !shouldRecover && misses == 1 {
		shouldRecover = o.agg.Preflight(ctx).OK
	}

	if !shouldRecover {
		return
	}

	o.mu.Lock()
	o.heartbeatMisses = 0
	o.mu.Unlock()

	if container != nil {
		container.ClearMarker(markerRendered)
	}

	o.enqueue(remountRequest{reason: reasonHeartbeatMiss})
}

func (o *Orchestrator) ctxNow() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx != nil {
		return o.ctx
	}

	return context.Background()
}
