// Package preflight merges host-platform state with transaction validation
// into the single pass/fail gate consulted before the widget may be used.
// Preflight is read-only: repeated calls never mutate the page.
package preflight

import (
	"context"
	"time"

	"github.com/jetd7/snapembed/host"
	"github.com/jetd7/snapembed/transaction"
)

// HostResult is the host half of the gate.
type HostResult struct {
	OK bool
	// Reasons lists the failures in encounter order: terms, shipping, then
	// visible error banners.
	Reasons []string
}

// Result is one full preflight pass.
type Result struct {
	OK       bool
	Message  string
	Messages []string
	Host     HostResult
	Snapshot transaction.Snapshot
}

// Aggregator evaluates the gate against a builder and a host adapter.
type Aggregator struct {
	builder *transaction.Builder
	adapter host.Adapter
	bounds  transaction.Bounds
	now     func() time.Time
}

// New creates an aggregator.
func New(builder *transaction.Builder, adapter host.Adapter, bounds transaction.Bounds) *Aggregator {
	return &Aggregator{
		builder: builder,
		adapter: adapter,
		bounds:  bounds,
		now:     time.Now,
	}
}

// Preflight builds a fresh snapshot, validates it, and combines the result
// with the host state. Message is the first host reason, else the first
// transaction message, else empty.
func (a *Aggregator) Preflight(_ context.Context) Result {
	hostResult := CollectHostState(a.adapter.State())

	snap := a.builder.Build()
	fieldErrors := transaction.Validate(snap, a.bounds)
	snap.UpdateValidationStatus(fieldErrors, a.now())

	messages := transaction.Messages(fieldErrors)

	result := Result{
		OK:       hostResult.OK && len(fieldErrors) == 0,
		Messages: messages,
		Host:     hostResult,
		Snapshot: snap,
	}

	switch {
	case len(hostResult.Reasons) > 0:
		result.Message = hostResult.Reasons[0]
	case len(messages) > 0:
		result.Message = messages[0]
	}

	return result
}

// Bounds exposes the validation bounds for callers that re-validate
// standalone snapshots (the click gate does).
func (a *Aggregator) Bounds() transaction.Bounds {
	return a.bounds
}

// CollectHostState evaluates the host half of the gate. A terms banner is
// ignored once the terms control actually reads checked; it is a leftover
// from a previous failed submission.
func CollectHostState(state host.State) HostResult {
	var reasons []string

	if state.TermsPresent && !state.TermsAccepted {
		reasons = append(reasons, "please accept the terms and conditions")
	}

	if !state.ShippingResolved() {
		if state.NoShipping {
			reasons = append(reasons, "no shipping method is available for this order")
		} else {
			reasons = append(reasons, "please select a shipping method")
		}
	}

	for _, banner := range state.ErrorBanners {
		if banner.Terms && state.TermsAccepted {
			continue
		}

		reasons = append(reasons, banner.Text)
	}

	return HostResult{OK: len(reasons) == 0, Reasons: reasons}
}
