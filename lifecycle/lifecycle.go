// Package lifecycle tracks the remote financing application through its
// asynchronous states, persists them, gates the host's final submission, and
// finalizes the order exactly once on success.
package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the remote application's lifecycle state.
type Status string

const (
	// StatusNone means no application has been started.
	StatusNone Status = "none"
	// StatusPending means an application is in progress.
	StatusPending Status = "pending"
	// StatusApproved means approved but a signing step remains.
	StatusApproved Status = "approved"
	// StatusSuccess is terminal: signed and finalized (or finalizing).
	StatusSuccess Status = "success"
	// StatusDenied is the terminal negative outcome.
	StatusDenied Status = "denied"
	// StatusError means the application failed; the shopper may pick another
	// method.
	StatusError Status = "error"
)

// State is the persisted application record.
type State struct {
	ID            string    `json:"id"`
	Token         string    `json:"token"`
	Status        Status    `json:"status"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Submitted     bool      `json:"submitted"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// blocksSubmission reports whether this status keeps the order from being
// placed through the host's native path.
func (s Status) blocksSubmission() bool {
	return s == StatusPending || s == StatusDenied
}

func encodeState(state State) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func decodeState(raw string) (State, error) {
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, err
	}

	return state, nil
}

// LimitsGuard is the cross-cutting basket-limits constraint. An invalid
// guard blocks submission independent of application status.
type LimitsGuard struct {
	Invalid bool
	Min     decimal.Decimal
	Max     decimal.Decimal
	Total   decimal.Decimal
}

// CheckLimits evaluates the basket total against the financing bounds.
func CheckLimits(total, min, max decimal.Decimal) LimitsGuard {
	invalid := min.IsPositive() && total.LessThan(min) ||
		max.IsPositive() && total.GreaterThan(max)

	return LimitsGuard{Invalid: invalid, Min: min, Max: max, Total: total}
}
