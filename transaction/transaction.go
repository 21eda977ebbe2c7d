// Package transaction builds the canonical order snapshot the widget is
// mounted with. Customer and cart data arrive from several unreliable
// sources; the builder resolves them by priority, normalizes money, and
// keeps the invoice number stable while the economic basis is unchanged.
package transaction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ValidationStatus is the lifecycle state of a snapshot's validation.
type ValidationStatus string

const (
	// StatusPending marks a snapshot that has not been validated yet.
	StatusPending ValidationStatus = "pending"
	// StatusValid marks a snapshot whose last validation passed.
	StatusValid ValidationStatus = "valid"
	// StatusInvalid marks a snapshot whose last validation failed.
	StatusInvalid ValidationStatus = "invalid"
)

// Product is one cart line.
type Product struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Customer carries the billing fields the financing application needs.
type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	City      string `json:"city"`
	Address   string `json:"address"`
}

// Snapshot is the canonical transaction handed to the widget. It lives only
// for the current page; nothing here is persisted.
type Snapshot struct {
	DeliveryDate       string           `json:"deliveryDate"`
	ShippingCost       decimal.Decimal  `json:"shippingCost"`
	Products           []Product        `json:"products"`
	Customer           Customer         `json:"customer"`
	Total              decimal.Decimal  `json:"total"`
	InvoiceNumber      string           `json:"invoiceNumber"`
	ValidationStatus   ValidationStatus `json:"validationStatus"`
	LastValidatedAt    time.Time        `json:"lastValidatedAt"`
	ValidationMessages []string         `json:"validationMessages"`
}

// UpdateValidationStatus records a validation outcome. It is the only
// mutation a snapshot supports after Build.
func (s *Snapshot) UpdateValidationStatus(fieldErrors []FieldError, at time.Time) {
	s.LastValidatedAt = at
	s.ValidationMessages = Messages(fieldErrors)

	if len(fieldErrors) == 0 {
		s.ValidationStatus = StatusValid
	} else {
		s.ValidationStatus = StatusInvalid
	}
}

// FieldError is one user-fixable validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Messages extracts the message strings in order.
func Messages(fieldErrors []FieldError) []string {
	if len(fieldErrors) == 0 {
		return nil
	}

	out := make([]string, len(fieldErrors))
	for i, fe := range fieldErrors {
		out[i] = fe.Message
	}

	return out
}
