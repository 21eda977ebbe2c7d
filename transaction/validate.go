package transaction

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	invoicePattern = regexp.MustCompile(`^[A-Za-z0-9\-._/]{1,10}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// ukPostcodePattern is deliberately permissive about spacing; outward plus
	// inward code, e.g. "SW1A 1AA" or "m11aa".
	ukPostcodePattern = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9][A-Za-z0-9]?\s*[0-9][A-Za-z]{2}$`)
)

// Bounds are the financing constraints a snapshot validates against.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
	// PostcodeFormat enables a country-specific postcode pattern when set
	// (currently only "UK").
	PostcodeFormat string
}

// Validate checks field completeness and amount bounds. It returns the
// failures in check order, empty iff everything passes.
func Validate(snap Snapshot, bounds Bounds) []FieldError {
	var errs []FieldError

	if !invoicePattern.MatchString(snap.InvoiceNumber) {
		errs = append(errs, FieldError{
			Field:   "invoiceNumber",
			Message: "invoice number must be 1-10 characters of letters, digits, or -._/",
		})
	}

	if snap.Customer.FirstName == "" {
		errs = append(errs, FieldError{Field: "firstName", Message: "first name is required"})
	}

	if snap.Customer.LastName == "" {
		errs = append(errs, FieldError{Field: "lastName", Message: "last name is required"})
	}

	if !emailPattern.MatchString(snap.Customer.Email) {
		errs = append(errs, FieldError{Field: "email", Message: "a valid email address is required"})
	}

	errs = append(errs, validatePostcode(snap.Customer.Postcode, bounds.PostcodeFormat)...)
	errs = append(errs, validateBounds(snap.Total, bounds)...)

	return errs
}

func validatePostcode(postcode, format string) []FieldError {
	if postcode == "" {
		return []FieldError{{Field: "postcode", Message: "postcode is required"}}
	}

	if format == "UK" && !ukPostcodePattern.MatchString(postcode) {
		return []FieldError{{Field: "postcode", Message: "postcode is not a valid UK postcode"}}
	}

	return nil
}

// validateBounds reports out-of-range totals with the literal bound values
// so the shopper sees the actual limits.
func validateBounds(total decimal.Decimal, bounds Bounds) []FieldError {
	if bounds.Min.IsPositive() && total.LessThan(bounds.Min) {
		return []FieldError{{
			Field:   "total",
			Message: fmt.Sprintf("order total %s is below the minimum financed amount of %s", total.StringFixed(2), bounds.Min.String()),
		}}
	}

	if bounds.Max.IsPositive() && total.GreaterThan(bounds.Max) {
		return []FieldError{{
			Field:   "total",
			Message: fmt.Sprintf("order total %s is above the maximum financed amount of %s", total.StringFixed(2), bounds.Max.String()),
		}}
	}

	return nil
}
