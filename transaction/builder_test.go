package transaction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSources is a scriptable Sources implementation.
type fakeSources struct {
	cartCustomer     Customer
	cartCustomerOK   bool
	checkoutCustomer Customer
	checkoutOK       bool
	formCustomer     Customer
	formOK           bool
	total            decimal.Decimal
	totalOK          bool
	shipping         decimal.Decimal
	shippingOK       bool
	products         []Product
	productsOK       bool
	deliveryDate     string
	deliveryOK       bool
}

func (f *fakeSources) CartCustomer() (Customer, bool)     { return f.cartCustomer, f.cartCustomerOK }
func (f *fakeSources) CheckoutCustomer() (Customer, bool) { return f.checkoutCustomer, f.checkoutOK }
func (f *fakeSources) FormCustomer() (Customer, bool)     { return f.formCustomer, f.formOK }
func (f *fakeSources) CartTotal() (decimal.Decimal, bool) { return f.total, f.totalOK }
func (f *fakeSources) ShippingCost() (decimal.Decimal, bool) {
	return f.shipping, f.shippingOK
}
func (f *fakeSources) Products() ([]Product, bool)  { return f.products, f.productsOK }
func (f *fakeSources) DeliveryDate() (string, bool) { return f.deliveryDate, f.deliveryOK }

func fixedBuilder(sources Sources) *Builder {
	b := NewBuilder(sources, Fallback{})
	b.now = func() time.Time { return time.Unix(1700000000, 0) }
	b.twoDigs = func() int { return 42 }

	return b
}

// tickingBuilder advances the clock one second per generated invoice, so
// consecutive numbers can never collide.
func tickingBuilder(sources Sources) *Builder {
	b := NewBuilder(sources, Fallback{})

	var ticks int64

	b.now = func() time.Time {
		ticks++

		return time.Unix(1700000000+ticks, 0)
	}
	b.twoDigs = func() int { return 7 }

	return b
}

// ---------------------------------------------------------------------------
// Source priority and monetary normalization
// ---------------------------------------------------------------------------

func TestBuildSourcePriority(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{
		cartCustomer:   Customer{FirstName: "Ada"},
		cartCustomerOK: true,
		checkoutCustomer: Customer{
			FirstName: "Shadowed",
			LastName:  "Lovelace",
		},
		checkoutOK:   true,
		formCustomer: Customer{Email: "ada@example.com", Postcode: "SW1A 1AA"},
		formOK:       true,
	}

	b := NewBuilder(sources, Fallback{Customer: Customer{Country: "GB"}})
	snap := b.Build()

	// First non-empty value per field wins across the chain.
	assert.Equal(t, "Ada", snap.Customer.FirstName)
	assert.Equal(t, "Lovelace", snap.Customer.LastName)
	assert.Equal(t, "ada@example.com", snap.Customer.Email)
	assert.Equal(t, "SW1A 1AA", snap.Customer.Postcode)
	assert.Equal(t, "GB", snap.Customer.Country)
	assert.Equal(t, StatusPending, snap.ValidationStatus)
}

func TestBuildFallsBackToStaticValues(t *testing.T) {
	t.Parallel()

	fallback := Fallback{
		Customer: Customer{FirstName: "Fall", LastName: "Back", Email: "fb@example.com"},
		Total:    decimal.NewFromFloat(199.99),
	}

	snap := NewBuilder(&fakeSources{}, fallback).Build()

	assert.Equal(t, "Fall", snap.Customer.FirstName)
	assert.Equal(t, "199.99", snap.Total.StringFixed(2))
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name     string
		in       decimal.Decimal
		expected string
	}{
		{name: "regular amount untouched", in: decimal.NewFromFloat(150.00), expected: "150.00"},
		{name: "minor units divided", in: decimal.NewFromInt(15000), expected: "150.00"},
		{name: "just above floor divided", in: decimal.NewFromInt(10001), expected: "100.01"},
		{name: "floor itself untouched", in: decimal.NewFromInt(10000), expected: "10000.00"},
		{name: "ceiling itself untouched", in: decimal.NewFromInt(1000000), expected: "1000000.00"},
		{name: "decimal in window untouched", in: decimal.NewFromFloat(10500.50), expected: "10500.50"},
		{name: "rounded to two places", in: decimal.NewFromFloat(99.999), expected: "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, normalizeAmount(tt.in).StringFixed(2))
		})
	}
}

// ---------------------------------------------------------------------------
// Invoice stability across the economic basis
// ---------------------------------------------------------------------------

func TestInvoiceStableWhileBasisUnchanged(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{
		shipping:   decimal.NewFromFloat(4.99),
		shippingOK: true,
		products: []Product{
			{ProductID: "p1", Quantity: 1, Price: decimal.NewFromFloat(50)},
		},
		productsOK: true,
		total:      decimal.NewFromFloat(54.99),
		totalOK:    true,
	}

	b := fixedBuilder(sources)

	first := b.Build()
	second := b.Build()

	require.NotEmpty(t, first.InvoiceNumber)
	assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)

	// Quantity changes leave the (shippingCost, productID, price) basis
	// untouched, so the invoice survives.
	sources.products[0].Quantity = 3
	assert.Equal(t, first.InvoiceNumber, b.Build().InvoiceNumber)
}

func TestInvoiceRegeneratesOnBasisChange(t *testing.T) {
	t.Parallel()

	sources := &fakeSources{
		shipping:   decimal.NewFromFloat(4.99),
		shippingOK: true,
	}

	b := tickingBuilder(sources)

	first := b.Build().InvoiceNumber

	sources.shipping = decimal.NewFromFloat(9.99)
	second := b.Build().InvoiceNumber

	assert.NotEqual(t, first, second)
}

func TestResetInvoiceForcesRegeneration(t *testing.T) {
	t.Parallel()

	b := tickingBuilder(&fakeSources{})

	first := b.Build().InvoiceNumber
	assert.Equal(t, first, b.Build().InvoiceNumber)

	b.ResetInvoice()

	// Same basis, fresh number.
	assert.NotEqual(t, first, b.Build().InvoiceNumber)
}

func TestGeneratedInvoiceMatchesFormat(t *testing.T) {
	t.Parallel()

	b := fixedBuilder(&fakeSources{})
	snap := b.Build()

	assert.Regexp(t, `^[A-Za-z0-9\-._/]{1,10}$`, snap.InvoiceNumber)
	assert.True(t, len(snap.InvoiceNumber) <= 10)
}

// ---------------------------------------------------------------------------
// Stable hash
// ---------------------------------------------------------------------------

func TestStableHashIgnoresStatusAndTimestamps(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		ShippingCost: decimal.NewFromFloat(4.99),
		Products: []Product{
			{ProductID: "p1", Quantity: 2, Price: decimal.NewFromFloat(25)},
		},
	}

	before := StableHash(snap)

	snap.UpdateValidationStatus([]FieldError{{Field: "email", Message: "bad"}}, time.Now())
	snap.InvoiceNumber = "changed"

	assert.Equal(t, before, StableHash(snap))
}

func TestStableHashChangesWithBasis(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{name: "shipping cost", mutate: func(s *Snapshot) { s.ShippingCost = decimal.NewFromInt(10) }},
		{name: "price", mutate: func(s *Snapshot) { s.Products[0].Price = decimal.NewFromInt(30) }},
		{name: "quantity", mutate: func(s *Snapshot) { s.Products[0].Quantity = 9 }},
		{name: "product added", mutate: func(s *Snapshot) {
			s.Products = append(s.Products, Product{ProductID: "p2", Quantity: 1, Price: decimal.NewFromInt(5)})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			snap := Snapshot{
				ShippingCost: decimal.NewFromFloat(4.99),
				Products: []Product{
					{ProductID: "p1", Quantity: 2, Price: decimal.NewFromFloat(25)},
				},
			}

			before := StableHash(snap)
			tt.mutate(&snap)

			assert.NotEqual(t, before, StableHash(snap))
		})
	}
}

func TestStableHashIgnoresProductOrder(t *testing.T) {
	t.Parallel()

	a := Snapshot{Products: []Product{
		{ProductID: "a", Quantity: 1, Price: decimal.NewFromInt(1)},
		{ProductID: "b", Quantity: 2, Price: decimal.NewFromInt(2)},
	}}
	b := Snapshot{Products: []Product{
		{ProductID: "b", Quantity: 2, Price: decimal.NewFromInt(2)},
		{ProductID: "a", Quantity: 1, Price: decimal.NewFromInt(1)},
	}}

	assert.Equal(t, StableHash(a), StableHash(b))
}
