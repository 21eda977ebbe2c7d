package transaction

import (
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sources is the best-available view of the host page. Implementations
// return ok=false (or zero values) when a source cannot resolve; the builder
// falls through to the next priority.
type Sources interface {
	// CartCustomer reads the reactive cart/customer store.
	CartCustomer() (Customer, bool)
	// CheckoutCustomer reads the reactive checkout store.
	CheckoutCustomer() (Customer, bool)
	// FormCustomer reads billing fields directly from the form.
	FormCustomer() (Customer, bool)
	// CartTotal reads the reactive cart total.
	CartTotal() (decimal.Decimal, bool)
	// ShippingCost reads the selected shipping cost.
	ShippingCost() (decimal.Decimal, bool)
	// Products reads the cart lines.
	Products() ([]Product, bool)
	// DeliveryDate reads the promised delivery date, if the host exposes one.
	DeliveryDate() (string, bool)
}

// Fallback supplies the static last-resort values.
type Fallback struct {
	Customer Customer
	Total    decimal.Decimal
}

// Builder produces snapshots and owns the invoice-number cache.
type Builder struct {
	sources  Sources
	fallback Fallback

	mu           sync.Mutex
	invoiceBasis string
	invoice      string

	now     func() time.Time
	twoDigs func() int
}

// NewBuilder creates a builder over the given sources.
func NewBuilder(sources Sources, fallback Fallback) *Builder {
	return &Builder{
		sources:  sources,
		fallback: fallback,
		now:      time.Now,
		twoDigs:  func() int { return rand.IntN(100) }, // #nosec G404 -- invoice suffix only
	}
}

// minor-unit detection window: an integer total in this open interval is
// assumed to be expressed in cents.
var (
	minorUnitFloor   = decimal.NewFromInt(10000)
	minorUnitCeiling = decimal.NewFromInt(1000000)
	oneHundred       = decimal.NewFromInt(100)
)

// Build resolves customer and cart data by source priority and returns a
// fresh snapshot carrying the cached invoice number for the current
// economic basis.
func (b *Builder) Build() Snapshot {
	customer := b.resolveCustomer()
	total := b.resolveTotal()
	shipping := b.resolveShipping()

	var products []Product
	if b.sources != nil {
		if p, ok := b.sources.Products(); ok {
			products = p
		}
	}

	snap := Snapshot{
		ShippingCost:     shipping,
		Products:         products,
		Customer:         customer,
		Total:            total,
		ValidationStatus: StatusPending,
	}

	if b.sources != nil {
		if date, ok := b.sources.DeliveryDate(); ok {
			snap.DeliveryDate = date
		}
	}

	snap.InvoiceNumber = b.invoiceFor(basisKey(snap))

	return snap
}

// ResetInvoice clears the invoice cache so the next Build generates a new
// number regardless of the economic basis. Called when a new remote
// application starts.
func (b *Builder) ResetInvoice() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.invoiceBasis = ""
	b.invoice = ""
}

// invoiceFor returns the cached invoice when the basis is unchanged, else a
// freshly generated one cached against the new basis.
func (b *Builder) invoiceFor(basis string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.invoice != "" && b.invoiceBasis == basis {
		return b.invoice
	}

	b.invoice = b.generateInvoice()
	b.invoiceBasis = basis

	return b.invoice
}

// generateInvoice builds a timestamp-derived number with a random two-digit
// suffix, truncated to the 10-character invoice format.
func (b *Builder) generateInvoice() string {
	stamp := strconv.FormatInt(b.now().Unix(), 36)
	suffix := strconv.Itoa(b.twoDigs())

	if len(suffix) < 2 {
		suffix = "0" + suffix
	}

	invoice := stamp + suffix
	if len(invoice) > 10 {
		invoice = invoice[len(invoice)-10:]
	}

	return invoice
}

func (b *Builder) resolveCustomer() Customer {
	chain := make([]Customer, 0, 4)

	if b.sources != nil {
		if c, ok := b.sources.CartCustomer(); ok {
			chain = append(chain, c)
		}

		if c, ok := b.sources.CheckoutCustomer(); ok {
			chain = append(chain, c)
		}

		if c, ok := b.sources.FormCustomer(); ok {
			chain = append(chain, c)
		}
	}

	chain = append(chain, b.fallback.Customer)

	return mergeCustomers(chain)
}

// mergeCustomers takes the first non-empty value per field across the
// priority chain, so a store that knows the email but not the postcode does
// not shadow a form that knows the postcode.
func mergeCustomers(chain []Customer) Customer {
	var merged Customer

	pick := func(dst *string, src string) {
		if *dst == "" && strings.TrimSpace(src) != "" {
			*dst = strings.TrimSpace(src)
		}
	}

	for _, c := range chain {
		pick(&merged.FirstName, c.FirstName)
		pick(&merged.LastName, c.LastName)
		pick(&merged.Email, c.Email)
		pick(&merged.Postcode, c.Postcode)
		pick(&merged.Country, c.Country)
		pick(&merged.City, c.City)
		pick(&merged.Address, c.Address)
	}

	return merged
}

func (b *Builder) resolveTotal() decimal.Decimal {
	if b.sources != nil {
		if total, ok := b.sources.CartTotal(); ok {
			return normalizeAmount(total)
		}
	}

	return normalizeAmount(b.fallback.Total)
}

func (b *Builder) resolveShipping() decimal.Decimal {
	if b.sources != nil {
		if cost, ok := b.sources.ShippingCost(); ok {
			return normalizeAmount(cost)
		}
	}

	return decimal.Zero
}

// normalizeAmount divides integer minor-unit totals by 100 and rounds to two
// decimal places.
func normalizeAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.IsInteger() && amount.GreaterThan(minorUnitFloor) && amount.LessThan(minorUnitCeiling) {
		amount = amount.Div(oneHundred)
	}

	return amount.Round(2)
}

// basisKey serializes the economic basis: shipping cost plus the
// (productID, price) pairs. Quantity and timestamps are excluded so invoice
// numbers survive rebuilds that change nothing the financer prices on.
func basisKey(snap Snapshot) string {
	var sb strings.Builder

	sb.WriteString(snap.ShippingCost.StringFixed(2))

	for _, p := range sortedProducts(snap.Products) {
		sb.WriteByte('|')
		sb.WriteString(p.ProductID)
		sb.WriteByte(':')
		sb.WriteString(p.Price.StringFixed(2))
	}

	return sb.String()
}

// StableHash is the orchestrator's change-detection key: shipping cost plus
// (productID, price, quantity). Validation status and timestamps never feed
// it, so re-validation without genuine change does not signal "changed".
func StableHash(snap Snapshot) string {
	var sb strings.Builder

	sb.WriteString(snap.ShippingCost.StringFixed(2))

	for _, p := range sortedProducts(snap.Products) {
		sb.WriteByte('|')
		sb.WriteString(p.ProductID)
		sb.WriteByte(':')
		sb.WriteString(p.Price.StringFixed(2))
		sb.WriteByte('x')
		sb.WriteString(strconv.Itoa(p.Quantity))
	}

	return sb.String()
}

func sortedProducts(products []Product) []Product {
	out := make([]Product, len(products))
	copy(out, products)

	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })

	return out
}
