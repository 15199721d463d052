package quote

import (
	"fmt"
	"strings"

	"github.com/makercost/makercost/internal/pricing"
	"github.com/makercost/makercost/internal/shared"
)

// ComputeTotal composes the product breakdowns into one quote-level amount:
// the sum of each product's gross revenue, less the discount, plus shipping
// unless shipping is free. Totals never go negative; a negative result is
// clamped to zero and reported so the caller can surface it.
func ComputeTotal(q Quote, rates pricing.Rates) (total float64, clamped bool) {
	for _, p := range q.Products {
		b := pricing.Compute(p.ProductInput, rates)
		total += b.Revenue
	}
	if q.Discount != nil {
		switch q.Discount.Type {
		case DiscountPercentage:
			total -= total * q.Discount.Amount / 100
		case DiscountFixed:
			total -= q.Discount.Amount
		}
	}
	if q.Shipping != nil && !q.Shipping.IsFree {
		total += q.Shipping.Charge
	}
	if total < 0 {
		return 0, true
	}
	return total, false
}

// Breakdowns computes the per-product breakdown for display.
func Breakdowns(q Quote, rates pricing.Rates) []pricing.Breakdown {
	out := make([]pricing.Breakdown, len(q.Products))
	for i, p := range q.Products {
		out[i] = pricing.Compute(p.ProductInput, rates)
	}
	return out
}

// Recompute refreshes the cached total from the quote's products.
func (q *Quote) Recompute(rates pricing.Rates) {
	q.TotalAmount, q.TotalClamped = ComputeTotal(*q, rates)
}

// NewNumber generates the externally visible quote number: a sortable month
// prefix plus a uuid-derived suffix long enough to avoid collision without a
// server-side sequence, e.g. Q-2608-3FA2C1.
func NewNumber(clock shared.Clock, ids shared.IDGenerator) string {
	id := ids.NewID()
	suffix := strings.ToUpper(fmt.Sprintf("%x", id[:3]))
	return fmt.Sprintf("Q-%s-%s", clock.Now().Format("0601"), suffix)
}
