package quote

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/makercost/makercost/internal/pricing"
	"github.com/makercost/makercost/internal/shared"
)

func productWithRevenue(amount float64) Product {
	return Product{
		ID: uuid.New(),
		ProductInput: pricing.ProductInput{
			SalePrice: pricing.SalePrice{Amount: amount, UnitsCount: 1, IsPerUnit: true},
		},
	}
}

func TestComputeTotalDiscountAndShipping(t *testing.T) {
	q := Quote{
		Products: []Product{productWithRevenue(100), productWithRevenue(100)},
		Discount: &Discount{Type: DiscountPercentage, Amount: 10},
		Shipping: &Shipping{Charge: 15},
	}

	total, clamped := ComputeTotal(q, pricing.Rates{})
	assert.InDelta(t, 195.0, total, 1e-9)
	assert.False(t, clamped)
}

func TestComputeTotalFixedDiscount(t *testing.T) {
	q := Quote{
		Products: []Product{productWithRevenue(100)},
		Discount: &Discount{Type: DiscountFixed, Amount: 25},
	}

	total, clamped := ComputeTotal(q, pricing.Rates{})
	assert.InDelta(t, 75.0, total, 1e-9)
	assert.False(t, clamped)
}

func TestComputeTotalFreeShipping(t *testing.T) {
	q := Quote{
		Products: []Product{productWithRevenue(50)},
		Shipping: &Shipping{IsFree: true, Charge: 15},
	}

	total, _ := ComputeTotal(q, pricing.Rates{})
	assert.InDelta(t, 50.0, total, 1e-9)
}

func TestComputeTotalNeverNegative(t *testing.T) {
	q := Quote{
		Products: []Product{productWithRevenue(10)},
		Discount: &Discount{Type: DiscountFixed, Amount: 100},
		Shipping: &Shipping{Charge: 5},
	}

	total, clamped := ComputeTotal(q, pricing.Rates{})
	assert.Equal(t, 0.0, total)
	assert.True(t, clamped)

	// Percentage discounts above 100 are clamped the same way.
	q.Discount = &Discount{Type: DiscountPercentage, Amount: 100}
	q.Shipping = nil
	total, clamped = ComputeTotal(q, pricing.Rates{})
	assert.Equal(t, 0.0, total)
	assert.False(t, clamped)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestNewNumberFormat(t *testing.T) {
	clock := fixedClock{now: time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC)}
	num := NewNumber(clock, shared.UUIDGenerator{})

	assert.True(t, strings.HasPrefix(num, "Q-2608-"), num)
	assert.Len(t, num, len("Q-2608-")+6)

	// Collision resistance comes from the random suffix.
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := NewNumber(clock, shared.UUIDGenerator{})
		assert.False(t, seen[n], "duplicate quote number %s", n)
		seen[n] = true
	}
}
