package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/makercost/makercost/internal/pricing"
)

// Status is the lifecycle state of a quote. Transitions normally move
// draft -> saved -> completed, but the status is a free field: reopening a
// completed quote back to draft is allowed. The aggregate only guarantees
// the total is recomputed on every mutation regardless of status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSaved     Status = "saved"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSaved, StatusCompleted:
		return true
	}
	return false
}

// DiscountType selects how a quote-level discount is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a quote-level reduction applied to the pre-discount total.
type Discount struct {
	Type   DiscountType `json:"type" validate:"oneof=percentage fixed"`
	Amount float64      `json:"amount" validate:"gte=0"`
}

// Shipping is the quote-level shipping charge.
type Shipping struct {
	IsFree bool    `json:"is_free"`
	Charge float64 `json:"charge" validate:"gte=0"`
}

// Product is one priced item within a quote. The cost inputs are a
// denormalized copy; later catalog edits never change this product.
type Product struct {
	ID uuid.UUID `json:"id"`
	pricing.ProductInput
}

// Quote is a versioned multi-product pricing document owned by a user.
// TotalAmount is cached for display and always recomputable from the
// products plus discount and shipping; it is never the source of truth.
type Quote struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"number"`
	ProjectName string    `json:"project_name"`
	ClientName  string    `json:"client_name"`
	Currency    string    `json:"currency"`
	Products    []Product `json:"products"`
	Discount    *Discount `json:"discount,omitempty"`
	Shipping    *Shipping `json:"shipping,omitempty"`
	Status      Status    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	// TotalClamped is set when the computed total was negative and clamped
	// to zero, which indicates an input problem worth surfacing.
	TotalClamped bool      `json:"total_clamped,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProjectSnapshot is the currently-edited project state observed by the
// autosave controller.
type ProjectSnapshot struct {
	ProjectName string               `json:"project_name"`
	ClientName  string               `json:"client_name"`
	Currency    string               `json:"currency"`
	Product     pricing.ProductInput `json:"product"`
}

// HasMinimalContent reports whether the snapshot is worth persisting as a
// draft. Empty projects are never autosaved.
func (s ProjectSnapshot) HasMinimalContent() bool {
	return s.ProjectName != "" ||
		s.ClientName != "" ||
		len(s.Product.Materials) > 0 ||
		len(s.Product.Machines) > 0 ||
		s.Product.Labor.Hours > 0 ||
		s.Product.SalePrice.Amount > 0
}
