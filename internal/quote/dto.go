package quote

import (
	"github.com/makercost/makercost/internal/pricing"
)

type CreateQuoteRequest struct {
	ProjectName string `json:"project_name" validate:"max=200"`
	ClientName  string `json:"client_name" validate:"max=200"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

type UpdateQuoteRequest struct {
	ProjectName *string   `json:"project_name,omitempty" validate:"omitempty,max=200"`
	ClientName  *string   `json:"client_name,omitempty" validate:"omitempty,max=200"`
	Products    []Product `json:"products,omitempty"`
	Discount    *Discount `json:"discount,omitempty"`
	Shipping    *Shipping `json:"shipping,omitempty"`
}

type SetStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=draft saved completed"`
}

type ComputeRequest struct {
	Product pricing.ProductInput `json:"product"`
}

type ComputeResponse struct {
	Breakdown pricing.Breakdown `json:"breakdown"`
}
