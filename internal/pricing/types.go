package pricing

import (
	"github.com/google/uuid"

	"github.com/makercost/makercost/internal/money"
)

// Material is one cost line inside a product. Quotes hold a denormalized
// copy; editing a catalog entry never changes a historical quote.
type Material struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name" validate:"required,max=200"`
	Unit         money.Unit `json:"unit" validate:"required"`
	QuantityUsed float64    `json:"quantity_used" validate:"gte=0"`
	CostPerUnit  float64    `json:"cost_per_unit" validate:"gte=0"`
	WastePercent float64    `json:"waste_percent" validate:"gte=0,lte=100"`
}

// Machine describes one machine's amortization inputs plus the hours this
// job used it. UsageHours is per-calculation; the rest describe the
// machine's economic lifetime.
type Machine struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name" validate:"required,max=200"`
	PurchasePrice          float64   `json:"purchase_price" validate:"gte=0"`
	DepreciationPercent    float64   `json:"depreciation_percent" validate:"gte=0,lte=100"`
	HoursPerYear           float64   `json:"hours_per_year" validate:"gte=0"`
	MaintenanceCostPerYear float64   `json:"maintenance_cost_per_year" validate:"gte=0"`
	PowerConsumptionKW     float64   `json:"power_consumption_kw" validate:"gte=0"`
	ElectricityInOverhead  bool      `json:"electricity_in_overhead"`
	UsageHours             float64   `json:"usage_hours" validate:"gte=0"`
}

// Labor is direct labor applied to the job.
type Labor struct {
	Hours       float64 `json:"hours" validate:"gte=0"`
	RatePerHour float64 `json:"rate_per_hour" validate:"gte=0"`
}

// OverheadCategories are the fixed monthly overhead buckets of the shop.
type OverheadCategories struct {
	Rent                  float64 `json:"rent" validate:"gte=0"`
	Utilities             float64 `json:"utilities" validate:"gte=0"`
	DigitalInfrastructure float64 `json:"digital_infrastructure" validate:"gte=0"`
	InsuranceProfessional float64 `json:"insurance_professional" validate:"gte=0"`
	Marketing             float64 `json:"marketing" validate:"gte=0"`
	OfficeSupplies        float64 `json:"office_supplies" validate:"gte=0"`
	Transportation        float64 `json:"transportation" validate:"gte=0"`
	Miscellaneous         float64 `json:"miscellaneous" validate:"gte=0"`
}

// MonthlyTotal sums all overhead categories.
func (o OverheadCategories) MonthlyTotal() float64 {
	return o.Rent + o.Utilities + o.DigitalInfrastructure + o.InsuranceProfessional +
		o.Marketing + o.OfficeSupplies + o.Transportation + o.Miscellaneous
}

// AllocationMethod selects how monthly overhead is charged to a job.
type AllocationMethod string

const (
	// AllocateFlat charges a flat amount entered directly for this job.
	AllocateFlat AllocationMethod = "flat"
	// AllocatePerHour charges a rate per labor-plus-machine hour.
	AllocatePerHour AllocationMethod = "per_hour"
	// AllocatePercent charges a percentage of the monthly overhead total.
	AllocatePercent AllocationMethod = "percent"
)

// Overhead configures overhead allocation for a job.
type Overhead struct {
	Categories OverheadCategories `json:"categories"`
	Method     AllocationMethod   `json:"method" validate:"omitempty,oneof=flat per_hour percent"`
	FlatAmount float64            `json:"flat_amount" validate:"gte=0"`
	// RatePerHour applies with AllocatePerHour.
	RatePerHour float64 `json:"rate_per_hour" validate:"gte=0"`
	// PercentOfMonthly applies with AllocatePercent, 0..100.
	PercentOfMonthly float64 `json:"percent_of_monthly" validate:"gte=0,lte=100"`
}

// VATSettings controls tax treatment of the sale price.
type VATSettings struct {
	Rate        float64 `json:"rate" validate:"gte=0,lte=100"`
	IsInclusive bool    `json:"is_inclusive"`
}

// SalePrice describes the customer-facing price of the product.
type SalePrice struct {
	Amount      float64 `json:"amount" validate:"gte=0"`
	UnitsCount  int     `json:"units_count" validate:"gte=1"`
	IsPerUnit   bool    `json:"is_per_unit"`
	FixedCharge float64 `json:"fixed_charge" validate:"gte=0"`
}

// ProductInput is the complete cost document for one priced item.
type ProductInput struct {
	Name      string      `json:"name" validate:"max=200"`
	Materials []Material  `json:"materials" validate:"dive"`
	Machines  []Machine   `json:"machines" validate:"dive"`
	Labor     Labor       `json:"labor"`
	Overhead  Overhead    `json:"overhead"`
	SalePrice SalePrice   `json:"sale_price"`
	VAT       VATSettings `json:"vat"`
}

// Rates carries shop-level inputs the engine needs beyond the product
// document. The electricity rate source is a shop setting; when it has not
// been configured the engine charges zero and reports that explicitly.
type Rates struct {
	ElectricityPerKWh     float64 `json:"electricity_per_kwh" validate:"gte=0"`
	ElectricityConfigured bool    `json:"electricity_configured"`
}

// Breakdown is the derived profit-and-loss view of a product. All amounts
// keep full floating precision; rounding is a display concern.
type Breakdown struct {
	MaterialCost  float64 `json:"material_cost"`
	MachineCost   float64 `json:"machine_cost"`
	LaborCost     float64 `json:"labor_cost"`
	OverheadCost  float64 `json:"overhead_cost"`
	SubtotalCost  float64 `json:"subtotal_cost"`
	Revenue       float64 `json:"revenue"`
	VATAmount     float64 `json:"vat_amount"`
	NetRevenue    float64 `json:"net_revenue"`
	Profit        float64 `json:"profit"`
	MarginPercent float64 `json:"margin_percent"`
	// ElectricityAssumedZero is set when a machine draws power outside
	// overhead but no electricity rate was configured.
	ElectricityAssumedZero bool `json:"electricity_assumed_zero,omitempty"`
}
