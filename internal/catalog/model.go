package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/makercost/makercost/internal/money"
)

// Material is a reusable catalog entry. Quotes copy its values at the moment
// of use; editing a material later never changes existing quotes.
type Material struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name" validate:"required,max=200"`
	Unit         money.Unit `json:"unit"`
	CostPerUnit  float64    `json:"cost_per_unit" validate:"gte=0"`
	WastePercent float64    `json:"waste_percent" validate:"gte=0,lte=100"`
	Notes        string     `json:"notes,omitempty" validate:"max=1000"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Machine is a catalog entry describing a machine's amortization inputs.
type Machine struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name" validate:"required,max=200"`
	PurchasePrice          float64   `json:"purchase_price" validate:"gte=0"`
	DepreciationPercent    float64   `json:"depreciation_percent" validate:"gte=0,lte=100"`
	HoursPerYear           float64   `json:"hours_per_year" validate:"gte=0"`
	MaintenanceCostPerYear float64   `json:"maintenance_cost_per_year" validate:"gte=0"`
	PowerConsumptionKW     float64   `json:"power_consumption_kw" validate:"gte=0"`
	ElectricityInOverhead  bool      `json:"electricity_in_overhead"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Catalog is the full per-user catalog document, persisted as one unit both
// in the local snapshot and the remote store.
type Catalog struct {
	Materials []Material `json:"materials"`
	Machines  []Machine  `json:"machines"`
}
