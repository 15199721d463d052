package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercost/makercost/internal/money"
)

func baseProduct() ProductInput {
	return ProductInput{
		Name: "Walnut serving board",
		Materials: []Material{
			{Name: "Walnut", Unit: money.UnitPieces, QuantityUsed: 10, CostPerUnit: 2, WastePercent: 0},
		},
		Labor:     Labor{Hours: 2, RatePerHour: 25},
		Overhead:  Overhead{Method: AllocateFlat, FlatAmount: 10},
		SalePrice: SalePrice{Amount: 100, UnitsCount: 1, IsPerUnit: true},
		VAT:       VATSettings{Rate: 0, IsInclusive: false},
	}
}

func TestComputeBaseline(t *testing.T) {
	b := Compute(baseProduct(), Rates{})

	assert.Equal(t, 20.0, b.MaterialCost)
	assert.Equal(t, 0.0, b.MachineCost)
	assert.Equal(t, 50.0, b.LaborCost)
	assert.Equal(t, 10.0, b.OverheadCost)
	assert.Equal(t, 80.0, b.SubtotalCost)
	assert.Equal(t, 100.0, b.Revenue)
	assert.Equal(t, 0.0, b.VATAmount)
	assert.Equal(t, 20.0, b.Profit)
	assert.Equal(t, 20.0, b.MarginPercent)
}

func TestComputeInclusiveVAT(t *testing.T) {
	in := baseProduct()
	in.VAT = VATSettings{Rate: 20, IsInclusive: true}

	b := Compute(in, Rates{})

	assert.InDelta(t, 16.6667, b.VATAmount, 0.001)
	assert.InDelta(t, 83.3333, b.NetRevenue, 0.001)
	assert.InDelta(t, 3.3333, b.Profit, 0.001)
	assert.InDelta(t, 4.0, b.MarginPercent, 0.05)
}

func TestComputeDeterministic(t *testing.T) {
	in := baseProduct()
	in.Machines = []Machine{{
		Name:                   "CNC router",
		PurchasePrice:          12000,
		DepreciationPercent:    20,
		HoursPerYear:           1500,
		MaintenanceCostPerYear: 600,
		PowerConsumptionKW:     1.2,
		UsageHours:             3,
	}}
	rates := Rates{ElectricityPerKWh: 0.17, ElectricityConfigured: true}

	first := Compute(in, rates)
	second := Compute(in, rates)
	assert.Equal(t, first, second)
}

func TestMarginGuardZeroRevenue(t *testing.T) {
	in := baseProduct()
	in.SalePrice = SalePrice{Amount: 0, UnitsCount: 1, IsPerUnit: true}

	b := Compute(in, Rates{})

	assert.Equal(t, 0.0, b.NetRevenue)
	assert.Equal(t, 0.0, b.MarginPercent)
	assert.False(t, b.MarginPercent != b.MarginPercent, "margin must not be NaN")
}

func TestVATRoundTrip(t *testing.T) {
	for _, rate := range []float64{0, 7.5, 17, 20, 99} {
		revenue := 100.0
		vatAmount, net := VATSplit(revenue, VATSettings{Rate: rate, IsInclusive: true})
		addedBack, _ := VATSplit(net, VATSettings{Rate: rate, IsInclusive: false})
		assert.InDelta(t, revenue, net+addedBack, 1e-9, "rate %v", rate)
		assert.InDelta(t, vatAmount, addedBack, 1e-9, "rate %v", rate)
	}
}

func TestMachineHourlyCost(t *testing.T) {
	m := Machine{
		PurchasePrice:          10000,
		DepreciationPercent:    25,
		HoursPerYear:           1000,
		MaintenanceCostPerYear: 500,
		PowerConsumptionKW:     2,
	}

	// (10000*0.25)/1000 + 500/1000 = 3.0, plus 2kW * 0.2 = 0.4
	hourly := MachineHourlyCost(m, Rates{ElectricityPerKWh: 0.2, ElectricityConfigured: true})
	assert.InDelta(t, 3.4, hourly, 1e-9)

	// Electricity folded into overhead is not double charged.
	m.ElectricityInOverhead = true
	hourly = MachineHourlyCost(m, Rates{ElectricityPerKWh: 0.2, ElectricityConfigured: true})
	assert.InDelta(t, 3.0, hourly, 1e-9)
}

func TestElectricityAssumedZeroFlag(t *testing.T) {
	in := baseProduct()
	in.Machines = []Machine{{
		Name:                "Laser cutter",
		PurchasePrice:       5000,
		DepreciationPercent: 20,
		HoursPerYear:        800,
		PowerConsumptionKW:  1.5,
		UsageHours:          1,
	}}

	b := Compute(in, Rates{})
	assert.True(t, b.ElectricityAssumedZero)

	b = Compute(in, Rates{ElectricityPerKWh: 0.15, ElectricityConfigured: true})
	assert.False(t, b.ElectricityAssumedZero)
}

func TestOverheadAllocationMethods(t *testing.T) {
	o := Overhead{
		Categories:       OverheadCategories{Rent: 900, Utilities: 100},
		Method:           AllocatePercent,
		PercentOfMonthly: 5,
	}
	assert.InDelta(t, 50.0, OverheadCost(o, 0), 1e-9)

	o.Method = AllocatePerHour
	o.RatePerHour = 4
	assert.InDelta(t, 20.0, OverheadCost(o, 5), 1e-9)

	o.Method = AllocateFlat
	o.FlatAmount = 12.5
	assert.InDelta(t, 12.5, OverheadCost(o, 5), 1e-9)
}

func TestValidateRejectsBadInput(t *testing.T) {
	in := baseProduct()
	in.Materials[0].QuantityUsed = -1
	require.Error(t, Validate(in))

	in = baseProduct()
	in.VAT.Rate = 120
	require.Error(t, Validate(in))

	in = baseProduct()
	in.SalePrice.UnitsCount = 0
	require.Error(t, Validate(in))

	in = baseProduct()
	in.Machines = []Machine{{Name: "Press", DepreciationPercent: 10, HoursPerYear: 0}}
	require.Error(t, Validate(in))

	require.NoError(t, Validate(baseProduct()))
}
