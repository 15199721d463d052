// Package pricing computes cost-based price breakdowns for a single product.
// Every function here is pure: identical input yields identical output, no
// I/O, no hidden state.
package pricing

// MaterialCost sums material line costs including waste allowance.
func MaterialCost(materials []Material) float64 {
	var total float64
	for _, m := range materials {
		total += m.QuantityUsed * m.CostPerUnit * (1 + m.WastePercent/100)
	}
	return total
}

// MachineHourlyCost derives the amortized cost of one machine hour:
// annual depreciation plus annual maintenance spread over the machine's
// operating hours, plus electricity unless it is folded into overhead.
func MachineHourlyCost(m Machine, rates Rates) float64 {
	var hourly float64
	if m.HoursPerYear > 0 {
		hourly = (m.PurchasePrice*m.DepreciationPercent/100)/m.HoursPerYear +
			m.MaintenanceCostPerYear/m.HoursPerYear
	}
	if !m.ElectricityInOverhead && rates.ElectricityConfigured {
		hourly += m.PowerConsumptionKW * rates.ElectricityPerKWh
	}
	return hourly
}

// MachineCost sums amortized machine usage cost across all machines.
func MachineCost(machines []Machine, rates Rates) float64 {
	var total float64
	for _, m := range machines {
		total += MachineHourlyCost(m, rates) * m.UsageHours
	}
	return total
}

// OverheadCost resolves the configured allocation method. jobHours is the
// labor plus machine time of the job, used by the per-hour method.
func OverheadCost(o Overhead, jobHours float64) float64 {
	switch o.Method {
	case AllocatePerHour:
		return o.RatePerHour * jobHours
	case AllocatePercent:
		return o.Categories.MonthlyTotal() * o.PercentOfMonthly / 100
	default:
		return o.FlatAmount
	}
}

// VATSplit returns the VAT amount and net revenue for a gross revenue.
// Inclusive pricing extracts VAT from the amount; exclusive pricing adds it
// on top, leaving net revenue equal to the stated revenue.
func VATSplit(revenue float64, vat VATSettings) (vatAmount, netRevenue float64) {
	rate := vat.Rate / 100
	if vat.IsInclusive {
		vatAmount = revenue * rate / (1 + rate)
		return vatAmount, revenue - vatAmount
	}
	return revenue * rate, revenue
}

// Compute derives the full profit-and-loss breakdown for a product. Input is
// assumed well-formed (see Validate); the engine is total on valid input and
// never signals errors for unusual-but-legal values such as zero revenue.
func Compute(in ProductInput, rates Rates) Breakdown {
	var b Breakdown

	b.MaterialCost = MaterialCost(in.Materials)
	b.MachineCost = MachineCost(in.Machines, rates)
	b.LaborCost = in.Labor.Hours * in.Labor.RatePerHour

	var machineHours float64
	for _, m := range in.Machines {
		machineHours += m.UsageHours
		if !m.ElectricityInOverhead && !rates.ElectricityConfigured && m.PowerConsumptionKW > 0 {
			b.ElectricityAssumedZero = true
		}
	}
	b.OverheadCost = OverheadCost(in.Overhead, in.Labor.Hours+machineHours)

	b.SubtotalCost = b.MaterialCost + b.MachineCost + b.LaborCost + b.OverheadCost

	productTotal := in.SalePrice.Amount
	if in.SalePrice.IsPerUnit {
		productTotal = in.SalePrice.Amount * float64(in.SalePrice.UnitsCount)
	}
	b.Revenue = productTotal + in.SalePrice.FixedCharge

	b.VATAmount, b.NetRevenue = VATSplit(b.Revenue, in.VAT)
	b.Profit = b.NetRevenue - b.SubtotalCost
	if b.NetRevenue > 0 {
		b.MarginPercent = b.Profit / b.NetRevenue * 100
	}
	return b
}
