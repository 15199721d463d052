package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatesElectricityConfigured(t *testing.T) {
	// Unset rate, no flag: electricity is assumed free and reported so.
	cfg := Config{}
	assert.False(t, cfg.Rates().ElectricityConfigured)

	// A positive rate counts as configured on its own.
	cfg = Config{ElectricityRatePerKWh: 0.17}
	r := cfg.Rates()
	assert.True(t, r.ElectricityConfigured)
	assert.InDelta(t, 0.17, r.ElectricityPerKWh, 1e-9)

	// A genuine zero rate is distinguishable via the explicit flag.
	cfg = Config{ElectricityRateConfigured: true}
	r = cfg.Rates()
	assert.True(t, r.ElectricityConfigured)
	assert.Zero(t, r.ElectricityPerKWh)
}
