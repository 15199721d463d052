package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnitDigits(t *testing.T) {
	assert.Equal(t, 2, MinorUnitDigits("USD"))
	assert.Equal(t, 2, MinorUnitDigits("EUR"))
	assert.Equal(t, 0, MinorUnitDigits("JPY"))
	assert.Equal(t, 2, MinorUnitDigits("ZZZ"), "unknown codes fall back to 2 digits")
}

func TestRound(t *testing.T) {
	assert.InDelta(t, 10.99, Round(10.994, "USD"), 1e-9)
	assert.InDelta(t, 11.00, Round(10.996, "USD"), 1e-9)
	assert.InDelta(t, 1234, Round(1234.4, "JPY"), 1e-9)
}

func TestFormat(t *testing.T) {
	got := Format(1234.5, "USD")
	assert.Contains(t, got, "1,234.50")
	assert.Contains(t, got, "$")

	// Unknown codes still render something usable.
	assert.Contains(t, Format(5, "zzz"), "ZZZ")
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("$1,234.50")
	require.NoError(t, err)
	assert.InDelta(t, 1234.5, v, 1e-9)

	v, err = ParseAmount("  42 ")
	require.NoError(t, err)
	assert.InDelta(t, 42, v, 1e-9)

	_, err = ParseAmount("")
	require.Error(t, err)

	_, err = ParseAmount("abc")
	require.Error(t, err)
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("USD"))
	assert.True(t, ValidCurrency("ILS"))
	assert.False(t, ValidCurrency("ZZZ"))
	assert.False(t, ValidCurrency(""))
}

func TestUnits(t *testing.T) {
	for _, u := range Units() {
		assert.True(t, u.Valid(), "unit %q", u)
		assert.NotEmpty(t, u.Label())
	}
	assert.False(t, Unit("bucket").Valid())
	assert.Equal(t, "square meters", UnitSquareM.Label())
	assert.Equal(t, "bucket", Unit("bucket").Label())
}
