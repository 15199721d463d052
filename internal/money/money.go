// Package money provides display-time formatting for monetary amounts and
// measurement units. Internal arithmetic elsewhere keeps full floating
// precision; rounding to the currency's minor unit happens only here.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used when a quote carries no explicit currency.
const DefaultCurrency = "USD"

// MinorUnitDigits reports the number of decimal digits for the currency's
// standard minor unit. Unknown codes fall back to 2.
func MinorUnitDigits(code string) int {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// Round rounds an amount to the currency's minor-unit precision.
func Round(amount float64, code string) float64 {
	factor := math.Pow10(MinorUnitDigits(code))
	return math.Round(amount*factor) / factor
}

// Format renders an amount with its currency symbol, grouped per English
// locale conventions, e.g. "US$1,234.50".
func Format(amount float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %.2f", strings.ToUpper(code), amount)
	}
	p := message.NewPrinter(language.English)
	return p.Sprint(currency.Symbol(unit.Amount(Round(amount, code))))
}

// ParseAmount parses a user-entered amount, tolerating grouping commas and a
// leading currency symbol.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimLeft(cleaned, "$€£₪ ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("money: empty amount")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("money: parse amount %q: %w", s, err)
	}
	return v, nil
}

// ValidCurrency reports whether code is a known ISO 4217 currency.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(code)
	return err == nil
}
