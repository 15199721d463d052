package money

// Unit identifies how a material quantity is measured.
type Unit string

const (
	UnitPieces      Unit = "pcs"
	UnitGrams       Unit = "g"
	UnitKilograms   Unit = "kg"
	UnitMillimeters Unit = "mm"
	UnitCentimeters Unit = "cm"
	UnitMeters      Unit = "m"
	UnitSquareM     Unit = "sqm"
	UnitMilliliters Unit = "ml"
	UnitLiters      Unit = "l"
	UnitHours       Unit = "h"
	UnitSheets      Unit = "sheet"
	UnitRolls       Unit = "roll"
)

var unitLabels = map[Unit]string{
	UnitPieces:      "pieces",
	UnitGrams:       "grams",
	UnitKilograms:   "kilograms",
	UnitMillimeters: "millimeters",
	UnitCentimeters: "centimeters",
	UnitMeters:      "meters",
	UnitSquareM:     "square meters",
	UnitMilliliters: "milliliters",
	UnitLiters:      "liters",
	UnitHours:       "hours",
	UnitSheets:      "sheets",
	UnitRolls:       "rolls",
}

// Valid reports whether the unit is one of the supported measurements.
func (u Unit) Valid() bool {
	_, ok := unitLabels[u]
	return ok
}

// Label returns the human-readable name of the unit.
func (u Unit) Label() string {
	if label, ok := unitLabels[u]; ok {
		return label
	}
	return string(u)
}

// Units lists all supported measurement units.
func Units() []Unit {
	return []Unit{
		UnitPieces, UnitGrams, UnitKilograms, UnitMillimeters, UnitCentimeters,
		UnitMeters, UnitSquareM, UnitMilliliters, UnitLiters, UnitHours,
		UnitSheets, UnitRolls,
	}
}
