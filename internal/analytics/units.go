// ABOUTME: Unit conversion from canonical metric storage to display units.
// ABOUTME: Pure multiplicative mappings with fixed-point rounding for display.
package analytics

import (
	"fmt"
	"math"
	"strconv"

	"github.com/harperreed/fitlog/internal/models"
)

// Conversion factors from the canonical metric unit.
const (
	PoundsPerKilogram = 2.20462262185
	FeetPerMeter      = 3.28083989501
	OuncesPerGram     = 0.03527396195
)

// MassUnit is a display unit for body and lifted weight.
type MassUnit string

// LengthUnit is a display unit for height.
type LengthUnit string

// MacroUnit is a display unit for macro-nutrient amounts.
type MacroUnit string

const (
	Kilograms MassUnit   = "kg"
	Pounds    MassUnit   = "lb"
	Meters    LengthUnit = "m"
	Feet      LengthUnit = "ft"
	Grams     MacroUnit  = "g"
	Ounces    MacroUnit  = "oz"
)

// KgToLb converts kilograms to pounds.
func KgToLb(kg float64) float64 { return kg * PoundsPerKilogram }

// LbToKg converts pounds to kilograms.
func LbToKg(lb float64) float64 { return lb / PoundsPerKilogram }

// MetersToFeet converts meters to feet.
func MetersToFeet(m float64) float64 { return m * FeetPerMeter }

// FeetToMeters converts feet to meters.
func FeetToMeters(ft float64) float64 { return ft / FeetPerMeter }

// GramsToOunces converts grams to ounces.
func GramsToOunces(g float64) float64 { return g * OuncesPerGram }

// OuncesToGrams converts ounces to grams.
func OuncesToGrams(oz float64) float64 { return oz / OuncesPerGram }

// ConvertMass converts kilograms to unit. Unknown units leave the value in kilograms.
func ConvertMass(kg float64, unit MassUnit) float64 {
	if unit == Pounds {
		return KgToLb(kg)
	}
	return kg
}

// ToKilograms converts a value entered in unit back to kilograms.
func ToKilograms(v float64, unit MassUnit) float64 {
	if unit == Pounds {
		return LbToKg(v)
	}
	return v
}

// ConvertLength converts meters to unit.
func ConvertLength(m float64, unit LengthUnit) float64 {
	if unit == Feet {
		return MetersToFeet(m)
	}
	return m
}

// ConvertMacro converts grams to unit.
func ConvertMacro(g float64, unit MacroUnit) float64 {
	if unit == Ounces {
		return GramsToOunces(g)
	}
	return g
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if places < 0 {
		places = 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func formatValue(v float64, places int) string {
	return strconv.FormatFloat(Round(v, places), 'f', places, 64)
}

// FormatMass renders kilograms in unit with one decimal, e.g. "176.4 lb".
func FormatMass(kg float64, unit MassUnit) string {
	if unit != Pounds {
		unit = Kilograms
	}
	return fmt.Sprintf("%s %s", formatValue(ConvertMass(kg, unit), 1), unit)
}

// FormatLength renders meters in unit with two decimals.
func FormatLength(m float64, unit LengthUnit) string {
	if unit != Feet {
		unit = Meters
	}
	return fmt.Sprintf("%s %s", formatValue(ConvertLength(m, unit), 2), unit)
}

// FormatMacro renders grams in unit with one decimal.
func FormatMacro(g float64, unit MacroUnit) string {
	if unit != Ounces {
		unit = Grams
	}
	return fmt.Sprintf("%s %s", formatValue(ConvertMacro(g, unit), 1), unit)
}

// Preferences are the display units chosen in settings.
type Preferences struct {
	Mass   MassUnit
	Length LengthUnit
	Macro  MacroUnit
}

// MetricPreferences is the default when nothing is configured.
var MetricPreferences = Preferences{Mass: Kilograms, Length: Meters, Macro: Grams}

// PreferencesFrom resolves display units from raw setting values.
// unit_system picks the defaults and the per-quantity settings override it.
func PreferencesFrom(values map[models.SettingType]string) Preferences {
	p := MetricPreferences
	if values[models.SettingUnitSystem] == "imperial" {
		p = Preferences{Mass: Pounds, Length: Feet, Macro: Ounces}
	}
	switch MassUnit(values[models.SettingWeightUnit]) {
	case Kilograms, Pounds:
		p.Mass = MassUnit(values[models.SettingWeightUnit])
	}
	switch LengthUnit(values[models.SettingHeightUnit]) {
	case Meters, Feet:
		p.Length = LengthUnit(values[models.SettingHeightUnit])
	}
	switch MacroUnit(values[models.SettingMacroUnit]) {
	case Grams, Ounces:
		p.Macro = MacroUnit(values[models.SettingMacroUnit])
	}
	return p
}
