// ABOUTME: Tests for unit conversion and display formatting.
// ABOUTME: Conversions round-trip and unknown units fall back to metric.
package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harperreed/fitlog/internal/models"
)

func TestConversionsRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, 80, 123.456} {
		assert.InDelta(t, v, LbToKg(KgToLb(v)), 1e-9)
		assert.InDelta(t, v, FeetToMeters(MetersToFeet(v)), 1e-9)
		assert.InDelta(t, v, OuncesToGrams(GramsToOunces(v)), 1e-9)
		assert.InDelta(t, v, ToKilograms(ConvertMass(v, Pounds), Pounds), 1e-9)
	}
}

func TestConvertFallsBackToMetric(t *testing.T) {
	assert.Equal(t, 80.0, ConvertMass(80, "stone"))
	assert.Equal(t, 1.8, ConvertLength(1.8, ""))
	assert.Equal(t, 30.0, ConvertMacro(30, "cups"))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 176.4, Round(176.369809748, 1))
	assert.Equal(t, 2.5, Round(2.45, 1))
	assert.Equal(t, 3.0, Round(2.5, 0))
	assert.Equal(t, 3.0, Round(2.5, -1))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "176.4 lb", FormatMass(80, Pounds))
	assert.Equal(t, "80.0 kg", FormatMass(80, Kilograms))
	assert.Equal(t, "80.0 kg", FormatMass(80, ""))
	assert.Equal(t, "5.91 ft", FormatLength(1.8, Feet))
	assert.Equal(t, "1.06 oz", FormatMacro(30, Ounces))
	assert.Equal(t, "30.0 g", FormatMacro(30, Grams))
}

func TestPreferencesFrom(t *testing.T) {
	assert.Equal(t, MetricPreferences, PreferencesFrom(nil))

	imperial := PreferencesFrom(map[models.SettingType]string{
		models.SettingUnitSystem: "imperial",
	})
	assert.Equal(t, Preferences{Mass: Pounds, Length: Feet, Macro: Ounces}, imperial)

	mixed := PreferencesFrom(map[models.SettingType]string{
		models.SettingUnitSystem: "imperial",
		models.SettingWeightUnit: "kg",
		models.SettingMacroUnit:  "bogus",
	})
	assert.Equal(t, Preferences{Mass: Kilograms, Length: Feet, Macro: Ounces}, mixed)
}
