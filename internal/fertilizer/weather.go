package fertilizer

const (
	heatStressCelsius   = 38.0
	lowRainfallMM       = 500.0
	highHumidityPercent = 85.0
	notesSeparator      = " | "
)

const (
	HeatAdvisory = "High temperature detected (>38 °C): avoid urea application during peak heat " +
		"to reduce volatilisation loss. Apply in early morning or evening."
	LowRainfallAdvisory = "Low annual rainfall zone: consider fertigation (drip fertilizer delivery) " +
		"to improve nutrient use efficiency."
	HumidityAdvisory = "High humidity environment: reduce nitrogen application to limit lush tissue " +
		"growth that is susceptible to fungal diseases."
	SoilTestAdvisory = "Always conduct a soil test before each season for precise recommendations. " +
		"Soil Health Cards (Govt. of India) provide subsidised testing."
)

// Annotate returns the weather advisories that apply, in heat, rainfall, humidity order.
// A nil input never triggers its advisory. When nothing applies the soil-test reminder is returned.
func Annotate(temperature, humidity, rainfall *float64) []string {
	notes := make([]string, 0, 3)

	if temperature != nil && *temperature > heatStressCelsius {
		notes = append(notes, HeatAdvisory)
	}
	if rainfall != nil && *rainfall < lowRainfallMM {
		notes = append(notes, LowRainfallAdvisory)
	}
	if humidity != nil && *humidity > highHumidityPercent {
		notes = append(notes, HumidityAdvisory)
	}

	if len(notes) == 0 {
		notes = append(notes, SoilTestAdvisory)
	}
	return notes
}
