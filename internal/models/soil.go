package models

// Nutrient is one of the three macro-nutrients tracked in soil analysis.
type Nutrient string

const (
	Nitrogen   Nutrient = "N"
	Phosphorus Nutrient = "P"
	Potassium  Nutrient = "K"
)

// Nutrients lists the macro-nutrients in evaluation order.
var Nutrients = [...]Nutrient{Nitrogen, Phosphorus, Potassium}

// NutrientStatus is the classification of a reading against its band.
type NutrientStatus int

const (
	Optimal NutrientStatus = iota
	Deficient
	Excess
)

func (s NutrientStatus) String() string {
	switch s {
	case Deficient:
		return "deficient"
	case Excess:
		return "excess"
	default:
		return "optimal"
	}
}

// NutrientBand is the agronomically optimal [Low, High] range of one nutrient.
type NutrientBand struct {
	Low  float64 `json:"low" yaml:"low" db:"low"`
	High float64 `json:"high" yaml:"high" db:"high"`
}

// Classify places value relative to the band. Values on the boundary are optimal.
func (b NutrientBand) Classify(value float64) NutrientStatus {
	switch {
	case value < b.Low:
		return Deficient
	case value > b.High:
		return Excess
	default:
		return Optimal
	}
}

// CropBands holds the bands of all three nutrients for one crop.
type CropBands struct {
	N NutrientBand `json:"N" yaml:"N"`
	P NutrientBand `json:"P" yaml:"P"`
	K NutrientBand `json:"K" yaml:"K"`
}

// For returns the band of the given nutrient.
func (c CropBands) For(n Nutrient) NutrientBand {
	switch n {
	case Nitrogen:
		return c.N
	case Phosphorus:
		return c.P
	default:
		return c.K
	}
}

// SoilReading is the input of a fertilizer recommendation. Weather covariates are optional.
type SoilReading struct {
	Nitrogen    float64
	Phosphorus  float64
	Potassium   float64
	Crop        string
	Temperature *float64
	Humidity    *float64
	Rainfall    *float64
}

// Value returns the reading of the given nutrient.
func (r SoilReading) Value(n Nutrient) float64 {
	switch n {
	case Nitrogen:
		return r.Nitrogen
	case Phosphorus:
		return r.Phosphorus
	default:
		return r.Potassium
	}
}

// RecommendationLineItem is one corrective or maintenance product suggestion.
type RecommendationLineItem struct {
	Fertilizer  string `json:"fertilizer"`
	Reason      string `json:"reason"`
	Rate        string `json:"rate"`
	PriceApprox string `json:"price_approx"`
	Scheme      string `json:"scheme"`
}

// Recommendation is the structured advisory produced for one soil reading.
type Recommendation struct {
	Crop                   string                   `json:"crop"`
	Deficiencies           []Nutrient               `json:"deficiencies"`
	Excesses               []Nutrient               `json:"excesses"`
	RecommendedFertilizers []RecommendationLineItem `json:"recommended_fertilizers"`
	ApplicationSchedule    string                   `json:"application_schedule"`
	Notes                  string                   `json:"notes"`
}

// NutrientStrings converts a nutrient list to plain strings, e.g. for metric labels.
func NutrientStrings(ns []Nutrient) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = string(n)
	}
	return out
}

// Name returns the lowercase element name, e.g. "nitrogen".
func (n Nutrient) Name() string {
	switch n {
	case Nitrogen:
		return "nitrogen"
	case Phosphorus:
		return "phosphorus"
	case Potassium:
		return "potassium"
	default:
		return string(n)
	}
}
