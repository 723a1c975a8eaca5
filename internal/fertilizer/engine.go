package fertilizer

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"plantcare/internal/models"
)

// Engine turns soil readings into fertilizer recommendations.
// It holds only immutable reference data and is safe for concurrent use.
type Engine struct {
	ref *ReferenceData
}

// Result is a recommendation together with the schedule kind that produced it.
type Result struct {
	Recommendation models.Recommendation
	Schedule       ScheduleKind
	Statuses       [len(models.Nutrients)]models.NutrientStatus
}

// NewEngine creates an engine over validated reference data.
func NewEngine(ref *ReferenceData) (*Engine, error) {
	if ref == nil {
		return nil, fmt.Errorf("reference data is required")
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference data: %w", err)
	}
	return &Engine{ref: ref}, nil
}

// Reference exposes the data the engine evaluates against.
func (e *Engine) Reference() *ReferenceData {
	return e.ref
}

// Recommend evaluates r and returns the advisory. It never fails.
func (e *Engine) Recommend(r models.SoilReading) models.Recommendation {
	return e.Evaluate(r).Recommendation
}

// Evaluate is Recommend with the intermediate classification attached.
func (e *Engine) Evaluate(r models.SoilReading) Result {
	bands := e.ref.Bands.LookupBand(r.Crop)

	var res Result
	deficiencies := make([]models.Nutrient, 0, len(models.Nutrients))
	excesses := make([]models.Nutrient, 0, len(models.Nutrients))
	for i, n := range models.Nutrients {
		status := bands.For(n).Classify(r.Value(n))
		res.Statuses[i] = status
		switch status {
		case models.Deficient:
			deficiencies = append(deficiencies, n)
		case models.Excess:
			excesses = append(excesses, n)
		}
	}

	res.Schedule = selectSchedule(deficiencies, excesses)
	res.Recommendation = models.Recommendation{
		Crop:                   titleCrop(r.Crop),
		Deficiencies:           deficiencies,
		Excesses:               excesses,
		RecommendedFertilizers: e.lineItems(deficiencies, excesses),
		ApplicationSchedule:    e.ref.Schedules.For(res.Schedule),
		Notes:                  strings.Join(Annotate(r.Temperature, r.Humidity, r.Rainfall), notesSeparator),
	}
	return res
}

// selectSchedule gives nitrogen excess precedence over any deficiency,
// then the first deficient nutrient in N, P, K order.
func selectSchedule(deficiencies, excesses []models.Nutrient) ScheduleKind {
	for _, n := range excesses {
		if n == models.Nitrogen {
			return ScheduleNitrogenExcess
		}
	}
	if len(deficiencies) > 0 {
		return deficiencySchedule(deficiencies[0])
	}
	return ScheduleBalanced
}

func (e *Engine) lineItems(deficiencies, excesses []models.Nutrient) []models.RecommendationLineItem {
	items := make([]models.RecommendationLineItem, 0, len(deficiencies)+1)
	products := &e.ref.Products

	for _, n := range deficiencies {
		switch n {
		case models.Nitrogen:
			items = append(items, singleItem(products.Nitrogen, deficitReason(n)))
		case models.Phosphorus:
			dap, ssp := products.Phosphorus, products.PhosphorusBudget
			items = append(items, models.RecommendationLineItem{
				Fertilizer:  fmt.Sprintf("%s (or %s as budget option)", dap.Name, ssp.Name),
				Reason:      deficitReason(n),
				Rate:        fmt.Sprintf("%s OR %s as equivalent P dose", dap.Rate, ssp.Rate),
				PriceApprox: fmt.Sprintf("%s: %s | %s: %s", dap.Short, dap.PriceNote(), ssp.Short, ssp.PriceNote()),
				Scheme:      dap.Scheme,
			})
		case models.Potassium:
			items = append(items, singleItem(products.Potassium, deficitReason(n)))
		}
	}

	if len(deficiencies) == 0 && len(excesses) == 0 {
		items = append(items, singleItem(products.Maintenance, "Maintenance dose — all nutrients in optimal range"))
	}
	return items
}

func singleItem(p Product, reason string) models.RecommendationLineItem {
	return models.RecommendationLineItem{
		Fertilizer:  p.Name,
		Reason:      reason,
		Rate:        p.Rate,
		PriceApprox: p.PriceNote(),
		Scheme:      p.Scheme,
	}
}

func deficitReason(n models.Nutrient) string {
	return fmt.Sprintf("Soil %s is below optimal range", n.Name())
}

// titleCrop upper-cases the first letter of every word and lower-cases the rest.
// A Caser holds state, so one is built per call.
func titleCrop(crop string) string {
	return cases.Title(language.Und).String(crop)
}
