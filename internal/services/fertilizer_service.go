package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"plantcare/internal/fertilizer"
	"plantcare/internal/models"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
	"plantcare/pkg/tracing"
)

// FertilizerService exposes the recommendation engine and the public catalogue
type FertilizerService struct {
	engine  *fertilizer.Engine
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewFertilizerService creates a new fertilizer service
func NewFertilizerService(engine *fertilizer.Engine, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FertilizerService {
	return &FertilizerService{
		engine:  engine,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Recommend evaluates a soil reading. It never fails.
func (s *FertilizerService) Recommend(ctx context.Context, reading models.SoilReading) models.Recommendation {
	return s.Evaluate(ctx, reading).Recommendation
}

// Evaluate is Recommend with the selected schedule kind attached
func (s *FertilizerService) Evaluate(ctx context.Context, reading models.SoilReading) fertilizer.Result {
	ctx, span := tracing.Start(ctx, "fertilizer.recommend",
		attribute.String("crop", fertilizer.NormalizeCrop(reading.Crop)),
	)
	defer span.End()

	res := s.engine.Evaluate(reading)
	rec := res.Recommendation

	span.SetAttributes(
		attribute.String("schedule", res.Schedule.String()),
		attribute.StringSlice("deficiencies", models.NutrientStrings(rec.Deficiencies)),
		attribute.StringSlice("excesses", models.NutrientStrings(rec.Excesses)),
	)
	s.metrics.RecordRecommendation(res.Schedule.String(),
		models.NutrientStrings(rec.Deficiencies),
		models.NutrientStrings(rec.Excesses),
	)

	s.logger.Info(ctx, "[FERTILIZER_RECOMMEND] Recommendation generated", logging.Fields{
		"crop":         rec.Crop,
		"schedule":     res.Schedule.String(),
		"deficiencies": strings.Join(models.NutrientStrings(rec.Deficiencies), ","),
		"excesses":     strings.Join(models.NutrientStrings(rec.Excesses), ","),
		"items":        len(rec.RecommendedFertilizers),
	})

	return res
}

// Catalogue lists the purchasable fertilizers
func (s *FertilizerService) Catalogue() []models.CatalogueItem {
	items := s.engine.Reference().Catalogue
	out := make([]models.CatalogueItem, len(items))
	copy(out, items)
	return out
}

// SupportedCrops lists crops with dedicated nutrient bands
func (s *FertilizerService) SupportedCrops() []string {
	return s.engine.Reference().Bands.Crops()
}
