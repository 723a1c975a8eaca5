package services

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"plantcare/internal/classifier"
	"plantcare/internal/models"
	"plantcare/internal/treatment"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
	"plantcare/pkg/tracing"
)

// PredictionService classifies leaf images and attaches treatment advice
type PredictionService struct {
	classifier classifier.Classifier
	kb         *treatment.KnowledgeBase
	history    *HistoryService
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewPredictionService creates a new prediction service
func NewPredictionService(c classifier.Classifier, kb *treatment.KnowledgeBase, history *HistoryService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PredictionService {
	return &PredictionService{
		classifier: c,
		kb:         kb,
		history:    history,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Predict runs the classifier on image, looks up the treatment and records the scan.
// A failure to record history is logged and does not fail the prediction.
func (s *PredictionService) Predict(ctx context.Context, image []byte, filename string) (*models.PredictionResult, error) {
	ctx, span := tracing.Start(ctx, "prediction.predict",
		attribute.Int("image.bytes", len(image)),
	)
	defer span.End()

	timer := s.metrics.NewTimer(s.metrics.ClassificationDuration)
	pred, err := s.classifier.Classify(ctx, image)
	elapsed := timer.ObserveDuration()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return nil, err
	}

	t, err := s.kb.Lookup(pred.ClassName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("no treatment data found for class %q: %w", pred.ClassName, err)
	}

	if _, err := s.history.Record(ctx, pred, t); err != nil {
		s.logger.Error(ctx, "[PREDICT_HISTORY_ERROR] Failed to record scan", logging.Fields{
			"class_name": pred.ClassName,
		}, err)
	}

	span.SetAttributes(
		attribute.String("class_name", pred.ClassName),
		attribute.Float64("confidence", pred.Confidence),
	)
	s.logger.Info(ctx, "[PREDICT] Prediction complete", logging.Fields{
		"class_name":  pred.ClassName,
		"confidence":  fmt.Sprintf("%.2f%%", pred.Confidence*100),
		"file":        filename,
		"duration_ms": elapsed.Milliseconds(),
	})

	return buildResult(pred, t), nil
}

// Classes lists every label in training order
func (s *PredictionService) Classes() []string {
	return s.kb.Labels()
}

// ModelLoaded reports whether predictions come from a trained model
func (s *PredictionService) ModelLoaded() bool {
	return s.classifier.ModelLoaded()
}

func buildResult(pred models.Prediction, t models.Treatment) *models.PredictionResult {
	top5 := pred.Top5
	if top5 == nil {
		top5 = []models.LabelScore{}
	}
	return &models.PredictionResult{
		ClassName:      pred.ClassName,
		Plant:          t.Plant,
		Condition:      t.Condition,
		IsHealthy:      t.IsHealthy,
		Confidence:     roundTo(pred.Confidence, 4),
		ConfidencePct:  fmt.Sprintf("%.1f%%", pred.Confidence*100),
		SeverityRisk:   t.SeverityRisk,
		Description:    t.Description,
		Pesticides:     nonNil(t.Pesticides),
		Organic:        nonNil(t.Organic),
		Prevention:     nonNil(t.Prevention),
		ETL:            t.ETL,
		FertilizerNote: t.FertilizerNote,
		Top5:           top5,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
