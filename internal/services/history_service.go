package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"plantcare/internal/models"
	"plantcare/internal/repository"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

const (
	// HistoryCapacity is the number of scans kept; older ones are discarded.
	HistoryCapacity = 500
	// HistoryPageSize is the number of scans returned by Recent.
	HistoryPageSize = 100
)

// HistoryService records completed scans in the in-memory store
type HistoryService struct {
	repo    repository.HistoryRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewHistoryService creates a new history service
func NewHistoryService(repo repository.HistoryRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HistoryService {
	return &HistoryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// Record stores one scan outcome
func (s *HistoryService) Record(ctx context.Context, pred models.Prediction, t models.Treatment) (*models.HistoryEntry, error) {
	entry := &models.HistoryEntry{
		ID:           uuid.NewString(),
		Timestamp:    s.now().UTC(),
		ClassName:    pred.ClassName,
		Plant:        t.Plant,
		Condition:    t.Condition,
		IsHealthy:    t.IsHealthy,
		Confidence:   roundTo(pred.Confidence, 4),
		SeverityRisk: t.SeverityRisk,
	}

	if err := s.repo.Record(ctx, entry, HistoryCapacity); err != nil {
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}
	s.refreshGauge(ctx)

	return entry, nil
}

// Recent returns the latest scans, newest first
func (s *HistoryService) Recent(ctx context.Context) ([]models.HistoryEntry, error) {
	return s.repo.ListRecent(ctx, HistoryPageSize)
}

// Clear removes all scans
func (s *HistoryService) Clear(ctx context.Context) error {
	if _, err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.metrics.HistoryEntries.Set(0)
	return nil
}

func (s *HistoryService) refreshGauge(ctx context.Context) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Warn(ctx, "[HISTORY_COUNT] Failed to count history entries", logging.Fields{
			"error": err.Error(),
		})
		return
	}
	s.metrics.HistoryEntries.Set(float64(n))
}
