package repository

import (
	"context"
	"fmt"

	"plantcare/internal/models"
	"plantcare/pkg/database"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// HistoryRepository stores completed disease scans.
type HistoryRepository interface {
	// Record inserts entry and keeps only the newest keep entries.
	Record(ctx context.Context, entry *models.HistoryEntry, keep int) error
	// ListRecent returns up to limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int64, error)
	HealthCheck(ctx context.Context) error
}

type historyRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewHistoryRepository creates a history repository over db.
func NewHistoryRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) HistoryRepository {
	return &historyRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Record inserts the entry and trims the oldest rows in one transaction
func (r *historyRepository) Record(ctx context.Context, entry *models.HistoryEntry, keep int) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := tx.Rebind(`
		INSERT INTO scan_history (id, created_at, class_name, plant, condition, is_healthy, confidence, severity_risk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if _, err := tx.ExecContext(ctx, insert,
		entry.ID,
		entry.Timestamp.UTC(),
		entry.ClassName,
		entry.Plant,
		entry.Condition,
		entry.IsHealthy,
		entry.Confidence,
		entry.SeverityRisk,
	); err != nil {
		r.metrics.RecordDBError("insert_history")
		return fmt.Errorf("failed to insert history entry: %w", err)
	}

	trim := tx.Rebind(`
		DELETE FROM scan_history
		WHERE seq NOT IN (SELECT seq FROM scan_history ORDER BY seq DESC LIMIT ?)
	`)
	res, err := tx.ExecContext(ctx, trim, keep)
	if err != nil {
		r.metrics.RecordDBError("trim_history")
		return fmt.Errorf("failed to trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history entry: %w", err)
	}

	trimmed, _ := res.RowsAffected()
	r.logger.Debug(ctx, "[REPO_RECORD_HISTORY] Scan recorded", logging.Fields{
		"id":         entry.ID,
		"class_name": entry.ClassName,
		"trimmed":    trimmed,
	})

	return nil
}

// ListRecent returns the newest entries first
func (r *historyRepository) ListRecent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	query := `
		SELECT id, created_at, class_name, plant, condition, is_healthy, confidence, severity_risk
		FROM scan_history
		ORDER BY seq DESC
		LIMIT ?
	`

	entries := []models.HistoryEntry{}
	if err := r.db.SelectContext(ctx, "list_history", &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

func (r *historyRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, "count_history", &n, `SELECT COUNT(*) FROM scan_history`); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// Clear removes every entry and reports how many were removed
func (r *historyRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "clear_history", `DELETE FROM scan_history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, _ := res.RowsAffected()

	r.logger.Info(ctx, "[REPO_CLEAR_HISTORY] History cleared", logging.Fields{
		"removed": n,
	})
	return n, nil
}

func (r *historyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
