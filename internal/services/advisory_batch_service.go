package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"plantcare/internal/models"
	"plantcare/pkg/logging"
)

// BatchResult contains batch advisory statistics
type BatchResult struct {
	TotalRows      int
	SuccessfulRows int
	FailedRows     int
	Schedules      map[string]int
	Duration       time.Duration
	Errors         []string
}

// BatchRecord is one line of batch output
type BatchRecord struct {
	Row            int                    `json:"row"`
	Recommendation *models.Recommendation `json:"recommendation,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// AdvisoryBatchService runs the recommendation engine over CSV files of soil readings
type AdvisoryBatchService struct {
	fertilizer *FertilizerService
	logger     *logging.StructuredLogger
}

// NewAdvisoryBatchService creates a new batch service
func NewAdvisoryBatchService(fs *FertilizerService, logger *logging.StructuredLogger) *AdvisoryBatchService {
	return &AdvisoryBatchService{
		fertilizer: fs,
		logger:     logger,
	}
}

var requiredColumns = []string{"crop", "nitrogen", "phosphorus", "potassium"}

// Process reads readings from r and writes one JSON line per data row to w.
// Rows that fail to parse are reported in the output and counted; they do not stop the batch.
func (s *AdvisoryBatchService) Process(ctx context.Context, r io.Reader, w io.Writer) (*BatchResult, error) {
	startTime := time.Now()

	result := &BatchResult{
		Schedules: make(map[string]int),
		Errors:    make([]string, 0),
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[BATCH_START] Starting batch advisory", logging.Fields{
		"columns": strings.Join(header, ","),
		"stage":   "INITIALIZATION",
	})

	enc := json.NewEncoder(w)
	row := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		result.TotalRows++

		var rec BatchRecord
		rec.Row = row
		if err != nil {
			rec.Error = err.Error()
		} else if reading, perr := parseReading(fields, columns); perr != nil {
			rec.Error = perr.Error()
		} else {
			res := s.fertilizer.Evaluate(ctx, reading)
			rec.Recommendation = &res.Recommendation
			result.Schedules[res.Schedule.String()]++
		}

		if rec.Error != "" {
			result.FailedRows++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", row, rec.Error))
		} else {
			result.SuccessfulRows++
		}

		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("failed to write output: %w", err)
		}
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[BATCH_COMPLETE] Batch advisory completed", logging.Fields{
		"total_rows":      result.TotalRows,
		"successful_rows": result.SuccessfulRows,
		"failed_rows":     result.FailedRows,
		"duration_ms":     result.Duration.Milliseconds(),
		"stage":           "COMPLETE",
	})

	return result, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			return nil, fmt.Errorf("missing required column %q", c)
		}
	}
	return columns, nil
}

// parseReading converts one CSV row. Empty optional cells mean the value is absent.
func parseReading(fields []string, columns map[string]int) (models.SoilReading, error) {
	cell := func(name string) (string, bool) {
		i, ok := columns[name]
		if !ok || i >= len(fields) {
			return "", false
		}
		v := strings.TrimSpace(fields[i])
		return v, v != ""
	}

	var r models.SoilReading
	crop, ok := cell("crop")
	if !ok {
		return r, &models.ValidationError{Field: "crop", Message: "crop is required"}
	}
	r.Crop = crop

	required := []struct {
		name string
		dst  *float64
	}{
		{"nitrogen", &r.Nitrogen},
		{"phosphorus", &r.Phosphorus},
		{"potassium", &r.Potassium},
	}
	for _, f := range required {
		v, ok := cell(f.name)
		if !ok {
			return r, &models.ValidationError{Field: f.name, Message: f.name + " is required"}
		}
		// Above-band values are valid input: they classify as excess.
		n, err := parseBounded(f.name, v, 0, math.Inf(1))
		if err != nil {
			return r, err
		}
		*f.dst = n
	}

	optional := []struct {
		name   string
		dst    **float64
		lo, hi float64
	}{
		{"temperature", &r.Temperature, math.Inf(-1), math.Inf(1)},
		{"humidity", &r.Humidity, 0, 100},
		{"rainfall", &r.Rainfall, 0, math.Inf(1)},
	}
	for _, f := range optional {
		v, ok := cell(f.name)
		if !ok {
			continue
		}
		n, err := parseBounded(f.name, v, f.lo, f.hi)
		if err != nil {
			return r, err
		}
		*f.dst = &n
	}

	return r, nil
}

func parseBounded(name, raw string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &models.ValidationError{Field: name, Value: raw, Message: fmt.Sprintf("%s must be a number", name)}
	}
	if v < lo || v > hi {
		return 0, &models.ValidationError{Field: name, Value: raw, Message: fmt.Sprintf("%s %s is out of range", name, raw)}
	}
	return v, nil
}
