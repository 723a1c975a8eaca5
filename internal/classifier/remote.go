package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"plantcare/internal/models"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// RemoteConfig describes a TensorFlow-Serving style REST model endpoint.
type RemoteConfig struct {
	BaseURL         string
	ModelName       string
	Timeout         time.Duration
	MaxRetries      int
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

// RemoteClassifier sends preprocessed tensors to a model server.
type RemoteClassifier struct {
	endpoint   string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	labels     []string
	logger     *logging.ContextLogger
	metrics    *metrics.Collector
}

type predictRequest struct {
	Instances []Tensor `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// modelStatusError is a non-2xx answer from the model server.
type modelStatusError struct {
	status int
	body   string
}

func (e *modelStatusError) Error() string {
	return fmt.Sprintf("model server returned %d: %s", e.status, e.body)
}

func (e *modelStatusError) IsTransient() bool {
	return e.status >= 500 || e.status == http.StatusTooManyRequests
}

// NewRemoteClassifier creates a classifier backed by cfg.BaseURL.
// logger and metrics may be nil.
func NewRemoteClassifier(cfg RemoteConfig, logger *logging.StructuredLogger, m *metrics.Collector) *RemoteClassifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(cfg.BaseURL, "/"), cfg.ModelName)
	rc := &RemoteClassifier{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		labels:     ClassNames,
		logger:     logger.WithFields(logging.Fields{"backend": "remote", "endpoint": endpoint}),
		metrics:    m,
	}

	rc.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "model-server",
		Interval: time.Minute,
		Timeout:  cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(failures)
		},
		// Bad input is the caller's fault, not the server's.
		IsSuccessful: func(err error) bool {
			return err == nil || !models.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			rc.logger.Warn(context.Background(), "[CLASSIFIER] Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			if m != nil {
				m.ClassifierBreakerState.Set(float64(to))
			}
		},
	})
	return rc
}

func (c *RemoteClassifier) ModelLoaded() bool { return true }

// Classify preprocesses image and asks the model server for class probabilities.
func (c *RemoteClassifier) Classify(ctx context.Context, image []byte) (models.Prediction, error) {
	tensor, err := Preprocess(image)
	if err != nil {
		return models.Prediction{}, err
	}
	body, err := json.Marshal(predictRequest{Instances: []Tensor{tensor}})
	if err != nil {
		return models.Prediction{}, fmt.Errorf("failed to encode model request: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.predictWithRetry(ctx, body)
	})
	if err != nil {
		c.recordError()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.Prediction{}, fmt.Errorf("%w: model server circuit is open", models.ErrUnavailable)
		}
		return models.Prediction{}, fmt.Errorf("model inference failed: %w", err)
	}

	probs := res.([]float64)
	if len(probs) != len(c.labels) {
		c.recordError()
		return models.Prediction{}, fmt.Errorf("model returned %d scores, expected %d", len(probs), len(c.labels))
	}
	if c.metrics != nil {
		c.metrics.RecordClassification(OutcomeModel)
	}
	return rank(c.labels, probs), nil
}

func (c *RemoteClassifier) predictWithRetry(ctx context.Context, body []byte) ([]float64, error) {
	var probs []float64
	attempt := 0

	operation := func() error {
		attempt++
		p, err := c.predictOnce(ctx, body)
		if err != nil {
			if !models.IsTransient(err) {
				return backoff.Permanent(err)
			}
			c.logger.Warn(ctx, "[CLASSIFIER] Model request failed, retrying", logging.Fields{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return err
		}
		probs = p
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(c.maxRetries, 0))),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return probs, nil
}

// transportError marks network failures as retryable.
type transportError struct{ err error }

func (e *transportError) Error() string     { return e.err.Error() }
func (e *transportError) Unwrap() error     { return e.err }
func (e *transportError) IsTransient() bool { return true }

func (c *RemoteClassifier) predictOnce(ctx context.Context, body []byte) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &modelStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(out.Predictions) == 0 {
		return nil, fmt.Errorf("model response has no predictions")
	}
	return out.Predictions[0], nil
}

func (c *RemoteClassifier) recordError() {
	if c.metrics != nil {
		c.metrics.RecordClassification(OutcomeError)
	}
}
