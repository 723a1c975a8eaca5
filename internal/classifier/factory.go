package classifier

import (
	"context"

	"plantcare/internal/config"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

// New builds the classifier chain described by cfg: a remote model when a URL is
// configured, the mock otherwise, always behind request coalescing and, when
// Redis is configured and reachable, a prediction cache.
// The returned func releases the Redis connection.
func New(ctx context.Context, model config.ModelConfig, cache config.CacheConfig, logger *logging.StructuredLogger, m *metrics.Collector) (Classifier, func() error, error) {
	var base Classifier
	if model.URL == "" {
		logger.Warn(ctx, "[CLASSIFIER] No model server configured, starting in demo mode", logging.Fields{
			"model_path": model.Path,
		})
		base = NewMockClassifier(m)
	} else {
		logger.Info(ctx, "[CLASSIFIER] Using remote model server", logging.Fields{
			"url":   model.URL,
			"model": model.Name,
		})
		base = NewRemoteClassifier(RemoteConfig{
			BaseURL:         model.URL,
			ModelName:       model.Name,
			Timeout:         model.Timeout,
			MaxRetries:      model.MaxRetries,
			BreakerFailures: model.BreakerFailures,
			BreakerOpenFor:  model.BreakerOpenFor,
		}, logger, m)
	}

	closer := func() error { return nil }
	if cache.RedisURL == "" {
		return NewCachedClassifier(base, nil, cache.TTL, logger, m), closer, nil
	}

	rdb, err := NewRedisClient(ctx, cache.RedisURL)
	if err != nil {
		logger.Error(ctx, "[CLASSIFIER] Redis unavailable, prediction cache disabled", nil, err)
		return NewCachedClassifier(base, nil, cache.TTL, logger, m), closer, nil
	}
	logger.Info(ctx, "[CLASSIFIER] Prediction cache enabled", logging.Fields{"ttl": cache.TTL.String()})
	return NewCachedClassifier(base, rdb, cache.TTL, logger, m), rdb.Close, nil
}
