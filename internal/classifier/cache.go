package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"plantcare/internal/models"
	"plantcare/pkg/logging"
	"plantcare/pkg/metrics"
)

const cacheKeyPrefix = "plantcare:prediction:"

// sharedClassifyTimeout bounds a coalesced call once it no longer follows
// the cancellation of the caller that started it.
const sharedClassifyTimeout = 2 * time.Minute

// CachedClassifier coalesces concurrent requests for identical images and,
// when a Redis client is given, remembers predictions by image digest.
type CachedClassifier struct {
	next    Classifier
	rdb     redis.UniversalClient
	ttl     time.Duration
	group   singleflight.Group
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCachedClassifier wraps next. rdb may be nil, in which case only coalescing applies.
func NewCachedClassifier(next Classifier, rdb redis.UniversalClient, ttl time.Duration, logger *logging.StructuredLogger, m *metrics.Collector) *CachedClassifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CachedClassifier{next: next, rdb: rdb, ttl: ttl, logger: logger, metrics: m}
}

func (c *CachedClassifier) ModelLoaded() bool { return c.next.ModelLoaded() }

// CacheKey is the Redis key of an image.
func CacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedClassifier) Classify(ctx context.Context, image []byte) (models.Prediction, error) {
	key := CacheKey(image)

	if p, ok := c.lookup(ctx, key); ok {
		if c.metrics != nil {
			c.metrics.RecordClassification(OutcomeCacheHit)
		}
		return p, nil
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedClassifyTimeout)
		defer cancel()

		p, err := c.next.Classify(sharedCtx, image)
		if err != nil {
			return models.Prediction{}, err
		}
		c.store(sharedCtx, key, p)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return models.Prediction{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.Prediction{}, res.Err
		}
		return clonePrediction(res.Val.(models.Prediction)), nil
	}
}

// lookup treats every Redis failure as a miss.
func (c *CachedClassifier) lookup(ctx context.Context, key string) (models.Prediction, bool) {
	if c.rdb == nil {
		return models.Prediction{}, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn(ctx, "[CLASSIFIER] Cache read failed", logging.Fields{"error": err.Error()})
		}
		return models.Prediction{}, false
	}
	var p models.Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn(ctx, "[CLASSIFIER] Discarding corrupt cache entry", logging.Fields{"key": key})
		return models.Prediction{}, false
	}
	return p, true
}

func (c *CachedClassifier) store(ctx context.Context, key string, p models.Prediction) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn(ctx, "[CLASSIFIER] Cache write failed", logging.Fields{"error": err.Error()})
	}
}

func clonePrediction(p models.Prediction) models.Prediction {
	top := make([]models.LabelScore, len(p.Top5))
	copy(top, p.Top5)
	p.Top5 = top
	return p
}

// NewRedisClient connects to url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
