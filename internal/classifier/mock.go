package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sort"

	"plantcare/internal/models"
	"plantcare/pkg/metrics"
)

const (
	mockMinConfidence = 0.82
	mockMaxConfidence = 0.97
	mockSeedBytes     = 64
)

// MockClassifier returns plausible, deterministic predictions without a model.
// The same image bytes always produce the same prediction.
type MockClassifier struct {
	metrics *metrics.Collector
}

// NewMockClassifier creates the demo classifier. metrics may be nil.
func NewMockClassifier(m *metrics.Collector) *MockClassifier {
	return &MockClassifier{metrics: m}
}

func (c *MockClassifier) ModelLoaded() bool { return false }

// Classify picks demoClasses[sum(first 64 bytes) mod 10] as the primary label.
func (c *MockClassifier) Classify(_ context.Context, image []byte) (models.Prediction, error) {
	head := image
	if len(head) > mockSeedBytes {
		head = head[:mockSeedBytes]
	}
	var sum int
	for _, b := range head {
		sum += int(b)
	}
	seed := sum % len(demoClasses)
	primary := demoClasses[seed]

	digest := sha256.Sum256(image)
	rng := rand.New(rand.NewPCG(uint64(seed), binary.BigEndian.Uint64(digest[:8])))
	primaryConf := round4(mockMinConfidence + rng.Float64()*(mockMaxConfidence-mockMinConfidence))

	remaining := make([]string, 0, len(ClassNames)-1)
	for _, name := range ClassNames {
		if name != primary {
			remaining = append(remaining, name)
		}
	}
	rng.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })
	others := remaining[:TopK-1]

	ceiling := (1 - primaryConf) / 2
	confs := make([]float64, len(others))
	for i := range confs {
		confs[i] = round4(0.001 + rng.Float64()*(ceiling-0.001))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(confs)))

	top := make([]models.LabelScore, 0, TopK)
	top = append(top, models.LabelScore{Class: primary, Confidence: primaryConf})
	for i, name := range others {
		top = append(top, models.LabelScore{Class: name, Confidence: confs[i]})
	}

	if c.metrics != nil {
		c.metrics.RecordClassification(OutcomeMock)
	}
	return models.Prediction{ClassName: primary, Confidence: primaryConf, Top5: top}, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
