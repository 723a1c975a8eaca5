// Package classifier turns leaf images into disease class predictions.
package classifier

import (
	"context"
	"sort"

	"plantcare/internal/models"
)

// Outcome labels for classification metrics.
const (
	OutcomeModel    = "model"
	OutcomeMock     = "mock"
	OutcomeCacheHit = "cache_hit"
	OutcomeError    = "error"
)

// TopK is the number of ranked labels returned with every prediction.
const TopK = 5

// Classifier predicts the disease class of a leaf image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (models.Prediction, error)
	// ModelLoaded reports whether a trained model backs the predictions.
	ModelLoaded() bool
}

// rank turns a probability vector into a prediction over labels.
func rank(labels []string, probs []float64) models.Prediction {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	k := TopK
	if len(idx) < k {
		k = len(idx)
	}
	top := make([]models.LabelScore, 0, k)
	for _, i := range idx[:k] {
		top = append(top, models.LabelScore{Class: labels[i], Confidence: probs[i]})
	}

	var p models.Prediction
	if len(top) > 0 {
		p.ClassName = top[0].Class
		p.Confidence = top[0].Confidence
	}
	p.Top5 = top
	return p
}
