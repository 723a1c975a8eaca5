package fertilizer

import (
	"fmt"
	"sort"
	"strings"

	"plantcare/internal/models"
)

// DefaultCropKey names the bands used for crops without an entry of their own.
const DefaultCropKey = "default"

// ThresholdTable maps a normalized crop key to its nutrient bands.
type ThresholdTable map[string]models.CropBands

// NormalizeCrop turns a free-form crop name into a lookup key.
func NormalizeCrop(crop string) string {
	return strings.ToLower(strings.TrimSpace(crop))
}

// LookupBand returns the bands of crop, falling back to the default bands.
// It never fails: Validate guarantees the default entry exists.
func (t ThresholdTable) LookupBand(crop string) models.CropBands {
	if bands, ok := t[NormalizeCrop(crop)]; ok {
		return bands
	}
	return t[DefaultCropKey]
}

// Crops lists the crops with explicit bands, sorted, excluding the default entry.
func (t ThresholdTable) Crops() []string {
	crops := make([]string, 0, len(t))
	for k := range t {
		if k != DefaultCropKey {
			crops = append(crops, k)
		}
	}
	sort.Strings(crops)
	return crops
}

// Validate checks that a default entry exists and that every band has low <= high.
func (t ThresholdTable) Validate() error {
	if _, ok := t[DefaultCropKey]; !ok {
		return fmt.Errorf("threshold table has no %q entry", DefaultCropKey)
	}
	for crop, bands := range t {
		if crop != NormalizeCrop(crop) {
			return fmt.Errorf("threshold table key %q is not normalized", crop)
		}
		for _, n := range models.Nutrients {
			b := bands.For(n)
			if b.Low > b.High {
				return fmt.Errorf("crop %q nutrient %s: low %.2f exceeds high %.2f", crop, n, b.Low, b.High)
			}
		}
	}
	return nil
}
