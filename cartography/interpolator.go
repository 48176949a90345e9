package cartography

import (
	"github.com/use-agent/cortex/sitemap"
)

// InterpolateFeatures produces a feature vector for an unrendered page of
// the given type by averaging the vectors of rendered same-type samples
// (§4.4, §9 "SUPPLEMENTED FEATURES"). Confidence is overwritten to 0.5 and
// freshness to 0.0 to mark the result as estimated. If no samples are
// available, a minimal vector is returned: only the page-type dimension
// set, confidence 0.3, freshness 0.
func InterpolateFeatures(pageType sitemap.PageType, samples [][sitemap.FeatureDim]float32) [sitemap.FeatureDim]float32 {
	var result [sitemap.FeatureDim]float32

	if len(samples) == 0 {
		result[FeatPageType] = float32(pageType) / 31.0
		result[FeatPageTypeConfidence] = 0.3
		result[FeatContentFreshness] = 0.0
		return result
	}

	n := float32(len(samples))
	for _, sample := range samples {
		for i, v := range sample {
			result[i] += v
		}
	}
	for i := range result {
		result[i] /= n
	}

	result[FeatPageTypeConfidence] = 0.5
	result[FeatContentFreshness] = 0.0

	return result
}
