// Package finder predicts sighting likelihood per camera: estimators fit on
// feature vectors of positive photo samples, trained through the standard
// pipeline and evaluated over forecast windows.
package finder

import (
	"fmt"
	"math"
)

// Estimator scores how typical a feature vector is of the fitted positive
// samples. Scores lie in (0, 1], higher meaning more typical.
type Estimator interface {
	Fit(samples [][]float64) error
	Score(features []float64) float64
}

// CentroidEstimator is the bundled Estimator: it standardizes each feature
// dimension over the fitted samples and scores by distance to the centroid.
// Exported fields make it JSON-serializable as a model artifact.
type CentroidEstimator struct {
	Center []float64 `json:"center"`
	Spread []float64 `json:"spread"`
}

var _ Estimator = (*CentroidEstimator)(nil)

// NewCentroidEstimator creates an unfitted estimator.
func NewCentroidEstimator() *CentroidEstimator {
	return &CentroidEstimator{}
}

// Fit computes the per-dimension center and spread of the samples. All
// samples must share one dimensionality, and at least one sample is
// required.
func (e *CentroidEstimator) Fit(samples [][]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("cannot fit estimator on zero samples")
	}
	dims := len(samples[0])
	for i, s := range samples {
		if len(s) != dims {
			return fmt.Errorf("sample %d has %d dimensions, expected %d", i, len(s), dims)
		}
	}

	center := make([]float64, dims)
	for _, s := range samples {
		for d, v := range s {
			center[d] += v
		}
	}
	for d := range center {
		center[d] /= float64(len(samples))
	}

	spread := make([]float64, dims)
	for _, s := range samples {
		for d, v := range s {
			diff := v - center[d]
			spread[d] += diff * diff
		}
	}
	for d := range spread {
		spread[d] = math.Sqrt(spread[d] / float64(len(samples)))
		// A constant dimension carries no distance information.
		if spread[d] < 1e-9 {
			spread[d] = 1
		}
	}

	e.Center = center
	e.Spread = spread
	return nil
}

// Fitted reports whether Fit has run.
func (e *CentroidEstimator) Fitted() bool {
	return len(e.Center) > 0
}

// Score maps the normalized squared distance to the centroid into (0, 1].
// A vector at the centroid scores 1; scores decay smoothly with distance.
func (e *CentroidEstimator) Score(features []float64) float64 {
	if !e.Fitted() || len(features) != len(e.Center) {
		return 0
	}
	var sum float64
	for d, v := range features {
		z := (v - e.Center[d]) / e.Spread[d]
		sum += z * z
	}
	meanSq := sum / float64(len(features))
	return 1 / (1 + meanSq)
}
