package model

import "math"

// FeatureDimension is the length of every feature vector
const FeatureDimension = 40

// FeatureVector is the fixed-length representation passed to the memory store.
// Every component lies in [0,1] regardless of which extractor produced it.
type FeatureVector [FeatureDimension]float64

// NewFeatureVector copies values into a vector, clamping each to [0,1].
// Missing trailing values are zero, extra values are dropped and non-finite values become zero.
func NewFeatureVector(values []float64) FeatureVector {
	var fv FeatureVector
	for i := 0; i < FeatureDimension && i < len(values); i++ {
		fv[i] = Clamp01(values[i])
	}
	return fv
}

// IsNormalized reports whether all components are finite and within [0,1]
func (fv FeatureVector) IsNormalized() bool {
	for _, v := range fv {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Slice returns a copy of the components
func (fv FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureDimension)
	copy(out, fv[:])
	return out
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when either has zero norm
func (fv FeatureVector) CosineSimilarity(other FeatureVector) float64 {
	var dot, na, nb float64
	for i := range fv {
		dot += fv[i] * other[i]
		na += fv[i] * fv[i]
		nb += other[i] * other[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Clamp01 limits v to [0,1], mapping NaN and -Inf to 0 and +Inf to 1
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// FeatureInput is everything feature extraction may draw on
type FeatureInput struct {
	ImageURLs  []string
	Context    *AssessmentContext
	Prior      *Assessment
	Detections []Detection
	Vision     *VisionAnalysisSummary
}
