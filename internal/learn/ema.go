package learn

import "math"

// EMA constants for the learning updates.
const (
	// AffinityAlpha is the smoothing factor for feature affinity scores.
	AffinityAlpha = 0.35
	// CentroidTowardAlpha steps a per-user centroid toward a positive sample.
	CentroidTowardAlpha = 0.12
	// CentroidAwayAlpha steps a per-user centroid away from a negative sample.
	CentroidAwayAlpha = 0.08
	// GlobalCentroidAlpha nudges the shared per-mood centroid on positive
	// feedback only.
	GlobalCentroidAlpha = 0.03
)

// UpdateAffinity applies one EMA step to an affinity score. The signal is
// clamped to [-1, 1] before blending, so the result stays in [-1, 1].
func UpdateAffinity(old, signal float64) float64 {
	if signal > 1 {
		signal = 1
	} else if signal < -1 {
		signal = -1
	}
	return (1-AffinityAlpha)*old + AffinityAlpha*signal
}

// Normalize returns a unit-norm copy of v, or nil for a zero or empty
// vector.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// UpdateCentroid applies one EMA step to a centroid and re-normalizes.
// A nil or empty old vector adopts the normalized sample directly. The
// sample is normalized before blending so step size is independent of
// embedding magnitude. If the step collapses the vector to zero, the old
// centroid is kept unchanged.
func UpdateCentroid(old, sample []float32, alpha float64, toward bool) []float32 {
	unit := Normalize(sample)
	if unit == nil {
		return old
	}
	if len(old) == 0 {
		return unit
	}
	if len(old) != len(unit) {
		// Dimension change means a different embedding model; restart from
		// the sample rather than mixing spaces.
		return unit
	}

	blended := make([]float32, len(old))
	for i := range old {
		if toward {
			blended[i] = float32((1-alpha)*float64(old[i]) + alpha*float64(unit[i]))
		} else {
			blended[i] = float32(float64(old[i]) - alpha*float64(unit[i]))
		}
	}
	normalized := Normalize(blended)
	if normalized == nil {
		return old
	}
	return normalized
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, zero, or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
