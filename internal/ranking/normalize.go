package ranking

import "math"

// MinMaxNormalize rescales scores to [0, 1] over the given slice. A
// degenerate range (all scores equal, or a single score) maps everything to
// 1.0 so the lone cycle leader still displays full heat. Non-finite inputs
// are treated as zero. The input slice is not mutated.
func MinMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	cleaned := make([]float64, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		cleaned[i] = s
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make([]float64, len(cleaned))
	span := hi - lo
	if span <= 0 {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range cleaned {
		out[i] = (s - lo) / span
	}
	return out
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp clamps v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
