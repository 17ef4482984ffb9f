package personal

import (
	"math"
	"math/rand"
	"sort"

	"github.com/onnwee/currents/internal/ranking"
)

// Sampling constants.
const (
	// SoftmaxTemperature controls how sharply sampling favors high scores.
	SoftmaxTemperature = 0.9
	// MinSamplePool is the smallest candidate window sampling draws from.
	MinSamplePool = 24
	// samplePoolFactor sizes the window as a multiple of the target.
	samplePoolFactor = 4
	// minDistinctBuckets is the bucket diversity floor before backfill.
	minDistinctBuckets = 3
)

// SampleDiverse picks k items by softmax-weighted sampling without
// replacement from the top candidates, under the personal diversity caps,
// then backfills for bucket variety and finally plain score order. The
// result never contains duplicate article ids. The seed makes the draw
// reproducible.
func SampleDiverse(candidates []Scored, k int, seed int64) []Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	sorted := make([]Scored, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	window := maxInt(k*samplePoolFactor, MinSamplePool)
	if window > len(sorted) {
		window = len(sorted)
	}
	pool := sorted[:window]

	rng := rand.New(rand.NewSource(seed))
	caps := ranking.PersonalCaps()

	selected := make([]Scored, 0, k)
	picked := make(map[string]bool)
	sourceCount := make(map[string]int)
	bucketCount := make(map[string]int)

	weights := softmaxWeights(pool)
	remaining := make([]int, len(pool)) // indices into pool still drawable
	for i := range pool {
		remaining[i] = i
	}

	for len(selected) < k && len(remaining) > 0 {
		drawn := drawIndex(rng, remaining, weights)
		idx := remaining[drawn]
		remaining = append(remaining[:drawn], remaining[drawn+1:]...)

		s := pool[idx]
		if picked[s.Item.ID] {
			continue
		}
		if sourceCount[s.Item.SourceID] >= caps.PerSource || bucketCount[s.Item.Bucket] >= caps.PerBucket {
			continue
		}
		picked[s.Item.ID] = true
		sourceCount[s.Item.SourceID]++
		bucketCount[s.Item.Bucket]++
		selected = append(selected, s)
	}

	// Deterministic bucket backfill: when the draw landed too narrow, pull
	// the best item from each unused bucket, evicting the weakest member of
	// an overrepresented bucket if the list is already full.
	floor := minInt(minDistinctBuckets, k)
	for _, s := range sorted {
		if distinctBuckets(selected) >= floor {
			break
		}
		if picked[s.Item.ID] || bucketCount[s.Item.Bucket] > 0 {
			continue
		}
		if len(selected) >= k {
			evict := -1
			for i, sel := range selected {
				if bucketCount[sel.Item.Bucket] > 1 && (evict == -1 || sel.Score < selected[evict].Score) {
					evict = i
				}
			}
			if evict == -1 {
				break
			}
			ev := selected[evict]
			bucketCount[ev.Item.Bucket]--
			sourceCount[ev.Item.SourceID]--
			selected = append(selected[:evict], selected[evict+1:]...)
		}
		picked[s.Item.ID] = true
		bucketCount[s.Item.Bucket]++
		sourceCount[s.Item.SourceID]++
		selected = append(selected, s)
	}

	// Plain fill: caps no longer apply, reaching k matters more.
	for _, s := range sorted {
		if len(selected) >= k {
			break
		}
		if picked[s.Item.ID] {
			continue
		}
		picked[s.Item.ID] = true
		selected = append(selected, s)
	}

	return selected
}

// softmaxWeights computes exp(score/T) shifted by the max score for
// numeric stability.
func softmaxWeights(pool []Scored) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range pool {
		if s.Score > maxScore {
			maxScore = s.Score
		}
	}
	weights := make([]float64, len(pool))
	for i, s := range pool {
		weights[i] = math.Exp((s.Score - maxScore) / SoftmaxTemperature)
	}
	return weights
}

// drawIndex samples one position from remaining proportionally to its
// weight.
func drawIndex(rng *rand.Rand, remaining []int, weights []float64) int {
	var total float64
	for _, idx := range remaining {
		total += weights[idx]
	}
	if total <= 0 {
		return rng.Intn(len(remaining))
	}
	r := rng.Float64() * total
	for i, idx := range remaining {
		r -= weights[idx]
		if r <= 0 {
			return i
		}
	}
	return len(remaining) - 1
}

func distinctBuckets(selected []Scored) int {
	buckets := make(map[string]bool, len(selected))
	for _, s := range selected {
		buckets[s.Item.Bucket] = true
	}
	return len(buckets)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
