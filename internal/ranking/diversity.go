package ranking

import "sort"

// Default diversity caps.
const (
	DefaultSnapshotSourceCap = 3  // Per-source cap for the stored snapshot
	DefaultPersonalSourceCap = 2  // Per-source cap for personalization
	DefaultBucketCap         = 12 // Per-topic-bucket cap
)

// Caps bounds how many items one source or one topic bucket may contribute
// during the primary selection pass.
type Caps struct {
	PerSource int
	PerBucket int
}

// SnapshotCaps returns the default caps used when storing hourly snapshots.
func SnapshotCaps() Caps {
	return Caps{PerSource: DefaultSnapshotSourceCap, PerBucket: DefaultBucketCap}
}

// PersonalCaps returns the tighter caps used by the personalization overlay.
func PersonalCaps() Caps {
	return Caps{PerSource: DefaultPersonalSourceCap, PerBucket: DefaultBucketCap}
}

// Entry is a scored candidate entering diversity selection.
type Entry struct {
	ID       string
	SourceID string
	Bucket   string
	Score    float64
}

// SelectDiverse picks up to target entries in descending score order,
// admitting each only while its source and bucket are under their caps.
// If the capped pass falls short of target, a second pass admits the
// highest-scored remaining entries ignoring caps, so the requested count is
// always met whenever enough entries exist. The input slice is not mutated.
func SelectDiverse(entries []Entry, caps Caps, target int) []Entry {
	if target <= 0 || len(entries) == 0 {
		return nil
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	selected := make([]Entry, 0, target)
	taken := make(map[string]bool, target)
	sourceCounts := make(map[string]int)
	bucketCounts := make(map[string]int)

	// Primary pass: enforce both caps.
	for _, e := range sorted {
		if len(selected) >= target {
			break
		}
		if caps.PerSource > 0 && sourceCounts[e.SourceID] >= caps.PerSource {
			continue
		}
		if caps.PerBucket > 0 && bucketCounts[e.Bucket] >= caps.PerBucket {
			continue
		}
		selected = append(selected, e)
		taken[e.ID] = true
		sourceCounts[e.SourceID]++
		bucketCounts[e.Bucket]++
	}

	// Backfill pass: guarantee the requested count when caps starved it.
	for _, e := range sorted {
		if len(selected) >= target {
			break
		}
		if taken[e.ID] {
			continue
		}
		selected = append(selected, e)
		taken[e.ID] = true
	}

	return selected
}
