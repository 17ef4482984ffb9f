package ranking

// Trend labels an item's rank movement across adjacent hourly snapshots.
// Purely presentational; trend never feeds back into scoring.
type Trend string

// Trend labels.
const (
	TrendNew    Trend = "NEW"
	TrendUp     Trend = "UP"
	TrendDown   Trend = "DOWN"
	TrendSteady Trend = "STEADY"
)

// TrendThreshold is the minimum rank delta (in either direction) before an
// item is labeled UP or DOWN.
const TrendThreshold = 3

// TrendFor labels an item given its new 1-indexed rank and the prior hour's
// rank map (id -> 1-indexed rank). Absent from the prior hour means NEW; a
// rank improvement of at least TrendThreshold means UP, a worsening of at
// least TrendThreshold means DOWN, anything else STEADY.
func TrendFor(priorRanks map[string]int, id string, newRank int) Trend {
	prior, ok := priorRanks[id]
	if !ok {
		return TrendNew
	}
	delta := prior - newRank // Positive when the item moved up
	if delta >= TrendThreshold {
		return TrendUp
	}
	if delta <= -TrendThreshold {
		return TrendDown
	}
	return TrendSteady
}
