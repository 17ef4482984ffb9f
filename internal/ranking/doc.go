// Package ranking provides the importance scoring, diversity selection,
// and trend labeling primitives of the trending engine.
//
// The heuristic score is a relative ranking signal only; it has no absolute
// meaning. Scores within one cycle are min-max normalized to the heat range
// [0, 1] for display and storage.
package ranking
