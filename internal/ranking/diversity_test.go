package ranking

import (
	"fmt"
	"testing"
)

func entry(id, source, bucket string, score float64) Entry {
	return Entry{ID: id, SourceID: source, Bucket: bucket, Score: score}
}

// TestSelectDiverseRespectsSourceCap verifies the primary pass never admits
// more than PerSource entries from one source.
func TestSelectDiverseRespectsSourceCap(t *testing.T) {
	entries := []Entry{
		entry("a1", "alpha", "tech", 1.0),
		entry("a2", "alpha", "tech", 0.9),
		entry("a3", "alpha", "science", 0.8),
		entry("a4", "alpha", "science", 0.7),
		entry("b1", "beta", "tech", 0.6),
		entry("b2", "beta", "world", 0.5),
	}

	got := SelectDiverse(entries, Caps{PerSource: 2, PerBucket: 12}, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 selected, got %d", len(got))
	}

	counts := map[string]int{}
	for _, e := range got[:4] {
		counts[e.SourceID]++
	}
	// alpha contributes its cap of 2, beta fills the rest in the primary pass.
	if counts["alpha"] != 2 || counts["beta"] != 2 {
		t.Errorf("source distribution = %v, want alpha:2 beta:2", counts)
	}
}

// TestSelectDiverseRespectsBucketCap verifies the bucket cap in the primary pass.
func TestSelectDiverseRespectsBucketCap(t *testing.T) {
	var entries []Entry
	for i := 0; i < 6; i++ {
		entries = append(entries, entry(fmt.Sprintf("t%d", i), fmt.Sprintf("s%d", i), "tech", 1.0-float64(i)*0.1))
	}
	entries = append(entries, entry("w1", "s9", "world", 0.1))

	got := SelectDiverse(entries, Caps{PerSource: 3, PerBucket: 2}, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 selected, got %d", len(got))
	}

	// Highest two tech entries, then world despite its lower score.
	wantIDs := []string{"t0", "t1", "w1"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}

// TestSelectDiverseBackfillGuaranteesCount verifies the second pass ignores
// caps to reach the target when enough entries exist.
func TestSelectDiverseBackfillGuaranteesCount(t *testing.T) {
	entries := []Entry{
		entry("a1", "alpha", "tech", 1.0),
		entry("a2", "alpha", "tech", 0.9),
		entry("a3", "alpha", "tech", 0.8),
		entry("a4", "alpha", "tech", 0.7),
	}

	got := SelectDiverse(entries, Caps{PerSource: 1, PerBucket: 1}, 3)
	if len(got) != 3 {
		t.Fatalf("expected backfill to reach 3, got %d", len(got))
	}
	// Backfill admits by score order.
	wantIDs := []string{"a1", "a2", "a3"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}

// TestSelectDiverseNoDuplicates verifies no entry is admitted twice.
func TestSelectDiverseNoDuplicates(t *testing.T) {
	entries := []Entry{
		entry("a1", "alpha", "tech", 1.0),
		entry("b1", "beta", "world", 0.9),
	}

	got := SelectDiverse(entries, Caps{PerSource: 1, PerBucket: 1}, 5)
	if len(got) != 2 {
		t.Fatalf("expected all 2 entries, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, e := range got {
		if seen[e.ID] {
			t.Errorf("duplicate entry %s", e.ID)
		}
		seen[e.ID] = true
	}
}

// TestSelectDiverseEmptyAndZeroTarget covers degenerate inputs.
func TestSelectDiverseEmptyAndZeroTarget(t *testing.T) {
	if got := SelectDiverse(nil, SnapshotCaps(), 10); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := SelectDiverse([]Entry{entry("a", "s", "b", 1)}, SnapshotCaps(), 0); got != nil {
		t.Errorf("expected nil for zero target, got %v", got)
	}
}

// TestBucketFor verifies ontology mapping with first-match priority.
func TestBucketFor(t *testing.T) {
	tests := []struct {
		name     string
		topics   []string
		expected string
	}{
		{name: "direct match", topics: []string{"tech"}, expected: "tech"},
		{name: "alias match", topics: []string{"machine learning"}, expected: "ai"},
		{name: "priority order wins", topics: []string{"sports", "politics"}, expected: "politics"},
		{name: "raw topic fallback", topics: []string{"gardening"}, expected: "gardening"},
		{name: "no topics", topics: nil, expected: "misc"},
		{name: "blank topics", topics: []string{"", "  "}, expected: "misc"},
		{name: "case insensitive", topics: []string{"Finance"}, expected: "finance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BucketFor(tt.topics); got != tt.expected {
				t.Errorf("BucketFor(%v) = %q, want %q", tt.topics, got, tt.expected)
			}
		})
	}
}
