package personal

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/onnwee/currents/internal/learn"
	"github.com/onnwee/currents/internal/mood"
	"github.com/onnwee/currents/internal/snapshot"
)

var testNow = time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC)

func poolSnapshot(hourOffset int, items ...snapshot.Item) *snapshot.Snapshot {
	date, hour := snapshot.KeyFor(testNow.Add(-time.Duration(hourOffset) * time.Hour))
	return &snapshot.Snapshot{
		Date:        date,
		Hour:        hour,
		Items:       items,
		GeneratedAt: testNow,
	}
}

func poolItem(id, source, bucket string, heat float64) snapshot.Item {
	return snapshot.Item{
		ID:          id,
		Title:       "Story " + id,
		SourceID:    source,
		Bucket:      bucket,
		Heat:        heat,
		RawScore:    heat * 2,
		PublishedAt: testNow.Add(-2 * time.Hour),
		Arousal:     0.5,
	}
}

func newTestOverlay(t *testing.T, snaps ...*snapshot.Snapshot) *Overlay {
	t.Helper()
	store := snapshot.NewInMemoryStore()
	for _, s := range snaps {
		if err := store.Set(context.Background(), s); err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
	o := NewOverlay(store, learn.NewInMemoryStore(), nil).WithSeed(42)
	return o.WithNow(func() time.Time { return testNow })
}

func TestLookbackHours(t *testing.T) {
	tests := []struct {
		blend float64
		want  int
	}{
		{blend: 0, want: 8},
		{blend: 1, want: 3},
		{blend: 0.5, want: 6},
		{blend: -3, want: 8}, // clamped
		{blend: 9, want: 3},  // clamped
	}
	for _, tt := range tests {
		if got := LookbackHours(tt.blend); got != tt.want {
			t.Errorf("LookbackHours(%.1f) = %d, want %d", tt.blend, got, tt.want)
		}
	}
}

// TestBuildFeedSafeguard verifies the early-day safeguard: with a pool of
// five, a target of four, and all five excluded, exclusion is dropped and
// four items come back anyway.
func TestBuildFeedSafeguard(t *testing.T) {
	items := []snapshot.Item{
		poolItem("a", "s1", "tech", 0.9),
		poolItem("b", "s2", "world", 0.8),
		poolItem("c", "s3", "science", 0.7),
		poolItem("d", "s4", "business", 0.6),
		poolItem("e", "s5", "culture", 0.5),
	}
	o := newTestOverlay(t, poolSnapshot(0, items...))

	exclude := map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": true}
	feed, err := o.BuildFeed(context.Background(), Request{
		UserID: "u1", Mood: mood.Curious, Blend: 0.5, Limit: 4, Exclude: exclude,
	})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if len(feed) != 4 {
		t.Fatalf("expected safeguard to return 4 items, got %d", len(feed))
	}
	seen := make(map[string]bool)
	for _, s := range feed {
		if seen[s.Item.ID] {
			t.Errorf("duplicate item %s", s.Item.ID)
		}
		seen[s.Item.ID] = true
	}
}

// TestBuildFeedExclusionHolds verifies exclusion is honored when enough
// candidates remain.
func TestBuildFeedExclusionHolds(t *testing.T) {
	var items []snapshot.Item
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	sources := []string{"s1", "s2", "s3", "s4", "s5"}
	buckets := []string{"tech", "world", "science", "business", "culture"}
	for i, id := range ids {
		items = append(items, poolItem(id, sources[i%len(sources)], buckets[i%len(buckets)], 1-float64(i)*0.05))
	}
	o := newTestOverlay(t, poolSnapshot(0, items...))

	feed, err := o.BuildFeed(context.Background(), Request{
		UserID: "u1", Mood: mood.Curious, Limit: 3,
		Exclude: map[string]bool{"a": true, "b": true},
	})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if len(feed) != 3 {
		t.Fatalf("expected 3 items, got %d", len(feed))
	}
	for _, s := range feed {
		if s.Item.ID == "a" || s.Item.ID == "b" {
			t.Errorf("excluded item %s returned", s.Item.ID)
		}
	}
}

// TestBuildFeedDeterministic verifies identical requests with the same
// seed produce identical feeds.
func TestBuildFeedDeterministic(t *testing.T) {
	var items []snapshot.Item
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		items = append(items, poolItem(id, "src-"+id, "bucket-"+id, 0.5))
	}
	o := newTestOverlay(t, poolSnapshot(0, items...))

	req := Request{UserID: "u1", Mood: mood.Calm, Limit: 4}
	first, err := o.BuildFeed(context.Background(), req)
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	second, err := o.BuildFeed(context.Background(), req)
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Item.ID != second[i].Item.ID {
			t.Errorf("position %d differs: %s vs %s", i, first[i].Item.ID, second[i].Item.ID)
		}
	}
}

// TestBuildFeedEmptyPool verifies an empty window is not an error.
func TestBuildFeedEmptyPool(t *testing.T) {
	o := newTestOverlay(t)
	feed, err := o.BuildFeed(context.Background(), Request{UserID: "u1", Limit: 4})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if feed != nil {
		t.Errorf("expected empty feed, got %d items", len(feed))
	}
}

// TestBuildFeedPoolDeduplication verifies an article appearing in several
// hours enters the pool once.
func TestBuildFeedPoolDeduplication(t *testing.T) {
	current := poolSnapshot(0, poolItem("a", "s1", "tech", 0.9), poolItem("b", "s2", "world", 0.8))
	prior := poolSnapshot(1, poolItem("a", "s1", "tech", 0.7), poolItem("c", "s3", "science", 0.6))
	o := newTestOverlay(t, current, prior)

	feed, err := o.BuildFeed(context.Background(), Request{UserID: "u1", Limit: 10})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	count := 0
	for _, s := range feed {
		if s.Item.ID == "a" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("item a appeared %d times, want 1", count)
	}
	if len(feed) != 3 {
		t.Errorf("expected 3 distinct items, got %d", len(feed))
	}
}

// TestBuildFeedReasons verifies the interest and mood reason strings.
func TestBuildFeedReasons(t *testing.T) {
	item := poolItem("a", "s1", "science", 0.9)
	item.Topics = []string{"science"}
	item.Title = "New discovery in deep sea research"
	item.Novelty = 1
	o := newTestOverlay(t, poolSnapshot(0, item))

	feed, err := o.BuildFeed(context.Background(), Request{
		UserID: "u1", Mood: mood.Curious, Blend: 0.5, Limit: 1,
		Interests: []string{"Science"},
	})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected 1 item, got %d", len(feed))
	}
	reasons := feed[0].Reasons
	if !containsReason(reasons, "Matches your topics") {
		t.Errorf("missing interest reason: %v", reasons)
	}
	if !containsReason(reasons, "Tuned for curious") {
		t.Errorf("missing mood reason: %v", reasons)
	}
}

// TestBuildFeedCarriesMoodSignals verifies the mood signals stored on
// snapshot items reach mood scoring: under Hyped an item with a high hype
// signal must outscore an otherwise identical low-hype one.
func TestBuildFeedCarriesMoodSignals(t *testing.T) {
	hot := poolItem("hot", "s1", "tech", 0.5)
	hot.Hype = 0.9
	flat := poolItem("flat", "s2", "world", 0.5)
	o := newTestOverlay(t, poolSnapshot(0, hot, flat))

	feed, err := o.BuildFeed(context.Background(), Request{
		UserID: "u1", Mood: mood.Hyped, Blend: 1, Limit: 2,
	})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 items, got %d", len(feed))
	}
	scores := make(map[string]float64, 2)
	for _, s := range feed {
		scores[s.Item.ID] = s.Score
	}
	if scores["hot"] <= scores["flat"] {
		t.Errorf("hype signal ignored: hot=%f flat=%f", scores["hot"], scores["flat"])
	}
}

// TestBuildFeedAffinityBoost verifies learned affinity lifts a matching
// item over an otherwise identical one.
func TestBuildFeedAffinityBoost(t *testing.T) {
	liked := poolItem("liked", "favsource", "tech", 0.5)
	other := poolItem("other", "s2", "world", 0.5)
	store := snapshot.NewInMemoryStore()
	if err := store.Set(context.Background(), poolSnapshot(0, liked, other)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	learning := learn.NewInMemoryStore()
	if err := learning.UpsertAffinity(context.Background(), &learn.FeatureAffinity{
		UserID: "u1", Mood: mood.Curious,
		FeatureType: learn.FeatureSource, FeatureKey: "favsource",
		Score: 0.9, Observations: 5, UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed affinity: %v", err)
	}

	o := NewOverlay(store, learning, nil).WithSeed(42).WithNow(func() time.Time { return testNow })
	feed, err := o.BuildFeed(context.Background(), Request{UserID: "u1", Mood: mood.Curious, Limit: 2})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	var likedScore, otherScore float64
	for _, s := range feed {
		switch s.Item.ID {
		case "liked":
			likedScore = s.Score
		case "other":
			otherScore = s.Score
		}
	}
	if likedScore <= otherScore {
		t.Errorf("affinity should lift liked item: %f <= %f", likedScore, otherScore)
	}
}

func TestInterestOverlap(t *testing.T) {
	tests := []struct {
		name      string
		topics    []string
		interests []string
		want      float64
	}{
		{name: "no topics", topics: nil, interests: []string{"ai"}, want: 0},
		{name: "no interests", topics: []string{"ai"}, interests: nil, want: 0},
		{name: "full match", topics: []string{"ai"}, interests: []string{"ai"}, want: 1},
		{name: "half match", topics: []string{"ai", "sports"}, interests: []string{"ai"}, want: 0.5},
		{name: "case insensitive topics", topics: []string{"AI"}, interests: []string{"ai"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interestOverlap(tt.topics, normalizeInterests(tt.interests))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("interestOverlap = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestIDJitter(t *testing.T) {
	seen := make(map[float64]bool)
	for _, id := range []string{"a", "b", "c", "article-123", "article-124"} {
		j := idJitter(id)
		if j < 0.995 || j > 1.005 {
			t.Errorf("jitter for %q out of range: %f", id, j)
		}
		if j != idJitter(id) {
			t.Errorf("jitter for %q not deterministic", id)
		}
		seen[j] = true
	}
	if len(seen) < 4 {
		t.Errorf("jitter should spread across ids, got %d distinct values", len(seen))
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
