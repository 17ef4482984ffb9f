package learn

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/onnwee/currents/internal/article"
	"github.com/onnwee/currents/internal/mood"
)

const eps = 1e-9

// TestUpdateAffinity verifies the exact EMA trajectory from a cold start:
// one positive event lands on 0.35, a second on 0.5775.
func TestUpdateAffinity(t *testing.T) {
	first := UpdateAffinity(0, 1)
	if math.Abs(first-0.35) > eps {
		t.Errorf("first positive = %f, want 0.35", first)
	}
	second := UpdateAffinity(first, 1)
	if math.Abs(second-0.5775) > eps {
		t.Errorf("second positive = %f, want 0.5775", second)
	}

	negative := UpdateAffinity(0, -1)
	if math.Abs(negative+0.35) > eps {
		t.Errorf("first negative = %f, want -0.35", negative)
	}

	// Out-of-range signals are clamped before blending.
	clamped := UpdateAffinity(0, 5)
	if math.Abs(clamped-0.35) > eps {
		t.Errorf("clamped signal = %f, want 0.35", clamped)
	}
}

// TestUpdateAffinityBounded verifies scores never leave [-1, 1] however
// long the event stream runs.
func TestUpdateAffinityBounded(t *testing.T) {
	score := 0.0
	for i := 0; i < 100; i++ {
		score = UpdateAffinity(score, 1)
		if score < -1 || score > 1 {
			t.Fatalf("score escaped range after %d events: %f", i+1, score)
		}
	}
	if score < 0.99 {
		t.Errorf("score should converge toward 1, got %f", score)
	}
}

// TestUpdateCentroidEmptyState verifies a cold-start centroid adopts the
// normalized sample exactly.
func TestUpdateCentroidEmptyState(t *testing.T) {
	sample := []float32{3, 0, 4} // norm 5
	got := UpdateCentroid(nil, sample, CentroidTowardAlpha, true)
	want := []float32{0.6, 0, 0.8}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("component %d = %f, want %f", i, got[i], want[i])
		}
	}
}

// TestUpdateCentroidUnitNorm verifies updated centroids stay unit-norm and
// move in the right direction.
func TestUpdateCentroidUnitNorm(t *testing.T) {
	centroid := []float32{1, 0, 0}
	sample := []float32{0, 1, 0}

	toward := UpdateCentroid(centroid, sample, CentroidTowardAlpha, true)
	if math.Abs(vectorNorm(toward)-1) > 1e-6 {
		t.Errorf("toward step not unit-norm: %f", vectorNorm(toward))
	}
	if toward[1] <= 0 {
		t.Errorf("toward step should gain the sample dimension, got %v", toward)
	}

	away := UpdateCentroid(toward, sample, CentroidAwayAlpha, false)
	if math.Abs(vectorNorm(away)-1) > 1e-6 {
		t.Errorf("away step not unit-norm: %f", vectorNorm(away))
	}
	if away[1] >= toward[1] {
		t.Errorf("away step should lose the sample dimension: %f -> %f", toward[1], away[1])
	}
}

func TestUpdateCentroidDegenerate(t *testing.T) {
	got := UpdateCentroid([]float32{1, 0}, []float32{0, 0}, 0.12, true)
	if len(got) != 2 || got[0] != 1 || got[1] != 0 {
		t.Errorf("zero sample should keep old centroid, got %v", got)
	}
	// Dimension change restarts from the sample.
	restarted := UpdateCentroid([]float32{1, 0}, []float32{0, 1, 0}, 0.12, true)
	if len(restarted) != 3 || restarted[1] != 1 {
		t.Errorf("dimension change should adopt sample, got %v", restarted)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2}, b: []float32{1, 2}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "empty", a: nil, b: []float32{1}, want: 0},
		{name: "dimension mismatch", a: []float32{1, 0}, b: []float32{1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
		})
	}
}

// TestExtractFeatures verifies the feature vocabulary: source, matched
// interests, tags, and long-enough title tokens, deduplicated.
func TestExtractFeatures(t *testing.T) {
	cand := &article.Candidate{
		ID:       "a1",
		Title:    "AI Lab Opens New Research Hub in Lisbon",
		SourceID: "reuters",
		Topics:   []string{"ai", "research"},
	}
	features := ExtractFeatures(cand, []string{"AI", "football"})

	byType := map[FeatureType][]string{}
	for _, f := range features {
		byType[f.Type] = append(byType[f.Type], f.Key)
	}

	if got := byType[FeatureSource]; len(got) != 1 || got[0] != "reuters" {
		t.Errorf("source features = %v", got)
	}
	if got := byType[FeatureInterest]; len(got) != 1 || got[0] != "ai" {
		t.Errorf("interest features = %v, want matched interest only", got)
	}
	if got := byType[FeatureTag]; len(got) != 2 {
		t.Errorf("tag features = %v", got)
	}
	// "AI" and "in" are shorter than three runes; "research" appears as both
	// tag and title token, kept once per type.
	wantTokens := map[string]bool{"lab": true, "opens": true, "new": true, "research": true, "hub": true, "lisbon": true}
	tokens := byType[FeatureTitleToken]
	if len(tokens) != len(wantTokens) {
		t.Fatalf("title tokens = %v", tokens)
	}
	for _, tok := range tokens {
		if !wantTokens[tok] {
			t.Errorf("unexpected title token %q", tok)
		}
	}
}

func TestTitleTokens(t *testing.T) {
	got := TitleTokens("Why-oh-why: GPUs, again?!")
	want := []string{"why", "why", "gpus", "again"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestActionClassification(t *testing.T) {
	positives := []Action{ActionMoreLikeThis, ActionGreatExplainer, ActionMoreLaunches}
	for _, a := range positives {
		if !IsPositive(a) || Signal(a) != 1 {
			t.Errorf("%s should be positive", a)
		}
	}
	negatives := []Action{ActionLessLikeThis, ActionTooIntense, ActionNotForMe}
	for _, a := range negatives {
		if IsPositive(a) || Signal(a) != -1 {
			t.Errorf("%s should be negative", a)
		}
	}
	if ValidAction(Action("shrug")) {
		t.Error("unknown action should be invalid")
	}
}

// TestRecorder exercises the full feedback path against in-memory stores.
func TestRecorder(t *testing.T) {
	ctx := context.Background()
	articles := article.NewInMemoryStore()
	articles.Add(article.Candidate{
		ID:        "a1",
		Title:     "Fusion Milestone Reached",
		SourceID:  "apnews",
		Topics:    []string{"science"},
		Embedding: []float32{0, 3, 4},
	})

	store := NewInMemoryStore()
	now := time.Date(2026, 8, 23, 15, 0, 0, 0, time.UTC)
	rec := NewRecorder(store, articles, nil, nil).WithNow(func() time.Time { return now })

	if err := rec.Record(ctx, "u1", "a1", mood.Curious, ActionMoreLikeThis, []string{"science"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events := store.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != "u1" || events[0].Action != ActionMoreLikeThis || !events[0].CreatedAt.Equal(now) {
		t.Errorf("unexpected event: %+v", events[0])
	}

	aff, err := store.GetAffinity(ctx, "u1", mood.Curious, FeatureSource, "apnews")
	if err != nil || aff == nil {
		t.Fatalf("source affinity missing: (%v, %v)", aff, err)
	}
	if math.Abs(aff.Score-0.35) > eps || aff.Observations != 1 {
		t.Errorf("source affinity = %+v, want score 0.35 obs 1", aff)
	}

	// Per-user centroid adopts the normalized embedding; the shared centroid
	// gets the positive nudge too.
	c, err := store.GetCentroid(ctx, "u1", mood.Curious)
	if err != nil || c == nil {
		t.Fatalf("user centroid missing: (%v, %v)", c, err)
	}
	if math.Abs(float64(c.Vector[1])-0.6) > 1e-6 || math.Abs(float64(c.Vector[2])-0.8) > 1e-6 {
		t.Errorf("user centroid = %v, want [0 0.6 0.8]", c.Vector)
	}
	global, err := store.GetCentroid(ctx, GlobalUserID, mood.Curious)
	if err != nil || global == nil {
		t.Fatalf("global centroid missing: (%v, %v)", global, err)
	}

	// A second positive event moves the affinity to exactly 0.5775.
	if err := rec.Record(ctx, "u1", "a1", mood.Curious, ActionGreatExplainer, nil); err != nil {
		t.Fatalf("second Record: %v", err)
	}
	aff, _ = store.GetAffinity(ctx, "u1", mood.Curious, FeatureSource, "apnews")
	if math.Abs(aff.Score-0.5775) > eps || aff.Observations != 2 {
		t.Errorf("source affinity after second event = %+v, want score 0.5775 obs 2", aff)
	}
}

// TestRecorderNegative verifies negative feedback moves affinity down and
// never touches the shared centroid.
func TestRecorderNegative(t *testing.T) {
	ctx := context.Background()
	articles := article.NewInMemoryStore()
	articles.Add(article.Candidate{
		ID:        "a1",
		Title:     "Market Jitters Continue",
		SourceID:  "ft",
		Embedding: []float32{1, 0},
	})

	store := NewInMemoryStore()
	rec := NewRecorder(store, articles, nil, nil)

	if err := rec.Record(ctx, "u1", "a1", mood.Stressed, ActionLessLikeThis, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	aff, _ := store.GetAffinity(ctx, "u1", mood.Stressed, FeatureSource, "ft")
	if aff == nil || aff.Score >= 0 {
		t.Errorf("negative feedback should yield negative affinity: %+v", aff)
	}

	global, _ := store.GetCentroid(ctx, GlobalUserID, mood.Stressed)
	if global != nil {
		t.Errorf("negative feedback must not create the shared centroid: %+v", global)
	}
}

type stubEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.texts = append(s.texts, text)
	return s.vector, s.err
}

// TestRecorderEmbedderBackfill verifies that an article stored without an
// embedding still drives centroid learning when a provider is attached.
func TestRecorderEmbedderBackfill(t *testing.T) {
	ctx := context.Background()
	articles := article.NewInMemoryStore()
	articles.Add(article.Candidate{
		ID:       "a1",
		Title:    "Quiet Breakthrough in Battery Chemistry",
		SourceID: "reuters",
	})

	store := NewInMemoryStore()
	embedder := &stubEmbedder{vector: []float32{0, 3, 4}}
	rec := NewRecorder(store, articles, nil, nil).WithEmbedder(embedder)

	if err := rec.Record(ctx, "u1", "a1", mood.Focused, ActionMoreLikeThis, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(embedder.texts) != 1 || embedder.texts[0] != "Quiet Breakthrough in Battery Chemistry" {
		t.Errorf("embedder called with %v, want the article title", embedder.texts)
	}
	c, err := store.GetCentroid(ctx, "u1", mood.Focused)
	if err != nil || c == nil {
		t.Fatalf("centroid missing after backfill: (%v, %v)", c, err)
	}
	if math.Abs(float64(c.Vector[1])-0.6) > 1e-6 || math.Abs(float64(c.Vector[2])-0.8) > 1e-6 {
		t.Errorf("centroid = %v, want [0 0.6 0.8]", c.Vector)
	}

	// A failing provider downgrades to no centroid update, never an error.
	store2 := NewInMemoryStore()
	failing := &stubEmbedder{err: errors.New("embedding service returned status 503")}
	rec2 := NewRecorder(store2, articles, nil, nil).WithEmbedder(failing)
	if err := rec2.Record(ctx, "u1", "a1", mood.Focused, ActionMoreLikeThis, nil); err != nil {
		t.Fatalf("Record with failing embedder: %v", err)
	}
	if c, _ := store2.GetCentroid(ctx, "u1", mood.Focused); c != nil {
		t.Errorf("failing embedder must not create a centroid: %+v", c)
	}
	if got := store2.Events(); len(got) != 1 {
		t.Errorf("event log should still record the feedback, got %d events", len(got))
	}
}

func TestRecorderErrors(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := NewRecorder(store, article.NewInMemoryStore(), nil, nil)

	if err := rec.Record(ctx, "u1", "a1", mood.Calm, Action("shrug"), nil); err == nil {
		t.Error("expected error for unknown action")
	}
	if err := rec.Record(ctx, "u1", "missing", mood.Calm, ActionMoreLikeThis, nil); err == nil {
		t.Error("expected error for unknown article")
	}
	if got := store.Events(); len(got) != 0 {
		t.Errorf("failed records must not log events, got %d", len(got))
	}
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
