// Package personal builds per-user feeds on top of the hourly global
// snapshots: blended mood/interest scoring, learned affinity and centroid
// boosts, and diversity-constrained weighted sampling.
package personal

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/onnwee/currents/internal/article"
	"github.com/onnwee/currents/internal/learn"
	"github.com/onnwee/currents/internal/mood"
	"github.com/onnwee/currents/internal/ranking"
	"github.com/onnwee/currents/internal/snapshot"
)

// Scoring constants.
const (
	// Pool lookback bounds in hours; comfort widens, challenge narrows.
	MinLookbackHours = 3
	MaxLookbackHours = 8

	// Base score blend of importance vs recency.
	baseImportanceWeight = 0.7
	baseRecencyWeight    = 0.3
	// recencyHorizon is the age at which the recency term reaches zero.
	recencyHorizon = 24 * time.Hour

	// Centroid similarity weights.
	UserCentroidWeight   = 0.22
	GlobalCentroidWeight = 0.18

	// Age damping for items older than six hours, interpolated by blend.
	ageDampingThreshold = 6 * time.Hour
	ageDampingComfort   = 0.92
	ageDampingChallenge = 0.86

	// Off-mood penalty of up to 8% below this mood-fit threshold.
	offMoodThreshold  = 0.48
	offMoodMaxPenalty = 0.08

	// DefaultGlobalOverlapPenalty discounts items already near the top of
	// the global list when they are mood-weak for this user.
	DefaultGlobalOverlapPenalty = 0.12
	nearTopGlobalRank           = 5
	moodWeakThreshold           = 0.5

	// Reason thresholds.
	interestReasonThreshold = 0.15
	moodReasonThreshold     = 0.55

	// MinSafeguardFloor is the smallest pool the early-day safeguard
	// protects.
	MinSafeguardFloor = 3
)

// Request describes one personal feed request.
type Request struct {
	UserID    string
	Mood      mood.Mood
	Blend     float64
	Interests []string
	Limit     int
	// Exclude holds article ids already shown to this user in the global
	// list. The early-day safeguard may ignore it.
	Exclude map[string]bool
	// OverlapPenalty overrides DefaultGlobalOverlapPenalty when > 0.
	OverlapPenalty float64
}

// Scored is one feed entry with its personal score and merged reasons.
type Scored struct {
	Item    snapshot.Item
	Score   float64
	Reasons []string
}

// Overlay computes personal feeds from snapshot and learning state. All
// learning state is read-only here; only the feedback recorder writes it.
type Overlay struct {
	snapshots snapshot.Store
	learning  learn.Store
	logger    *slog.Logger
	now       func() time.Time
	seed      func() int64
}

// NewOverlay creates a personalization overlay.
func NewOverlay(snapshots snapshot.Store, learning learn.Store, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{
		snapshots: snapshots,
		learning:  learning,
		logger:    logger,
		now:       time.Now,
		seed:      func() int64 { return time.Now().UnixNano() },
	}
}

// WithNow overrides the clock, for tests.
func (o *Overlay) WithNow(now func() time.Time) *Overlay {
	o.now = now
	return o
}

// WithSeed makes sampling deterministic, for tests.
func (o *Overlay) WithSeed(seed int64) *Overlay {
	o.seed = func() int64 { return seed }
	return o
}

// LookbackHours returns the pool lookback window for a blend value:
// comfort (0) looks back the full window, challenge (1) only the freshest
// hours.
func LookbackHours(blend float64) int {
	blend = ranking.Clamp01(blend)
	span := float64(MaxLookbackHours - MinLookbackHours)
	return MinLookbackHours + int(math.Round((1-blend)*span))
}

// BuildFeed assembles the personal feed for one request.
func (o *Overlay) BuildFeed(ctx context.Context, req Request) ([]Scored, error) {
	if req.Limit <= 0 {
		req.Limit = 8
	}
	if !mood.Known(req.Mood) {
		req.Mood = mood.DefaultMood
	}
	req.Blend = ranking.Clamp01(req.Blend)
	if req.OverlapPenalty <= 0 {
		req.OverlapPenalty = DefaultGlobalOverlapPenalty
	}

	now := o.now()
	pool, globalRanks, err := o.collectPool(ctx, now, LookbackHours(req.Blend))
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	affinities, userCentroid, globalCentroid := o.loadLearningState(ctx, req.UserID, req.Mood)

	scored := o.scorePool(pool, req, globalRanks, affinities, userCentroid, globalCentroid, now)

	// Early-day safeguard: rather than starve the personal list, accept
	// overlap with the global list when exclusion leaves too little.
	candidates := applyExclusion(scored, req.Exclude)
	if floor := maxInt(MinSafeguardFloor, req.Limit/2); len(candidates) < floor {
		o.logger.Debug("exclusion safeguard triggered",
			"user_id", req.UserID,
			"remaining", len(candidates),
			"floor", floor)
		candidates = scored
	}

	return SampleDiverse(candidates, req.Limit, o.seed()), nil
}

// collectPool walks back through recent hourly snapshots, deduplicating by
// article id (freshest hour wins), and records the most recent snapshot's
// global ranks for the overlap penalty.
func (o *Overlay) collectPool(ctx context.Context, now time.Time, lookback int) ([]snapshot.Item, map[string]int, error) {
	var (
		pool        []snapshot.Item
		globalRanks map[string]int
		seen        = make(map[string]bool)
	)
	for i := 0; i < lookback; i++ {
		date, hour := snapshot.KeyFor(now.Add(-time.Duration(i) * time.Hour))
		snap, err := o.snapshots.Get(ctx, date, hour)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load snapshot pool: %w", err)
		}
		if snap == nil || len(snap.Items) == 0 {
			continue
		}
		if globalRanks == nil {
			globalRanks = snap.Ranks()
		}
		for _, item := range snap.Items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			pool = append(pool, item)
		}
	}
	return pool, globalRanks, nil
}

// loadLearningState reads the user's affinities and centroids. Learning
// state is a boost, not a dependency: failures degrade to the unboosted
// feed.
func (o *Overlay) loadLearningState(ctx context.Context, userID string, m mood.Mood) (map[learn.Feature]float64, []float32, []float32) {
	affinities := make(map[learn.Feature]float64)
	rows, err := o.learning.ListAffinities(ctx, userID, m)
	if err != nil {
		o.logger.Warn("affinity lookup failed", "user_id", userID, "error", err)
	}
	for _, row := range rows {
		affinities[learn.Feature{Type: row.FeatureType, Key: row.FeatureKey}] = row.Score
	}

	var userVec, globalVec []float32
	if c, err := o.learning.GetCentroid(ctx, userID, m); err != nil {
		o.logger.Warn("centroid lookup failed", "user_id", userID, "error", err)
	} else if c != nil {
		userVec = c.Vector
	}
	if c, err := o.learning.GetCentroid(ctx, learn.GlobalUserID, m); err != nil {
		o.logger.Warn("global centroid lookup failed", "mood", m, "error", err)
	} else if c != nil {
		globalVec = c.Vector
	}
	return affinities, userVec, globalVec
}

func (o *Overlay) scorePool(pool []snapshot.Item, req Request, globalRanks map[string]int, affinities map[learn.Feature]float64, userCentroid, globalCentroid []float32, now time.Time) []Scored {
	bases := baseScores(pool, now)
	interests := normalizeInterests(req.Interests)

	wMood := 1.25 + (req.Blend-0.5)*0.6
	wInterest := 1.05 + (0.5-req.Blend)*0.3
	ageDamping := ageDampingComfort - (ageDampingComfort-ageDampingChallenge)*req.Blend

	scored := make([]Scored, 0, len(pool))
	for i, item := range pool {
		overlap := interestOverlap(item.Topics, interests)
		moodScore := mood.Score(itemView(item), req.Mood, req.Blend, now)

		score := bases[i] * (1 + wInterest*overlap + wMood*(moodScore-0.5))

		if now.Sub(item.PublishedAt) > ageDampingThreshold {
			score *= ageDamping
		}
		if moodScore < offMoodThreshold {
			score *= 1 - offMoodMaxPenalty*ranking.Clamp01((offMoodThreshold-moodScore)/offMoodThreshold)
		}
		if rank, ok := globalRanks[item.ID]; ok && rank <= nearTopGlobalRank && moodScore < moodWeakThreshold {
			score *= 1 - req.OverlapPenalty
		}

		score += learnedAffinity(item, interests, affinities)
		score += vectorBoost(item.Embedding, userCentroid, globalCentroid)
		score *= idJitter(item.ID)

		scored = append(scored, Scored{
			Item:    item,
			Score:   score,
			Reasons: mergeReasons(item.Reasons, overlap, moodScore, req.Mood),
		})
	}
	return scored
}

// baseScores min-max normalizes the blend of importance and recency over
// the whole pool.
func baseScores(pool []snapshot.Item, now time.Time) []float64 {
	raw := make([]float64, len(pool))
	for i, item := range pool {
		importance := math.Max(item.RawScore, item.Heat)
		recency := ranking.Clamp01(1 - now.Sub(item.PublishedAt).Hours()/recencyHorizon.Hours())
		raw[i] = baseImportanceWeight*importance + baseRecencyWeight*recency
	}
	return ranking.MinMaxNormalize(raw)
}

func normalizeInterests(interests []string) []string {
	out := make([]string, 0, len(interests))
	for _, in := range interests {
		if s := strings.ToLower(strings.TrimSpace(in)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// interestOverlap is the fraction of the item's topics matching the user's
// interest set.
func interestOverlap(topics, interests []string) float64 {
	if len(topics) == 0 || len(interests) == 0 {
		return 0
	}
	matched := 0
	for _, topic := range topics {
		t := strings.ToLower(topic)
		for _, interest := range interests {
			if t == interest {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(topics))
}

// learnedAffinity sums the user's affinity scores over the item's features
// and squashes the total into ±0.5.
func learnedAffinity(item snapshot.Item, interests []string, affinities map[learn.Feature]float64) float64 {
	if len(affinities) == 0 {
		return 0
	}
	cand := &article.Candidate{
		Title:    item.Title,
		SourceID: item.SourceID,
		Topics:   item.Topics,
	}
	var sum float64
	for _, f := range learn.ExtractFeatures(cand, interests) {
		sum += affinities[f]
	}
	return math.Tanh(sum/4) * 0.5
}

// vectorBoost rewards cosine similarity to the user's and global mood
// centroids. Negative similarity never penalizes.
func vectorBoost(embedding, userCentroid, globalCentroid []float32) float64 {
	if len(embedding) == 0 {
		return 0
	}
	boost := UserCentroidWeight * math.Max(0, learn.Cosine(embedding, userCentroid))
	boost += GlobalCentroidWeight * math.Max(0, learn.Cosine(embedding, globalCentroid))
	return boost
}

// idJitter returns a deterministic multiplier in [0.995, 1.005] derived
// from the article id, so equal scores order reproducibly.
func idJitter(id string) float64 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return 0.995 + 0.01*float64(h.Sum32()%10001)/10000
}

func mergeReasons(upstream []string, overlap, moodScore float64, m mood.Mood) []string {
	reasons := append([]string(nil), upstream...)
	if overlap > interestReasonThreshold {
		reasons = append(reasons, "Matches your topics")
	}
	if moodScore > moodReasonThreshold {
		reasons = append(reasons, "Tuned for "+string(m))
	}
	return reasons
}

func itemView(item snapshot.Item) mood.ItemView {
	return mood.ItemView{
		Title:         item.Title,
		Summary:       item.Summary,
		Topics:        item.Topics,
		PublishedAt:   item.PublishedAt,
		Arousal:       item.Arousal,
		Sentiment:     item.Sentiment,
		Depth:         item.Depth,
		Explainer:     item.Explainer,
		Wholesome:     item.Wholesome,
		Novelty:       item.Novelty,
		HumanInterest: item.HumanInterest,
		Hype:          item.Hype,
	}
}

func applyExclusion(scored []Scored, exclude map[string]bool) []Scored {
	if len(exclude) == 0 {
		return scored
	}
	out := make([]Scored, 0, len(scored))
	for _, s := range scored {
		if !exclude[s.Item.ID] {
			out = append(out, s)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
