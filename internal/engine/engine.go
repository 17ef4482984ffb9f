// Package engine orchestrates the hourly generation cycle: candidate pool,
// heuristic scoring, optional oracle reranking, diversity selection, trend
// labeling, and the snapshot write. It also owns the read path with its
// warmup and on-demand fallbacks.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/currents/internal/article"
	"github.com/onnwee/currents/internal/ranking"
	"github.com/onnwee/currents/internal/rerank"
	"github.com/onnwee/currents/internal/snapshot"
)

// DefaultSnapshotSize is the target item count per hourly snapshot.
const DefaultSnapshotSize = 12

// DefaultOracleCandidates is how many heuristic leaders are offered to the
// reranking oracle.
const DefaultOracleCandidates = 40

// Oracle is the reranking dependency. It is fail-soft: any error means
// "no oracle result this cycle" and the heuristic ordering stands.
type Oracle interface {
	Rerank(ctx context.Context, items []rerank.Item, topK int) ([]rerank.Result, error)
}

// Archiver receives committed snapshots for long-term storage. Failures
// are logged and never fail the cycle.
type Archiver interface {
	Archive(ctx context.Context, snap *snapshot.Snapshot) error
}

// Notifier receives committed snapshots for live fan-out.
type Notifier interface {
	NotifySnapshot(snap *snapshot.Snapshot)
}

// Config holds engine tuning knobs.
type Config struct {
	// SnapshotSize is the target ranked-list length per hour.
	SnapshotSize int
	// OracleCandidates is the heuristic-leader count sent to the oracle,
	// clamped to the oracle batch limits.
	OracleCandidates int
}

// Engine runs generation cycles and serves the global read path.
type Engine struct {
	config    Config
	pool      *article.PoolBuilder
	scorer    *ranking.Scorer
	oracle    Oracle
	snapshots snapshot.Store
	archiver  Archiver
	notifier  Notifier
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	// cycleMu serializes generation: scheduled and on-demand cycles never
	// overlap.
	cycleMu sync.Mutex
}

// New creates an engine. oracle, archiver, and notifier may be nil.
func New(config Config, pool *article.PoolBuilder, scorer *ranking.Scorer, oracle Oracle, snapshots snapshot.Store, logger *slog.Logger) *Engine {
	if config.SnapshotSize <= 0 {
		config.SnapshotSize = DefaultSnapshotSize
	}
	if config.OracleCandidates <= 0 {
		config.OracleCandidates = DefaultOracleCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:    config,
		pool:      pool,
		scorer:    scorer,
		oracle:    oracle,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
	}
}

// WithArchiver attaches a snapshot archiver.
func (e *Engine) WithArchiver(a Archiver) *Engine {
	e.archiver = a
	return e
}

// WithNotifier attaches a live-stream notifier.
func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

// WithMetrics attaches engine metrics.
func (e *Engine) WithMetrics(m *Metrics) *Engine {
	e.metrics = m
	return e
}

// WithNow overrides the clock, for tests.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CycleOptions controls one generation run.
type CycleOptions struct {
	// UseOracle enables the reranking call. The read path's on-demand
	// generation always disables it so read latency stays bounded.
	UseOracle bool
	// OnlyIfMissing skips the cycle when the hour already has a snapshot,
	// making scheduled runs idempotent per (date, hour).
	OnlyIfMissing bool
}

// scoredCluster pairs a cluster with its heuristic result.
type scoredCluster struct {
	cluster article.Cluster
	raw     float64
	score   float64 // normalized heuristic or oracle score, pre-heat
	reasons []string
}

// GenerateCycle runs one full generation for the hour containing at and
// returns the committed snapshot. Cycles are serialized; a second caller
// blocks until the first finishes.
func (e *Engine) GenerateCycle(ctx context.Context, at time.Time, opts CycleOptions) (*snapshot.Snapshot, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	date, hour := snapshot.KeyFor(at)
	if opts.OnlyIfMissing {
		existing, err := e.snapshots.Get(ctx, date, hour)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			e.logger.Debug("snapshot already present, skipping cycle", "date", date, "hour", hour)
			return existing, nil
		}
	}

	start := time.Now()
	snap, err := e.generate(ctx, at, date, hour, opts)
	if e.metrics != nil {
		e.metrics.ObserveCycleDuration(time.Since(start).Seconds())
		if err != nil {
			e.metrics.IncCycles("failure")
		} else {
			e.metrics.IncCycles("success")
			e.metrics.SetLastCycleItems(float64(len(snap.Items)))
		}
	}
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, snap)
	return snap, nil
}

func (e *Engine) generate(ctx context.Context, at time.Time, date string, hour int, opts CycleOptions) (*snapshot.Snapshot, error) {
	clusters, err := e.pool.BuildDay(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate pool: %w", err)
	}

	snap := &snapshot.Snapshot{
		Date:        date,
		Hour:        hour,
		GeneratedAt: e.now().UTC(),
	}

	// An empty window commits an explicitly empty snapshot so readers can
	// distinguish "no news" from "not generated yet".
	if len(clusters) == 0 {
		e.logger.Info("empty candidate window, committing empty snapshot", "date", date, "hour", hour)
		if err := e.snapshots.Set(ctx, snap); err != nil {
			return nil, err
		}
		return snap, nil
	}

	scored := e.scoreClusters(clusters)
	if opts.UseOracle && e.oracle != nil {
		e.applyOracle(ctx, scored)
	}

	selected := e.selectDiverse(scored)
	priorRanks := e.priorRanks(ctx, at)
	snap.Items = e.buildItems(selected, priorRanks)

	if err := e.snapshots.Set(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	e.logger.Info("snapshot committed",
		"date", date,
		"hour", hour,
		"clusters", len(clusters),
		"items", len(snap.Items),
		"oracle", opts.UseOracle && e.oracle != nil)
	return snap, nil
}

// scoreClusters runs the heuristic scorer and normalizes raw scores to
// [0, 1] so they are comparable with oracle scores. Clusters arrive sorted
// newest-first and leave sorted by score descending.
func (e *Engine) scoreClusters(clusters []article.Cluster) []*scoredCluster {
	scored := make([]*scoredCluster, len(clusters))
	raws := make([]float64, len(clusters))
	for i, cluster := range clusters {
		raw, reasons := e.scorer.Score(cluster)
		scored[i] = &scoredCluster{cluster: cluster, raw: raw, reasons: reasons}
		raws[i] = raw
	}
	for i, n := range ranking.MinMaxNormalize(raws) {
		scored[i].score = n
	}
	sortScored(scored)
	return scored
}

// applyOracle sends the heuristic leaders to the oracle and overwrites
// their scores with the oracle's. Everything the oracle does not return
// keeps its normalized heuristic score as the fallback. Oracle failure
// leaves the heuristic ordering untouched.
func (e *Engine) applyOracle(ctx context.Context, scored []*scoredCluster) {
	batch := rerank.ClampCandidateCount(e.config.OracleCandidates)
	if batch > len(scored) {
		batch = len(scored)
	}

	items := make([]rerank.Item, batch)
	byID := make(map[string]*scoredCluster, batch)
	for i, sc := range scored[:batch] {
		rep := sc.cluster.Representative
		items[i] = rerank.Item{
			ID:          rep.ID,
			Title:       rep.Title,
			Source:      rep.SourceID,
			PublishedAt: rep.PublishedAt,
			Summary:     rep.Summary,
			Tags:        rep.Topics,
		}
		byID[rep.ID] = sc
	}

	topK := e.config.SnapshotSize * 2
	results, err := e.oracle.Rerank(ctx, items, topK)
	if err != nil {
		e.logger.Warn("oracle unavailable, keeping heuristic ordering", "error", err)
		return
	}

	for _, res := range results {
		sc, ok := byID[res.ID]
		if !ok {
			continue
		}
		sc.score = res.Score
		sc.reasons = append(sc.reasons, res.Reasons...)
	}
	sortScored(scored)
}

// selectDiverse applies the snapshot diversity caps over the score order.
func (e *Engine) selectDiverse(scored []*scoredCluster) []*scoredCluster {
	entries := make([]ranking.Entry, len(scored))
	index := make(map[string]*scoredCluster, len(scored))
	for i, sc := range scored {
		rep := sc.cluster.Representative
		entries[i] = ranking.Entry{
			ID:       rep.ID,
			SourceID: rep.SourceID,
			Bucket:   ranking.BucketFor(rep.Topics),
			Score:    sc.score,
		}
		index[rep.ID] = sc
	}

	picked := ranking.SelectDiverse(entries, ranking.SnapshotCaps(), e.config.SnapshotSize)
	out := make([]*scoredCluster, len(picked))
	for i, entry := range picked {
		out[i] = index[entry.ID]
	}
	return out
}

// priorRanks loads the previous hour's rank positions for trend labels.
// A missing prior hour simply labels everything NEW.
func (e *Engine) priorRanks(ctx context.Context, at time.Time) map[string]int {
	date, hour := snapshot.KeyFor(at.Add(-time.Hour))
	prior, err := e.snapshots.Get(ctx, date, hour)
	if err != nil {
		e.logger.Warn("failed to load prior snapshot for trends", "error", err)
		return nil
	}
	if prior == nil {
		return nil
	}
	return prior.Ranks()
}

// buildItems assembles snapshot items with heat normalized over the
// selected set and trend labels against the prior hour.
func (e *Engine) buildItems(selected []*scoredCluster, priorRanks map[string]int) []snapshot.Item {
	scores := make([]float64, len(selected))
	for i, sc := range selected {
		scores[i] = sc.score
	}
	heat := ranking.MinMaxNormalize(scores)

	items := make([]snapshot.Item, len(selected))
	for i, sc := range selected {
		rep := sc.cluster.Representative
		items[i] = snapshot.Item{
			ID:            rep.ID,
			ClusterKey:    sc.cluster.Key,
			ClusterSize:   sc.cluster.Size,
			RawScore:      sc.raw,
			Heat:          heat[i],
			Trend:         ranking.TrendFor(priorRanks, rep.ID, i+1),
			Reasons:       sc.reasons,
			Topics:        rep.Topics,
			Bucket:        ranking.BucketFor(rep.Topics),
			Title:         rep.Title,
			SourceID:      rep.SourceID,
			PublishedAt:   rep.PublishedAt,
			Summary:       rep.Summary,
			ImageURL:      rep.ImageURL,
			Embedding:     rep.Embedding,
			Arousal:       rep.Signals.Arousal,
			Sentiment:     rep.Signals.Sentiment,
			Depth:         rep.Signals.Depth,
			Explainer:     rep.Signals.Explainer,
			Wholesome:     rep.Signals.Wholesome,
			Novelty:       rep.Signals.Novelty,
			HumanInterest: rep.Signals.HumanInterest,
			Hype:          rep.Signals.Hype,
		}
	}
	return items
}

// afterCommit fans the committed snapshot out to the archiver and live
// notifier. Both are by-products: failures never unwind the commit.
func (e *Engine) afterCommit(ctx context.Context, snap *snapshot.Snapshot) {
	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, snap); err != nil {
			e.logger.Warn("snapshot archive failed",
				"date", snap.Date,
				"hour", snap.Hour,
				"error", err)
			if e.metrics != nil {
				e.metrics.IncArchiveErrors()
			}
		}
	}
	if e.notifier != nil {
		e.notifier.NotifySnapshot(snap)
	}
}

// sortScored orders by score descending with deterministic id tie-break.
func sortScored(scored []*scoredCluster) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].cluster.Representative.ID > scored[j].cluster.Representative.ID
	})
}
