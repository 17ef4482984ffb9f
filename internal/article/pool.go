package article

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// MinWindowResults is the candidate count below which the pool builder
// widens its query window.
const MinWindowResults = 10

// WidenedWindow is the fallback lookback when the primary window is thin.
const WidenedWindow = 48 * time.Hour

// Store is the read-only article store contract the engine consumes.
// Ingestion owns writes; the engine only queries.
type Store interface {
	// QueryByTimeWindow returns candidates published in [start, end).
	QueryByTimeWindow(ctx context.Context, start, end time.Time) ([]Candidate, error)
	// GetByID returns a candidate by id, or nil if absent.
	GetByID(ctx context.Context, id string) (*Candidate, error)
	// GetByIDs returns the candidates whose ids are present in the store.
	// Implementations chunk large id sets to respect batch limits.
	GetByIDs(ctx context.Context, ids []string) ([]Candidate, error)
}

// PoolBuilder builds the deduplicated candidate pool for a ranking cycle.
type PoolBuilder struct {
	store  Store
	logger *slog.Logger
}

// NewPoolBuilder creates a pool builder over the given article store.
func NewPoolBuilder(store Store, logger *slog.Logger) *PoolBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PoolBuilder{store: store, logger: logger}
}

// BuildDay fetches the day's articles and clusters them by canonical URL.
// The day window is [midnight UTC, now]; if it yields fewer than
// MinWindowResults candidates the window widens to the last 48 hours.
// An empty window is not an error: it yields an empty pool, which the
// engine turns into an explicitly empty snapshot.
func (b *PoolBuilder) BuildDay(ctx context.Context, now time.Time) ([]Cluster, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	candidates, err := b.store.QueryByTimeWindow(ctx, dayStart, now)
	if err != nil {
		return nil, err
	}

	if len(candidates) < MinWindowResults {
		widened, err := b.store.QueryByTimeWindow(ctx, now.Add(-WidenedWindow), now)
		if err != nil {
			return nil, err
		}
		if len(widened) > len(candidates) {
			b.logger.Debug("widened candidate window",
				"primary_count", len(candidates),
				"widened_count", len(widened))
			candidates = widened
		}
	}

	return ClusterByCanonicalURL(candidates), nil
}

// ClusterByCanonicalURL groups candidates by canonical URL and selects one
// representative per group. Representative selection is deterministic:
// latest published-at, then latest created-at, then lexicographically
// largest id. Clusters are returned ordered by the representative's
// published-at descending (same tie-breaks) so downstream scoring sees a
// stable input order.
func ClusterByCanonicalURL(candidates []Candidate) []Cluster {
	groups := make(map[string][]Candidate)
	order := make([]string, 0)
	for _, c := range candidates {
		key := CanonicalURL(c.URL)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	clusters := make([]Cluster, 0, len(groups))
	for _, key := range order {
		group := groups[key]
		rep := group[0]
		for _, c := range group[1:] {
			if newerThan(c, rep) {
				rep = c
			}
		}
		clusters = append(clusters, Cluster{
			Key:            key,
			Representative: rep,
			Size:           len(group),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return newerThan(clusters[i].Representative, clusters[j].Representative)
	})
	return clusters
}

// newerThan reports whether a should be preferred over b as the cluster
// representative.
func newerThan(a, b Candidate) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
