package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/currents/internal/snapshot"
)

// Read-path windows within the current hour.
const (
	// WarmupMinutes: early in the hour a missing snapshot is expected (the
	// scheduled cycle may still be running), so reads quietly fall back to
	// the latest prior non-empty hour.
	WarmupMinutes = 10
	// OnDemandMinutes: this deep into the hour a still-missing snapshot
	// means the schedule failed, and the read triggers a synchronous
	// heuristics-only generation. The oracle is never called here so read
	// latency stays bounded.
	OnDemandMinutes = 20
)

// GetGlobal returns the ranked list for a date. An empty date means today
// (UTC). Today's reads serve the current hour when present; inside the
// warmup window they fall back to the latest prior non-empty hour, and past
// the on-demand window a still-missing hour is generated heuristics-only.
// Historical dates are served as-is from the latest non-empty stored hour.
func (e *Engine) GetGlobal(ctx context.Context, date string) (*snapshot.Snapshot, error) {
	now := e.now().UTC()
	today, hour := snapshot.KeyFor(now)

	if date == "" {
		date = today
	}
	if _, err := time.Parse(snapshot.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %q", snapshot.ErrInvalidDate, date)
	}

	if date != today {
		return e.latestNonEmpty(ctx, date, 23)
	}

	current, err := e.snapshots.Get(ctx, date, hour)
	if err != nil {
		return nil, err
	}
	if current != nil && len(current.Items) > 0 {
		return current, nil
	}

	if now.Minute() < WarmupMinutes {
		prior, err := e.latestNonEmpty(ctx, date, hour-1)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			if e.metrics != nil {
				e.metrics.IncReadFallbacks("warmup")
			}
			return prior, nil
		}
		return current, nil
	}

	if now.Minute() >= OnDemandMinutes {
		e.logger.Info("no usable snapshot, generating on demand", "date", date, "hour", hour)
		if e.metrics != nil {
			e.metrics.IncReadFallbacks("on_demand")
		}
		return e.GenerateCycle(ctx, now, CycleOptions{UseOracle: false, OnlyIfMissing: false})
	}

	// Between the windows with nothing usable stored: serve what the
	// current hour has, even if empty.
	return current, nil
}

// latestNonEmpty returns the newest snapshot for date with hour <= maxHour
// that has at least one item, or nil when the day has none.
func (e *Engine) latestNonEmpty(ctx context.Context, date string, maxHour int) (*snapshot.Snapshot, error) {
	if maxHour < 0 {
		return nil, nil
	}
	entries, err := e.snapshots.ListHours(ctx, date)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Hour <= maxHour && len(entries[i].Snapshot.Items) > 0 {
			return entries[i].Snapshot, nil
		}
	}
	return nil, nil
}
