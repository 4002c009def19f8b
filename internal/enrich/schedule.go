package enrich

import (
	"context"
	"time"

	"github.com/sells-group/localrank/internal/config"
	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
)

// Scheduler decides whether a (place, kind) pair is due for a fresh
// submission. Staleness is evaluated against the newest ledger row for the
// pair regardless of its status, so a still-running job suppresses
// re-submission the same way a completed one does.
type Scheduler struct {
	store      store.Store
	thresholds map[model.TaskKind]time.Duration
}

// NewScheduler builds a scheduler from per-kind freshness thresholds.
func NewScheduler(st store.Store, cfg config.FreshnessConfig) *Scheduler {
	thresholds := make(map[model.TaskKind]time.Duration, len(model.AllKinds()))
	for _, kind := range model.AllKinds() {
		thresholds[kind] = time.Duration(cfg.KindHours(string(kind))) * time.Hour
	}
	return &Scheduler{store: st, thresholds: thresholds}
}

// Due reports whether the kind should be submitted for the place now. When
// not due, the remaining cooldown is returned for logging.
func (s *Scheduler) Due(ctx context.Context, placeID string, kind model.TaskKind) (bool, time.Duration, error) {
	threshold := s.thresholds[kind]
	if threshold <= 0 {
		return true, 0, nil
	}

	latest, err := s.store.LatestTaskFor(ctx, placeID, kind)
	if err != nil {
		return false, 0, err
	}
	if latest == nil {
		return true, 0, nil
	}

	age := time.Since(latest.CreatedAt)
	if age >= threshold {
		return true, 0, nil
	}
	return false, threshold - age, nil
}
