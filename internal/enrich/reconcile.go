package enrich

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

// Reconciler cross-references the provider's ready-lists against the Task
// Ledger: active tasks found ready advance, the rest get re-stamped pending,
// and ready entries the ledger has never seen are adopted so jobs submitted
// by a crashed process are not lost.
type Reconciler struct {
	store   store.Store
	gateway dataforseo.Client
}

// NewReconciler creates a reconciler over the given ledger and gateway.
func NewReconciler(st store.Store, gw dataforseo.Client) *Reconciler {
	return &Reconciler{store: st, gateway: gw}
}

// Run performs one reconciliation pass and returns the number of ledger rows
// touched. A ready-list fetch failure for one kind is logged and skipped; it
// never aborts the other kinds.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	log := zap.L().With(zap.String("component", "enrich.reconciler"))

	var mu sync.Mutex
	readyByKind := make(map[model.TaskKind]map[string]dataforseo.ReadyTask)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, kind := range model.AsyncKinds() {
		kind := kind
		g.Go(func() error {
			entries, err := r.gateway.ListReady(gctx, kind)
			if err != nil {
				log.Warn("ready-list fetch failed",
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				return nil // isolate per-kind failures
			}
			byID := make(map[string]dataforseo.ReadyTask, len(entries))
			for _, e := range entries {
				byID[e.RemoteID] = e
			}
			mu.Lock()
			readyByKind[kind] = byID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, eris.Wrap(err, "reconciler: poll ready lists")
	}

	active, err := r.store.ListActiveTasks(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "reconciler: list active tasks")
	}

	touched := 0
	seen := make(map[string]bool, len(active))
	for _, task := range active {
		seen[task.ID] = true

		if entry, ok := readyByKind[task.Kind][task.ID]; ok {
			if err := r.store.MarkTaskReady(ctx, task.ID, entry.Endpoint, entry.StatusCode, entry.StatusMessage); err != nil {
				log.Error("mark ready failed", zap.String("task", task.ID), zap.Error(err))
				continue
			}
			touched++
			continue
		}

		// Not ready yet: stamp the row as outstanding.
		if err := r.store.MarkTaskPending(ctx, task.ID, 0, ""); err != nil {
			log.Error("mark pending failed", zap.String("task", task.ID), zap.Error(err))
			continue
		}
		touched++
	}

	// Adopt ready entries with no ledger row. seen only covers active rows,
	// so terminal rows still on the provider's list need the explicit
	// existence check; they are already settled and must not be re-adopted.
	for kind, entries := range readyByKind {
		for id, entry := range entries {
			if seen[id] {
				continue
			}
			if _, err := r.store.GetTask(ctx, id); err == nil {
				continue
			} else if !eris.Is(err, store.ErrTaskNotFound) {
				log.Error("adoption lookup failed", zap.String("task", id), zap.Error(err))
				continue
			}
			task := &model.EnrichmentTask{
				ID:            id,
				Kind:          kind,
				PlaceID:       entry.Tag,
				Status:        model.StatusReady,
				StatusCode:    entry.StatusCode,
				StatusMessage: entry.StatusMessage,
				Endpoint:      entry.Endpoint,
			}
			if err := r.store.UpsertTask(ctx, task); err != nil {
				log.Error("adopt ready task failed", zap.String("task", id), zap.Error(err))
				continue
			}
			// Stamp ready_at; no-op if the row already has one.
			if err := r.store.MarkTaskReady(ctx, id, entry.Endpoint, entry.StatusCode, entry.StatusMessage); err != nil {
				log.Error("stamp adopted task failed", zap.String("task", id), zap.Error(err))
			}
			log.Info("adopted unknown ready task",
				zap.String("task", id),
				zap.String("kind", string(kind)),
				zap.String("place", entry.Tag),
			)
			touched++
		}
	}

	log.Debug("reconciliation pass complete", zap.Int("touched", touched))
	return touched, nil
}
