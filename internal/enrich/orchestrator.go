package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

// providerBadRequest is the provider status code for a submission whose
// request shape it could not process. Submissions retry with fallback shapes
// on this code only.
const providerBadRequest = 40501

// Orchestrator is the enrichment facade: it submits due jobs, reconciles the
// ledger against the provider, and populates ready results.
type Orchestrator struct {
	store      store.Store
	gateway    dataforseo.Client
	sched      *Scheduler
	mat        *Materializer
	reconciler *Reconciler

	depth       int
	postbackURL string
	log         *zap.Logger
}

// OrchestratorOptions carries submission parameters shared by all kinds.
type OrchestratorOptions struct {
	// Depth is the item depth requested per async task.
	Depth int
	// PostbackURL, when set, is sent with each submission so the provider
	// pushes results instead of waiting for the next poll.
	PostbackURL string
}

// NewOrchestrator wires the facade from its collaborators.
func NewOrchestrator(st store.Store, gw dataforseo.Client, sched *Scheduler, mat *Materializer, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		store:       st,
		gateway:     gw,
		sched:       sched,
		mat:         mat,
		reconciler:  NewReconciler(st, gw),
		depth:       opts.Depth,
		postbackURL: opts.PostbackURL,
		log:         zap.L().With(zap.String("component", "enrich.orchestrator")),
	}
}

// EnrichPlaces submits every due (place, kind) pair, then runs one
// reconciliation pass. A failed submission becomes an error ledger row and
// never aborts the rest of the batch. Returns the number of submissions made.
func (o *Orchestrator) EnrichPlaces(ctx context.Context, places []model.Place, kinds []model.TaskKind) (int, error) {
	if len(kinds) == 0 {
		kinds = model.AllKinds()
	}

	submitted := 0
	for _, place := range places {
		for _, kind := range kinds {
			due, remaining, err := o.sched.Due(ctx, place.ID, kind)
			if err != nil {
				return submitted, eris.Wrapf(err, "enrich: freshness check %s/%s", place.ID, kind)
			}
			if !due {
				o.log.Debug("kind fresh, skipping",
					zap.String("place", place.ID),
					zap.String("kind", string(kind)),
					zap.Duration("remaining", remaining),
				)
				continue
			}

			if kind == model.KindSocialProfiles {
				o.enrichSocial(ctx, place)
			} else {
				o.submit(ctx, place, kind)
			}
			submitted++
		}
	}

	if _, err := o.reconciler.Run(ctx); err != nil {
		return submitted, err
	}
	return submitted, nil
}

// Reconcile runs one reconciliation pass over the active ledger.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	return o.reconciler.Run(ctx)
}

// submit posts one async task, walking the fallback request shapes when the
// provider rejects the shape itself. Any terminal submission failure is
// recorded as an error ledger row.
func (o *Orchestrator) submit(ctx context.Context, place model.Place, kind model.TaskKind) {
	var lastCode int
	var lastMsg string

	for _, req := range o.requestVariants(place) {
		res, err := o.gateway.Submit(ctx, kind, req)
		if err != nil {
			o.recordSubmitError(ctx, place, kind, 0, err.Error())
			return
		}
		lastCode, lastMsg = res.StatusCode, res.StatusMessage

		if res.RemoteID != "" && !model.StatusFatal(res.StatusCode) {
			task := &model.EnrichmentTask{
				ID:            res.RemoteID,
				Kind:          kind,
				PlaceID:       place.ID,
				LocationName:  place.LocationName,
				Status:        model.StatusCreated,
				StatusCode:    res.StatusCode,
				StatusMessage: res.StatusMessage,
				CreatedAt:     time.Now().UTC(),
			}
			if err := o.store.UpsertTask(ctx, task); err != nil {
				o.log.Error("ledger insert failed after submit",
					zap.String("task", res.RemoteID),
					zap.Error(err),
				)
			}
			return
		}
		if res.StatusCode != providerBadRequest {
			break
		}
		o.log.Info("submission shape rejected, trying fallback",
			zap.String("place", place.ID),
			zap.String("kind", string(kind)),
		)
	}

	o.recordSubmitError(ctx, place, kind, lastCode, lastMsg)
}

// requestVariants returns the submission shapes in preference order: the
// place id first, then keyword searches that some endpoints require.
func (o *Orchestrator) requestVariants(place model.Place) []dataforseo.TaskRequest {
	base := dataforseo.TaskRequest{
		Depth:       o.depth,
		Tag:         place.ID,
		PostbackURL: o.postbackURL,
	}

	byID := base
	byID.PlaceID = place.ID
	byID.LocationName = place.LocationName

	byName := base
	byName.Keyword = place.Name
	byName.LocationName = place.LocationName

	variants := []dataforseo.TaskRequest{byID, byName}
	if place.Address != "" {
		byAddress := base
		byAddress.Keyword = place.Name + " " + place.Address
		variants = append(variants, byAddress)
	}
	return variants
}

// enrichSocial runs the live social-profiles path: one synchronous call,
// materialized immediately, with a ledger row recording the outcome either
// way.
func (o *Orchestrator) enrichSocial(ctx context.Context, place model.Place) {
	req := dataforseo.TaskRequest{
		Keyword:      place.Name,
		LocationName: place.LocationName,
		Tag:          place.ID,
	}
	res, err := o.gateway.LiveSocial(ctx, req)
	if err != nil {
		o.recordSubmitError(ctx, place, model.KindSocialProfiles, 0, err.Error())
		return
	}

	id := res.RemoteID
	if id == "" {
		id = syntheticTaskID(model.KindSocialProfiles)
	}
	task := &model.EnrichmentTask{
		ID:            id,
		Kind:          model.KindSocialProfiles,
		PlaceID:       place.ID,
		LocationName:  place.LocationName,
		Status:        model.StatusReady,
		StatusCode:    res.StatusCode,
		StatusMessage: res.StatusMessage,
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.store.UpsertTask(ctx, task); err != nil {
		o.log.Error("ledger insert failed for live social task",
			zap.String("place", place.ID),
			zap.Error(err),
		)
		return
	}
	if _, err := o.mat.PopulateFromResult(ctx, task, res); err != nil {
		o.log.Warn("live social materialization failed",
			zap.String("place", place.ID),
			zap.String("task", id),
			zap.Error(err),
		)
	}
}

// recordSubmitError writes a terminal error row under a synthetic id so the
// failure is visible in listings and purgeable later.
func (o *Orchestrator) recordSubmitError(ctx context.Context, place model.Place, kind model.TaskKind, code int, msg string) {
	task := &model.EnrichmentTask{
		ID:            syntheticTaskID(kind),
		Kind:          kind,
		PlaceID:       place.ID,
		LocationName:  place.LocationName,
		Status:        model.StatusError,
		StatusCode:    code,
		StatusMessage: msg,
		LastError:     msg,
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.store.UpsertTask(ctx, task); err != nil {
		o.log.Error("ledger insert failed for submit error",
			zap.String("place", place.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	o.log.Warn("submission failed",
		zap.String("place", place.ID),
		zap.String("kind", string(kind)),
		zap.Int("status_code", code),
		zap.String("message", msg),
	)
}

func syntheticTaskID(kind model.TaskKind) string {
	return fmt.Sprintf("%s-err-%s", kind, uuid.NewString())
}

// PopulateStats summarizes one population pass.
type PopulateStats struct {
	Attempted int
	Succeeded int
	Failed    int
	Items     int
}

// PopulateTask fetches and materializes a single task by id.
func (o *Orchestrator) PopulateTask(ctx context.Context, id string) (int, error) {
	task, err := o.store.GetTask(ctx, id)
	if err != nil {
		return 0, err
	}
	return o.mat.Populate(ctx, task)
}

// PopulateReadyTasks populates every ready task, optionally restricted to
// one kind. Failures are isolated per task.
func (o *Orchestrator) PopulateReadyTasks(ctx context.Context, kind *model.TaskKind) (PopulateStats, error) {
	var kinds []model.TaskKind
	if kind != nil {
		kinds = []model.TaskKind{*kind}
	}
	active, err := o.store.ListActiveTasks(ctx, kinds)
	if err != nil {
		return PopulateStats{}, eris.Wrap(err, "enrich: list active tasks")
	}

	var stats PopulateStats
	for i := range active {
		task := &active[i]
		if task.Status != model.StatusReady {
			continue
		}
		stats.Attempted++
		items, err := o.mat.Populate(ctx, task)
		if err != nil {
			stats.Failed++
			o.log.Warn("population failed",
				zap.String("task", task.ID),
				zap.String("kind", string(task.Kind)),
				zap.Error(err),
			)
			continue
		}
		stats.Succeeded++
		stats.Items += items
	}
	return stats, nil
}

// GetLatestTasks lists ledger rows newest-first for CLI and HTTP surfaces.
func (o *Orchestrator) GetLatestTasks(ctx context.Context, filter store.TaskFilter) ([]model.EnrichmentTask, error) {
	return o.store.ListLatestTasks(ctx, filter)
}

// DeleteErrorTasks purges terminal error rows, optionally by kind, so the
// pairs become due for resubmission.
func (o *Orchestrator) DeleteErrorTasks(ctx context.Context, kind *model.TaskKind) (int, error) {
	return o.store.DeleteErrorTasks(ctx, kind)
}
