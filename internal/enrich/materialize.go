package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

// Materializer fetches finished task results and merges them into the
// per-kind domain tables. Items are persisted before the ledger status
// advances, so a crash between the two re-runs the idempotent upserts
// instead of losing data.
type Materializer struct {
	store     store.Store
	gateway   dataforseo.Client
	assets    *AssetStore
	platforms map[string]string
	log       *zap.Logger
}

// NewMaterializer wires a materializer. assets may be nil, in which case
// logo/photo URLs are stored without local resolution. platforms may be nil
// to use the builtin table.
func NewMaterializer(st store.Store, gw dataforseo.Client, assets *AssetStore, platforms map[string]string) *Materializer {
	return &Materializer{
		store:     st,
		gateway:   gw,
		assets:    assets,
		platforms: platforms,
		log:       zap.L().With(zap.String("component", "materialize")),
	}
}

// Populate fetches a ready task's result and materializes it. Returns the
// number of items persisted. Terminal tasks are a no-op.
func (m *Materializer) Populate(ctx context.Context, task *model.EnrichmentTask) (int, error) {
	if task.Status.Terminal() {
		return 0, nil
	}
	if err := m.store.MarkTaskPopulateAttempt(ctx, task.ID); err != nil {
		return 0, eris.Wrap(err, "enrich: record populate attempt")
	}

	endpoint := task.Endpoint
	if endpoint == "" {
		endpoint = dataforseo.TaskGetPath(task.Kind, task.ID)
	}
	res, err := m.gateway.Fetch(ctx, endpoint)
	if err != nil {
		// Transport failure: leave the row for the next pass.
		return 0, eris.Wrapf(err, "enrich: fetch result for task %s", task.ID)
	}
	return m.PopulateFromResult(ctx, task, res)
}

// PopulateFromResult merges an already-fetched result. Used by Populate and
// by the callback handler, which carries the payload in the request body.
func (m *Materializer) PopulateFromResult(ctx context.Context, task *model.EnrichmentTask, res *dataforseo.TaskResult) (int, error) {
	if model.StatusFatal(res.StatusCode) {
		if err := m.store.MarkTaskError(ctx, task.ID, res.StatusCode, res.StatusMessage, res.StatusMessage); err != nil {
			return 0, eris.Wrap(err, "enrich: mark task error")
		}
		m.log.Warn("task failed at provider",
			zap.String("task", task.ID),
			zap.String("kind", string(task.Kind)),
			zap.Int("status_code", res.StatusCode),
		)
		return 0, nil
	}

	count, err := m.persist(ctx, task, res)
	if err != nil {
		return 0, err
	}

	// Status advances last, and only a completed job terminates the row: a
	// partial payload may carry items, so populated requires the success
	// code too. A completed job with zero items is no_data.
	switch {
	case model.StatusOK(res.StatusCode) && count > 0:
		err = m.store.MarkTaskPopulated(ctx, task.ID, res.StatusCode, res.StatusMessage, count)
	case model.StatusOK(res.StatusCode):
		err = m.store.MarkTaskNoData(ctx, task.ID, res.StatusCode, res.StatusMessage)
	default:
		err = m.store.MarkTaskPending(ctx, task.ID, res.StatusCode, res.StatusMessage)
	}
	if err != nil {
		return count, eris.Wrapf(err, "enrich: advance task %s", task.ID)
	}
	m.log.Info("task materialized",
		zap.String("task", task.ID),
		zap.String("kind", string(task.Kind)),
		zap.Int("items", count),
	)
	return count, nil
}

func (m *Materializer) persist(ctx context.Context, task *model.EnrichmentTask, res *dataforseo.TaskResult) (int, error) {
	switch task.Kind {
	case model.KindReviews:
		reviews := parseReviews(res.Raw, task.PlaceID)
		if _, err := m.store.UpsertReviews(ctx, task.PlaceID, reviews); err != nil {
			return 0, eris.Wrap(err, "enrich: upsert reviews")
		}
		return len(reviews), nil
	case model.KindUpdates:
		updates := parseUpdates(res.Raw, task.PlaceID)
		if _, err := m.store.UpsertUpdates(ctx, task.PlaceID, updates); err != nil {
			return 0, eris.Wrap(err, "enrich: upsert updates")
		}
		return len(updates), nil
	case model.KindQnA:
		questions := parseQuestions(res.Raw, task.PlaceID)
		if _, err := m.store.UpsertQuestions(ctx, task.PlaceID, questions); err != nil {
			return 0, eris.Wrap(err, "enrich: upsert questions")
		}
		return len(questions), nil
	case model.KindSocialProfiles:
		profiles := parseSocialProfiles(res.Raw, task.PlaceID, m.platforms)
		if _, err := m.store.UpsertSocialProfiles(ctx, task.PlaceID, profiles); err != nil {
			return 0, eris.Wrap(err, "enrich: upsert social profiles")
		}
		return len(profiles), nil
	case model.KindBusinessInfo:
		snap := parseBusinessInfo(res.Raw, task.PlaceID)
		if snap == nil {
			return 0, nil
		}
		m.resolveAssets(ctx, snap)
		if err := m.store.SaveBusinessInfo(ctx, *snap); err != nil {
			return 0, eris.Wrap(err, "enrich: save business info")
		}
		return 1, nil
	}
	return 0, eris.Errorf("enrich: unhandled task kind %q", task.Kind)
}

// resolveAssets maps the snapshot's remote logo/photo URLs to local paths,
// keeping whatever was stored before when a download fails.
func (m *Materializer) resolveAssets(ctx context.Context, snap *model.BusinessInfoSnapshot) {
	if m.assets == nil {
		return
	}
	var priorLogo, priorPhoto string
	if prior, err := m.store.GetBusinessInfo(ctx, snap.PlaceID); err == nil && prior != nil {
		priorLogo = prior.LogoPath
		priorPhoto = prior.MainPhotoPath
	}
	snap.LogoPath = m.assets.Resolve(ctx, snap.LogoURL, priorLogo)
	snap.MainPhotoPath = m.assets.Resolve(ctx, snap.MainPhotoURL, priorPhoto)
}
