package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

// CallbackHandler turns provider postbacks into ledger updates. The payload
// already carries the result, so a resolved callback materializes
// synchronously without a second fetch.
type CallbackHandler struct {
	store store.Store
	mat   *Materializer
	log   *zap.Logger
}

func NewCallbackHandler(st store.Store, mat *Materializer) *CallbackHandler {
	return &CallbackHandler{
		store: st,
		mat:   mat,
		log:   zap.L().With(zap.String("component", "callback")),
	}
}

// Handle processes one postback body. idHint and tagHint come from the
// postback URL's query string; either may be empty. Resolution order: the
// payload's task id, then the id hint, then the newest non-terminal task for
// the tag. Returns the resolved task id and the number of items persisted.
func (h *CallbackHandler) Handle(ctx context.Context, body []byte, idHint, tagHint string) (string, int, error) {
	payload, err := dataforseo.ParseCallback(body)
	if err != nil {
		return "", 0, err
	}

	task, err := h.resolve(ctx, payload, idHint, tagHint)
	if err != nil {
		return "", 0, err
	}
	if task.Status.Terminal() {
		h.log.Info("callback for terminal task ignored",
			zap.String("task", task.ID),
			zap.String("status", string(task.Status)),
		)
		return task.ID, 0, nil
	}

	if err := h.store.MarkTaskCallback(ctx, task.ID, payload.RemoteID); err != nil {
		return task.ID, 0, eris.Wrap(err, "enrich: record callback")
	}

	code := payload.Result.StatusCode
	switch {
	case model.StatusOK(code):
		if err := h.store.MarkTaskReady(ctx, task.ID, dataforseo.TaskGetPath(task.Kind, task.ID), code, payload.Result.StatusMessage); err != nil {
			return task.ID, 0, eris.Wrap(err, "enrich: mark ready from callback")
		}
	case model.StatusFatal(code):
		// Materializer records the failure below.
	default:
		// Job not finished; the row stays outstanding for the reconciler.
		if err := h.store.MarkTaskPending(ctx, task.ID, code, payload.Result.StatusMessage); err != nil {
			return task.ID, 0, eris.Wrap(err, "enrich: mark pending from callback")
		}
		h.log.Info("callback for unfinished task",
			zap.String("task", task.ID),
			zap.Int("status_code", code),
		)
		return task.ID, 0, nil
	}

	items, err := h.mat.PopulateFromResult(ctx, task, &payload.Result)
	if err != nil {
		return task.ID, 0, err
	}
	return task.ID, items, nil
}

func (h *CallbackHandler) resolve(ctx context.Context, payload *dataforseo.CallbackPayload, idHint, tagHint string) (*model.EnrichmentTask, error) {
	for _, id := range []string{payload.RemoteID, idHint} {
		if id == "" {
			continue
		}
		task, err := h.store.GetTask(ctx, id)
		if err == nil {
			return task, nil
		}
		if !eris.Is(err, store.ErrTaskNotFound) {
			return nil, err
		}
	}

	tag := payload.Tag
	if tag == "" {
		tag = tagHint
	}
	if tag != "" {
		active, err := h.store.ListActiveTasks(ctx, nil)
		if err != nil {
			return nil, eris.Wrap(err, "enrich: list tasks for callback tag")
		}
		var newest *model.EnrichmentTask
		for i := range active {
			t := &active[i]
			if t.PlaceID != tag {
				continue
			}
			if newest == nil || t.CreatedAt.After(newest.CreatedAt) {
				newest = t
			}
		}
		if newest != nil {
			return newest, nil
		}
	}

	return nil, eris.Errorf("enrich: callback unresolvable (id=%q tag=%q)", payload.RemoteID, tag)
}
