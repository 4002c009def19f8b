package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/model"
)

func callbackBody(id, tag, items string) []byte {
	return callbackBodyWithCode(id, tag, 20000, items)
}

func callbackBodyWithCode(id, tag string, code int, items string) []byte {
	return []byte(fmt.Sprintf(`{
		"status_code": 20000,
		"tasks": [{
			"id": %q,
			"status_code": %d,
			"status_message": "Ok.",
			"result_count": 1,
			"data": {"tag": %q},
			"result": [{"items": %s}]
		}]
	}`, id, code, tag, items))
}

const reviewItems = `[{"review_id": "r1", "profile_name": "Ann", "review_text": "Great"}]`

func TestCallbackHandler_ResolvesByPayloadID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{}
	h := NewCallbackHandler(st, NewMaterializer(st, gw, nil, nil))

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "remote-1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPending,
	}))

	taskID, items, err := h.Handle(ctx, callbackBody("remote-1", "place-1", reviewItems), "", "")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", taskID)
	assert.Equal(t, 1, items)

	got, err := st.GetTask(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPopulated, got.Status)
	assert.Equal(t, "remote-1", got.CallbackTaskID)
	require.NotNil(t, got.CallbackReceivedAt)

	// The payload was carried in the callback; nothing was re-fetched.
	assert.Empty(t, gw.fetchCalls)
}

func TestCallbackHandler_FallsBackToQueryHint(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	h := NewCallbackHandler(st, NewMaterializer(st, &fakeGateway{}, nil, nil))

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "hinted-1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPending,
	}))

	// Payload id unknown to the ledger; ?id= hint matches.
	taskID, _, err := h.Handle(ctx, callbackBody("unknown-id", "", reviewItems), "hinted-1", "")
	require.NoError(t, err)
	assert.Equal(t, "hinted-1", taskID)
}

func TestCallbackHandler_FallsBackToTag(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	h := NewCallbackHandler(st, NewMaterializer(st, &fakeGateway{}, nil, nil))

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "by-tag-1", Kind: model.KindReviews, PlaceID: "place-7", Status: model.StatusPending,
	}))

	taskID, _, err := h.Handle(ctx, callbackBody("unknown-id", "place-7", reviewItems), "", "")
	require.NoError(t, err)
	assert.Equal(t, "by-tag-1", taskID)
}

func TestCallbackHandler_UnresolvableRejected(t *testing.T) {
	st := newTestStore(t)
	h := NewCallbackHandler(st, NewMaterializer(st, &fakeGateway{}, nil, nil))

	_, _, err := h.Handle(context.Background(), callbackBody("unknown", "nobody", reviewItems), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolvable")
}

func TestCallbackHandler_UnfinishedJobStaysPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	h := NewCallbackHandler(st, NewMaterializer(st, &fakeGateway{}, nil, nil))

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "remote-1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPending,
	}))

	// A postback whose task is neither finished nor failed must not flip
	// the row to ready; the reconciler picks it up when it actually is.
	taskID, items, err := h.Handle(ctx, callbackBodyWithCode("remote-1", "place-1", 30100, "[]"), "", "")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", taskID)
	assert.Zero(t, items)

	got, err := st.GetTask(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.ReadyAt)
	assert.Equal(t, 30100, got.StatusCode)
	require.NotNil(t, got.CallbackReceivedAt)
}

func TestCallbackHandler_FatalCallbackRecordsError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	h := NewCallbackHandler(st, NewMaterializer(st, &fakeGateway{}, nil, nil))

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "remote-1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPending,
	}))

	_, items, err := h.Handle(ctx, callbackBodyWithCode("remote-1", "place-1", 40501, "[]"), "", "")
	require.NoError(t, err)
	assert.Zero(t, items)

	got, err := st.GetTask(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	assert.Nil(t, got.ReadyAt)
}

func TestCallbackHandler_TerminalTaskIgnored(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	h := NewCallbackHandler(st, NewMaterializer(st, &fakeGateway{}, nil, nil))

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "done-1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusReady,
	}))
	require.NoError(t, st.MarkTaskPopulated(ctx, "done-1", 20000, "Ok.", 3))

	taskID, items, err := h.Handle(ctx, callbackBody("done-1", "place-1", reviewItems), "", "")
	require.NoError(t, err)
	assert.Equal(t, "done-1", taskID)
	assert.Zero(t, items)

	got, err := st.GetTask(ctx, "done-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.LastPopulateCount)
}

func TestCallbackHandler_MalformedBody(t *testing.T) {
	st := newTestStore(t)
	h := NewCallbackHandler(st, NewMaterializer(st, &fakeGateway{}, nil, nil))

	_, _, err := h.Handle(context.Background(), []byte("not json"), "", "")
	assert.Error(t, err)

	_, _, err = h.Handle(context.Background(), []byte(`{"status_code": 20000, "tasks": []}`), "", "")
	assert.Error(t, err)
}
