package enrich

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

func readyTask(t *testing.T, st store.Store, id string, kind model.TaskKind) *model.EnrichmentTask {
	t.Helper()
	ctx := context.Background()
	task := &model.EnrichmentTask{ID: id, Kind: kind, PlaceID: "place-1", Status: model.StatusCreated}
	require.NoError(t, st.UpsertTask(ctx, task))
	require.NoError(t, st.MarkTaskReady(ctx, id, "ep/"+id, 20000, "Ok."))
	task.Status = model.StatusReady
	task.Endpoint = "ep/" + id
	return task
}

func TestMaterializer_PopulatesReviews(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	task := readyTask(t, st, "t1", model.KindReviews)

	gw := &fakeGateway{fetchResults: map[string]*dataforseo.TaskResult{
		"ep/t1": {
			StatusCode: 20000, StatusMessage: "Ok.", ResultCount: 1,
			Raw: json.RawMessage(`[{"items": [
				{"review_id": "r1", "profile_name": "Ann", "rating": {"value": 5}, "review_text": "Great"},
				{"review_id": "r2", "profile_name": "Bob", "rating": {"value": 4}, "review_text": "Good"}
			]}]`),
		},
	}}

	mat := NewMaterializer(st, gw, nil, nil)
	items, err := mat.Populate(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, 2, items)

	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPopulated, got.Status)
	assert.Equal(t, 2, got.LastPopulateCount)
	require.NotNil(t, got.PopulatedAt)
	require.NotNil(t, got.LastAttemptedPopulate)

	reviews, err := st.ListReviews(ctx, "place-1")
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestMaterializer_EmptyCompleteJobIsNoData(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	task := readyTask(t, st, "t1", model.KindUpdates)

	gw := &fakeGateway{fetchResults: map[string]*dataforseo.TaskResult{
		"ep/t1": {StatusCode: 20000, StatusMessage: "Ok.", Raw: json.RawMessage(`[{"items": []}]`)},
	}}

	items, err := NewMaterializer(st, gw, nil, nil).Populate(ctx, task)
	require.NoError(t, err)
	assert.Zero(t, items)

	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoData, got.Status)
}

func TestMaterializer_StillProcessingStaysOpen(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	task := readyTask(t, st, "t1", model.KindQnA)

	// 30100 = accepted but not finished; zero items must not mean no_data.
	gw := &fakeGateway{fetchResults: map[string]*dataforseo.TaskResult{
		"ep/t1": {StatusCode: 30100, StatusMessage: "Task In Queue."},
	}}

	_, err := NewMaterializer(st, gw, nil, nil).Populate(ctx, task)
	require.NoError(t, err)

	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.Status.Terminal())
}

func TestMaterializer_PartialPayloadWithItemsStaysOpen(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	task := readyTask(t, st, "t1", model.KindReviews)

	// An unfinished job may already carry items; persist them but do not
	// settle the row until the provider reports completion.
	gw := &fakeGateway{fetchResults: map[string]*dataforseo.TaskResult{
		"ep/t1": {
			StatusCode: 30100, StatusMessage: "Task In Queue.",
			Raw: json.RawMessage(`[{"items": [
				{"review_id": "r1", "profile_name": "Ann", "review_text": "Early"}
			]}]`),
		},
	}}

	items, err := NewMaterializer(st, gw, nil, nil).Populate(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, 1, items)

	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.NotEqual(t, model.StatusPopulated, got.Status)
	assert.False(t, got.Status.Terminal())

	reviews, err := st.ListReviews(ctx, "place-1")
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestMaterializer_FatalStatusIsError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	task := readyTask(t, st, "t1", model.KindReviews)

	gw := &fakeGateway{fetchResults: map[string]*dataforseo.TaskResult{
		"ep/t1": {StatusCode: 40501, StatusMessage: "Invalid Field."},
	}}

	items, err := NewMaterializer(st, gw, nil, nil).Populate(ctx, task)
	require.NoError(t, err)
	assert.Zero(t, items)

	got, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	assert.Equal(t, 40501, got.StatusCode)
	assert.NotEmpty(t, got.LastError)
}

func TestMaterializer_RepopulateIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	task := readyTask(t, st, "t1", model.KindReviews)

	raw := json.RawMessage(`[{"items": [{"review_id": "r1", "review_text": "Great"}]}]`)
	gw := &fakeGateway{fetchResults: map[string]*dataforseo.TaskResult{
		"ep/t1": {StatusCode: 20000, StatusMessage: "Ok.", Raw: raw},
	}}
	mat := NewMaterializer(st, gw, nil, nil)

	_, err := mat.Populate(ctx, task)
	require.NoError(t, err)

	// Re-running against the now-terminal row is a no-op.
	fetched, err := st.GetTask(ctx, "t1")
	require.NoError(t, err)
	items, err := mat.Populate(ctx, fetched)
	require.NoError(t, err)
	assert.Zero(t, items)

	reviews, err := st.ListReviews(ctx, "place-1")
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestMaterializer_TerminalTaskNotFetched(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	task := &model.EnrichmentTask{
		ID: "t1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPopulated,
	}

	gw := &fakeGateway{}
	items, err := NewMaterializer(st, gw, nil, nil).Populate(ctx, task)
	require.NoError(t, err)
	assert.Zero(t, items)
	assert.Empty(t, gw.fetchCalls)
}

func TestMaterializer_SocialProfilesFromResult(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	task := &model.EnrichmentTask{ID: "s1", Kind: model.KindSocialProfiles, PlaceID: "place-1", Status: model.StatusReady}
	require.NoError(t, st.UpsertTask(ctx, task))

	res := &dataforseo.TaskResult{
		StatusCode: 20000, StatusMessage: "Ok.",
		Raw: json.RawMessage(`[{"items": [{"fb": "https://facebook.com/biz", "site": "https://biz.example.com"}]}]`),
	}

	items, err := NewMaterializer(st, nil, nil, nil).PopulateFromResult(ctx, task, res)
	require.NoError(t, err)
	assert.Equal(t, 1, items)

	profiles, err := st.ListSocialProfiles(ctx, "place-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "facebook", profiles[0].Platform)
}
