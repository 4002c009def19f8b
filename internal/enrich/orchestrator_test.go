package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/config"
	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

func newOrchestrator(t *testing.T, st store.Store, gw dataforseo.Client) *Orchestrator {
	t.Helper()
	sched := NewScheduler(st, config.FreshnessConfig{})
	mat := NewMaterializer(st, gw, nil, nil)
	return NewOrchestrator(st, gw, sched, mat, OrchestratorOptions{Depth: 100})
}

var testPlace = model.Place{
	ID: "place-1", Name: "Bakery", LocationName: "Austin,Texas,United States", Address: "1 Main St",
}

func TestOrchestrator_SubmitCreatesLedgerRow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{}

	n, err := newOrchestrator(t, st, gw).EnrichPlaces(ctx, []model.Place{testPlace}, []model.TaskKind{model.KindReviews})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetTask(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, model.KindReviews, got.Kind)
	assert.Equal(t, "place-1", got.PlaceID)
	assert.Equal(t, 20100, got.StatusCode)
	assert.False(t, got.Status.Terminal())

	// First shape carries the place id, plus depth and the tag.
	require.NotEmpty(t, gw.submitCalls)
	assert.Equal(t, "place-1", gw.submitCalls[0].PlaceID)
	assert.Equal(t, "place-1", gw.submitCalls[0].Tag)
	assert.Equal(t, 100, gw.submitCalls[0].Depth)
}

func TestOrchestrator_FallbackShapesOnBadRequest(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{submitResults: []dataforseo.SubmitResult{
		{StatusCode: 40501, StatusMessage: "Invalid Field."},
		{RemoteID: "remote-2", StatusCode: 20100, StatusMessage: "Task Created."},
	}}

	_, err := newOrchestrator(t, st, gw).EnrichPlaces(ctx, []model.Place{testPlace}, []model.TaskKind{model.KindReviews})
	require.NoError(t, err)

	require.Len(t, gw.submitCalls, 2)
	assert.Equal(t, "place-1", gw.submitCalls[0].PlaceID)
	// Fallback drops the place id for a keyword search.
	assert.Empty(t, gw.submitCalls[1].PlaceID)
	assert.Equal(t, "Bakery", gw.submitCalls[1].Keyword)

	got, err := st.GetTask(ctx, "remote-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCreated, got.Status)
}

func TestOrchestrator_AllShapesRejectedRecordsError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{submitResults: []dataforseo.SubmitResult{
		{StatusCode: 40501, StatusMessage: "Invalid Field."},
	}}

	_, err := newOrchestrator(t, st, gw).EnrichPlaces(ctx, []model.Place{testPlace}, []model.TaskKind{model.KindReviews})
	require.NoError(t, err)

	// place-1 has an address, so all three shapes were tried.
	assert.Len(t, gw.submitCalls, 3)

	tasks, err := st.ListLatestTasks(ctx, store.TaskFilter{Status: model.StatusError})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, strings.HasPrefix(tasks[0].ID, "reviews-err-"))
	assert.Equal(t, 40501, tasks[0].StatusCode)
}

func TestOrchestrator_SubmitTransportErrorRecorded(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{submitErr: eris.New("connection refused")}

	_, err := newOrchestrator(t, st, gw).EnrichPlaces(ctx, []model.Place{testPlace}, []model.TaskKind{model.KindReviews})
	require.NoError(t, err)

	tasks, err := st.ListLatestTasks(ctx, store.TaskFilter{Status: model.StatusError})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0].LastError, "connection refused")
}

func TestOrchestrator_SocialLivePathMaterializesImmediately(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{liveResult: &dataforseo.TaskResult{
		RemoteID: "live-1", StatusCode: 20000, StatusMessage: "Ok.",
		Raw: json.RawMessage(`[{"items": [{"fb": "https://facebook.com/bakery"}]}]`),
	}}

	n, err := newOrchestrator(t, st, gw).EnrichPlaces(ctx, []model.Place{testPlace}, []model.TaskKind{model.KindSocialProfiles})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetTask(ctx, "live-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPopulated, got.Status)
	assert.Equal(t, 1, got.LastPopulateCount)

	profiles, err := st.ListSocialProfiles(ctx, "place-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "facebook", profiles[0].Platform)
}

func TestOrchestrator_FreshKindSkipped(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{}

	sched := NewScheduler(st, config.FreshnessConfig{ReviewsHours: 24})
	mat := NewMaterializer(st, gw, nil, nil)
	orch := NewOrchestrator(st, gw, sched, mat, OrchestratorOptions{})

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "fresh-1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPending,
	}))

	n, err := orch.EnrichPlaces(ctx, []model.Place{testPlace}, []model.TaskKind{model.KindReviews})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, gw.submitCalls)
}

func TestOrchestrator_PopulateReadyTasks(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	readyTask(t, st, "good-1", model.KindReviews)
	readyTask(t, st, "bad-1", model.KindReviews)

	gw := &fakeGateway{fetchResults: map[string]*dataforseo.TaskResult{
		"ep/good-1": {
			StatusCode: 20000, StatusMessage: "Ok.",
			Raw: json.RawMessage(`[{"items": [{"review_id": "r1", "review_text": "Great"}]}]`),
		},
		// bad-1 has nothing scripted: Fetch errors and the failure stays
		// isolated to that task.
	}}

	stats, err := newOrchestrator(t, st, gw).PopulateReadyTasks(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Items)

	gotGood, err := st.GetTask(ctx, "good-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPopulated, gotGood.Status)

	gotBad, err := st.GetTask(ctx, "bad-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, gotBad.Status)
}

func TestOrchestrator_DeleteErrorTasksMakesKindDueAgain(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gw := &fakeGateway{}

	sched := NewScheduler(st, config.FreshnessConfig{ReviewsHours: 24})
	mat := NewMaterializer(st, gw, nil, nil)
	orch := NewOrchestrator(st, gw, sched, mat, OrchestratorOptions{})

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "err-1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusError,
	}))

	due, _, err := sched.Due(ctx, "place-1", model.KindReviews)
	require.NoError(t, err)
	assert.False(t, due)

	n, err := orch.DeleteErrorTasks(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	due, _, err = sched.Due(ctx, "place-1", model.KindReviews)
	require.NoError(t, err)
	assert.True(t, due)
}
