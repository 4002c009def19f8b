package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/config"
	"github.com/sells-group/localrank/internal/model"
)

func TestScheduler_DueWhenNoHistory(t *testing.T) {
	st := newTestStore(t)
	sched := NewScheduler(st, config.FreshnessConfig{ReviewsHours: 24})

	due, _, err := sched.Due(context.Background(), "place-1", model.KindReviews)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestScheduler_FreshSuppressesResubmission(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sched := NewScheduler(st, config.FreshnessConfig{ReviewsHours: 24})

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "t1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPending,
	}))

	due, remaining, err := sched.Due(ctx, "place-1", model.KindReviews)
	require.NoError(t, err)
	assert.False(t, due)
	assert.Greater(t, remaining, 23*time.Hour)
}

func TestScheduler_StaleIsDueAgain(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sched := NewScheduler(st, config.FreshnessConfig{ReviewsHours: 24})

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "t1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPopulated,
		CreatedAt: time.Now().UTC().Add(-25 * time.Hour),
	}))

	due, _, err := sched.Due(ctx, "place-1", model.KindReviews)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestScheduler_ZeroThresholdAlwaysDue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sched := NewScheduler(st, config.FreshnessConfig{})

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "t1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPopulated,
	}))

	due, _, err := sched.Due(ctx, "place-1", model.KindReviews)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestScheduler_KindsIndependent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sched := NewScheduler(st, config.FreshnessConfig{ReviewsHours: 24, QnAHours: 24})

	require.NoError(t, st.UpsertTask(ctx, &model.EnrichmentTask{
		ID: "t1", Kind: model.KindReviews, PlaceID: "place-1", Status: model.StatusPending,
	}))

	dueReviews, _, err := sched.Due(ctx, "place-1", model.KindReviews)
	require.NoError(t, err)
	dueQnA, _, err := sched.Due(ctx, "place-1", model.KindQnA)
	require.NoError(t, err)

	assert.False(t, dueReviews)
	assert.True(t, dueQnA)
}
