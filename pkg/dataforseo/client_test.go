package dataforseo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func newTestClient(url string) Client {
	return NewClient("login", "secret",
		WithBaseURL(url),
		WithRateLimit(1000),
		WithRetryConfig(fastRetry()),
	)
}

func TestSubmit_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/business_data/google/reviews/task_post", r.URL.Path)
		assert.Equal(t, "Basic bG9naW46c2VjcmV0", r.Header.Get("Authorization"))

		var body []TaskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "place-1", body[0].PlaceID)
		assert.Equal(t, 100, body[0].Depth)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status_code": 20000,
			"tasks": []map[string]any{
				{"id": "task-123", "status_code": 20100, "status_message": "Task Created."},
			},
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Submit(context.Background(), model.KindReviews, TaskRequest{
		PlaceID: "place-1", Depth: 100, Tag: "place-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "task-123", res.RemoteID)
	assert.Equal(t, 20100, res.StatusCode)
}

func TestSubmit_UnknownKind(t *testing.T) {
	_, err := newTestClient("http://unused").Submit(context.Background(), model.TaskKind("bogus"), TaskRequest{})
	assert.Error(t, err)
}

func TestListReady_ParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/business_data/google/reviews/tasks_ready", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status_code": 20000,
			"tasks": []map[string]any{{
				"status_code": 20000,
				"result": []map[string]any{
					{"id": "t1", "endpoint": "business_data/google/reviews/task_get/t1", "tag": "place-1"},
					{"id": "t2", "endpoint": "business_data/google/reviews/task_get/t2", "tag": "place-2"},
				},
			}},
		})
	}))
	defer srv.Close()

	ready, err := newTestClient(srv.URL).ListReady(context.Background(), model.KindReviews)
	require.NoError(t, err)
	require.Len(t, ready, 2)
	assert.Equal(t, "t1", ready[0].RemoteID)
	assert.Equal(t, "place-1", ready[0].Tag)
	assert.Contains(t, ready[0].Endpoint, "task_get/t1")
}

func TestListReady_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status_code": 20000, "tasks": []any{}})
	}))
	defer srv.Close()

	ready, err := newTestClient(srv.URL).ListReady(context.Background(), model.KindQnA)
	require.NoError(t, err)
	assert.Empty(t, ready)
}

func TestFetch_ReturnsRawResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/business_data/google/reviews/task_get/t1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status_code": 20000,
			"tasks": []map[string]any{{
				"id": "t1", "status_code": 20000, "status_message": "Ok.", "result_count": 1,
				"result": []map[string]any{{"items_count": 1}},
			}},
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Fetch(context.Background(), "business_data/google/reviews/task_get/t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", res.RemoteID)
	assert.Equal(t, 20000, res.StatusCode)
	assert.Equal(t, 1, res.ResultCount)
	assert.NotEmpty(t, res.Raw)
}

func TestLiveSocial_PostsToLivePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/business_data/social_media/live", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status_code": 20000,
			"tasks": []map[string]any{{
				"id": "live-1", "status_code": 20000, "status_message": "Ok.",
				"result": []map[string]any{{"items": []any{}}},
			}},
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).LiveSocial(context.Background(), TaskRequest{Keyword: "Bakery"})
	require.NoError(t, err)
	assert.Equal(t, "live-1", res.RemoteID)
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status_code": 20000, "tasks": []any{}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListReady(context.Background(), model.KindReviews)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_FailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListReady(context.Background(), model.KindReviews)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "401")
}

func TestTaskGetPath(t *testing.T) {
	assert.Equal(t, "business_data/google/reviews/task_get/t1", TaskGetPath(model.KindReviews, "t1"))
	assert.Equal(t, "business_data/google/questions_and_answers/task_get/q9", TaskGetPath(model.KindQnA, "q9"))
}
