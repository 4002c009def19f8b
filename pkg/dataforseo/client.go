// Package dataforseo wraps the DataForSEO business-data API: asynchronous
// task submission, ready-list polling, result fetch, and the live (synchronous)
// social media endpoint.
package dataforseo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/resilience"
)

const defaultBaseURL = "https://api.dataforseo.com/v3"

// Client performs enrichment gateway operations.
type Client interface {
	// Submit posts a new asynchronous task of the given kind. The returned
	// remote id is empty when the provider rejected the submission.
	Submit(ctx context.Context, kind model.TaskKind, req TaskRequest) (*SubmitResult, error)
	// ListReady returns tasks of the given kind whose processing finished.
	ListReady(ctx context.Context, kind model.TaskKind) ([]ReadyTask, error)
	// Fetch retrieves a finished task's result at its resolved endpoint.
	Fetch(ctx context.Context, endpoint string) (*TaskResult, error)
	// LiveSocial submits and fetches a social-profile lookup in one call.
	LiveSocial(ctx context.Context, req TaskRequest) (*TaskResult, error)
}

// TaskRequest holds the submission parameters for any task kind.
type TaskRequest struct {
	Keyword      string `json:"keyword,omitempty"`
	PlaceID      string `json:"place_id,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	Depth        int    `json:"depth,omitempty"`
	Tag          string `json:"tag,omitempty"`
	PostbackURL  string `json:"postback_url,omitempty"`
}

// SubmitResult is the provider's answer to a task submission.
type SubmitResult struct {
	RemoteID      string
	StatusCode    int
	StatusMessage string
}

// ReadyTask is one entry of a kind's ready-list.
type ReadyTask struct {
	RemoteID      string
	Endpoint      string
	Tag           string
	StatusCode    int
	StatusMessage string
}

// TaskResult is a fetched task payload. Raw holds the kind-specific result
// array for the materializer to parse.
type TaskResult struct {
	RemoteID      string
	StatusCode    int
	StatusMessage string
	ResultCount   int
	Raw           json.RawMessage
}

// kindPaths maps each task kind to its API path prefix.
var kindPaths = map[model.TaskKind]string{
	model.KindReviews:        "business_data/google/reviews",
	model.KindBusinessInfo:   "business_data/google/my_business_info",
	model.KindUpdates:        "business_data/google/my_business_updates",
	model.KindQnA:            "business_data/google/questions_and_answers",
	model.KindSocialProfiles: "business_data/social_media",
}

// TaskGetPath returns the fetch endpoint for a task whose ready-list entry
// was never observed, derived from its kind and remote id.
func TaskGetPath(kind model.TaskKind, id string) string {
	return kindPaths[kind] + "/task_get/" + id
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second pacing for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryConfig overrides the transport retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitConfig overrides the circuit breaker behavior.
func WithCircuitConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) {
		c.breaker = newBreaker(cfg)
	}
}

// newBreaker attaches a log hook so circuit transitions show up in the
// output even when nothing else is failing loudly.
func newBreaker(cfg resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("provider circuit state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	return resilience.NewCircuitBreaker(cfg)
}

type httpClient struct {
	baseURL string
	http    *http.Client
	creds   *credentialCache
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a DataForSEO API client.
func NewClient(login, password string, opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		creds:   newCredentialCache(login, password, time.Hour),
		limiter: rate.NewLimiter(2, 1),
		retry:   resilience.DefaultRetryConfig(),
		breaker: newBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope is the provider's outer response shape: a status pair plus a list
// of task entries.
type envelope struct {
	StatusCode    int         `json:"status_code"`
	StatusMessage string      `json:"status_message"`
	Tasks         []taskEntry `json:"tasks"`
}

type taskEntry struct {
	ID            string          `json:"id"`
	StatusCode    int             `json:"status_code"`
	StatusMessage string          `json:"status_message"`
	ResultCount   int             `json:"result_count"`
	Result        json.RawMessage `json:"result"`
}

func (c *httpClient) Submit(ctx context.Context, kind model.TaskKind, req TaskRequest) (*SubmitResult, error) {
	path, ok := kindPaths[kind]
	if !ok {
		return nil, eris.Errorf("dataforseo: no path for kind %s", kind)
	}

	env, err := c.post(ctx, path+"/task_post", []TaskRequest{req})
	if err != nil {
		return nil, err
	}
	if len(env.Tasks) == 0 {
		return &SubmitResult{StatusCode: env.StatusCode, StatusMessage: env.StatusMessage}, nil
	}
	t := env.Tasks[0]
	return &SubmitResult{
		RemoteID:      t.ID,
		StatusCode:    t.StatusCode,
		StatusMessage: t.StatusMessage,
	}, nil
}

func (c *httpClient) ListReady(ctx context.Context, kind model.TaskKind) ([]ReadyTask, error) {
	path, ok := kindPaths[kind]
	if !ok {
		return nil, eris.Errorf("dataforseo: no path for kind %s", kind)
	}

	env, err := c.get(ctx, path+"/tasks_ready")
	if err != nil {
		return nil, err
	}

	var ready []ReadyTask
	for _, t := range env.Tasks {
		var entries []struct {
			ID       string `json:"id"`
			Endpoint string `json:"endpoint"`
			Tag      string `json:"tag"`
		}
		if len(t.Result) > 0 {
			if err := json.Unmarshal(t.Result, &entries); err != nil {
				return nil, eris.Wrap(err, "dataforseo: unmarshal ready list")
			}
		}
		for _, e := range entries {
			ready = append(ready, ReadyTask{
				RemoteID:      e.ID,
				Endpoint:      e.Endpoint,
				Tag:           e.Tag,
				StatusCode:    t.StatusCode,
				StatusMessage: t.StatusMessage,
			})
		}
	}
	return ready, nil
}

func (c *httpClient) Fetch(ctx context.Context, endpoint string) (*TaskResult, error) {
	env, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if len(env.Tasks) == 0 {
		return &TaskResult{StatusCode: env.StatusCode, StatusMessage: env.StatusMessage}, nil
	}
	t := env.Tasks[0]
	return &TaskResult{
		RemoteID:      t.ID,
		StatusCode:    t.StatusCode,
		StatusMessage: t.StatusMessage,
		ResultCount:   t.ResultCount,
		Raw:           t.Result,
	}, nil
}

func (c *httpClient) LiveSocial(ctx context.Context, req TaskRequest) (*TaskResult, error) {
	env, err := c.post(ctx, kindPaths[model.KindSocialProfiles]+"/live", []TaskRequest{req})
	if err != nil {
		return nil, err
	}
	if len(env.Tasks) == 0 {
		return &TaskResult{StatusCode: env.StatusCode, StatusMessage: env.StatusMessage}, nil
	}
	t := env.Tasks[0]
	return &TaskResult{
		RemoteID:      t.ID,
		StatusCode:    t.StatusCode,
		StatusMessage: t.StatusMessage,
		ResultCount:   t.ResultCount,
		Raw:           t.Result,
	}, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: marshal request")
	}
	return c.roundTrip(ctx, http.MethodPost, path, payload)
}

func (c *httpClient) get(ctx context.Context, path string) (*envelope, error) {
	return c.roundTrip(ctx, http.MethodGet, path, nil)
}

func (c *httpClient) roundTrip(ctx context.Context, method, path string, payload []byte) (*envelope, error) {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) (*envelope, error) {
		return resilience.Execute(ctx, c.breaker, func(ctx context.Context) (*envelope, error) {
			return c.doOnce(ctx, method, path, payload)
		})
	})
}

func (c *httpClient) doOnce(ctx context.Context, method, path string, payload []byte) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "dataforseo: rate limit wait")
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+trimSlash(path), body)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.creds.getOrRefresh())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: read response")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("dataforseo: status %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("dataforseo: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, eris.Wrap(err, "dataforseo: unmarshal response")
	}
	return &env, nil
}

func trimSlash(p string) string {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}
