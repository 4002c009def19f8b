package enrich

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// fakeGateway is a scripted dataforseo.Client for orchestration tests.
type fakeGateway struct {
	submitResults []dataforseo.SubmitResult
	submitCalls   []dataforseo.TaskRequest
	submitErr     error

	ready    map[model.TaskKind][]dataforseo.ReadyTask
	readyErr map[model.TaskKind]error

	fetchResults map[string]*dataforseo.TaskResult
	fetchErr     error
	fetchCalls   []string

	liveResult *dataforseo.TaskResult
	liveErr    error
}

func (f *fakeGateway) Submit(ctx context.Context, kind model.TaskKind, req dataforseo.TaskRequest) (*dataforseo.SubmitResult, error) {
	f.submitCalls = append(f.submitCalls, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if len(f.submitResults) == 0 {
		return &dataforseo.SubmitResult{RemoteID: "remote-1", StatusCode: 20100, StatusMessage: "Task Created."}, nil
	}
	res := f.submitResults[0]
	if len(f.submitResults) > 1 {
		f.submitResults = f.submitResults[1:]
	}
	return &res, nil
}

func (f *fakeGateway) ListReady(ctx context.Context, kind model.TaskKind) ([]dataforseo.ReadyTask, error) {
	if err := f.readyErr[kind]; err != nil {
		return nil, err
	}
	return f.ready[kind], nil
}

func (f *fakeGateway) Fetch(ctx context.Context, endpoint string) (*dataforseo.TaskResult, error) {
	f.fetchCalls = append(f.fetchCalls, endpoint)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if res, ok := f.fetchResults[endpoint]; ok {
		return res, nil
	}
	return nil, eris.Errorf("fake: no result scripted for %s", endpoint)
}

func (f *fakeGateway) LiveSocial(ctx context.Context, req dataforseo.TaskRequest) (*dataforseo.TaskResult, error) {
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	return f.liveResult, nil
}
