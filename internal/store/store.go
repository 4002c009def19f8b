package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/model"
)

// ErrTaskNotFound is returned by GetTask when no ledger row has the id.
// Check with eris.Is.
var ErrTaskNotFound = eris.New("store: task not found")

// TaskFilter specifies criteria for listing ledger rows.
type TaskFilter struct {
	Kind   model.TaskKind   `json:"kind,omitempty"`
	Status model.TaskStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for the enrichment orchestrator.
type Store interface {
	// Task Ledger
	UpsertTask(ctx context.Context, task *model.EnrichmentTask) error
	GetTask(ctx context.Context, id string) (*model.EnrichmentTask, error)
	ListActiveTasks(ctx context.Context, kinds []model.TaskKind) ([]model.EnrichmentTask, error)
	ListLatestTasks(ctx context.Context, filter TaskFilter) ([]model.EnrichmentTask, error)
	LatestTaskFor(ctx context.Context, placeID string, kind model.TaskKind) (*model.EnrichmentTask, error)
	MarkTaskReady(ctx context.Context, id, endpoint string, code int, msg string) error
	MarkTaskPending(ctx context.Context, id string, code int, msg string) error
	MarkTaskPopulated(ctx context.Context, id string, code int, msg string, itemCount int) error
	MarkTaskNoData(ctx context.Context, id string, code int, msg string) error
	MarkTaskError(ctx context.Context, id string, code int, msg string, lastError string) error
	MarkTaskPopulateAttempt(ctx context.Context, id string) error
	MarkTaskCallback(ctx context.Context, id, callbackTaskID string) error
	DeleteErrorTasks(ctx context.Context, kind *model.TaskKind) (int, error)

	// Enrichment results
	UpsertReviews(ctx context.Context, placeID string, reviews []model.Review) (int, error)
	UpsertUpdates(ctx context.Context, placeID string, updates []model.BusinessUpdate) (int, error)
	UpsertQuestions(ctx context.Context, placeID string, questions []model.QuestionAnswer) (int, error)
	UpsertSocialProfiles(ctx context.Context, placeID string, profiles []model.SocialProfile) (int, error)
	SaveBusinessInfo(ctx context.Context, info model.BusinessInfoSnapshot) error
	GetBusinessInfo(ctx context.Context, placeID string) (*model.BusinessInfoSnapshot, error)
	ListReviews(ctx context.Context, placeID string) ([]model.Review, error)
	ListSocialProfiles(ctx context.Context, placeID string) ([]model.SocialProfile, error)

	// Places and ranking snapshots
	UpsertPlace(ctx context.Context, place *model.Place) error
	GetPlace(ctx context.Context, id string) (*model.Place, error)
	ListPlaces(ctx context.Context, limit int) ([]model.Place, error)
	SaveRankSnapshot(ctx context.Context, snap *model.RankSnapshot) error
	ListRankSnapshots(ctx context.Context, query string, limit int) ([]model.RankSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
