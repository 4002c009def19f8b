package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/db"
	"github.com/sells-group/localrank/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS places (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	location_name TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count  INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rank_snapshots (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	place_id    TEXT NOT NULL,
	query       TEXT NOT NULL,
	position    INTEGER NOT NULL,
	rating      DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviews     INTEGER NOT NULL DEFAULT 0,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_tasks (
	id                         TEXT PRIMARY KEY,
	kind                       TEXT NOT NULL,
	place_id                   TEXT NOT NULL,
	location_name              TEXT NOT NULL DEFAULT '',
	status                     TEXT NOT NULL DEFAULT 'created',
	status_code                INTEGER NOT NULL DEFAULT 0,
	status_message             TEXT NOT NULL DEFAULT '',
	endpoint                   TEXT NOT NULL DEFAULT '',
	created_at                 TIMESTAMPTZ NOT NULL,
	last_checked_at            TIMESTAMPTZ,
	ready_at                   TIMESTAMPTZ,
	populated_at               TIMESTAMPTZ,
	last_attempted_populate_at TIMESTAMPTZ,
	last_populate_count        INTEGER NOT NULL DEFAULT 0,
	callback_received_at       TIMESTAMPTZ,
	callback_task_id           TEXT NOT NULL DEFAULT '',
	last_error                 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reviews (
	place_id       TEXT NOT NULL,
	natural_key    TEXT NOT NULL,
	review_id      TEXT NOT NULL DEFAULT '',
	author         TEXT NOT NULL DEFAULT '',
	rating         DOUBLE PRECISION NOT NULL DEFAULT 0,
	text           TEXT NOT NULL DEFAULT '',
	posted_at      TIMESTAMPTZ,
	owner_reply    TEXT NOT NULL DEFAULT '',
	owner_reply_at TIMESTAMPTZ,
	first_seen_at  TIMESTAMPTZ NOT NULL,
	last_seen_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (place_id, natural_key)
);

CREATE TABLE IF NOT EXISTS business_updates (
	place_id      TEXT NOT NULL,
	natural_key   TEXT NOT NULL,
	text          TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	posted_at     TIMESTAMPTZ,
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (place_id, natural_key)
);

CREATE TABLE IF NOT EXISTS business_questions (
	place_id         TEXT NOT NULL,
	natural_key      TEXT NOT NULL,
	question_text    TEXT NOT NULL DEFAULT '',
	question_at      TIMESTAMPTZ,
	question_profile TEXT NOT NULL DEFAULT '',
	answer_text      TEXT NOT NULL DEFAULT '',
	answer_at        TIMESTAMPTZ,
	answer_profile   TEXT NOT NULL DEFAULT '',
	first_seen_at    TIMESTAMPTZ NOT NULL,
	last_seen_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (place_id, natural_key)
);

CREATE TABLE IF NOT EXISTS social_profiles (
	place_id      TEXT NOT NULL,
	platform      TEXT NOT NULL,
	url           TEXT NOT NULL,
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (place_id, platform)
);

CREATE TABLE IF NOT EXISTS business_info (
	place_id              TEXT PRIMARY KEY,
	description           TEXT,
	category              TEXT,
	additional_categories JSONB,
	photo_count           INTEGER,
	logo_url              TEXT,
	main_photo_url        TEXT,
	logo_path             TEXT,
	main_photo_path       TEXT,
	updated_at            TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON enrichment_tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_place_kind ON enrichment_tasks(place_id, kind, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_rank_snapshots_query ON rank_snapshots(query, captured_at DESC);
CREATE INDEX IF NOT EXISTS idx_reviews_place ON reviews(place_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Pool exposes the underlying pool for bulk helpers.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const pgTerminalGuard = ` AND status NOT IN ('populated', 'no_data', 'error')`

func (s *PostgresStore) UpsertTask(ctx context.Context, task *model.EnrichmentTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enrichment_tasks
			(id, kind, place_id, location_name, status, status_code, status_message, endpoint,
			 created_at, last_checked_at, last_populate_count, callback_task_id, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status          = CASE WHEN enrichment_tasks.status IN ('populated', 'no_data', 'error')
			                       THEN enrichment_tasks.status ELSE EXCLUDED.status END,
			status_code     = EXCLUDED.status_code,
			status_message  = EXCLUDED.status_message,
			endpoint        = CASE WHEN EXCLUDED.endpoint != '' THEN EXCLUDED.endpoint ELSE enrichment_tasks.endpoint END,
			location_name   = CASE WHEN EXCLUDED.location_name != '' THEN EXCLUDED.location_name ELSE enrichment_tasks.location_name END,
			last_checked_at = EXCLUDED.last_checked_at,
			last_error      = EXCLUDED.last_error`,
		task.ID, string(task.Kind), task.PlaceID, task.LocationName, string(task.Status),
		task.StatusCode, task.StatusMessage, task.Endpoint,
		task.CreatedAt, time.Now().UTC(), task.LastPopulateCount, task.CallbackTaskID, task.LastError,
	)
	return eris.Wrapf(err, "postgres: upsert task %s", task.ID)
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*model.EnrichmentTask, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM enrichment_tasks WHERE id = $1`, id)
	t, err := scanPgTask(row)
	if err == ErrTaskNotFound {
		return nil, eris.Wrapf(ErrTaskNotFound, "postgres: %s", id)
	}
	return t, err
}

func (s *PostgresStore) ListActiveTasks(ctx context.Context, kinds []model.TaskKind) ([]model.EnrichmentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM enrichment_tasks
		WHERE status NOT IN ('populated', 'no_data', 'error')`
	var args []any
	if len(kinds) > 0 {
		ks := make([]string, len(kinds))
		for i, k := range kinds {
			ks[i] = string(k)
		}
		query += ` AND kind = ANY($1)`
		args = append(args, ks)
	}
	query += ` ORDER BY created_at ASC`
	return s.queryTasks(ctx, query, args...)
}

func (s *PostgresStore) ListLatestTasks(ctx context.Context, filter TaskFilter) ([]model.EnrichmentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM enrichment_tasks WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))
	return s.queryTasks(ctx, query, args...)
}

func (s *PostgresStore) LatestTaskFor(ctx context.Context, placeID string, kind model.TaskKind) (*model.EnrichmentTask, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM enrichment_tasks
		 WHERE place_id = $1 AND kind = $2
		 ORDER BY created_at DESC LIMIT 1`,
		placeID, string(kind))
	t, err := scanPgTask(row)
	if err == ErrTaskNotFound {
		return nil, nil
	}
	return t, err
}

func (s *PostgresStore) MarkTaskReady(ctx context.Context, id, endpoint string, code int, msg string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_tasks SET
			status          = 'ready',
			endpoint        = CASE WHEN $1 != '' THEN $1 ELSE endpoint END,
			status_code     = $2,
			status_message  = $3,
			ready_at        = COALESCE(ready_at, $4),
			last_checked_at = $5
		WHERE id = $6`+pgTerminalGuard,
		endpoint, code, msg, now, now, id,
	)
	return eris.Wrapf(err, "postgres: mark ready %s", id)
}

func (s *PostgresStore) MarkTaskPending(ctx context.Context, id string, code int, msg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_tasks SET
			status          = 'pending',
			status_code     = CASE WHEN $1 != 0 THEN $1 ELSE status_code END,
			status_message  = CASE WHEN $2 != '' THEN $2 ELSE status_message END,
			last_checked_at = $3
		WHERE id = $4 AND status IN ('created', 'pending')`,
		code, msg, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: mark pending %s", id)
}

func (s *PostgresStore) MarkTaskPopulated(ctx context.Context, id string, code int, msg string, itemCount int) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_tasks SET
			status              = 'populated',
			status_code         = $1,
			status_message      = $2,
			populated_at        = $3,
			last_populate_count = $4,
			last_checked_at     = $5,
			last_error          = ''
		WHERE id = $6`+pgTerminalGuard,
		code, msg, now, itemCount, now, id,
	)
	return eris.Wrapf(err, "postgres: mark populated %s", id)
}

func (s *PostgresStore) MarkTaskNoData(ctx context.Context, id string, code int, msg string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_tasks SET
			status              = 'no_data',
			status_code         = $1,
			status_message      = $2,
			populated_at        = $3,
			last_populate_count = 0,
			last_checked_at     = $4
		WHERE id = $5`+pgTerminalGuard,
		code, msg, now, now, id,
	)
	return eris.Wrapf(err, "postgres: mark no-data %s", id)
}

func (s *PostgresStore) MarkTaskError(ctx context.Context, id string, code int, msg string, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_tasks SET
			status          = 'error',
			status_code     = $1,
			status_message  = $2,
			last_error      = $3,
			last_checked_at = $4
		WHERE id = $5`+pgTerminalGuard,
		code, msg, lastError, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: mark error %s", id)
}

func (s *PostgresStore) MarkTaskPopulateAttempt(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_tasks SET last_attempted_populate_at = $1, last_checked_at = $2 WHERE id = $3`,
		now, now, id,
	)
	return eris.Wrapf(err, "postgres: mark populate attempt %s", id)
}

func (s *PostgresStore) MarkTaskCallback(ctx context.Context, id, callbackTaskID string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE enrichment_tasks SET callback_received_at = $1, callback_task_id = $2, last_checked_at = $3 WHERE id = $4`,
		now, callbackTaskID, now, id,
	)
	return eris.Wrapf(err, "postgres: mark callback %s", id)
}

func (s *PostgresStore) DeleteErrorTasks(ctx context.Context, kind *model.TaskKind) (int, error) {
	query := `DELETE FROM enrichment_tasks WHERE status = 'error'`
	var args []any
	if kind != nil {
		query += ` AND kind = $1`
		args = append(args, string(*kind))
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete error tasks")
	}
	return int(tag.RowsAffected()), nil
}

// --- enrichment results ---

func (s *PostgresStore) UpsertReviews(ctx context.Context, placeID string, reviews []model.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(reviews))
	for i, r := range reviews {
		rows[i] = []any{placeID, r.NaturalKey(), r.ReviewID, r.Author, r.Rating, r.Text,
			r.PostedAt, r.OwnerReply, r.OwnerReplyAt, now, now}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "reviews",
		Columns: []string{"place_id", "natural_key", "review_id", "author", "rating", "text",
			"posted_at", "owner_reply", "owner_reply_at", "first_seen_at", "last_seen_at"},
		ConflictKeys: []string{"place_id", "natural_key"},
		UpdateCols: []string{"author", "rating", "text", "posted_at",
			"owner_reply", "owner_reply_at", "last_seen_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert reviews")
	}
	return len(reviews), nil
}

func (s *PostgresStore) UpsertUpdates(ctx context.Context, placeID string, updates []model.BusinessUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(updates))
	for i, u := range updates {
		rows[i] = []any{placeID, u.NaturalKey(), u.Text, u.URL, u.ImageURL, u.PostedAt, now, now}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "business_updates",
		Columns: []string{"place_id", "natural_key", "text", "url", "image_url",
			"posted_at", "first_seen_at", "last_seen_at"},
		ConflictKeys: []string{"place_id", "natural_key"},
		UpdateCols:   []string{"image_url", "last_seen_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert updates")
	}
	return len(updates), nil
}

func (s *PostgresStore) UpsertQuestions(ctx context.Context, placeID string, questions []model.QuestionAnswer) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	rows := make([][]any, len(questions))
	for i, q := range questions {
		rows[i] = []any{placeID, q.NaturalKey(), q.QuestionText, q.QuestionAt, q.QuestionProfile,
			q.AnswerText, q.AnswerAt, q.AnswerProfile, now, now}
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "business_questions",
		Columns: []string{"place_id", "natural_key", "question_text", "question_at", "question_profile",
			"answer_text", "answer_at", "answer_profile", "first_seen_at", "last_seen_at"},
		ConflictKeys: []string{"place_id", "natural_key"},
		UpdateCols:   []string{"last_seen_at"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert questions")
	}
	return len(questions), nil
}

func (s *PostgresStore) UpsertSocialProfiles(ctx context.Context, placeID string, profiles []model.SocialProfile) (int, error) {
	if len(profiles) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	inserted := 0
	for _, p := range profiles {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO social_profiles (place_id, platform, url, first_seen_at, last_seen_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (place_id, platform) DO NOTHING`,
			placeID, p.Platform, p.URL, now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: insert social profile")
		}
		if tag.RowsAffected() > 0 {
			inserted++
			continue
		}
		if _, err := s.pool.Exec(ctx, `
			UPDATE social_profiles SET last_seen_at = $1 WHERE place_id = $2 AND platform = $3`,
			now, placeID, p.Platform,
		); err != nil {
			return 0, eris.Wrap(err, "postgres: touch social profile")
		}
	}
	return inserted, nil
}

func (s *PostgresStore) SaveBusinessInfo(ctx context.Context, info model.BusinessInfoSnapshot) error {
	var cats any
	if len(info.AdditionalCategories) > 0 {
		b, err := json.Marshal(info.AdditionalCategories)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal categories")
		}
		cats = string(b)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO business_info
			(place_id, description, category, additional_categories, photo_count,
			 logo_url, main_photo_url, logo_path, main_photo_path, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (place_id) DO UPDATE SET
			description           = COALESCE(EXCLUDED.description, business_info.description),
			category              = COALESCE(EXCLUDED.category, business_info.category),
			additional_categories = COALESCE(EXCLUDED.additional_categories, business_info.additional_categories),
			photo_count           = COALESCE(EXCLUDED.photo_count, business_info.photo_count),
			logo_url              = COALESCE(EXCLUDED.logo_url, business_info.logo_url),
			main_photo_url        = COALESCE(EXCLUDED.main_photo_url, business_info.main_photo_url),
			logo_path             = COALESCE(EXCLUDED.logo_path, business_info.logo_path),
			main_photo_path       = COALESCE(EXCLUDED.main_photo_path, business_info.main_photo_path),
			updated_at            = EXCLUDED.updated_at`,
		info.PlaceID, nullStr(info.Description), nullStr(info.Category), cats, info.PhotoCount,
		nullStr(info.LogoURL), nullStr(info.MainPhotoURL), nullStr(info.LogoPath), nullStr(info.MainPhotoPath),
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save business info %s", info.PlaceID)
}

func (s *PostgresStore) GetBusinessInfo(ctx context.Context, placeID string) (*model.BusinessInfoSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT place_id, description, category, additional_categories, photo_count,
		       logo_url, main_photo_url, logo_path, main_photo_path
		FROM business_info WHERE place_id = $1`, placeID)

	var info model.BusinessInfoSnapshot
	var desc, cat, cats, logoURL, photoURL, logoPath, photoPath *string
	var photoCount *int
	err := row.Scan(&info.PlaceID, &desc, &cat, &cats, &photoCount,
		&logoURL, &photoURL, &logoPath, &photoPath)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get business info")
	}
	info.Description = deref(desc)
	info.Category = deref(cat)
	info.LogoURL = deref(logoURL)
	info.MainPhotoURL = deref(photoURL)
	info.LogoPath = deref(logoPath)
	info.MainPhotoPath = deref(photoPath)
	info.PhotoCount = photoCount
	if cats != nil && *cats != "" {
		if err := json.Unmarshal([]byte(*cats), &info.AdditionalCategories); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal categories")
		}
	}
	return &info, nil
}

func (s *PostgresStore) ListReviews(ctx context.Context, placeID string) ([]model.Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT place_id, review_id, author, rating, text, posted_at,
		       owner_reply, owner_reply_at, first_seen_at, last_seen_at
		FROM reviews WHERE place_id = $1 ORDER BY posted_at DESC`, placeID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reviews")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.PlaceID, &r.ReviewID, &r.Author, &r.Rating, &r.Text, &r.PostedAt,
			&r.OwnerReply, &r.OwnerReplyAt, &r.FirstSeenAt, &r.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review")
		}
		reviews = append(reviews, r)
	}
	return reviews, eris.Wrap(rows.Err(), "postgres: list reviews iterate")
}

func (s *PostgresStore) ListSocialProfiles(ctx context.Context, placeID string) ([]model.SocialProfile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT place_id, platform, url, first_seen_at, last_seen_at
		FROM social_profiles WHERE place_id = $1 ORDER BY platform`, placeID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list social profiles")
	}
	defer rows.Close()

	var profiles []model.SocialProfile
	for rows.Next() {
		var p model.SocialProfile
		if err := rows.Scan(&p.PlaceID, &p.Platform, &p.URL, &p.FirstSeenAt, &p.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan social profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, eris.Wrap(rows.Err(), "postgres: list social profiles iterate")
}

// --- places and snapshots ---

func (s *PostgresStore) UpsertPlace(ctx context.Context, place *model.Place) error {
	now := time.Now().UTC()
	if place.CreatedAt.IsZero() {
		place.CreatedAt = now
	}
	place.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO places (id, name, location_name, category, address, rating, review_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name          = EXCLUDED.name,
			location_name = CASE WHEN EXCLUDED.location_name != '' THEN EXCLUDED.location_name ELSE places.location_name END,
			category      = CASE WHEN EXCLUDED.category != '' THEN EXCLUDED.category ELSE places.category END,
			address       = CASE WHEN EXCLUDED.address != '' THEN EXCLUDED.address ELSE places.address END,
			rating        = EXCLUDED.rating,
			review_count  = EXCLUDED.review_count,
			updated_at    = EXCLUDED.updated_at`,
		place.ID, place.Name, place.LocationName, place.Category, place.Address,
		place.Rating, place.ReviewCount, place.CreatedAt, place.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert place %s", place.ID)
}

func (s *PostgresStore) GetPlace(ctx context.Context, id string) (*model.Place, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, location_name, category, address, rating, review_count, created_at, updated_at
		FROM places WHERE id = $1`, id)
	var p model.Place
	err := row.Scan(&p.ID, &p.Name, &p.LocationName, &p.Category, &p.Address,
		&p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get place")
	}
	return &p, nil
}

func (s *PostgresStore) ListPlaces(ctx context.Context, limit int) ([]model.Place, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, location_name, category, address, rating, review_count, created_at, updated_at
		FROM places ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list places")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		var p model.Place
		if err := rows.Scan(&p.ID, &p.Name, &p.LocationName, &p.Category, &p.Address,
			&p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan place")
		}
		places = append(places, p)
	}
	return places, eris.Wrap(rows.Err(), "postgres: list places iterate")
}

func (s *PostgresStore) SaveRankSnapshot(ctx context.Context, snap *model.RankSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rank_snapshots (id, place_id, query, position, rating, reviews, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID, snap.PlaceID, snap.Query, snap.Position, snap.Rating, snap.Reviews, snap.CapturedAt,
	)
	return eris.Wrap(err, "postgres: save rank snapshot")
}

func (s *PostgresStore) ListRankSnapshots(ctx context.Context, query string, limit int) ([]model.RankSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, place_id, query, position, rating, reviews, captured_at FROM rank_snapshots`
	var args []any
	if query != "" {
		args = append(args, query)
		q += ` WHERE query = $1`
	}
	args = append(args, limit)
	q += ` ORDER BY captured_at DESC, position ASC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rank snapshots")
	}
	defer rows.Close()

	var snaps []model.RankSnapshot
	for rows.Next() {
		var sn model.RankSnapshot
		if err := rows.Scan(&sn.ID, &sn.PlaceID, &sn.Query, &sn.Position, &sn.Rating, &sn.Reviews, &sn.CapturedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rank snapshot")
		}
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list rank snapshots iterate")
}

// --- helpers ---

func (s *PostgresStore) queryTasks(ctx context.Context, query string, args ...any) ([]model.EnrichmentTask, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query tasks")
	}
	defer rows.Close()

	var tasks []model.EnrichmentTask
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: iterate tasks")
}

func scanPgTask(row scannable) (*model.EnrichmentTask, error) {
	var t model.EnrichmentTask
	var kind, status string

	err := row.Scan(&t.ID, &kind, &t.PlaceID, &t.LocationName, &status,
		&t.StatusCode, &t.StatusMessage, &t.Endpoint,
		&t.CreatedAt, &t.LastCheckedAt, &t.ReadyAt, &t.PopulatedAt, &t.LastAttemptedPopulate,
		&t.LastPopulateCount, &t.CallbackReceivedAt, &t.CallbackTaskID, &t.LastError)
	if err == pgx.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan task")
	}

	t.Kind = model.TaskKind(kind)
	t.Status = model.TaskStatus(status)
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
