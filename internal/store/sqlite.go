package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/localrank/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS places (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	location_name TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	rating        REAL NOT NULL DEFAULT 0,
	review_count  INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rank_snapshots (
	id          TEXT PRIMARY KEY,
	place_id    TEXT NOT NULL,
	query       TEXT NOT NULL,
	position    INTEGER NOT NULL,
	rating      REAL NOT NULL DEFAULT 0,
	reviews     INTEGER NOT NULL DEFAULT 0,
	captured_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at                 DATETIME NOT NULL,
	last_checked_at            DATETIME,
	ready_at                   DATETIME,
	populated_at               DATETIME,
	last_attempted_populate_at DATETIME,
	last_populate_count        INTEGER NOT NULL DEFAULT 0,
	callback_received_at       DATETIME,
	callback_task_id           TEXT NOT NULL DEFAULT '',
	last_error                 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reviews (
	place_id       TEXT NOT NULL,
	natural_key    TEXT NOT NULL,
	review_id      TEXT NOT NULL DEFAULT '',
	author         TEXT NOT NULL DEFAULT '',
	rating         REAL NOT NULL DEFAULT 0,
	text           TEXT NOT NULL DEFAULT '',
	posted_at      DATETIME,
	owner_reply    TEXT NOT NULL DEFAULT '',
	owner_reply_at DATETIME,
	first_seen_at  DATETIME NOT NULL,
	last_seen_at   DATETIME NOT NULL,
	PRIMARY KEY (place_id, natural_key)
);

CREATE TABLE IF NOT EXISTS business_updates (
	place_id      TEXT NOT NULL,
	natural_key   TEXT NOT NULL,
	text          TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	posted_at     DATETIME,
	first_seen_at DATETIME NOT NULL,
	last_seen_at  DATETIME NOT NULL,
	PRIMARY KEY (place_id, natural_key)
);

CREATE TABLE IF NOT EXISTS business_questions (
	place_id         TEXT NOT NULL,
	natural_key      TEXT NOT NULL,
	question_text    TEXT NOT NULL DEFAULT '',
	question_at      DATETIME,
	question_profile TEXT NOT NULL DEFAULT '',
	answer_text      TEXT NOT NULL DEFAULT '',
	answer_at        DATETIME,
	answer_profile   TEXT NOT NULL DEFAULT '',
	first_seen_at    DATETIME NOT NULL,
	last_seen_at     DATETIME NOT NULL,
	PRIMARY KEY (place_id, natural_key)
);

CREATE TABLE IF NOT EXISTS social_profiles (
	place_id      TEXT NOT NULL,
	platform      TEXT NOT NULL,
	url           TEXT NOT NULL,
	first_seen_at DATETIME NOT NULL,
	last_seen_at  DATETIME NOT NULL,
	PRIMARY KEY (place_id, platform)
);

CREATE TABLE IF NOT EXISTS business_info (
	place_id              TEXT PRIMARY KEY,
	description           TEXT,
	category              TEXT,
	additional_categories TEXT,
	photo_count           INTEGER,
	logo_url              TEXT,
	main_photo_url        TEXT,
	logo_path             TEXT,
	main_photo_path       TEXT,
	updated_at            DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON enrichment_tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_place_kind ON enrichment_tasks(place_id, kind, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_rank_snapshots_query ON rank_snapshots(query, captured_at DESC);
CREATE INDEX IF NOT EXISTS idx_reviews_place ON reviews(place_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTerminalGuard excludes rows that already reached a terminal status.
// A task never regresses out of populated, no_data, or error.
const sqliteTerminalGuard = ` AND status NOT IN ('populated', 'no_data', 'error')`

func (s *SQLiteStore) UpsertTask(ctx context.Context, task *model.EnrichmentTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrichment_tasks
			(id, kind, place_id, location_name, status, status_code, status_message, endpoint,
			 created_at, last_checked_at, last_populate_count, callback_task_id, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status          = CASE WHEN status IN ('populated', 'no_data', 'error') THEN status ELSE excluded.status END,
			status_code     = excluded.status_code,
			status_message  = excluded.status_message,
			endpoint        = CASE WHEN excluded.endpoint != '' THEN excluded.endpoint ELSE endpoint END,
			location_name   = CASE WHEN excluded.location_name != '' THEN excluded.location_name ELSE location_name END,
			last_checked_at = excluded.last_checked_at,
			last_error      = excluded.last_error`,
		task.ID, string(task.Kind), task.PlaceID, task.LocationName, string(task.Status),
		task.StatusCode, task.StatusMessage, task.Endpoint,
		task.CreatedAt, time.Now().UTC(), task.LastPopulateCount, task.CallbackTaskID, task.LastError,
	)
	return eris.Wrapf(err, "sqlite: upsert task %s", task.ID)
}

const taskColumns = `id, kind, place_id, location_name, status, status_code, status_message, endpoint,
	created_at, last_checked_at, ready_at, populated_at, last_attempted_populate_at,
	last_populate_count, callback_received_at, callback_task_id, last_error`

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.EnrichmentTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM enrichment_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == ErrTaskNotFound {
		return nil, eris.Wrapf(ErrTaskNotFound, "sqlite: %s", id)
	}
	return t, err
}

func (s *SQLiteStore) ListActiveTasks(ctx context.Context, kinds []model.TaskKind) ([]model.EnrichmentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM enrichment_tasks
		WHERE status NOT IN ('populated', 'no_data', 'error')`
	var args []any
	if len(kinds) > 0 {
		query += ` AND kind IN (?` + repeat(",?", len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	query += ` ORDER BY created_at ASC`
	return s.queryTasks(ctx, query, args...)
}

func (s *SQLiteStore) ListLatestTasks(ctx context.Context, filter TaskFilter) ([]model.EnrichmentTask, error) {
	query := `SELECT ` + taskColumns + ` FROM enrichment_tasks WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	return s.queryTasks(ctx, query, args...)
}

func (s *SQLiteStore) LatestTaskFor(ctx context.Context, placeID string, kind model.TaskKind) (*model.EnrichmentTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM enrichment_tasks
		 WHERE place_id = ? AND kind = ?
		 ORDER BY created_at DESC LIMIT 1`,
		placeID, string(kind))
	t, err := scanTask(row)
	if err == ErrTaskNotFound {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStore) MarkTaskReady(ctx context.Context, id, endpoint string, code int, msg string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_tasks SET
			status          = 'ready',
			endpoint        = CASE WHEN ? != '' THEN ? ELSE endpoint END,
			status_code     = ?,
			status_message  = ?,
			ready_at        = COALESCE(ready_at, ?),
			last_checked_at = ?
		WHERE id = ?`+sqliteTerminalGuard,
		endpoint, endpoint, code, msg, now, now, id,
	)
	return eris.Wrapf(err, "sqlite: mark ready %s", id)
}

func (s *SQLiteStore) MarkTaskPending(ctx context.Context, id string, code int, msg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_tasks SET
			status          = 'pending',
			status_code     = CASE WHEN ? != 0 THEN ? ELSE status_code END,
			status_message  = CASE WHEN ? != '' THEN ? ELSE status_message END,
			last_checked_at = ?
		WHERE id = ? AND status IN ('created', 'pending')`,
		code, code, msg, msg, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: mark pending %s", id)
}

func (s *SQLiteStore) MarkTaskPopulated(ctx context.Context, id string, code int, msg string, itemCount int) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_tasks SET
			status              = 'populated',
			status_code         = ?,
			status_message      = ?,
			populated_at        = ?,
			last_populate_count = ?,
			last_checked_at     = ?,
			last_error          = ''
		WHERE id = ?`+sqliteTerminalGuard,
		code, msg, now, itemCount, now, id,
	)
	return eris.Wrapf(err, "sqlite: mark populated %s", id)
}

func (s *SQLiteStore) MarkTaskNoData(ctx context.Context, id string, code int, msg string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_tasks SET
			status              = 'no_data',
			status_code         = ?,
			status_message      = ?,
			populated_at        = ?,
			last_populate_count = 0,
			last_checked_at     = ?
		WHERE id = ?`+sqliteTerminalGuard,
		code, msg, now, now, id,
	)
	return eris.Wrapf(err, "sqlite: mark no-data %s", id)
}

func (s *SQLiteStore) MarkTaskError(ctx context.Context, id string, code int, msg string, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_tasks SET
			status          = 'error',
			status_code     = ?,
			status_message  = ?,
			last_error      = ?,
			last_checked_at = ?
		WHERE id = ?`+sqliteTerminalGuard,
		code, msg, lastError, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: mark error %s", id)
}

func (s *SQLiteStore) MarkTaskPopulateAttempt(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_tasks SET last_attempted_populate_at = ?, last_checked_at = ? WHERE id = ?`,
		now, now, id,
	)
	return eris.Wrapf(err, "sqlite: mark populate attempt %s", id)
}

func (s *SQLiteStore) MarkTaskCallback(ctx context.Context, id, callbackTaskID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE enrichment_tasks SET callback_received_at = ?, callback_task_id = ?, last_checked_at = ? WHERE id = ?`,
		now, callbackTaskID, now, id,
	)
	return eris.Wrapf(err, "sqlite: mark callback %s", id)
}

func (s *SQLiteStore) DeleteErrorTasks(ctx context.Context, kind *model.TaskKind) (int, error) {
	query := `DELETE FROM enrichment_tasks WHERE status = 'error'`
	var args []any
	if kind != nil {
		query += ` AND kind = ?`
		args = append(args, string(*kind))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete error tasks")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// --- enrichment results ---

func (s *SQLiteStore) UpsertReviews(ctx context.Context, placeID string, reviews []model.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert reviews")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range reviews {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reviews
				(place_id, natural_key, review_id, author, rating, text, posted_at,
				 owner_reply, owner_reply_at, first_seen_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(place_id, natural_key) DO UPDATE SET
				author         = excluded.author,
				rating         = excluded.rating,
				text           = excluded.text,
				posted_at      = excluded.posted_at,
				owner_reply    = excluded.owner_reply,
				owner_reply_at = excluded.owner_reply_at,
				last_seen_at   = excluded.last_seen_at`,
			placeID, r.NaturalKey(), r.ReviewID, r.Author, r.Rating, r.Text, nullTime(r.PostedAt),
			r.OwnerReply, nullTime(r.OwnerReplyAt), now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert review")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit reviews")
	}
	return len(reviews), nil
}

func (s *SQLiteStore) UpsertUpdates(ctx context.Context, placeID string, updates []model.BusinessUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert updates")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, u := range updates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO business_updates
				(place_id, natural_key, text, url, image_url, posted_at, first_seen_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(place_id, natural_key) DO UPDATE SET
				image_url    = excluded.image_url,
				last_seen_at = excluded.last_seen_at`,
			placeID, u.NaturalKey(), u.Text, u.URL, u.ImageURL, nullTime(u.PostedAt), now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert update")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit updates")
	}
	return len(updates), nil
}

func (s *SQLiteStore) UpsertQuestions(ctx context.Context, placeID string, questions []model.QuestionAnswer) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert questions")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, q := range questions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO business_questions
				(place_id, natural_key, question_text, question_at, question_profile,
				 answer_text, answer_at, answer_profile, first_seen_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(place_id, natural_key) DO UPDATE SET
				last_seen_at = excluded.last_seen_at`,
			placeID, q.NaturalKey(), q.QuestionText, nullTime(q.QuestionAt), q.QuestionProfile,
			q.AnswerText, nullTime(q.AnswerAt), q.AnswerProfile, now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert question")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit questions")
	}
	return len(questions), nil
}

// UpsertSocialProfiles inserts newly discovered platforms only; a known
// platform keeps its original URL and just advances last_seen_at.
func (s *SQLiteStore) UpsertSocialProfiles(ctx context.Context, placeID string, profiles []model.SocialProfile) (int, error) {
	if len(profiles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert socials")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	inserted := 0
	for _, p := range profiles {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO social_profiles (place_id, platform, url, first_seen_at, last_seen_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(place_id, platform) DO NOTHING`,
			placeID, p.Platform, p.URL, now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert social profile")
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE social_profiles SET last_seen_at = ? WHERE place_id = ? AND platform = ?`,
			now, placeID, p.Platform,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: touch social profile")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit socials")
	}
	return inserted, nil
}

// SaveBusinessInfo overwrites only non-empty fields so a thin intermediate
// payload never blanks previously captured values.
func (s *SQLiteStore) SaveBusinessInfo(ctx context.Context, info model.BusinessInfoSnapshot) error {
	var cats any
	if len(info.AdditionalCategories) > 0 {
		b, err := json.Marshal(info.AdditionalCategories)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal categories")
		}
		cats = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_info
			(place_id, description, category, additional_categories, photo_count,
			 logo_url, main_photo_url, logo_path, main_photo_path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			description           = COALESCE(excluded.description, description),
			category              = COALESCE(excluded.category, category),
			additional_categories = COALESCE(excluded.additional_categories, additional_categories),
			photo_count           = COALESCE(excluded.photo_count, photo_count),
			logo_url              = COALESCE(excluded.logo_url, logo_url),
			main_photo_url        = COALESCE(excluded.main_photo_url, main_photo_url),
			logo_path             = COALESCE(excluded.logo_path, logo_path),
			main_photo_path       = COALESCE(excluded.main_photo_path, main_photo_path),
			updated_at            = excluded.updated_at`,
		info.PlaceID, nullStr(info.Description), nullStr(info.Category), cats, info.PhotoCount,
		nullStr(info.LogoURL), nullStr(info.MainPhotoURL), nullStr(info.LogoPath), nullStr(info.MainPhotoPath),
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save business info %s", info.PlaceID)
}

func (s *SQLiteStore) GetBusinessInfo(ctx context.Context, placeID string) (*model.BusinessInfoSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT place_id, description, category, additional_categories, photo_count,
		       logo_url, main_photo_url, logo_path, main_photo_path
		FROM business_info WHERE place_id = ?`, placeID)

	var info model.BusinessInfoSnapshot
	var desc, cat, cats, logoURL, photoURL, logoPath, photoPath sql.NullString
	var photoCount sql.NullInt64
	err := row.Scan(&info.PlaceID, &desc, &cat, &cats, &photoCount,
		&logoURL, &photoURL, &logoPath, &photoPath)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get business info")
	}
	info.Description = desc.String
	info.Category = cat.String
	info.LogoURL = logoURL.String
	info.MainPhotoURL = photoURL.String
	info.LogoPath = logoPath.String
	info.MainPhotoPath = photoPath.String
	if photoCount.Valid {
		n := int(photoCount.Int64)
		info.PhotoCount = &n
	}
	if cats.Valid && cats.String != "" {
		if err := json.Unmarshal([]byte(cats.String), &info.AdditionalCategories); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal categories")
		}
	}
	return &info, nil
}

func (s *SQLiteStore) ListReviews(ctx context.Context, placeID string) ([]model.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT place_id, review_id, author, rating, text, posted_at,
		       owner_reply, owner_reply_at, first_seen_at, last_seen_at
		FROM reviews WHERE place_id = ? ORDER BY posted_at DESC`, placeID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reviews")
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var r model.Review
		var postedAt, replyAt sql.NullTime
		if err := rows.Scan(&r.PlaceID, &r.ReviewID, &r.Author, &r.Rating, &r.Text, &postedAt,
			&r.OwnerReply, &replyAt, &r.FirstSeenAt, &r.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review")
		}
		r.PostedAt = timePtr(postedAt)
		r.OwnerReplyAt = timePtr(replyAt)
		reviews = append(reviews, r)
	}
	return reviews, eris.Wrap(rows.Err(), "sqlite: list reviews iterate")
}

func (s *SQLiteStore) ListSocialProfiles(ctx context.Context, placeID string) ([]model.SocialProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT place_id, platform, url, first_seen_at, last_seen_at
		FROM social_profiles WHERE place_id = ? ORDER BY platform`, placeID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list social profiles")
	}
	defer rows.Close()

	var profiles []model.SocialProfile
	for rows.Next() {
		var p model.SocialProfile
		if err := rows.Scan(&p.PlaceID, &p.Platform, &p.URL, &p.FirstSeenAt, &p.LastSeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan social profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, eris.Wrap(rows.Err(), "sqlite: list social profiles iterate")
}

// --- places and snapshots ---

func (s *SQLiteStore) UpsertPlace(ctx context.Context, place *model.Place) error {
	now := time.Now().UTC()
	if place.CreatedAt.IsZero() {
		place.CreatedAt = now
	}
	place.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO places (id, name, location_name, category, address, rating, review_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name          = excluded.name,
			location_name = CASE WHEN excluded.location_name != '' THEN excluded.location_name ELSE location_name END,
			category      = CASE WHEN excluded.category != '' THEN excluded.category ELSE category END,
			address       = CASE WHEN excluded.address != '' THEN excluded.address ELSE address END,
			rating        = excluded.rating,
			review_count  = excluded.review_count,
			updated_at    = excluded.updated_at`,
		place.ID, place.Name, place.LocationName, place.Category, place.Address,
		place.Rating, place.ReviewCount, place.CreatedAt, place.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert place %s", place.ID)
}

func (s *SQLiteStore) GetPlace(ctx context.Context, id string) (*model.Place, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, location_name, category, address, rating, review_count, created_at, updated_at
		FROM places WHERE id = ?`, id)
	var p model.Place
	err := row.Scan(&p.ID, &p.Name, &p.LocationName, &p.Category, &p.Address,
		&p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get place")
	}
	return &p, nil
}

func (s *SQLiteStore) ListPlaces(ctx context.Context, limit int) ([]model.Place, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, location_name, category, address, rating, review_count, created_at, updated_at
		FROM places ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list places")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		var p model.Place
		if err := rows.Scan(&p.ID, &p.Name, &p.LocationName, &p.Category, &p.Address,
			&p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place")
		}
		places = append(places, p)
	}
	return places, eris.Wrap(rows.Err(), "sqlite: list places iterate")
}

func (s *SQLiteStore) SaveRankSnapshot(ctx context.Context, snap *model.RankSnapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rank_snapshots (id, place_id, query, position, rating, reviews, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.PlaceID, snap.Query, snap.Position, snap.Rating, snap.Reviews, snap.CapturedAt,
	)
	return eris.Wrap(err, "sqlite: save rank snapshot")
}

func (s *SQLiteStore) ListRankSnapshots(ctx context.Context, query string, limit int) ([]model.RankSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, place_id, query, position, rating, reviews, captured_at FROM rank_snapshots`
	var args []any
	if query != "" {
		q += ` WHERE query = ?`
		args = append(args, query)
	}
	q += ` ORDER BY captured_at DESC, position ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rank snapshots")
	}
	defer rows.Close()

	var snaps []model.RankSnapshot
	for rows.Next() {
		var sn model.RankSnapshot
		if err := rows.Scan(&sn.ID, &sn.PlaceID, &sn.Query, &sn.Position, &sn.Rating, &sn.Reviews, &sn.CapturedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rank snapshot")
		}
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list rank snapshots iterate")
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (*model.EnrichmentTask, error) {
	var t model.EnrichmentTask
	var kind, status string
	var lastChecked, readyAt, populatedAt, lastAttempted, callbackAt sql.NullTime

	err := row.Scan(&t.ID, &kind, &t.PlaceID, &t.LocationName, &status,
		&t.StatusCode, &t.StatusMessage, &t.Endpoint,
		&t.CreatedAt, &lastChecked, &readyAt, &populatedAt, &lastAttempted,
		&t.LastPopulateCount, &callbackAt, &t.CallbackTaskID, &t.LastError)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan task")
	}

	t.Kind = model.TaskKind(kind)
	t.Status = model.TaskStatus(status)
	t.LastCheckedAt = timePtr(lastChecked)
	t.ReadyAt = timePtr(readyAt)
	t.PopulatedAt = timePtr(populatedAt)
	t.LastAttemptedPopulate = timePtr(lastAttempted)
	t.CallbackReceivedAt = timePtr(callbackAt)
	return &t, nil
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]model.EnrichmentTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query tasks")
	}
	defer rows.Close()

	var tasks []model.EnrichmentTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: iterate tasks")
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
