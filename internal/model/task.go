package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// TaskKind identifies an enrichment job category. Each kind is scheduled and
// reconciled independently against the provider.
type TaskKind string

const (
	KindReviews        TaskKind = "reviews"
	KindBusinessInfo   TaskKind = "business_info"
	KindUpdates        TaskKind = "updates"
	KindQnA            TaskKind = "qna"
	KindSocialProfiles TaskKind = "social_profiles"
)

// AllKinds returns every enrichment kind in submission order.
func AllKinds() []TaskKind {
	return []TaskKind{KindReviews, KindBusinessInfo, KindUpdates, KindQnA, KindSocialProfiles}
}

// AsyncKinds returns the kinds tracked through the provider's ready-lists.
// Social profiles are fetched live in the same call and never appear there.
func AsyncKinds() []TaskKind {
	return []TaskKind{KindReviews, KindBusinessInfo, KindUpdates, KindQnA}
}

// ParseKind normalizes a user- or provider-supplied kind string.
func ParseKind(s string) (TaskKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reviews", "review":
		return KindReviews, nil
	case "business_info", "businessinfo", "info", "my_business_info":
		return KindBusinessInfo, nil
	case "updates", "posts", "my_business_updates":
		return KindUpdates, nil
	case "qna", "q&a", "questions", "questions_and_answers":
		return KindQnA, nil
	case "social_profiles", "social", "socials":
		return KindSocialProfiles, nil
	}
	return "", eris.Errorf("model: unknown task kind %q", s)
}

// TaskStatus is the ledger lifecycle state of an enrichment task.
type TaskStatus string

const (
	// StatusCreated means the submission was accepted and nothing has been
	// heard back yet.
	StatusCreated TaskStatus = "created"
	// StatusPending means at least one reconciliation pass has seen the task
	// still outstanding at the provider.
	StatusPending TaskStatus = "pending"
	// StatusReady means the provider reported processing finished and the
	// result is fetchable.
	StatusReady TaskStatus = "ready"
	// StatusPopulated means the result was fetched and merged into the
	// domain tables.
	StatusPopulated TaskStatus = "populated"
	// StatusNoData means the job completed successfully with zero items.
	StatusNoData TaskStatus = "no_data"
	// StatusError is a terminal failure: submission failed, the provider
	// returned a fatal status code, or the fetch failed terminally.
	StatusError TaskStatus = "error"
)

// Terminal reports whether a task in this status will never change again.
func (s TaskStatus) Terminal() bool {
	return s == StatusPopulated || s == StatusNoData || s == StatusError
}

// ParseStatus normalizes a status string from CLI flags or HTTP queries.
func ParseStatus(s string) (TaskStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created":
		return StatusCreated, nil
	case "pending":
		return StatusPending, nil
	case "ready":
		return StatusReady, nil
	case "populated":
		return StatusPopulated, nil
	case "no_data", "nodata":
		return StatusNoData, nil
	case "error":
		return StatusError, nil
	}
	return "", eris.Errorf("model: unknown task status %q", s)
}

// Provider status code convention: [20000,30000) success, >=40000 fatal,
// anything else still processing.

// StatusOK reports whether a provider status code is in the success range.
func StatusOK(code int) bool {
	return code >= 20000 && code < 30000
}

// StatusFatal reports whether a provider status code is a terminal failure.
func StatusFatal(code int) bool {
	return code >= 40000
}

// EnrichmentTask is a Task Ledger row: one submitted enrichment job and its
// observed remote lifecycle. The id is the provider-assigned remote id, or a
// synthetic "{kind}-err-{uuid}" for submissions that never got one.
type EnrichmentTask struct {
	ID           string     `json:"id"`
	Kind         TaskKind   `json:"kind"`
	PlaceID      string     `json:"place_id"`
	LocationName string     `json:"location_name,omitempty"`
	Status       TaskStatus `json:"status"`

	// Raw provider status, retained for diagnostics.
	StatusCode    int    `json:"status_code,omitempty"`
	StatusMessage string `json:"status_message,omitempty"`

	// Endpoint is the resolved fetch path, cached from the ready-list so
	// population never has to recompute it.
	Endpoint string `json:"endpoint,omitempty"`

	CreatedAt              time.Time  `json:"created_at"`
	LastCheckedAt          *time.Time `json:"last_checked_at,omitempty"`
	ReadyAt                *time.Time `json:"ready_at,omitempty"`
	PopulatedAt            *time.Time `json:"populated_at,omitempty"`
	LastAttemptedPopulate  *time.Time `json:"last_attempted_populate_at,omitempty"`
	LastPopulateCount      int        `json:"last_populate_count"`
	CallbackReceivedAt     *time.Time `json:"callback_received_at,omitempty"`
	CallbackTaskID         string     `json:"callback_task_id,omitempty"`
	LastError              string     `json:"last_error,omitempty"`
}
