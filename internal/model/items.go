package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ItemKey derives a stable natural identity from the given parts. Parts are
// NFC-normalized and whitespace-trimmed first so representation differences
// in provider payloads never split one logical item into two rows.
func ItemKey(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(norm.NFC.String(strings.TrimSpace(p))))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Review is a single customer review attached to a place.
type Review struct {
	PlaceID      string     `json:"place_id"`
	ReviewID     string     `json:"review_id"`
	Author       string     `json:"author"`
	Rating       float64    `json:"rating"`
	Text         string     `json:"text"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	OwnerReply   string     `json:"owner_reply,omitempty"`
	OwnerReplyAt *time.Time `json:"owner_reply_at,omitempty"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
}

// NaturalKey returns the provider review id when present, otherwise a hash of
// the stable review fields.
func (r Review) NaturalKey() string {
	if r.ReviewID != "" {
		return r.ReviewID
	}
	ts := ""
	if r.PostedAt != nil {
		ts = r.PostedAt.UTC().Format(time.RFC3339)
	}
	return ItemKey(r.Text, ts, r.Author)
}

// BusinessUpdate is a post published on the business profile. Older payload
// shapes carry no stable id, so identity is always hash-derived.
type BusinessUpdate struct {
	PlaceID     string     `json:"place_id"`
	Text        string     `json:"text"`
	URL         string     `json:"url,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
}

func (u BusinessUpdate) NaturalKey() string {
	ts := ""
	if u.PostedAt != nil {
		ts = u.PostedAt.UTC().Format(time.RFC3339)
	}
	return ItemKey(u.Text, ts, u.URL)
}

// QuestionAnswer is a Q&A pair from the business profile.
type QuestionAnswer struct {
	PlaceID         string     `json:"place_id"`
	QuestionText    string     `json:"question_text"`
	QuestionAt      *time.Time `json:"question_at,omitempty"`
	QuestionProfile string     `json:"question_profile,omitempty"`
	AnswerText      string     `json:"answer_text,omitempty"`
	AnswerAt        *time.Time `json:"answer_at,omitempty"`
	AnswerProfile   string     `json:"answer_profile,omitempty"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
}

func (q QuestionAnswer) NaturalKey() string {
	qts, ats := "", ""
	if q.QuestionAt != nil {
		qts = q.QuestionAt.UTC().Format(time.RFC3339)
	}
	if q.AnswerAt != nil {
		ats = q.AnswerAt.UTC().Format(time.RFC3339)
	}
	return ItemKey(q.QuestionText, qts, q.QuestionProfile, q.AnswerText, ats, q.AnswerProfile)
}

// BusinessInfoSnapshot is the profile metadata slice captured per fetch.
// Empty fields mean "not present in this payload", never "clear the value".
type BusinessInfoSnapshot struct {
	PlaceID             string   `json:"place_id"`
	Description         string   `json:"description,omitempty"`
	Category            string   `json:"category,omitempty"`
	AdditionalCategories []string `json:"additional_categories,omitempty"`
	PhotoCount          *int     `json:"photo_count,omitempty"`
	LogoURL             string   `json:"logo_url,omitempty"`
	MainPhotoURL        string   `json:"main_photo_url,omitempty"`
	LogoPath            string   `json:"logo_path,omitempty"`
	MainPhotoPath       string   `json:"main_photo_path,omitempty"`
}

// SocialProfile is one discovered social platform link for a place.
type SocialProfile struct {
	PlaceID     string    `json:"place_id"`
	Platform    string    `json:"platform"`
	URL         string    `json:"url"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// NaturalKey for a social profile is the platform itself: one row per
// platform per place, first discovered URL wins.
func (p SocialProfile) NaturalKey() string {
	return p.Platform
}
