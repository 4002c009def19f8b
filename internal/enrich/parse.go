package enrich

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Payload parsing is deliberately forgiving: the provider's result shapes
// drift across payload revisions, so unknown or missing fields decode to
// zero values and a malformed page yields zero items instead of an error.

// timeFormats lists the timestamp layouts observed in provider payloads.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

// resultPage is the common outer shape of async result payloads: an array of
// pages, each carrying an items array.
type resultPage struct {
	ItemsCount int             `json:"items_count"`
	Items      json.RawMessage `json:"items"`
}

// decodePages unmarshals the result array, tolerating anomalies.
func decodePages(raw json.RawMessage, kind string) []resultPage {
	if len(raw) == 0 {
		return nil
	}
	var pages []resultPage
	if err := json.Unmarshal(raw, &pages); err != nil {
		zap.L().Warn("unexpected result payload shape",
			zap.String("kind", kind),
			zap.Error(err),
		)
		return nil
	}
	return pages
}

func decodeItems[T any](page resultPage, kind string) []T {
	if len(page.Items) == 0 {
		return nil
	}
	var items []T
	if err := json.Unmarshal(page.Items, &items); err != nil {
		zap.L().Warn("unexpected items shape",
			zap.String("kind", kind),
			zap.Error(err),
		)
		return nil
	}
	return items
}
