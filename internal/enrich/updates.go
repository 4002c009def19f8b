package enrich

import (
	"encoding/json"

	"github.com/sells-group/localrank/internal/model"
)

type updateItem struct {
	PostText  string `json:"post_text"`
	PostDate  string `json:"post_date"`
	URL       string `json:"url"`
	ImagesURL string `json:"images_url"`
}

// parseUpdates turns a raw business-updates result into normalized posts.
// These payloads carry no stable provider id; identity is hash-derived from
// text, date, and url.
func parseUpdates(raw json.RawMessage, placeID string) []model.BusinessUpdate {
	var updates []model.BusinessUpdate
	for _, page := range decodePages(raw, "updates") {
		for _, item := range decodeItems[updateItem](page, "updates") {
			if item.PostText == "" && item.URL == "" {
				continue
			}
			updates = append(updates, model.BusinessUpdate{
				PlaceID:  placeID,
				Text:     item.PostText,
				URL:      item.URL,
				ImageURL: item.ImagesURL,
				PostedAt: parseTimestamp(item.PostDate),
			})
		}
	}
	return updates
}
