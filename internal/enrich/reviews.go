package enrich

import (
	"encoding/json"

	"github.com/sells-group/localrank/internal/model"
)

type reviewItem struct {
	ReviewID    string `json:"review_id"`
	ProfileName string `json:"profile_name"`
	Rating      struct {
		Value float64 `json:"value"`
	} `json:"rating"`
	ReviewText     string `json:"review_text"`
	Timestamp      string `json:"timestamp"`
	OwnerAnswer    string `json:"owner_answer"`
	OwnerTimestamp string `json:"owner_timestamp"`
}

// parseReviews turns a raw reviews result into normalized review records.
func parseReviews(raw json.RawMessage, placeID string) []model.Review {
	var reviews []model.Review
	for _, page := range decodePages(raw, "reviews") {
		for _, item := range decodeItems[reviewItem](page, "reviews") {
			reviews = append(reviews, model.Review{
				PlaceID:      placeID,
				ReviewID:     item.ReviewID,
				Author:       item.ProfileName,
				Rating:       item.Rating.Value,
				Text:         item.ReviewText,
				PostedAt:     parseTimestamp(item.Timestamp),
				OwnerReply:   item.OwnerAnswer,
				OwnerReplyAt: parseTimestamp(item.OwnerTimestamp),
			})
		}
	}
	return reviews
}
