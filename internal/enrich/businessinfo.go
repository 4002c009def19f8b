package enrich

import (
	"encoding/json"

	"github.com/sells-group/localrank/internal/model"
)

type businessInfoItem struct {
	Description          string   `json:"description"`
	Category             string   `json:"category"`
	AdditionalCategories []string `json:"additional_categories"`
	TotalPhotos          *int     `json:"total_photos"`
	Logo                 string   `json:"logo"`
	MainImage            string   `json:"main_image"`
}

// parseBusinessInfo extracts the profile snapshot from a business-info
// result. The payload carries at most one meaningful item; later pages are
// ignored. Returns nil when the result holds no snapshot.
func parseBusinessInfo(raw json.RawMessage, placeID string) *model.BusinessInfoSnapshot {
	for _, page := range decodePages(raw, "business_info") {
		for _, item := range decodeItems[businessInfoItem](page, "business_info") {
			if item.Description == "" && item.Category == "" && item.Logo == "" &&
				item.MainImage == "" && item.TotalPhotos == nil {
				continue
			}
			return &model.BusinessInfoSnapshot{
				PlaceID:              placeID,
				Description:          item.Description,
				Category:             item.Category,
				AdditionalCategories: item.AdditionalCategories,
				PhotoCount:           item.TotalPhotos,
				LogoURL:              item.Logo,
				MainPhotoURL:         item.MainImage,
			}
		}
	}
	return nil
}
