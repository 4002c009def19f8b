package enrich

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/sells-group/localrank/internal/model"
)

// parseSocialProfiles walks the entire raw result tree collecting URL-shaped
// strings, classifies each against the platform table, and returns one
// profile per platform. The first URL encountered for a platform wins; the
// walk order is deterministic (map keys sorted) so repeated runs over the
// same payload produce the same profiles.
func parseSocialProfiles(raw json.RawMessage, placeID string, table map[string]string) []model.SocialProfile {
	if table == nil {
		table = builtinPlatforms
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil
	}
	seen := make(map[string]string)
	collectURLs(tree, func(u string) {
		platform := classifyURL(u, table)
		if platform == "" {
			return
		}
		if _, ok := seen[platform]; !ok {
			seen[platform] = u
		}
	})
	platforms := make([]string, 0, len(seen))
	for p := range seen {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	profiles := make([]model.SocialProfile, 0, len(platforms))
	for _, p := range platforms {
		profiles = append(profiles, model.SocialProfile{
			PlaceID:  placeID,
			Platform: p,
			URL:      seen[p],
		})
	}
	return profiles
}

// collectURLs visits every string in a decoded JSON tree and passes each
// http(s) URL to fn. Object keys are visited in sorted order.
func collectURLs(node any, fn func(string)) {
	switch v := node.(type) {
	case string:
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			fn(v)
		}
	case []any:
		for _, child := range v {
			collectURLs(child, fn)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectURLs(v[k], fn)
		}
	}
}
