package model

import "time"

// Place is the enrichment subject. The orchestrator owns only the narrow
// profile slice below; discovery and ranking own the rest.
type Place struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LocationName string    `json:"location_name,omitempty"`
	Category     string    `json:"category,omitempty"`
	Address      string    `json:"address,omitempty"`
	Rating       float64   `json:"rating,omitempty"`
	ReviewCount  int       `json:"review_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RankSnapshot records one observed ranking position for a place in a
// category/location search.
type RankSnapshot struct {
	ID         string    `json:"id"`
	PlaceID    string    `json:"place_id"`
	Query      string    `json:"query"`
	Position   int       `json:"position"`
	Rating     float64   `json:"rating,omitempty"`
	Reviews    int       `json:"reviews,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}
