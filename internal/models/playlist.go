package models

import "time"

// Playlist is a persisted documentary
type Playlist struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"ownerId" badgerhold:"index"`
	Title     string          `json:"title"`
	Topic     string          `json:"topic"`
	Summary   string          `json:"summary"`
	Timeline  []TimelineEntry `json:"timeline"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PlaylistUpdate carries the fields of a partial update; nil fields are left unchanged
type PlaylistUpdate struct {
	Title    *string         `json:"title,omitempty"`
	Topic    *string         `json:"topic,omitempty"`
	Summary  *string         `json:"summary,omitempty"`
	Timeline []TimelineEntry `json:"timeline,omitempty"`
}
