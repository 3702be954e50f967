package models

// Timeline entry types
const (
	EntryTypeNarration = "narration"
	EntryTypeSong      = "song"
)

// TimelineEntry is one item of the interleaved documentary timeline.
// Narration entries use Text (and TTSURL once synthesized); song entries use the remaining fields.
type TimelineEntry struct {
	Type string `json:"type"`

	// narration
	Text   string `json:"text,omitempty"`
	TTSURL string `json:"tts_url,omitempty"`

	// song
	Title        string     `json:"title,omitempty"`
	Artist       string     `json:"artist,omitempty"`
	Album        string     `json:"album,omitempty"`
	Year         FlexString `json:"year,omitempty"`
	SpotifyQuery string     `json:"spotify_query,omitempty"`
	TrackID      string     `json:"track_id,omitempty"`
	TrackURI     string     `json:"track_uri,omitempty"`
	DurationMS   int64      `json:"duration_ms,omitempty"`
	Duration     float64    `json:"duration,omitempty"`
}

// IsSong reports whether the entry is a song
func (e TimelineEntry) IsSong() bool {
	return e.Type == EntryTypeSong
}

// IsNarration reports whether the entry is narration
func (e TimelineEntry) IsNarration() bool {
	return e.Type == EntryTypeNarration
}

// CloneTimeline copies a timeline slice
func CloneTimeline(timeline []TimelineEntry) []TimelineEntry {
	if timeline == nil {
		return nil
	}
	out := make([]TimelineEntry, len(timeline))
	copy(out, timeline)
	return out
}

// Documentary is the generated document: title, topic, summary and timeline
type Documentary struct {
	Title    string          `json:"title"`
	Topic    string          `json:"topic"`
	Summary  string          `json:"summary"`
	Timeline []TimelineEntry `json:"timeline"`
}
