package models

// RequiredTrack is a song the planner considers essential to the narrative
type RequiredTrack struct {
	SongTitle       string     `json:"song_title"`
	ApproximateYear FlexString `json:"approximate_year"`
	WhyEssential    string     `json:"why_essential"`
}

// DocumentaryPlan is the intermediate outline produced by the planning stage
type DocumentaryPlan struct {
	Title          string          `json:"title"`
	NarrativeArc   string          `json:"narrative_arc"`
	EraCovered     string          `json:"era_covered"`
	RequiredTracks []RequiredTrack `json:"required_tracks"`
}
