package models

// CatalogTrack is a normalized track from the music catalog
type CatalogTrack struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	ReleaseDate string `json:"release_date"`
	DurationMS  int64  `json:"duration_ms"`
}

// Artist is the catalog identity resolved from a free-text topic
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity,omitempty"`
}

// Album is an artist release used when enumerating the catalog
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	AlbumType   string `json:"album_type,omitempty"`
}

// RequiredTrackMatch pairs a planned track with its best catalog match (nil when missing)
type RequiredTrackMatch struct {
	Requested RequiredTrack `json:"requested"`
	Found     *CatalogTrack `json:"found,omitempty"`
}

// MergeTracks appends tracks from each list in order, skipping ids already seen.
// Tracks without an id are dropped.
func MergeTracks(lists ...[]CatalogTrack) []CatalogTrack {
	seen := make(map[string]struct{})
	var out []CatalogTrack
	for _, list := range lists {
		for _, t := range list {
			if t.ID == "" {
				continue
			}
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
