package spotify

import (
	"strings"

	"github.com/ternarybob/musicdoc/internal/models"
)

type apiArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

type apiAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	AlbumType   string `json:"album_type"`
}

type apiTrack struct {
	ID         string         `json:"id"`
	URI        string         `json:"uri"`
	Name       string         `json:"name"`
	Artists    []apiArtistRef `json:"artists"`
	Album      *apiAlbum      `json:"album"`
	DurationMS int64          `json:"duration_ms"`
}

type artistSearchResponse struct {
	Artists struct {
		Items []apiArtist `json:"items"`
	} `json:"artists"`
}

type trackSearchResponse struct {
	Tracks struct {
		Items []apiTrack `json:"items"`
	} `json:"tracks"`
}

type topTracksResponse struct {
	Tracks []apiTrack `json:"tracks"`
}

type albumsResponse struct {
	Items []apiAlbum `json:"items"`
	Next  string     `json:"next"`
}

type albumTracksResponse struct {
	Items []apiTrack `json:"items"`
}

// normalize flattens an API track. fallback supplies album data for album-track listings, which omit it.
func (t apiTrack) normalize(fallback *apiAlbum) models.CatalogTrack {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	album := t.Album
	if album == nil {
		album = fallback
	}

	track := models.CatalogTrack{
		ID:         t.ID,
		URI:        t.URI,
		Name:       t.Name,
		Artist:     strings.Join(names, ", "),
		DurationMS: t.DurationMS,
	}
	if album != nil {
		track.Album = album.Name
		track.ReleaseDate = album.ReleaseDate
	}
	return track
}

func normalizeTracks(items []apiTrack, fallback *apiAlbum) []models.CatalogTrack {
	out := make([]models.CatalogTrack, 0, len(items))
	for _, t := range items {
		out = append(out, t.normalize(fallback))
	}
	return out
}

func (a apiArtist) toModel() *models.Artist {
	return &models.Artist{
		ID:         a.ID,
		Name:       a.Name,
		URI:        a.URI,
		Genres:     a.Genres,
		Popularity: a.Popularity,
	}
}

func (a apiAlbum) toModel() models.Album {
	return models.Album{ID: a.ID, Name: a.Name, ReleaseDate: a.ReleaseDate, AlbumType: a.AlbumType}
}
