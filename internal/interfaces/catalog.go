package interfaces

import (
	"context"

	"github.com/ternarybob/musicdoc/internal/models"
)

// CatalogService is the music catalog as seen by the pipeline and catalog endpoints.
// Every call carries the caller's bearer credential.
type CatalogService interface {
	// SearchArtist returns the best artist match or nil when the search is empty
	SearchArtist(ctx context.Context, query, accessToken string) (*models.Artist, error)
	GetTopTracks(ctx context.Context, artistID, market, accessToken string) ([]models.CatalogTrack, error)
	// SearchTrack runs a raw catalog query and returns up to limit tracks, best first
	SearchTrack(ctx context.Context, query, market, accessToken string, limit int) ([]models.CatalogTrack, error)
	// ListAlbums returns one page of the artist's albums, singles and compilations
	ListAlbums(ctx context.Context, artistID, market, accessToken string, limit, offset int) ([]models.Album, error)
	GetAlbumTracks(ctx context.Context, album models.Album, market, accessToken string) ([]models.CatalogTrack, error)

	// SearchRequiredTracks looks up each planned song by title and artist.
	// Per-item failures yield a match with a nil Found; the call itself only fails on cancellation.
	SearchRequiredTracks(ctx context.Context, required []models.RequiredTrack, artistName, market, accessToken string) ([]models.RequiredTrackMatch, error)
	// FetchArtistCatalog combines top tracks with album enumeration, deduplicated by id
	FetchArtistCatalog(ctx context.Context, artistID, market, accessToken string, desiredCount int) ([]models.CatalogTrack, error)
}
