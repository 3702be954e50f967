package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/musicdoc/internal/models"
)

// ErrPlaylistNotFound is returned by Get when no playlist has the id
var ErrPlaylistNotFound = errors.New("playlist not found")

// PlaylistStorage persists generated playlists
type PlaylistStorage interface {
	// Save assigns an id when empty, stamps timestamps and stores the record
	Save(ctx context.Context, playlist *models.Playlist) (*models.Playlist, error)
	Get(ctx context.Context, id string) (*models.Playlist, error)
	// Update applies the non-nil fields; returns (nil, nil) when the id is unknown
	Update(ctx context.Context, id string, update models.PlaylistUpdate) (*models.Playlist, error)
	// ListByOwner returns the owner's playlists, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Playlist, error)
	Close() error
}
