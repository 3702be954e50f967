package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DefaultOwnerID is used for playlists saved without an owner
const DefaultOwnerID = "anonymous"

// PlaylistStorage implements the PlaylistStorage interface for Badger
type PlaylistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	// mu serializes read-modify-write updates
	mu sync.Mutex
}

// NewPlaylistStorage creates a new PlaylistStorage instance
func NewPlaylistStorage(db *BadgerDB, logger arbor.ILogger) *PlaylistStorage {
	return &PlaylistStorage{
		db:     db,
		logger: logger,
	}
}

var _ interfaces.PlaylistStorage = (*PlaylistStorage)(nil)

func (s *PlaylistStorage) Save(ctx context.Context, playlist *models.Playlist) (*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if playlist == nil {
		return nil, fmt.Errorf("playlist is required")
	}

	rec := *playlist
	rec.Timeline = models.CloneTimeline(playlist.Timeline)
	if rec.ID == "" {
		rec.ID = common.NewPlaylistID()
	}
	if rec.OwnerID == "" {
		rec.OwnerID = DefaultOwnerID
	}
	if rec.Timeline == nil {
		rec.Timeline = []models.TimelineEntry{}
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := s.db.Store().Upsert(rec.ID, &rec); err != nil {
		return nil, fmt.Errorf("failed to save playlist: %w", err)
	}

	s.logger.Debug().
		Str("id", rec.ID).
		Str("owner", rec.OwnerID).
		Int("timeline", len(rec.Timeline)).
		Msg("Playlist saved")

	return &rec, nil
}

func (s *PlaylistStorage) Get(ctx context.Context, id string) (*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec models.Playlist
	if err := s.db.Store().Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return &rec, nil
}

// Update applies the non-nil fields of update. Unknown ids return (nil, nil).
func (s *PlaylistStorage) Update(ctx context.Context, id string, update models.PlaylistUpdate) (*models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrPlaylistNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if update.Title != nil {
		rec.Title = *update.Title
	}
	if update.Topic != nil {
		rec.Topic = *update.Topic
	}
	if update.Summary != nil {
		rec.Summary = *update.Summary
	}
	if update.Timeline != nil {
		rec.Timeline = models.CloneTimeline(update.Timeline)
	}
	rec.UpdatedAt = time.Now()

	if err := s.db.Store().Update(rec.ID, rec); err != nil {
		return nil, fmt.Errorf("failed to update playlist: %w", err)
	}
	return rec, nil
}

// ListByOwner returns the owner's playlists, newest first
func (s *PlaylistStorage) ListByOwner(ctx context.Context, ownerID string) ([]*models.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var recs []models.Playlist
	query := badgerhold.Where("OwnerID").Eq(ownerID).Index("OwnerID").SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&recs, query); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	result := make([]*models.Playlist, len(recs))
	for i := range recs {
		result[i] = &recs[i]
	}
	return result, nil
}

// Close closes the underlying database
func (s *PlaylistStorage) Close() error {
	return s.db.Close()
}
