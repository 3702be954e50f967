package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
)

func newTestStorage(t *testing.T) *PlaylistStorage {
	t.Helper()
	m, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m.playlists
}

func strPtr(s string) *string { return &s }

func TestPlaylistStorage_SaveAssignsDefaults(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec, err := s.Save(ctx, &models.Playlist{Title: "T"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, DefaultOwnerID, rec.OwnerID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NotNil(t, rec.Timeline)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrPlaylistNotFound)
}

func TestPlaylistStorage_UpdatePartial(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	timeline := []models.TimelineEntry{
		{Type: models.EntryTypeNarration, Text: "Intro"},
		{Type: models.EntryTypeSong, Title: "Song"},
	}
	rec, err := s.Save(ctx, &models.Playlist{OwnerID: "u1", Title: "Old", Summary: "keep", Timeline: timeline})
	require.NoError(t, err)

	withURL := models.CloneTimeline(timeline)
	withURL[0].TTSURL = "/tts/x_0.mp3"

	updated, err := s.Update(ctx, rec.ID, models.PlaylistUpdate{Title: strPtr("New"), Timeline: withURL})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "keep", updated.Summary)
	assert.Equal(t, "/tts/x_0.mp3", updated.Timeline[0].TTSURL)
	assert.Equal(t, rec.CreatedAt.Unix(), updated.CreatedAt.Unix())

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "/tts/x_0.mp3", got.Timeline[0].TTSURL)

	none, err := s.Update(ctx, "missing", models.PlaylistUpdate{Title: strPtr("x")})
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestPlaylistStorage_ListByOwnerNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"first", "second", "third"} {
		_, err := s.Save(ctx, &models.Playlist{OwnerID: "u1", Title: title, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, &models.Playlist{OwnerID: "u2", Title: "other"})
	require.NoError(t, err)

	list, err := s.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "first", list[2].Title)

	empty, err := s.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNewBadgerDB_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "playlists")
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: dir})
	require.NoError(t, err)

	s := NewPlaylistStorage(db, arbor.NewLogger())
	rec, err := s.Save(context.Background(), &models.Playlist{Title: "persisted"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer db.Close()

	got, err := NewPlaylistStorage(db, arbor.NewLogger()).Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)
}
