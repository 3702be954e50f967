package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
)

// PlaylistHandler serves playlist CRUD
type PlaylistHandler struct {
	storage   interfaces.PlaylistStorage
	initialID string
	logger    arbor.ILogger
}

func NewPlaylistHandler(storage interfaces.PlaylistStorage, initialID string, logger arbor.ILogger) *PlaylistHandler {
	return &PlaylistHandler{
		storage:   storage,
		initialID: initialID,
		logger:    logger,
	}
}

type createPlaylistRequest struct {
	OwnerID  string                  `json:"ownerId"`
	Title    string                  `json:"title"`
	Topic    string                  `json:"topic"`
	Summary  string                  `json:"summary"`
	Timeline *[]models.TimelineEntry `json:"timeline"`
}

// CreateHandler saves a client-built playlist
func (h *PlaylistHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createPlaylistRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OwnerID == "" || req.Title == "" || req.Timeline == nil {
		WriteError(w, http.StatusBadRequest, "ownerId, title and timeline are required")
		return
	}

	h.logger.Debug().
		Str("owner_id", req.OwnerID).
		Str("title", req.Title).
		Int("entries", len(*req.Timeline)).
		Msg("Creating playlist")

	rec, err := h.storage.Save(r.Context(), &models.Playlist{
		OwnerID:  req.OwnerID,
		Title:    req.Title,
		Topic:    req.Topic,
		Summary:  req.Summary,
		Timeline: *req.Timeline,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to save playlist")
		WriteError(w, http.StatusInternalServerError, "Failed to save playlist")
		return
	}

	WriteOK(w, "playlist", rec)
}

// ItemHandler serves GET and PATCH /api/playlists/{id}
func (h *PlaylistHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r.URL.Path, "/api/playlists/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Playlist ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPatch:
		h.update(w, r, id)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *PlaylistHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.storage.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, interfaces.ErrPlaylistNotFound) {
			h.logger.Warn().Err(err).Str("playlist_id", id).Msg("Failed to load playlist")
		}
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	WriteOK(w, "playlist", rec)
}

func (h *PlaylistHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var partial models.PlaylistUpdate
	if err := DecodeJSON(r, &partial); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.storage.Update(r.Context(), id, partial)
	if err != nil {
		h.logger.Error().Err(err).Str("playlist_id", id).Msg("Failed to update playlist")
		WriteError(w, http.StatusInternalServerError, "Failed to update playlist")
		return
	}
	if rec == nil {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	WriteOK(w, "playlist", rec)
}

// OwnerPlaylistsHandler lists GET /api/users/{ownerId}/playlists
func (h *PlaylistHandler) OwnerPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ownerID := PathParam(r.URL.Path, "/api/users/")
	list, err := h.storage.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to list playlists")
		WriteError(w, http.StatusInternalServerError, "Failed to list playlists")
		return
	}
	if list == nil {
		list = []*models.Playlist{}
	}
	WriteOK(w, "playlists", list)
}

// InitialPlaylistHandler returns the playlist the player loads by default
func (h *PlaylistHandler) InitialPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	rec, err := h.storage.Get(r.Context(), h.initialID)
	if err != nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{
			"status": "error",
			"error":  "Initial playlist not found",
			"id":     h.initialID,
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"id":       h.initialID,
		"playlist": rec,
	})
}
