package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/services/spotify"
)

// defaultArtistTrackCount matches what the player asks for when it builds its own catalog
const defaultArtistTrackCount = 100

// CatalogHandler exposes artist lookup and catalog enumeration to the player
type CatalogHandler struct {
	catalog interfaces.CatalogService
	market  string
	logger  arbor.ILogger
}

func NewCatalogHandler(catalog interfaces.CatalogService, defaultMarket string, logger arbor.ILogger) *CatalogHandler {
	if defaultMarket == "" {
		defaultMarket = "US"
	}
	return &CatalogHandler{
		catalog: catalog,
		market:  defaultMarket,
		logger:  logger,
	}
}

// IdentifyArtistHandler serves POST /api/identify-artist
func (h *CatalogHandler) IdentifyArtistHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Query       string `json:"query"`
		AccessToken string `json:"accessToken"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Query == "" || req.AccessToken == "" {
		WriteError(w, http.StatusBadRequest, "Missing query or accessToken")
		return
	}

	artist, err := h.catalog.SearchArtist(r.Context(), req.Query, req.AccessToken)
	if err != nil {
		h.writeCatalogError(w, err, "Failed to identify artist")
		return
	}

	// A nil artist is encoded as null, matching an empty search
	WriteOK(w, "artist", artist)
}

// ArtistTracksHandler serves POST /api/artist-tracks
func (h *CatalogHandler) ArtistTracksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		ArtistID     string `json:"artistId"`
		AccessToken  string `json:"accessToken"`
		Market       string `json:"market"`
		DesiredCount int    `json:"desiredCount"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ArtistID == "" || req.AccessToken == "" {
		WriteError(w, http.StatusBadRequest, "Missing artistId or accessToken")
		return
	}
	if req.Market == "" {
		req.Market = h.market
	}
	if req.DesiredCount <= 0 {
		req.DesiredCount = defaultArtistTrackCount
	}

	tracks, err := h.catalog.FetchArtistCatalog(r.Context(), req.ArtistID, req.Market, req.AccessToken, req.DesiredCount)
	if err != nil {
		h.writeCatalogError(w, err, "Failed to fetch artist tracks")
		return
	}

	WriteOK(w, "tracks", tracks)
}

// writeCatalogError passes provider status codes through and hides everything else behind a 500
func (h *CatalogHandler) writeCatalogError(w http.ResponseWriter, err error, message string) {
	var apiErr *spotify.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 600 {
		WriteJSON(w, apiErr.StatusCode, map[string]string{
			"status":  "error",
			"error":   message,
			"details": apiErr.Message,
		})
		return
	}

	h.logger.Error().Err(err).Msg(message)
	WriteError(w, http.StatusInternalServerError, message)
}
