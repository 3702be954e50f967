package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/interfaces"
)

// TTSHandler synthesizes narration batches on demand
type TTSHandler struct {
	narration interfaces.NarrationService
	logger    arbor.ILogger
}

func NewTTSHandler(narration interfaces.NarrationService, logger arbor.ILogger) *TTSHandler {
	return &TTSHandler{
		narration: narration,
		logger:    logger,
	}
}

// segment accepts either a bare string or {"text": "..."}
type segment struct {
	Text string
}

func (s *segment) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		s.Text = text
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Anything else counts as an empty segment
		s.Text = ""
		return nil
	}
	s.Text = obj.Text
	return nil
}

// BatchHandler serves POST /api/tts-batch
func (h *TTSHandler) BatchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Segments   []segment `json:"segments"`
		PlaylistID string    `json:"playlistId"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Segments) == 0 {
		WriteError(w, http.StatusBadRequest, "segments must be a non-empty array of { text }")
		return
	}

	texts := make([]string, len(req.Segments))
	for i, s := range req.Segments {
		texts[i] = strings.TrimSpace(s.Text)
	}

	urls, err := h.narration.SynthesizeBatch(r.Context(), texts, interfaces.BatchOptions{PlaylistID: req.PlaylistID})
	if err != nil {
		h.logger.Error().Err(err).Int("segments", len(texts)).Msg("TTS batch failed")
		WriteError(w, http.StatusInternalServerError, "Failed to generate TTS")
		return
	}

	WriteOK(w, "urls", urls)
}
