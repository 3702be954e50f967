package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/jobs"
	"github.com/ternarybob/musicdoc/internal/models"
	"github.com/ternarybob/musicdoc/internal/services/documentary"
)

// DocumentaryHandler accepts documentary submissions
type DocumentaryHandler struct {
	submitter interfaces.DocumentarySubmitter
	logger    arbor.ILogger
}

func NewDocumentaryHandler(submitter interfaces.DocumentarySubmitter, logger arbor.ILogger) *DocumentaryHandler {
	return &DocumentaryHandler{
		submitter: submitter,
		logger:    logger,
	}
}

// submitRequest is the body of POST /api/music-doc
type submitRequest struct {
	Topic               string `json:"topic"`
	Prompt              string `json:"prompt"`
	AccessToken         string `json:"accessToken"`
	OwnerID             string `json:"ownerId"`
	NarrationTargetSecs int    `json:"narrationTargetSecs"`
	Market              string `json:"market"`
}

// SubmitHandler starts a documentary job and answers 202 with its id
func (h *DocumentaryHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req submitRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.submitter.Submit(r.Context(), models.JobParams{
		Topic:               req.Topic,
		Prompt:              req.Prompt,
		AccessToken:         req.AccessToken,
		OwnerID:             req.OwnerID,
		NarrationTargetSecs: req.NarrationTargetSecs,
		Market:              req.Market,
	})
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"ok":    true,
		"jobId": job.ID,
	})
}

func (h *DocumentaryHandler) writeSubmitError(w http.ResponseWriter, err error) {
	var capErr *jobs.CapacityError
	switch {
	case errors.Is(err, documentary.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &capErr):
		WriteJSON(w, http.StatusTooManyRequests, map[string]string{
			"status":      "error",
			"error":       "You already have a documentary in progress",
			"activeJobId": capErr.ActiveJobID,
		})
	case errors.Is(err, documentary.ErrLLMNotConfigured):
		h.logger.Error().Err(err).Msg("Documentary submit rejected, LLM not configured")
		WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Documentary submit failed")
		WriteError(w, http.StatusInternalServerError, "Failed to start music documentary")
	}
}
