package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/jobs"
	"github.com/ternarybob/musicdoc/internal/models"
)

// JobSource is the read and subscribe side of the job manager
type JobSource interface {
	GetJob(jobID string) (*models.Job, bool)
	GetUserJobs(userID string) []*models.Job
	GetStats() models.JobStats
	Subscribe(jobID string, listener jobs.Listener) (*models.Job, func(), error)
}

// JobHandler serves job polling endpoints
type JobHandler struct {
	jobs   JobSource
	logger arbor.ILogger
}

func NewJobHandler(source JobSource, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:   source,
		logger: logger,
	}
}

// GetJobHandler returns the job snapshot for GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := PathParam(r.URL.Path, "/api/jobs/")
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, ok := h.jobs.GetJob(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteOK(w, "job", job)
}

// UserJobsHandler lists a user's jobs for GET /api/users/{userId}/jobs
func (h *JobHandler) UserJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	userID := PathParam(r.URL.Path, "/api/users/")
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	list := h.jobs.GetUserJobs(userID)
	if list == nil {
		list = []*models.Job{}
	}
	WriteOK(w, "jobs", list)
}

// GetJobStatsHandler returns job counts by status
func (h *JobHandler) GetJobStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteOK(w, "stats", h.jobs.GetStats())
}
