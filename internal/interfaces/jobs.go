package interfaces

import (
	"context"

	"github.com/ternarybob/musicdoc/internal/models"
)

// JobStore holds job records. Implementations must be safe for concurrent use.
// Records handed in and out are copies; the store owns its own.
type JobStore interface {
	// InsertIfNoActive stores job unless the same user already has a pending or running job,
	// in which case it returns that job's id and false. Check and insert are atomic.
	InsertIfNoActive(job *models.Job) (activeID string, inserted bool)
	// Update applies fn to the stored record under the store's lock and returns a copy of the result.
	// fn returning an error leaves the record unchanged.
	Update(id string, fn func(job *models.Job) error) (*models.Job, error)
	Get(id string) (*models.Job, bool)
	ListByUser(userID string) []*models.Job
	List() []*models.Job
}

// JobStatsReporter is the read side used by the stats scheduler and handlers
type JobStatsReporter interface {
	GetStats() models.JobStats
}

// DocumentarySubmitter is the submit surface of the pipeline
type DocumentarySubmitter interface {
	Submit(ctx context.Context, params models.JobParams) (*models.Job, error)
}
