package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
)

var (
	// ErrUserHasActiveJob is matched by CapacityError
	ErrUserHasActiveJob = errors.New("user already has a job in progress")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobFinished      = errors.New("job already finished")
	ErrStageRegression  = errors.New("stage cannot move backwards")
)

// CapacityError is returned when the per-user cap rejects a new job
type CapacityError struct {
	UserID      string
	ActiveJobID string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("user %s already has job %s in progress", e.UserID, e.ActiveJobID)
}

func (e *CapacityError) Unwrap() error {
	return ErrUserHasActiveJob
}

// jobChannel serializes event emission for one job.
// emitMu orders state change plus delivery; mu guards the listener set so listeners may unsubscribe from inside a callback.
type jobChannel struct {
	emitMu    sync.Mutex
	mu        sync.Mutex
	listeners map[uint64]Listener
}

// Manager is the only mutation path for job state and fans events out to subscribers
type Manager struct {
	store  interfaces.JobStore
	logger arbor.ILogger
	now    func() time.Time

	mu       sync.Mutex
	channels map[string]*jobChannel
	nextID   uint64
}

// NewManager creates a job manager over the given store
func NewManager(store interfaces.JobStore, logger arbor.ILogger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		now:      time.Now,
		channels: make(map[string]*jobChannel),
	}
}

func (m *Manager) channel(jobID string) *jobChannel {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.channels[jobID]
	if !ok {
		ch = &jobChannel{listeners: make(map[uint64]Listener)}
		m.channels[jobID] = ch
	}
	return ch
}

func (m *Manager) dropChannel(jobID string) {
	m.mu.Lock()
	delete(m.channels, jobID)
	m.mu.Unlock()
}

// CreateJob registers a pending job for the user, or returns a CapacityError
func (m *Manager) CreateJob(userID string, params models.JobParams) (*models.Job, error) {
	now := m.now()
	job := &models.Job{
		ID:        common.NewJobID(),
		UserID:    userID,
		Params:    params,
		Status:    models.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if activeID, ok := m.store.InsertIfNoActive(job); !ok {
		m.logger.Debug().
			Str("user_id", userID).
			Str("active_job_id", activeID).
			Msg("Job rejected - user already has a job in progress")
		return nil, &CapacityError{UserID: userID, ActiveJobID: activeID}
	}

	m.channel(job.ID)

	m.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", userID).
		Str("topic", params.Topic).
		Msg("Job created")

	return job.Clone(), nil
}

// UpdateProgress moves the job to running, overwrites its progress fields and emits a progress event
func (m *Manager) UpdateProgress(jobID string, update models.ProgressUpdate) error {
	ch := m.channel(jobID)
	ch.emitMu.Lock()
	defer ch.emitMu.Unlock()

	job, err := m.store.Update(jobID, func(job *models.Job) error {
		if job.Status.IsTerminal() {
			return ErrJobFinished
		}
		if update.Stage < job.Stage {
			return fmt.Errorf("%w: %d after %d", ErrStageRegression, update.Stage, job.Stage)
		}
		job.Status = models.JobStatusRunning
		job.Stage = update.Stage
		job.StageLabel = update.StageLabel
		job.Progress = update.Progress
		job.Detail = update.Detail
		job.UpdatedAt = m.now()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			m.dropChannel(jobID)
		}
		return err
	}

	m.logger.Debug().
		Str("job_id", jobID).
		Int("stage", job.Stage).
		Int("progress", job.Progress).
		Str("detail", job.Detail).
		Msg(job.StageLabel)

	m.emit(ch, progressEvent(job), false)
	return nil
}

// CompleteJob stores the result, emits complete and drops all subscribers
func (m *Manager) CompleteJob(jobID string, result *models.JobResult) error {
	return m.finish(jobID, func(job *models.Job) {
		job.Status = models.JobStatusCompleted
		job.Result = result.Clone()
	})
}

// FailJob stores the error text, emits error and drops all subscribers
func (m *Manager) FailJob(jobID string, jobErr error) error {
	message := "unknown error"
	if jobErr != nil {
		message = jobErr.Error()
	}
	return m.finish(jobID, func(job *models.Job) {
		job.Status = models.JobStatusFailed
		job.Error = message
	})
}

func (m *Manager) finish(jobID string, apply func(job *models.Job)) error {
	ch := m.channel(jobID)
	ch.emitMu.Lock()
	defer ch.emitMu.Unlock()

	job, err := m.store.Update(jobID, func(job *models.Job) error {
		if job.Status.IsTerminal() {
			return ErrJobFinished
		}
		apply(job)
		job.UpdatedAt = m.now()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			m.dropChannel(jobID)
		}
		return err
	}

	event, _ := TerminalEvent(job)
	m.emit(ch, event, true)
	m.dropChannel(jobID)

	if job.Status == models.JobStatusFailed {
		m.logger.Warn().Str("job_id", jobID).Str("error", job.Error).Msg("Job failed")
	} else {
		m.logger.Info().Str("job_id", jobID).Msg("Job completed")
	}
	return nil
}

// emit delivers to a snapshot of the listeners; terminal clears the set first.
// Caller holds ch.emitMu.
func (m *Manager) emit(ch *jobChannel, event Event, terminal bool) {
	ch.mu.Lock()
	listeners := make([]Listener, 0, len(ch.listeners))
	for _, l := range ch.listeners {
		listeners = append(listeners, l)
	}
	if terminal {
		ch.listeners = make(map[uint64]Listener)
	}
	ch.mu.Unlock()

	for _, l := range listeners {
		m.safeDeliver(l, event)
	}
}

// safeDeliver keeps a faulty listener from breaking the pipeline
func (m *Manager) safeDeliver(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str("job_id", event.JobID).
				Str("event", string(event.Type)).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Job listener panicked")
		}
	}()
	l.deliver(event)
}

// Subscribe registers listener for the job's future events and returns the current snapshot.
// For a terminal job nothing is registered; the caller reads the outcome from the snapshot.
// The returned unsubscribe is idempotent. Subscribe must not be called from inside a listener.
func (m *Manager) Subscribe(jobID string, listener Listener) (*models.Job, func(), error) {
	ch := m.channel(jobID)
	ch.emitMu.Lock()
	defer ch.emitMu.Unlock()

	job, ok := m.store.Get(jobID)
	if !ok {
		m.dropChannel(jobID)
		return nil, func() {}, ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		m.dropChannel(jobID)
		return job, func() {}, nil
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	ch.mu.Lock()
	ch.listeners[id] = listener
	ch.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			ch.mu.Lock()
			delete(ch.listeners, id)
			ch.mu.Unlock()
		})
	}

	return job, unsubscribe, nil
}

// SubscriberCount returns the number of live listeners on a job
func (m *Manager) SubscriberCount(jobID string) int {
	m.mu.Lock()
	ch, ok := m.channels[jobID]
	m.mu.Unlock()
	if !ok {
		return 0
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.listeners)
}

// GetJob returns a snapshot of the job
func (m *Manager) GetJob(jobID string) (*models.Job, bool) {
	return m.store.Get(jobID)
}

// GetUserJobs returns snapshots of the user's jobs
func (m *Manager) GetUserJobs(userID string) []*models.Job {
	return m.store.ListByUser(userID)
}

// GetStats counts jobs by status
func (m *Manager) GetStats() models.JobStats {
	var stats models.JobStats
	for _, job := range m.store.List() {
		stats.Total++
		switch job.Status {
		case models.JobStatusPending:
			stats.Pending++
		case models.JobStatusRunning:
			stats.Running++
		case models.JobStatusCompleted:
			stats.Completed++
		case models.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats
}
