package jobs

import (
	"sort"
	"sync"

	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
)

// MemoryStore is a process-lifetime job table. Jobs are never evicted.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	byUser map[string][]string
}

// NewMemoryStore creates an empty job table
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*models.Job),
		byUser: make(map[string][]string),
	}
}

var _ interfaces.JobStore = (*MemoryStore)(nil)

// InsertIfNoActive stores a copy of job unless its user already has a pending or running job
func (s *MemoryStore) InsertIfNoActive(job *models.Job) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byUser[job.UserID] {
		if existing := s.jobs[id]; existing != nil && existing.Status.IsActive() {
			return existing.ID, false
		}
	}

	s.jobs[job.ID] = job.Clone()
	s.byUser[job.UserID] = append(s.byUser[job.UserID], job.ID)
	return "", true
}

// Update mutates the stored record through fn
func (s *MemoryStore) Update(id string, fn func(job *models.Job) error) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}

	// fn works on a copy so a failed mutation leaves no trace
	working := existing.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.jobs[id] = working
	return working.Clone(), nil
}

// Get returns a copy of the job
func (s *MemoryStore) Get(id string) (*models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// ListByUser returns copies of the user's jobs, oldest first
func (s *MemoryStore) ListByUser(userID string) []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	out := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		if job := s.jobs[id]; job != nil {
			out = append(out, job.Clone())
		}
	}
	return out
}

// List returns copies of every job, oldest first
func (s *MemoryStore) List() []*models.Job {
	s.mu.RLock()
	out := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
