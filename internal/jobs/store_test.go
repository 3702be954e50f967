package jobs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/musicdoc/internal/models"
)

func newStoredJob(id, userID string, status models.JobStatus) *models.Job {
	return &models.Job{ID: id, UserID: userID, Status: status, CreatedAt: time.Now()}
}

func TestMemoryStore_InsertIfNoActive(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.InsertIfNoActive(newStoredJob("a", "u1", models.JobStatusPending))
	require.True(t, ok)

	activeID, ok := store.InsertIfNoActive(newStoredJob("b", "u1", models.JobStatusPending))
	assert.False(t, ok)
	assert.Equal(t, "a", activeID)

	_, ok = store.InsertIfNoActive(newStoredJob("c", "u2", models.JobStatusPending))
	assert.True(t, ok, "other users are not affected")

	_, err := store.Update("a", func(job *models.Job) error {
		job.Status = models.JobStatusCompleted
		return nil
	})
	require.NoError(t, err)

	_, ok = store.InsertIfNoActive(newStoredJob("d", "u1", models.JobStatusPending))
	assert.True(t, ok, "terminal jobs do not count against the cap")
	assert.Len(t, store.ListByUser("u1"), 2)
}

func TestMemoryStore_ConcurrentInsertSameUser(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job := newStoredJob(string(rune('A'+i)), "same-user", models.JobStatusPending)
			if _, ok := store.InsertIfNoActive(job); ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Len(t, store.ListByUser("same-user"), 1)
}

func TestMemoryStore_UpdateErrorLeavesRecord(t *testing.T) {
	store := NewMemoryStore()
	store.InsertIfNoActive(newStoredJob("a", "u1", models.JobStatusPending))

	boom := errors.New("boom")
	_, err := store.Update("a", func(job *models.Job) error {
		job.Stage = 5
		return boom
	})
	assert.ErrorIs(t, err, boom)

	job, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, 0, job.Stage)

	_, err = store.Update("missing", func(job *models.Job) error { return nil })
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	store.InsertIfNoActive(newStoredJob("a", "u1", models.JobStatusPending))

	job, _ := store.Get("a")
	job.Status = models.JobStatusFailed

	again, _ := store.Get("a")
	assert.Equal(t, models.JobStatusPending, again.Status)
}
