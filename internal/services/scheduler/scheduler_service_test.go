package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/models"
)

type stubReporter struct {
	calls atomic.Int32
}

func (r *stubReporter) GetStats() models.JobStats {
	r.calls.Add(1)
	return models.JobStats{Total: 3, Running: 1, Completed: 2}
}

func TestRegisterJob_RejectsBadScheduleAndDuplicates(t *testing.T) {
	s := NewService(arbor.NewLogger())

	err := s.RegisterJob("bad", "not a cron", "", func() error { return nil })
	assert.Error(t, err)

	require.NoError(t, s.RegisterJob("ok", "0 * * * * *", "", func() error { return nil }))
	assert.Error(t, s.RegisterJob("ok", "0 * * * * *", "", func() error { return nil }))
}

func TestTriggerJob_RecordsOutcome(t *testing.T) {
	s := NewService(arbor.NewLogger())

	require.NoError(t, s.RegisterJob("failing", "0 0 * * * *", "", func() error { return errors.New("boom") }))
	require.NoError(t, s.TriggerJob("failing"))

	require.Eventually(t, func() bool {
		st, err := s.GetJobStatus("failing")
		return err == nil && st.LastRun != nil
	}, 2*time.Second, 10*time.Millisecond)

	st, err := s.GetJobStatus("failing")
	require.NoError(t, err)
	assert.Equal(t, "boom", st.LastError)
	assert.False(t, st.IsRunning)

	assert.Error(t, s.TriggerJob("missing"))
}

func TestTriggerJob_PanicIsRecorded(t *testing.T) {
	s := NewService(arbor.NewLogger())
	require.NoError(t, s.RegisterJob("panics", "0 0 * * * *", "", func() error { panic("bad") }))
	require.NoError(t, s.TriggerJob("panics"))

	require.Eventually(t, func() bool {
		st, _ := s.GetJobStatus("panics")
		return st.LastError == "panic: bad"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatsReporter_RunsOnSchedule(t *testing.T) {
	s := NewService(arbor.NewLogger())
	reporter := &stubReporter{}

	require.NoError(t, s.RegisterStatsReporter("* * * * * *", reporter))
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.True(t, s.IsRunning())
	require.Eventually(t, func() bool {
		return reporter.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)

	statuses := s.GetAllJobStatuses()
	require.Contains(t, statuses, StatsJobName)
	assert.NotNil(t, statuses[StatsJobName].NextRun)
}
