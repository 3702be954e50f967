package jobs

import (
	"github.com/ternarybob/musicdoc/internal/models"
)

// EventType identifies a job event
type EventType string

const (
	EventInit     EventType = "init"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one message of a job's progress stream
type Event struct {
	Type       EventType
	JobID      string
	Status     models.JobStatus
	Stage      int
	StageLabel string
	Progress   int
	Detail     string
	Result     *models.JobResult
	Error      string
}

// IsTerminal reports whether the event ends the stream
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Payload returns the wire shape of the event
func (e Event) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"type":  e.Type,
		"jobId": e.JobID,
	}

	switch e.Type {
	case EventInit:
		payload["status"] = e.Status
		payload["stage"] = e.Stage
		payload["stageLabel"] = e.StageLabel
		payload["progress"] = e.Progress
	case EventProgress:
		payload["status"] = e.Status
		payload["stage"] = e.Stage
		payload["stageLabel"] = e.StageLabel
		payload["progress"] = e.Progress
		payload["detail"] = e.Detail
	case EventComplete:
		payload["result"] = e.Result
	case EventError:
		payload["error"] = e.Error
	}

	return payload
}

// InitEvent builds the snapshot event sent first to every stream
func InitEvent(job *models.Job) Event {
	return Event{
		Type:       EventInit,
		JobID:      job.ID,
		Status:     job.Status,
		Stage:      job.Stage,
		StageLabel: job.StageLabel,
		Progress:   job.Progress,
	}
}

// TerminalEvent builds the complete or error event of a finished job.
// ok is false while the job is still in flight.
func TerminalEvent(job *models.Job) (Event, bool) {
	switch job.Status {
	case models.JobStatusCompleted:
		return Event{Type: EventComplete, JobID: job.ID, Status: job.Status, Result: job.Result}, true
	case models.JobStatusFailed:
		return Event{Type: EventError, JobID: job.ID, Status: job.Status, Error: job.Error}, true
	}
	return Event{}, false
}

func progressEvent(job *models.Job) Event {
	return Event{
		Type:       EventProgress,
		JobID:      job.ID,
		Status:     job.Status,
		Stage:      job.Stage,
		StageLabel: job.StageLabel,
		Progress:   job.Progress,
		Detail:     job.Detail,
	}
}

// Listener receives the events of one job. Callbacks run on the emitting goroutine,
// in emission order, and must not block.
type Listener struct {
	OnProgress func(Event)
	OnComplete func(Event)
	OnError    func(Event)
}

func (l Listener) deliver(e Event) {
	switch e.Type {
	case EventProgress:
		if l.OnProgress != nil {
			l.OnProgress(e)
		}
	case EventComplete:
		if l.OnComplete != nil {
			l.OnComplete(e)
		}
	case EventError:
		if l.OnError != nil {
			l.OnError(e)
		}
	}
}

// ListenerFunc adapts a single callback to all three event kinds
func ListenerFunc(fn func(Event)) Listener {
	return Listener{OnProgress: fn, OnComplete: fn, OnError: fn}
}
