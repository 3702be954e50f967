package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/jobs"
)

// DefaultHeartbeatInterval keeps idle streams open through proxies
const DefaultHeartbeatInterval = 30 * time.Second

// mailbox is an unbounded ordered queue between the job manager and one stream writer.
// push never blocks, so a slow client cannot stall the pipeline.
type mailbox struct {
	mu     sync.Mutex
	queue  []jobs.Event
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) push(e jobs.Event) {
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []jobs.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.queue
	m.queue = nil
	return events
}

// JobStreamHandler pushes job progress over Server-Sent Events
type JobStreamHandler struct {
	jobs      JobSource
	logger    arbor.ILogger
	heartbeat time.Duration
}

func NewJobStreamHandler(source JobSource, heartbeat time.Duration, logger arbor.ILogger) *JobStreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &JobStreamHandler{
		jobs:      source,
		logger:    logger,
		heartbeat: heartbeat,
	}
}

// StreamHandler serves GET /api/jobs/{id}/stream
func (h *JobStreamHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := PathParam(r.URL.Path, "/api/jobs/")
	box := newMailbox()

	snapshot, unsubscribe, err := h.jobs.Subscribe(jobID, jobs.ListenerFunc(box.push))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer unsubscribe()

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Streams outlive any server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	h.logger.Debug().Str("job_id", jobID).Str("user_id", snapshot.UserID).Msg("SSE client connected")

	if err := writeSSE(w, jobs.InitEvent(snapshot)); err != nil {
		return
	}
	if final, done := jobs.TerminalEvent(snapshot); done {
		_ = writeSSE(w, final)
		_ = rc.Flush()
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("job_id", jobID).Msg("SSE client disconnected")
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-box.notify:
			for _, event := range box.drain() {
				if err := writeSSE(w, event); err != nil {
					return
				}
				if event.IsTerminal() {
					_ = rc.Flush()
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event jobs.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
