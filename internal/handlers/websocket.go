package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/jobs"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// JobWebSocketHandler pushes the same event sequence as the SSE stream over a WebSocket
type JobWebSocketHandler struct {
	jobs         JobSource
	logger       arbor.ILogger
	pingInterval time.Duration
}

func NewJobWebSocketHandler(source JobSource, pingInterval time.Duration, logger arbor.ILogger) *JobWebSocketHandler {
	if pingInterval <= 0 {
		pingInterval = DefaultHeartbeatInterval
	}
	return &JobWebSocketHandler{
		jobs:         source,
		logger:       logger,
		pingInterval: pingInterval,
	}
}

// HandleWebSocket serves GET /api/jobs/{id}/ws
func (h *JobWebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := PathParam(r.URL.Path, "/api/jobs/")

	// Resolve the job before upgrading so unknown ids get a plain 404
	if _, ok := h.jobs.GetJob(jobID); !ok {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	box := newMailbox()
	snapshot, unsubscribe, err := h.jobs.Subscribe(jobID, jobs.ListenerFunc(box.push))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.closeWith(conn, websocket.ClosePolicyViolation, "job not found")
		}
		return
	}
	defer unsubscribe()

	// Reader detects client close and answers pongs
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn, jobs.InitEvent(snapshot)); err != nil {
		return
	}
	if final, done := jobs.TerminalEvent(snapshot); done {
		if h.send(conn, final) == nil {
			h.closeWith(conn, websocket.CloseNormalClosure, string(final.Type))
		}
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.logger.Debug().Str("job_id", jobID).Msg("WebSocket client disconnected")
			return

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}

		case <-box.notify:
			for _, event := range box.drain() {
				if err := h.send(conn, event); err != nil {
					return
				}
				if event.IsTerminal() {
					h.closeWith(conn, websocket.CloseNormalClosure, string(event.Type))
					return
				}
			}
		}
	}
}

func (h *JobWebSocketHandler) send(conn *websocket.Conn, event jobs.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event.Payload())
}

func (h *JobWebSocketHandler) closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
