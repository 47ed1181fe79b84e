package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tripcast/weatherbot/internal/metrics"
	"github.com/tripcast/weatherbot/internal/sidecar"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const pollInterval = 500 * time.Millisecond

// Handler streams trace status updates over WebSocket with admission control.
// Clients connect to /ws/stt/{trace_id} and receive a JSON frame each time the
// trace's sidecar status changes; the connection closes once the trace reaches
// a terminal status.
type Handler struct {
	store *sidecar.Store
	sem   chan struct{}
}

// NewHandler creates a status stream handler with the given concurrency limit.
func NewHandler(store *sidecar.Store, maxConcurrent int) *Handler {
	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}
	return &Handler{
		store: store,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

// statusFrame is one update pushed to the client.
type statusFrame struct {
	TraceID  string   `json:"trace_id"`
	Status   string   `json:"status"`
	Text     string   `json:"text,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ServeHTTP upgrades the connection and streams status updates.
// Returns 503 if at max concurrent stream capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	traceID := r.PathValue("trace_id")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.StatusStreamsActive.Inc()
	defer metrics.StatusStreamsActive.Dec()

	h.stream(conn, traceID)
}

func (h *Handler) stream(conn *websocket.Conn, traceID string) {
	// Client close detection; reads are otherwise unused.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := ""
	for {
		frame := h.snapshot(traceID)
		if frame.Status != last {
			last = frame.Status
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			if terminal(frame.Status) {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, frame.Status))
				return
			}
		}
		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) snapshot(traceID string) statusFrame {
	frame := statusFrame{TraceID: traceID, Status: sidecar.StatusPending}
	if !h.store.Exists(traceID) {
		return frame
	}
	rec, err := h.store.Load(traceID)
	if err != nil {
		slog.Warn("sidecar read failed", "trace_id", traceID, "error", err)
		return frame
	}
	frame.Status = rec.Status
	if frame.Status == "" {
		frame.Status = "processing"
	}
	frame.Text = rec.Text
	frame.Warnings = rec.Warnings
	return frame
}

func terminal(status string) bool {
	switch status {
	case sidecar.StatusDone, sidecar.StatusAgentDoneChatFail, sidecar.StatusFailed:
		return true
	}
	return false
}
