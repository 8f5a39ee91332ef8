package api

import (
	"net/http"
	"sync"
	"time"

	"genre-swap/pkg/models"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage is every frame sent on a job stream. Clients may send
// "ping" or "cancel".
type WebSocketMessage struct {
	Type        string             `json:"type"`
	JobID       string             `json:"job_id,omitempty"`
	Stage       models.JobStatus   `json:"stage,omitempty"`
	Percent     int                `json:"percent,omitempty"`
	Result      *models.SwapResult `json:"result,omitempty"`
	FailedStage string             `json:"failed_stage,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg WebSocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// WebSocketHandler streams a job's progress events, replaying those already
// emitted, and finishes with one terminal message.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	handle, err := h.coord.Handle(jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	ws := &wsConn{conn: conn}

	go h.readLoop(ws, jobID)

	for ev := range handle.Progress() {
		if err := ws.send(WebSocketMessage{
			Type:    "progress",
			JobID:   ev.JobID,
			Stage:   ev.Stage,
			Percent: ev.Percent,
		}); err != nil {
			h.logger.Debug("API: websocket client gone", "job_id", jobID, "error", err)
			return
		}
	}

	final := terminalMessage(handle.Status())
	if final.Type == "complete" {
		final.Result, _ = h.store.GetResult(handle.CacheKey)
	}
	if err := ws.send(final); err != nil {
		return
	}
	h.logger.Info("API: websocket stream finished", "job_id", jobID, "type", final.Type)

	ws.mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	ws.mu.Unlock()
}

func terminalMessage(job models.SwapJob) WebSocketMessage {
	msg := WebSocketMessage{JobID: job.ID, Stage: job.Status, Percent: 100}
	switch job.Status {
	case models.StatusDone:
		msg.Type = "complete"
	case models.StatusCancelled:
		msg.Type = "cancelled"
	default:
		msg.Type = "failed"
	}
	if job.Status != models.StatusDone {
		msg.Percent = 0
		msg.FailedStage = job.FailedStage
		msg.Error = job.Error
	}
	return msg
}

// readLoop handles client frames until the connection closes.
func (h *Handlers) readLoop(ws *wsConn, jobID string) {
	for {
		var msg WebSocketMessage
		if err := ws.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			ws.send(WebSocketMessage{Type: "pong", JobID: jobID})
		case "cancel":
			if err := h.coord.Cancel(jobID); err != nil {
				ws.send(WebSocketMessage{Type: "error", JobID: jobID, Error: err.Error()})
			}
		default:
			ws.send(WebSocketMessage{Type: "error", JobID: jobID, Error: "Unknown message type"})
		}
	}
}
