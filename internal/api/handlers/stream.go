package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/sessions"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 5 * time.Second

// streamFrame is one WebSocket message. The first frame carries the full
// snapshot; later frames carry single session events.
type streamFrame struct {
	Type     string             `json:"type"`
	Snapshot *sessions.Snapshot `json:"snapshot,omitempty"`
	Event    *sessions.Event    `json:"event,omitempty"`
}

// StreamSession pushes the transcript, activity log and state changes over a
// WebSocket. The stream is read-only; chat goes through POST /api/v1/chat.
// GET /api/v1/session/stream
func (h *Handlers) StreamSession(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to accept WebSocket")
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "stream ended")

	// Subscribe before the snapshot so no event falls between them.
	ch := h.Session.Subscribe()
	defer h.Session.Unsubscribe(ch)

	// CloseRead cancels ctx when the client goes away.
	ctx := ws.CloseRead(r.Context())

	snap := h.Session.Snapshot()
	if err := writeFrame(ctx, ws, streamFrame{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}
	log.Debug().Str("session", snap.ID).Msg("Session stream attached")

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(ctx, ws, streamFrame{Type: e.Type, Event: &e}); err != nil {
				log.Debug().Err(err).Msg("Session stream write failed")
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, f streamFrame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, f)
}

// StreamWorkerLogs streams worker and host output via Server-Sent Events.
// GET /api/v1/workers/logs/stream?worker=linkedin_bot.js
func (h *Handlers) StreamWorkerLogs(w http.ResponseWriter, r *http.Request) {
	worker := r.URL.Query().Get("worker")
	logBuf := h.Workers.Logs()

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := logBuf.Subscribe()
	defer logBuf.Unsubscribe(ch)

	// Send recent log history first
	for _, entry := range logBuf.Recent(worker, 200) {
		data, _ := json.Marshal(entry)
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-ch:
			if !ok {
				return
			}
			if worker != "" && entry.Worker != worker {
				continue
			}
			data, _ := json.Marshal(entry)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
