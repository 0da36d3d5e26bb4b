package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// progressEvent is one batch progress update pushed to subscribers.
type progressEvent struct {
	BatchID string `json:"batch_id"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Final   bool   `json:"final"`
}

// progressHub fans batch progress out to WebSocket subscribers. Updates are
// best-effort: a slow subscriber drops intermediate events rather than
// stalling the batch.
type progressHub struct {
	mu   sync.Mutex
	subs map[string][]chan progressEvent
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[string][]chan progressEvent)}
}

func (h *progressHub) subscribe(batchID string) chan progressEvent {
	ch := make(chan progressEvent, 16)
	h.mu.Lock()
	h.subs[batchID] = append(h.subs[batchID], ch)
	h.mu.Unlock()
	return ch
}

func (h *progressHub) unsubscribe(batchID string, ch chan progressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[batchID]
	for i, c := range subs {
		if c == ch {
			h.subs[batchID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[batchID]) == 0 {
		delete(h.subs, batchID)
	}
}

func (h *progressHub) publish(batchID string, done, total int) {
	h.send(progressEvent{BatchID: batchID, Done: done, Total: total})
}

func (h *progressHub) finish(batchID string) {
	h.send(progressEvent{BatchID: batchID, Final: true})
}

func (h *progressHub) send(ev progressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[ev.BatchID] {
		select {
		case ch <- ev:
		default: // subscriber is behind, skip this update
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the service is same-origin only; no cross-origin embedding expected
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait    = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleBatchProgress streams progress events for a running batch until the
// batch finishes or the client disconnects. The request context is dead after
// the upgrade hijacks the connection, so a dropped client is only visible
// through the read side: a read pump watches for errors while pings keep the
// deadline honest on an otherwise idle stream.
func (s *Server) handleBatchProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe(id)
	defer s.hub.unsubscribe(id, ch)

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case ev := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Final {
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}
