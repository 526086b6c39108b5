// Package observe exposes a single /ws endpoint that broadcasts
// runner-pool stats and committed transcript segments to every
// connected client, using an upgrade-then-broadcast pattern over
// gorilla/websocket simplified to a fan-out hub since this surface is
// read-only.
package observe

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sumerc/voxpipe/internal/dispatch"
	"github.com/sumerc/voxpipe/internal/history"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Event is one message pushed to every connected client.
type Event struct {
	Type    string              `json:"type"`
	Stats   *dispatch.QueueStats `json:"stats,omitempty"`
	Segment *history.Segment    `json:"segment,omitempty"`
}

// Hub fans out stats and history events to connected websocket clients.
type Hub struct {
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{writeTimeout: 5 * time.Second, clients: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the request and registers the connection until it
// closes; this surface never reads client frames, matching its
// read-only contract.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PublishStats broadcasts a QueueStats snapshot, suitable as
// dispatch.Config.OnStatsChanged.
func (h *Hub) PublishStats(stats dispatch.QueueStats) {
	h.broadcast(Event{Type: "stats", Stats: &stats})
}

// PublishSegment broadcasts one newly committed transcript segment.
func (h *Hub) PublishSegment(seg history.Segment) {
	h.broadcast(Event{Type: "segment", Segment: &seg})
}

func (h *Hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			c.Close()
		}
	}
}
