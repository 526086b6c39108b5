package observe

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sumerc/voxpipe/internal/dispatch"
	"github.com/sumerc/voxpipe/internal/history"
)

func TestHubBroadcastsStatsToConnectedClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine a moment to register the connection
	// before publishing, since ServeHTTP registers after the upgrade.
	time.Sleep(20 * time.Millisecond)

	hub.PublishStats(dispatch.QueueStats{IntakeCount: 3, IntakeCap: 10})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(msg), `"type":"stats"`) || !strings.Contains(string(msg), `"IntakeCount":3`) {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestHubBroadcastsSegment(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	hub.PublishSegment(history.Segment{ID: 1, Text: "hello"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(msg), `"type":"segment"`) || !strings.Contains(string(msg), "hello") {
		t.Fatalf("unexpected message: %s", msg)
	}
}
