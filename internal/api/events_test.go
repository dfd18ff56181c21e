package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, srv *httptest.Server, path string, header http.Header) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dialing %s: %v (status %d)", wsURL, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading event: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	return ev
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dialTestHub(t, srv, "", nil)
	waitForClients(t, hub, 1)

	hub.Publish("state_saved", map[string]any{"project_id": "p1"})

	ev := readEvent(t, conn)
	if ev.Event != "state_saved" {
		t.Errorf("event = %q, want state_saved", ev.Event)
	}
	payload, _ := ev.Payload.(map[string]interface{})
	if payload["project_id"] != "p1" {
		t.Errorf("payload = %v, want project_id p1", ev.Payload)
	}
	if _, err := time.Parse(time.RFC3339, ev.Time); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ev.Time, err)
	}
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	first := dialTestHub(t, srv, "", nil)
	second := dialTestHub(t, srv, "", nil)
	waitForClients(t, hub, 2)

	hub.Publish("job_completed", map[string]any{"job_id": "j1"})

	for _, conn := range []*websocket.Conn{first, second} {
		if ev := readEvent(t, conn); ev.Event != "job_completed" {
			t.Errorf("event = %q, want job_completed", ev.Event)
		}
	}
}

func TestHub_ClientCountDropsOnDisconnect(t *testing.T) {
	hub := NewHub(quietLogger())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dialTestHub(t, srv, "", nil)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(quietLogger())

	// Must be a no-op, not a panic or a block.
	hub.Publish("state_saved", nil)
	hub.Publish("bad", make(chan int))

	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}
}

func TestEventsRoute_RequiresAuth(t *testing.T) {
	ts := setupTestRouter(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %+v, want 401", resp)
	}
}

func TestEventsRoute_StreamsEditorEvents(t *testing.T) {
	ts := setupTestRouter(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	header := http.Header{"Authorization": []string{"Bearer " + testToken}}
	conn := dialTestHub(t, srv, "/events", header)
	waitForClients(t, ts.cfg.Hub, 1)

	path := filepath.Join(t.TempDir(), "live.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		t.Fatalf("writing test video: %v", err)
	}
	if _, err := ts.editor.ImportVideos(context.Background(), []string{path}); err != nil {
		t.Fatalf("ImportVideos() error = %v", err)
	}

	// Importing saves and touches history; scan past neighboring
	// events until the save notification shows up.
	for i := 0; i < 5; i++ {
		if ev := readEvent(t, conn); ev.Event == "state_saved" {
			return
		}
	}
	t.Fatal("never received state_saved")
}
