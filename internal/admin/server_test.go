package admin

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/gorilla/websocket"
)

func dialServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/admin"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerBroadcastsSnapshotToConnectedClient(t *testing.T) {
	snap := Snapshot{NodeID: 3, SimTime: 1.25, Routes: []RouteSummary{{Prefix: "/video", ConsumerID: 0, NodeIDs: []uint32{2, 1, 0}}}}
	s := NewServer(func() Snapshot { return snap }, 10*time.Millisecond, nil)
	defer s.Close()
	stop := s.Run()
	defer stop()

	ts := httptest.NewServer(s)
	defer ts.Close()

	conn := dialServer(t, ts)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body, err := snappy.Decode(nil, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(string(body), `"prefix":"/video"`) {
		t.Fatalf("expected snapshot JSON to contain the route, got %s", body)
	}
}

func TestServerDropsFramesForSlowClients(t *testing.T) {
	s := NewServer(func() Snapshot { return Snapshot{NodeID: 1} }, time.Hour, nil)
	defer s.Close()

	c := &client{send: make(chan []byte, 1)}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	for i := 0; i < 5; i++ {
		s.broadcast([]byte("frame"))
	}
	if len(c.send) != 1 {
		t.Fatalf("expected the bounded channel to hold exactly 1 frame, got %d", len(c.send))
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	snap := Snapshot{NodeID: 7}
	s := NewServer(func() Snapshot { return snap }, time.Hour, nil)
	ts := httptest.NewServer(s)
	defer ts.Close()

	conn := dialServer(t, ts)
	s.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to be closed")
	}
}
