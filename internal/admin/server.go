// Package admin exposes a read-only operator websocket dashboard for a
// running node: periodic snapshots of route table state and of
// per-transport congestion windows and resequencing queue depth,
// snappy-compressed over the wire.
//
// An ambient observability surface a production node would carry
// regardless, the way the teacher's broker exposes its
// own client-facing WebSocket surface (main.go, websocket_auth.go).
// Grounded on that upgrade-and-pump structure (ping/pong keepalive,
// per-client send channel, registration under a single mutex) but
// stripped down to push-only: this dashboard has no inbound client
// protocol to parse, only a periodic broadcast loop.
package admin

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/gorilla/websocket"

	"github.com/sart-mesh/rntp/internal/logging"
)

const (
	writeWait        = 10 * time.Second
	pingInterval      = 30 * time.Second
	pongWaitMultiplier = 3
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RouteSummary reports one installed route, for display only.
type RouteSummary struct {
	Prefix     string   `json:"prefix"`
	ConsumerID uint32   `json:"consumerId"`
	NodeIDs    []uint32 `json:"nodeIds"`
	Metric     float64  `json:"metric"`
}

// TransportSummary reports one transport's live send-side state.
type TransportSummary struct {
	Prefix             string `json:"prefix"`
	ConsumerID         uint32 `json:"consumerId"`
	CongestionWindow   uint32 `json:"congestionWindow"`
	CongestionThreshold uint32 `json:"congestionThreshold"`
	QueueDepth         int    `json:"queueDepth"`
	ResequenceDepth    int    `json:"resequenceDepth"`
}

// Snapshot is one point-in-time dashboard push.
type Snapshot struct {
	NodeID     uint32             `json:"nodeId"`
	SimTime    float64            `json:"simTime"`
	Routes     []RouteSummary     `json:"routes"`
	Transports []TransportSummary `json:"transports"`
}

// SnapshotFunc produces the current dashboard state on demand.
type SnapshotFunc func() Snapshot

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is a read-only websocket broadcaster: every connected client
// receives the same periodic snapshot stream, never anything it sends
// itself (there is nothing to parse on the read side).
type Server struct {
	log      *logging.Logger
	snapshot SnapshotFunc
	interval time.Duration

	mu      sync.Mutex
	clients map[*client]bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewServer constructs a dashboard server. snapshot is called once per
// interval to build the frame pushed to every connected client.
func NewServer(snapshot SnapshotFunc, interval time.Duration, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewTestLogger()
	}
	if interval <= 0 {
		interval = 1 * time.Second
	}
	return &Server{
		log:      log,
		snapshot: snapshot,
		interval: interval,
		clients:  make(map[*client]bool),
		stop:     make(chan struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection for the broadcast loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("admin websocket upgrade failed", logging.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 8)}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	go s.readLoop(c)
	go s.writeLoop(c)
}

// readLoop only watches for connection close and pong keepalive; this
// dashboard accepts no inbound commands.
func (s *Server) readLoop(c *client) {
	defer s.deregister(c)
	waitDuration := pongWaitMultiplier * pingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(waitDuration))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		pingTicker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				s.deregister(c)
				return
			}
		case <-pingTicker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				s.deregister(c)
				return
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Server) deregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// Run drives the periodic broadcast loop until the returned stop
// function is called. Intended to run in its own goroutine for the
// lifetime of the node process.
func (s *Server) Run() (stop func()) {
	ticker := time.NewTicker(s.interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.broadcastSnapshot()
			case <-done:
				return
			case <-s.stop:
				return
			}
		}
	}()
	return func() { close(done) }
}

// Push builds one snapshot via SnapshotFunc and broadcasts it
// immediately. Exposed so a discrete-event caller can drive pushes off
// its own simulated clock instead of Run's wall-clock
// ticker, which only makes sense for a live, non-simulated process.
func (s *Server) Push() {
	s.broadcastSnapshot()
}

func (s *Server) broadcastSnapshot() {
	if s.snapshot == nil {
		return
	}
	snap := s.snapshot()
	body, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("admin snapshot marshal failed", logging.Error(err))
		return
	}
	frame := snappy.Encode(nil, body)
	s.broadcast(frame)
}

func (s *Server) broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- frame:
		default:
			// Slow client: drop the frame rather than block the broadcaster.
		}
	}
}

// Close stops accepting further broadcasts and disconnects every client.
func (s *Server) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.Close()
		delete(s.clients, c)
	}
}
