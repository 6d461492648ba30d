package quality

import (
	"sync"

	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/wire"
)

// Broken is the sentinel quality value meaning "link currently unusable".
// It is a large negative number so that ordinary SNR samples (which may
// themselves be negative) never collide with it, and so descending-metric
// sorts always rank broken links last.
const Broken = -1e9

// RouteNotifier propagates a neighbour's smoothed quality into the route
// table, and the broken-link sentinel on timeout. It decouples this
// package from internal/routing so the two can be tested independently.
type RouteNotifier interface {
	// UpdateHopQuality sets the quality of every route hop (from -> to) to
	// quality, wherever that hop currently appears in any route.
	UpdateHopQuality(from, to wire.NodeID, quality float64)
}

// WakeNotifier is told when a neighbour transitions from broken back to
// live, so the congestion controller can reset stalled transports and
// drain their queues.
type WakeNotifier interface {
	ChannelWoke(neighbour wire.NodeID)
}

// state is the per-neighbour ChannelQualityStates record.
type state struct {
	fromNodeID    wire.NodeID
	smoothed      float64
	throughput    *ThroughputQueue
	livenessTimer clock.EventID
	wasBroken     bool
}

// Table is the channel-quality table: per-neighbour smoothed SNR with a
// PIAT-derived liveness timeout.
type Table struct {
	mu    sync.Mutex
	alpha float64
	thQueueCap int
	maxPIAT    float64
	piatQuantile float64

	sched    clock.Scheduler
	routes   RouteNotifier
	wake     WakeNotifier
	self     wire.NodeID

	states map[wire.NodeID]*state
}

// Config bundles the tunables that shape this table.
type Config struct {
	Self                wire.NodeID
	Alpha               float64 // QUALITY_ALPHA, default 1/8
	ThroughputQueueSize int     // THROUGHPUT_QUEUE_SIZE_IN_SECS
	MaxPIAT             float64 // MSG_TIMEOUT_IN_SECS, used as the PIAT clamp ceiling
	PIATQuantile        float64 // PIAT_ESTIMATION_CONFIDENT_RATIO
}

// New constructs a channel-quality table. routes and wake may be nil in
// tests that don't need downstream propagation.
func New(cfg Config, sched clock.Scheduler, routes RouteNotifier, wake WakeNotifier) *Table {
	alpha := cfg.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.125
	}
	return &Table{
		alpha:        alpha,
		thQueueCap:   cfg.ThroughputQueueSize,
		maxPIAT:      cfg.MaxPIAT,
		piatQuantile: cfg.PIATQuantile,
		sched:        sched,
		routes:       routes,
		wake:         wake,
		self:         cfg.Self,
		states:       make(map[wire.NodeID]*state),
	}
}

// Update handles a newly received SNR sample from a neighbour: creates
// the entry on first contact, otherwise EWMA-smooths it, always records a
// throughput sample and reschedules the liveness timer, then propagates
// the smoothed quality into the route table and, if the neighbour had
// been marked broken, notifies the congestion controller of a channel
// wake.
func (t *Table) Update(from wire.NodeID, snr float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	s, exists := t.states[from]
	if !exists {
		//1.- First sample from this neighbour: the smoothed value starts at
		// the raw reading.
		s = &state{
			fromNodeID: from,
			smoothed:   snr,
			throughput: NewThroughputQueue(t.thQueueCap, t.maxPIAT, t.piatQuantile),
		}
		t.states[from] = s
	} else {
		//2.- EWMA smoothing: q' = (1-alpha)*q + alpha*snr.
		s.smoothed = (1-t.alpha)*s.smoothed + t.alpha*snr
	}
	now := 0.0
	if t.sched != nil {
		now = t.sched.Now()
	}
	s.throughput.Record(now)
	piat := s.throughput.LongestPIAT()

	wasBroken := s.wasBroken
	s.wasBroken = false

	if t.sched != nil {
		t.sched.Cancel(s.livenessTimer)
		s.livenessTimer = t.sched.Schedule(piat, func() { t.onLivenessTimeout(from) })
	}
	smoothed := s.smoothed
	t.mu.Unlock()

	//3.- Propagate the smoothed quality into every route traversing this hop.
	if t.routes != nil {
		t.routes.UpdateHopQuality(from, t.self, smoothed)
	}
	//4.- A prior broken marker clearing is a radical change: wake the
	// congestion controller for every transport using this neighbour.
	if wasBroken && t.wake != nil {
		t.wake.ChannelWoke(from)
	}
}

// onLivenessTimeout fires when no sample has arrived from a neighbour
// within its PIAT-derived timeout: the neighbour is marked broken and
// every route hop through it is set to Broken.
func (t *Table) onLivenessTimeout(from wire.NodeID) {
	t.mu.Lock()
	s, ok := t.states[from]
	if !ok {
		t.mu.Unlock()
		return
	}
	s.wasBroken = true
	t.mu.Unlock()

	if t.routes != nil {
		t.routes.UpdateHopQuality(from, t.self, Broken)
	}
}

// Smoothed returns the current smoothed quality for a neighbour and whether
// an entry exists at all.
func (t *Table) Smoothed(from wire.NodeID) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[from]
	if !ok {
		return 0, false
	}
	return s.smoothed, true
}
