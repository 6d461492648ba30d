// Package node wires every protocol component into a single per-node
// actor running a single-threaded cooperative event loop: one route
// table, one quality table, one discovery engine, one liveness beacon and
// one transport manager, all driven off a shared clock.Scheduler and
// talking through a shared face.Medium.
//
// New glue code -- no single teacher file maps onto it -- but its shape
// (one struct holding every subsystem handle, built once by a
// constructor and started explicitly) mirrors the teacher's main.go
// Broker: a single long-lived object assembled from options-free direct
// field wiring, then driven by the surrounding process.
package node

import (
	"math/rand"

	"github.com/sart-mesh/rntp/internal/admin"
	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/config"
	"github.com/sart-mesh/rntp/internal/discovery"
	"github.com/sart-mesh/rntp/internal/echobeacon"
	"github.com/sart-mesh/rntp/internal/energy"
	"github.com/sart-mesh/rntp/internal/face"
	"github.com/sart-mesh/rntp/internal/keychain"
	"github.com/sart-mesh/rntp/internal/quality"
	"github.com/sart-mesh/rntp/internal/routing"
	"github.com/sart-mesh/rntp/internal/simlog"
	"github.com/sart-mesh/rntp/internal/transport"
	"github.com/sart-mesh/rntp/internal/wire"
)

// DefaultPrefix names the single producer prefix every simulated run
// serves. This system's configuration is scoped to exactly one
// (producer, consumer) pair per run -- there is no dedicated prefix
// key -- so every node agrees on this one name rather than carrying a
// redundant per-run config field.
const DefaultPrefix = "/data"

// App receives reassembled, in-order payloads at the consumer.
type App interface {
	DeliverCapsule(prefix string, dataID uint32, payload []byte)
}

// RecordingApp is the default App: it keeps every delivered payload in
// memory, for callers (tests, cmd/rntpnode's summary output) that just
// need to know what arrived and in what order.
type RecordingApp struct {
	Delivered []DeliveredCapsule
}

// DeliveredCapsule is one payload RecordingApp observed.
type DeliveredCapsule struct {
	Prefix  string
	DataID  uint32
	Payload []byte
}

func (a *RecordingApp) DeliverCapsule(prefix string, dataID uint32, payload []byte) {
	a.Delivered = append(a.Delivered, DeliveredCapsule{Prefix: prefix, DataID: dataID, Payload: payload})
}

// Node bundles one simulated node's full protocol stack.
type Node struct {
	Self  wire.NodeID
	Sched clock.Scheduler

	Routes  *routing.Table
	Quality *quality.Table
	Disc    *discovery.Engine
	Beacon  *echobeacon.Beacon
	Mgr     *transport.Manager
	Sinks   *simlog.Sinks
	Energy  *energy.Tracker
	App     App

	traceBattery bool
	isProducer   bool
	isConsumer   bool
}

// New constructs a Node for self, wiring it to medium and sched, with
// sinks (may be nil) receiving every CSV-logged event. cfg supplies
// every protocol tunable; rng seeds the discovery and beacon jitter
// sources deterministically per node when non-nil.
func New(cfg *config.Config, self wire.NodeID, sched clock.Scheduler, medium *face.Medium, sinks *simlog.Sinks, app App, rng *rand.Rand) *Node {
	if app == nil {
		app = &RecordingApp{}
	}
	routes := routing.New(self)

	n := &Node{Self: self, Sched: sched, Routes: routes, Sinks: sinks, App: app}
	n.traceBattery = cfg.TraceBattery
	n.Energy = energy.NewTracker(cfg.EnergyBatteryCapacityMah, cfg.EnergyBatteryVoltageV, cfg.TxPowerStartDbm, energy.DefaultBitRateBps)

	rawNet := medium.Attach(self, func(from wire.NodeID, env *wire.Envelope, tag wire.PHYTag) {
		n.Mgr.HandleEnvelope(env, tag)
	})
	net := &energyFace{inner: rawNet, node: n}

	n.Quality = quality.New(quality.Config{
		Self:                self,
		Alpha:               cfg.QualityAlpha,
		ThroughputQueueSize: int(cfg.ThroughputQueueSizeInSecs),
		MaxPIAT:             cfg.MsgTimeoutInSecs,
		PIATQuantile:        cfg.PIATEstimationConfidentRatio,
	}, sched, routes, n)

	discRNG := rng
	if discRNG == nil {
		discRNG = rand.New(rand.NewSource(int64(self)*2 + 1))
	}
	n.Disc = discovery.New(self, net, sched, discRNG, discovery.Config{
		SendTimes:      cfg.InterestSendTimes,
		ContentionTime: cfg.InterestContentionTimeInSecs,
	})

	beaconRNG := rng
	if beaconRNG == nil {
		beaconRNG = rand.New(rand.NewSource(int64(self)*2 + 2))
	}
	n.Beacon = echobeacon.New(self, cfg.EchoPeriodInSecs, net, sched, beaconRNG)

	var logger transport.Logger
	if sinks != nil {
		logger = simlog.NewTransportLogger(sinks)
	}
	params := transport.Params{
		CapsulePerHopTimeout:    cfg.CapsulePerHopTimeout,
		CapsuleRetryingMaxTimes: int(cfg.CapsuleRetryingTimes),
		CongestionInitWin:       cfg.CongestionControlInitWin,
		CongestionThreshold:     cfg.CongestionControlThreshold,
		InterestSendTimes:       cfg.InterestSendTimes,
		InterestContentionTime:  cfg.InterestContentionTimeInSecs,
		ResequenceMaxWaitTime:   cfg.ConsumerMaxWaitTimeInSecs,
	}
	n.Mgr = transport.New(self, routes, n.Quality, net, app, keychain.New(DefaultPrefix), sched, n.Disc, params, logger)

	n.isProducer = self == wire.NodeID(cfg.ProducerNodeID)
	n.isConsumer = self == wire.NodeID(cfg.ConsumerNodeID)
	return n
}

// ChannelWoke implements congestion.ChannelWoke fan-out indirectly via
// transport.Manager; Node only forwards the quality.WakeNotifier call
// it's registered for.
func (n *Node) ChannelWoke(neighbour wire.NodeID) {
	n.Mgr.ChannelWoke(neighbour)
}

// Start begins this node's role: a producer registers ownership of
// DefaultPrefix, a consumer issues the bootstrap Interest, and every
// node starts its liveness beacon.
func (n *Node) Start() {
	if n.isProducer {
		n.Mgr.Produce(DefaultPrefix)
	}
	if n.isConsumer {
		n.Mgr.OnLocalInterest(DefaultPrefix)
	}
	n.Beacon.Start()
}

// Emit originates dataID carrying payload, if and only if this node is
// the configured producer. Callers drive the producer's send schedule
// (cmd/rntpnode schedules one Emit per application-level send interval).
func (n *Node) Emit(dataID uint32, payload []byte) bool {
	if !n.isProducer {
		return false
	}
	return n.Mgr.EmitCapsule(DefaultPrefix, n.Self, dataID, payload)
}

// Terminate announces that this consumer no longer needs its transport,
// triggering the termination broadcast (the end=true wave) per
// CONSUMER_NEED_TO_TERMINATE_TRANSPORT.
func (n *Node) Terminate() {
	if !n.isConsumer {
		return
	}
	n.Disc.Propagate(DefaultPrefix, []wire.NodeID{n.Self}, nil, n.Self, 0, true, nil)
}

// LogFinalEnergy appends the end-of-run energy row, after the shape of
// original_source/ns-3/scratch/sart-sim.cc's post-Simulator::Run dump.
// The row carries the node's remaining reserve; its consumed column is
// written as 0, since the energy tracker keeps no running total. Callers (the
// simulation driver) invoke this once per node after the scheduler has
// run to completion.
func (n *Node) LogFinalEnergy() {
	if !n.traceBattery || n.Sinks == nil {
		return
	}
	n.Sinks.LogEnergy("Final", 0, n.Energy.Remaining())
}

// Snapshot summarizes this node's live state for the admin dashboard.
func (n *Node) Snapshot() admin.Snapshot {
	snap := admin.Snapshot{NodeID: uint32(n.Self), SimTime: n.Sched.Now()}
	for _, view := range n.Routes.AllRoutes() {
		snap.Routes = append(snap.Routes, admin.RouteSummary{
			Prefix:     view.Prefix,
			ConsumerID: uint32(view.ConsumerID),
			NodeIDs:    toUint32Slice(view.Route.NodeIDs),
			Metric:     view.Route.Metric,
		})
	}
	for _, ts := range n.Mgr.Transports() {
		snap.Transports = append(snap.Transports, admin.TransportSummary{
			Prefix:              ts.Prefix,
			ConsumerID:          uint32(ts.ConsumerID),
			CongestionWindow:    ts.Congestion.Window(),
			CongestionThreshold: ts.Congestion.Threshold(),
			QueueDepth:          ts.Queue.Len(),
			ResequenceDepth:     n.Mgr.ReseqDepth(ts.Prefix, ts.ConsumerID),
		})
	}
	return snap
}

// energyFace wraps a node's real NetFace so every outbound send -- a
// capsule, an ack, an interest broadcast, an echo -- also deducts its
// encoded size from that node's battery reserve, the one thing every one
// of those message kinds shares regardless of which package originated
// the send.
type energyFace struct {
	inner face.NetFace
	node  *Node
}

func (f *energyFace) Send(env *wire.Envelope) error {
	if name, payload, err := wire.Encode(env); err == nil {
		consumed, remaining := f.node.Energy.Consume(len(name) + len(payload))
		if f.node.traceBattery && f.node.Sinks != nil {
			f.node.Sinks.LogEnergy("CurRemain", consumed, remaining)
		}
	}
	return f.inner.Send(env)
}

func toUint32Slice(ids []wire.NodeID) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
