// Package transport implements the per-node message-kind state machine:
// Interest origination, InterestBroadcast handling, Capsule
// forwarding/delivery with congestion-windowed retry, CapsuleAck
// processing, and Echo-driven quality updates.
//
// Route orientation note: a Route's NodeIDs always runs
// producer-first, ending at the node holding the copy. The
// InterestBroadcast flood instead grows consumer-first as it travels
// outward (each hop appends itself), so the two orderings are mirror
// images of each other. Rather than have every intermediate hop install a
// self-oriented, not-yet-resolvable partial route during the outward
// flood, only the node that owns the requested prefix installs a route
// when the flood reaches it -- by reversing the completed visited list,
// which is then exactly the canonical producer-to-consumer path. Every
// other hop (including the consumer) learns that same canonical path the
// unambiguous way: by observing it verbatim in the NodeIDs field of the
// first Capsule that actually traverses them.
//
// Grounded on the teacher's internal/match package (a session-scoped state
// machine keyed by pair identity, driving timers and retries off a single
// injected scheduler) and internal/events.Stream (dedup-by-identifier
// before fan-out), adapted from match/event bookkeeping to subpath
// forwarding and duplicate-broadcast suppression.
package transport

import (
	"fmt"

	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/discovery"
	"github.com/sart-mesh/rntp/internal/face"
	"github.com/sart-mesh/rntp/internal/keychain"
	"github.com/sart-mesh/rntp/internal/quality"
	"github.com/sart-mesh/rntp/internal/resequence"
	"github.com/sart-mesh/rntp/internal/routing"
	"github.com/sart-mesh/rntp/internal/sendqueue"
	"github.com/sart-mesh/rntp/internal/wire"
)

// Direction classifies where an inbound Capsule came from relative to the
// chosen subpath.
type Direction int

const (
	FromUpstream Direction = iota
	FromDownstream
	FromProducer
)

// Logger receives one formatted line per category of event this package
// emits, one sink per CSV category. A nil Logger discards everything.
type Logger interface {
	LogRoutes(line string)
	LogCongestionControl(line string)
	LogMsgCapsule(line string)
	LogMsgCapsuleAck(line string)
	LogMsgInterestBroadcast(line string)
	LogMsgInterest(line string)
	LogMsgEcho(line string)
	LogConsumer(line string)
	LogConsumerQueueSize(line string)
	LogConsumerReseq(line string)
	LogProducer(line string)
	LogBuffer(line string)
	LogOthers(line string)
}

// NopLogger discards every line.
type NopLogger struct{}

func (NopLogger) LogRoutes(string)               {}
func (NopLogger) LogCongestionControl(string)    {}
func (NopLogger) LogMsgCapsule(string)           {}
func (NopLogger) LogMsgCapsuleAck(string)        {}
func (NopLogger) LogMsgInterestBroadcast(string) {}
func (NopLogger) LogMsgInterest(string)          {}
func (NopLogger) LogMsgEcho(string)              {}
func (NopLogger) LogConsumer(string)             {}
func (NopLogger) LogConsumerQueueSize(string)    {}
func (NopLogger) LogConsumerReseq(string)        {}
func (NopLogger) LogProducer(string)             {}
func (NopLogger) LogBuffer(string)               {}
func (NopLogger) LogOthers(string)               {}

// Params bundles the per-node tunables that this package consumes
// directly.
type Params struct {
	CapsulePerHopTimeout    float64 // CAPSULE_PER_HOP_TIMEOUT
	CapsuleRetryingMaxTimes int     // CAPSULE_RETRYING_TIMES
	CongestionInitWin       uint32  // CONGESTION_CONTROL_INIT_WIN
	CongestionThreshold     uint32  // CONGESTION_CONTROL_THRESHOLD
	InterestSendTimes       uint32  // INTEREST_SEND_TIMES
	InterestContentionTime  float64 // INTEREST_CONTENTION_TIME_IN_SECS

	ResequenceMaxWaitTime float64 // CONSUMER_MAX_WAIT_TIME_IN_SECS
	ResequenceQueueSize   int
}

// Manager wires the per-node protocol components together and drives
// every message-kind handler.
type Manager struct {
	self      wire.NodeID
	producing map[string]bool

	routes  *routing.Table
	quality *quality.Table
	net     face.NetFace
	app     face.AppFace
	keys    *keychain.KeyChain
	sched   clock.Scheduler
	disc    *discovery.Engine

	params Params
	log    Logger

	transports map[transportKey]*TransportStates
	reseqs     map[transportKey]*resequence.Queue
}

// DefaultResequenceQueueSize bounds the consumer resequencing queue when
// Params.ResequenceQueueSize is left unset.
const DefaultResequenceQueueSize = 64

// New constructs a Manager. disc, keys, app and log may be nil.
func New(self wire.NodeID, routes *routing.Table, qualities *quality.Table, net face.NetFace, app face.AppFace, keys *keychain.KeyChain, sched clock.Scheduler, disc *discovery.Engine, params Params, log Logger) *Manager {
	if log == nil {
		log = NopLogger{}
	}
	if params.CapsuleRetryingMaxTimes <= 0 {
		params.CapsuleRetryingMaxTimes = 1
	}
	if params.CongestionInitWin == 0 {
		params.CongestionInitWin = 1
	}
	if params.CongestionThreshold == 0 {
		params.CongestionThreshold = 1
	}
	if params.ResequenceQueueSize <= 0 {
		params.ResequenceQueueSize = DefaultResequenceQueueSize
	}
	return &Manager{
		self:       self,
		producing:  make(map[string]bool),
		routes:     routes,
		quality:    qualities,
		net:        net,
		app:        app,
		keys:       keys,
		sched:      sched,
		disc:       disc,
		params:     params,
		log:        log,
		transports: make(map[transportKey]*TransportStates),
		reseqs:     make(map[transportKey]*resequence.Queue),
	}
}

// Produce registers this node as the owner of prefix, so that a reaching
// InterestBroadcast is answered rather than re-propagated.
func (m *Manager) Produce(prefix string) {
	m.producing[prefix] = true
}

func (m *Manager) isProducerOf(prefix string) bool {
	return m.producing[prefix]
}

func (m *Manager) transport(key transportKey) (*TransportStates, bool) {
	ts, ok := m.transports[key]
	return ts, ok
}

// Transports returns every live TransportStates this node currently
// holds, for a read-only caller (internal/admin's dashboard snapshot)
// summarizing per-transport send-side state. The returned slice is a
// fresh copy; the TransportStates themselves are not.
func (m *Manager) Transports() []*TransportStates {
	out := make([]*TransportStates, 0, len(m.transports))
	for _, ts := range m.transports {
		out = append(out, ts)
	}
	return out
}

// ReseqDepth reports the current resequencing-queue depth for (prefix,
// consumerID) at this node, or 0 if this node has never received a
// capsule as that pair's consumer.
func (m *Manager) ReseqDepth(prefix string, consumerID wire.NodeID) int {
	q, ok := m.reseqs[transportKey{Prefix: prefix, ConsumerID: consumerID}]
	if !ok {
		return 0
	}
	return q.Len()
}

func (m *Manager) getOrCreateTransport(prefix string, consumerID wire.NodeID) *TransportStates {
	key := transportKey{Prefix: prefix, ConsumerID: consumerID}
	if ts, ok := m.transports[key]; ok {
		return ts
	}
	congestionLog := func(line string) { m.log.LogCongestionControl(line) }
	bufferLog := func(line string) { m.log.LogBuffer(line) }
	ts := newTransportStates(prefix, consumerID, congestionLog, bufferLog, m.params.CongestionInitWin, m.params.CongestionThreshold)
	m.transports[key] = ts
	return ts
}

// getOrCreateReseq returns this consumer's resequencing queue for key,
// creating it on first delivery. Final app delivery and its queue-depth
// and skip logging all happen behind this queue, decoupled from the
// per-hop reliability ack sent immediately on arrival.
func (m *Manager) getOrCreateReseq(key transportKey, prefix string) *resequence.Queue {
	if q, ok := m.reseqs[key]; ok {
		return q
	}
	cfg := resequence.Config{
		Size:        m.params.ResequenceQueueSize,
		MaxWaitTime: m.params.ResequenceMaxWaitTime,
		OnSkip: func(dataID uint32) {
			m.log.LogConsumerReseq("skip " + prefix)
		},
	}
	q := resequence.New(cfg, m.sched, func(dataID uint32, payload []byte) {
		if m.app != nil {
			m.app.DeliverCapsule(prefix, dataID, payload)
		}
		m.log.LogConsumer("deliver " + prefix)
	})
	m.reseqs[key] = q
	m.log.LogConsumerQueueSize("create " + prefix)
	return q
}

// HandleEnvelope dispatches an inbound wire envelope to the matching
// message-kind handler.
func (m *Manager) HandleEnvelope(env *wire.Envelope, tag wire.PHYTag) {
	switch env.Kind {
	case wire.KindInterestBroadcast:
		m.handleInterestBroadcast(env.InterestBroadcast, tag)
	case wire.KindCapsule:
		m.handleCapsule(env.Capsule, tag)
	case wire.KindCapsuleAck:
		m.handleCapsuleAck(env.CapsuleAck, tag)
	case wire.KindEcho:
		m.handleEcho(env.Echo, tag)
	default:
		m.log.LogOthers("unexpected message kind on netdev face")
	}
}

// OnLocalInterest handles an Interest issued by this node's own
// application. If this node already owns the prefix, nothing needs
// discovering. Otherwise it
// bootstraps a fresh TransportStates and a new broadcast wave with
// visitedNodeIDs=[self].
func (m *Manager) OnLocalInterest(prefix string) {
	if m.isProducerOf(prefix) {
		return
	}
	key := transportKey{Prefix: prefix, ConsumerID: m.self}
	if _, exists := m.transports[key]; exists {
		return
	}
	ts := m.getOrCreateTransport(prefix, m.self)
	if m.disc != nil {
		m.disc.Propagate(prefix, []wire.NodeID{m.self}, nil, m.self, 0, false, ts)
	}
	m.log.LogMsgInterest("local " + prefix)
}

// EmitCapsule originates a new data capsule for (prefix, consumerID) from
// this node, which must already be that prefix's producer and must
// already have a live TransportStates for that consumer (created when the
// discovering broadcast reached this node). The capsule starts with an
// empty NodeIDs list; sendCapsuleIterative fills it in from the route
// table on first send, tagged with the FROM_PRODUCER send-queue code.
func (m *Manager) EmitCapsule(prefix string, consumerID wire.NodeID, dataID uint32, payload []byte) bool {
	key := transportKey{Prefix: prefix, ConsumerID: consumerID}
	ts, ok := m.transports[key]
	if !ok {
		return false
	}
	c := &wire.Capsule{
		Prefix:              prefix,
		DataID:              dataID,
		TransmittingHopNode: m.self,
		ConsumerNodeID:      consumerID,
		Payload:             payload,
	}
	if m.keys != nil {
		c.Signature = m.keys.Sign(prefix, payload)
	}
	m.sendCapsuleViaQueue(ts, c, sendqueue.FromProducer)
	m.log.LogProducer("emit " + prefix)
	return true
}

// handleInterestBroadcast handles an inbound InterestBroadcast:
// termination waves tear down state and propagate once more;
// otherwise a producer installs the now-complete route and answers, while
// an intermediate forwards the flood one hop further, in both cases
// gated by per-nonce duplicate suppression.
func (m *Manager) handleInterestBroadcast(ib *wire.InterestBroadcast, tag wire.PHYTag) {
	m.quality.Update(ib.TransmittingHopNode, tag.SNR)
	m.log.LogMsgInterestBroadcast("recv " + ib.ProducerPrefix)

	key := transportKey{Prefix: ib.ProducerPrefix, ConsumerID: ib.ConsumerNodeID}

	if ib.End {
		ts, exists := m.transports[key]
		if exists && !containsNode(ib.VisitedNodeIDs, m.self) {
			ts.destroyed = true
			delete(m.transports, key)
			visited := appendNode(ib.VisitedNodeIDs, m.self)
			if m.disc != nil {
				m.disc.Propagate(ib.ProducerPrefix, visited, ib.ChannelQualities, ib.ConsumerNodeID, ib.HopCount+1, true, nil)
			}
		}
		return
	}

	if ib.ConsumerNodeID == m.self {
		// Echo of this node's own origination wave.
		return
	}

	if m.isProducerOf(ib.ProducerPrefix) {
		ts := m.getOrCreateTransport(ib.ProducerPrefix, ib.ConsumerNodeID)
		if ts.sawNonce(ib.Nonce) {
			return
		}
		visited := appendNode(ib.VisitedNodeIDs, m.self)
		qualities := appendFloat(ib.ChannelQualities, tag.SNR)
		fullPath := reverseNodes(visited)
		fullQualities := reverseFloats(qualities)
		m.routes.AddRoute(ib.ProducerPrefix, ib.ConsumerNodeID, fullPath, fullQualities)
		m.log.LogRoutes("installed " + ib.ProducerPrefix)
		return
	}

	if containsNode(ib.VisitedNodeIDs, m.self) {
		return
	}
	ts := m.getOrCreateTransport(ib.ProducerPrefix, ib.ConsumerNodeID)
	if ts.sawNonce(ib.Nonce) {
		return
	}
	visited := appendNode(ib.VisitedNodeIDs, m.self)
	qualities := appendFloat(ib.ChannelQualities, tag.SNR)
	if m.disc != nil {
		m.disc.Propagate(ib.ProducerPrefix, visited, qualities, ib.ConsumerNodeID, ib.HopCount+1, false, ts)
	}
}

// classifyDirection classifies where an inbound capsule arrived from.
// When self isn't present in the capsule's NodeIDs at all, it falls back
// to route-table presence; this is a known source of spurious
// FROM_DOWNSTREAM classification, accepted as the simplest resolution.
func (m *Manager) classifyDirection(c *wire.Capsule) (Direction, int) {
	if len(c.NodeIDs) == 0 {
		return FromProducer, -1
	}
	selfIdx := indexOfNode(c.NodeIDs, m.self)
	transIdx := indexOfNode(c.NodeIDs, c.TransmittingHopNode)
	if selfIdx >= 0 && transIdx >= 0 {
		if transIdx > selfIdx {
			return FromDownstream, selfIdx
		}
		return FromUpstream, selfIdx
	}
	if _, ok := m.routes.MatchRoute(c.ConsumerNodeID, c.Prefix, c.NodeIDs, nil); ok {
		return FromDownstream, selfIdx
	}
	return FromUpstream, selfIdx
}

// learnRouteFromCapsule registers the path a fully-routed capsule just
// travelled as a route in this node's own table. It's how every hop
// besides the prefix owner (who installs its route straight from the
// completed discovery broadcast) learns the canonical path: the
// capsule's NodeIDs is set once, by whoever first sends it, and then
// travels unchanged, so it's the one place every later hop can read it
// unambiguously. Quality is only truly known for the single segment
// feeding into this node; every other segment defaults to neutral until
// corrected by this node's own later observations.
func (m *Manager) learnRouteFromCapsule(c *wire.Capsule) {
	if len(c.NodeIDs) == 0 {
		return
	}
	qualities := make([]float64, len(c.NodeIDs)-1)
	selfIdx := indexOfNode(c.NodeIDs, m.self)
	for i := range qualities {
		if selfIdx > 0 && i == selfIdx-1 {
			if q, ok := m.quality.Smoothed(c.NodeIDs[i]); ok {
				qualities[i] = q
				continue
			}
		}
		qualities[i] = 0
	}
	m.routes.AddRoute(c.Prefix, c.ConsumerNodeID, c.NodeIDs, qualities)
}

// handleCapsule handles an inbound data-carrying Capsule.
func (m *Manager) handleCapsule(c *wire.Capsule, tag wire.PHYTag) {
	m.quality.Update(c.TransmittingHopNode, tag.SNR)
	m.log.LogMsgCapsule("recv " + c.Prefix)
	if m.keys != nil {
		if err := m.keys.Verify(c.Prefix, c.Payload, c.Signature); err != nil {
			m.log.LogOthers("capsule signature mismatch " + c.Prefix)
		}
	}
	m.learnRouteFromCapsule(c)

	dir, selfIdx := m.classifyDirection(c)

	if dir == FromDownstream {
		if ts, ok := m.transport(transportKey{Prefix: c.Prefix, ConsumerID: c.ConsumerNodeID}); ok {
			m.processAck(ts, c.DataID, c.TransmittingHopNode)
		}
		return
	}

	if c.ConsumerNodeID == m.self {
		ts := m.getOrCreateTransport(c.Prefix, c.ConsumerNodeID)
		ts.sentDataIDAndNextHops[sentKey{DataID: c.DataID, Node: c.TransmittingHopNode}] = struct{}{}
		m.sendAckUpstream(c, selfIdx, []uint32{c.DataID})
		q := m.getOrCreateReseq(transportKey{Prefix: c.Prefix, ConsumerID: c.ConsumerNodeID}, c.Prefix)
		q.Arrive(c.DataID, c.Payload)
		m.log.LogConsumerQueueSize(fmt.Sprintf("depth %d %s", q.Len(), c.Prefix))
		return
	}

	ts := m.getOrCreateTransport(c.Prefix, c.ConsumerNodeID)
	code := sendqueue.FromPreviousHop
	if dir == FromProducer {
		code = sendqueue.FromProducer
	}
	m.sendCapsuleViaQueue(ts, c, code)
}

// sendCapsuleViaQueue enqueues then drains: a capsule already buffered
// for this dataID is answered with an immediate ack (it's already being
// handled); otherwise it's pushed and the queue is drained up to the
// congestion window.
func (m *Manager) sendCapsuleViaQueue(ts *TransportStates, c *wire.Capsule, code sendqueue.Code) {
	if ts.Queue.Contains(c.DataID) {
		selfIdx := indexOfNode(c.NodeIDs, m.self)
		m.sendAckUpstream(c, selfIdx, []uint32{c.DataID})
		return
	}
	ts.Queue.Push(&sendqueue.CapsuleToSend{Capsule: c.Clone(), Data: c.Payload, Code: code})
	if !m.drainQueue(ts) {
		selfIdx := indexOfNode(c.NodeIDs, m.self)
		m.sendAckUpstream(c, selfIdx, []uint32{c.DataID})
	}
}

// drainQueue dispatches queued capsules while the number in flight stays
// under the congestion window, returning whether it dispatched anything.
func (m *Manager) drainQueue(ts *TransportStates) bool {
	sentAny := false
	for uint32(len(ts.sendCapStates)) < ts.Congestion.Window() {
		e := ts.Queue.TransientlyPopFront()
		if e == nil {
			break
		}
		m.sendCapsule(ts, e)
		sentAny = true
	}
	return sentAny
}

func (m *Manager) sendCapsule(ts *TransportStates, e *sendqueue.CapsuleToSend) {
	scs := &SendCapState{downstream: make(map[wire.NodeID]struct{})}
	ts.sendCapStates[e.Capsule.DataID] = scs
	m.sendCapsuleIterative(ts, e, scs)
}

// sendCapsuleIterative drives the retry/route-selection/send/reschedule
// loop for one outstanding capsule. A chosen route's NodeIDs always
// replaces the capsule's path wholesale, rather than splicing a partial
// suffix in.
func (m *Manager) sendCapsuleIterative(ts *TransportStates, e *sendqueue.CapsuleToSend, scs *SendCapState) {
	if ts.destroyed {
		return
	}

	var partial []wire.NodeID
	if selfIdx := indexOfNode(e.Capsule.NodeIDs, m.self); selfIdx >= 0 {
		partial = e.Capsule.NodeIDs[:selfIdx+1]
	}

	route, ok := m.routes.MatchRoute(ts.ConsumerID, ts.Prefix, partial, partial)
	if !ok {
		rank := e.NTimesRetried
		route, ok = m.routes.LookupRoute(ts.ConsumerID, ts.Prefix, partial, rank)
	}

	if !ok || e.NTimesRetried >= m.params.CapsuleRetryingMaxTimes {
		ts.Queue.Restore(e.Capsule.DataID)
		e.NTimesRetried++
		e.Code = sendqueue.ForRetrying
		delete(ts.sendCapStates, e.Capsule.DataID)
		ts.Congestion.AckTimeout(ok)
		return
	}

	e.Capsule.NodeIDs = append([]wire.NodeID(nil), route.NodeIDs...)
	selfIdx := indexOfNode(e.Capsule.NodeIDs, m.self)
	if selfIdx < 0 || selfIdx+1 >= len(e.Capsule.NodeIDs) {
		delete(ts.sendCapStates, e.Capsule.DataID)
		ts.Queue.Remove(e.Capsule.DataID)
		return
	}
	nextHop := e.Capsule.NodeIDs[selfIdx+1]
	sk := sentKey{DataID: e.Capsule.DataID, Node: nextHop}
	if _, already := ts.sentDataIDAndNextHops[sk]; already {
		m.sendAckUpstream(e.Capsule, selfIdx, []uint32{e.Capsule.DataID})
		delete(ts.sendCapStates, e.Capsule.DataID)
		ts.Queue.Remove(e.Capsule.DataID)
		return
	}

	e.Capsule.TransmittingHopNode = m.self
	e.Capsule.HopCountSoFar = uint32(selfIdx)
	scs.downstream[nextHop] = struct{}{}
	ts.sentDataIDAndNextHops[sk] = struct{}{}

	// Schedule the retry timer before transmitting: on an in-process,
	// synchronous medium, Send can recurse all the way through the
	// downstream ack and back into processAck before this call returns,
	// which needs a live sendEventID to cancel.
	scs.sendTimes++
	scs.sendEventID = m.schedule(func() { m.sendCapsuleIterative(ts, e, scs) })
	line := "send " + e.Capsule.Prefix
	if m.keys != nil {
		line += " sig=" + m.keys.SignBase64(e.Capsule.Prefix, e.Capsule.Payload)
	}
	m.log.LogMsgCapsule(line)
	if m.net != nil {
		m.net.Send(&wire.Envelope{Kind: wire.KindCapsule, Capsule: e.Capsule.Clone()})
	}
}

func (m *Manager) schedule(fn func()) clock.EventID {
	if m.sched == nil {
		return 0
	}
	return m.sched.Schedule(m.params.CapsulePerHopTimeout, fn)
}

// sendAckUpstream builds and transmits a CapsuleAck for the given
// dataIDs, addressed to the portion of the capsule's path upstream of
// selfIdx. If selfIdx is unknown or at the path's start, there is no
// valid upstream recipient and nothing is sent.
func (m *Manager) sendAckUpstream(c *wire.Capsule, selfIdx int, dataIDs []uint32) {
	if selfIdx <= 0 {
		return
	}
	upstream := append([]wire.NodeID(nil), c.NodeIDs[:selfIdx]...)
	ack := &wire.CapsuleAck{
		Prefix:              c.Prefix,
		DataIDsReceived:      dataIDs,
		DownstreamNodeID:     m.self,
		UpstreamNodeIDs:      upstream,
		TransmittingHopNode:  m.self,
		ConsumerNodeID:       c.ConsumerNodeID,
	}
	if m.net != nil {
		m.net.Send(&wire.Envelope{Kind: wire.KindCapsuleAck, CapsuleAck: ack})
	}
	m.log.LogMsgCapsuleAck("send " + c.Prefix)
}

// handleCapsuleAck handles an inbound CapsuleAck: a node not named as an
// eligible upstream recipient drops the ack; otherwise every acked
// dataID is processed against this node's outstanding sends.
func (m *Manager) handleCapsuleAck(ack *wire.CapsuleAck, tag wire.PHYTag) {
	m.quality.Update(ack.TransmittingHopNode, tag.SNR)
	m.log.LogMsgCapsuleAck("recv " + ack.Prefix)

	if !containsNode(ack.UpstreamNodeIDs, m.self) {
		return
	}
	ts, ok := m.transport(transportKey{Prefix: ack.Prefix, ConsumerID: ack.ConsumerNodeID})
	if !ok {
		return
	}
	for _, dataID := range ack.DataIDsReceived {
		m.processAck(ts, dataID, ack.DownstreamNodeID)
	}
}

// processAck tears down the outstanding send state for (dataID,
// downstream) and notifies the congestion controller, then drains the
// queue again. Idempotent against a duplicate or stale ack.
func (m *Manager) processAck(ts *TransportStates, dataID uint32, downstream wire.NodeID) {
	sk := sentKey{DataID: dataID, Node: downstream}
	if _, already := ts.ackedDataIDAndDownstream[sk]; already {
		return
	}
	scs, ok := ts.sendCapStates[dataID]
	if !ok {
		return
	}
	if _, isDownstream := scs.downstream[downstream]; !isDownstream {
		return
	}
	ts.ackedDataIDAndDownstream[sk] = struct{}{}
	ts.Congestion.AckReceived()
	if m.sched != nil {
		m.sched.Cancel(scs.sendEventID)
	}
	delete(ts.sendCapStates, dataID)
	ts.Queue.Remove(dataID)
	m.drainQueue(ts)
}

// handleEcho handles an inbound Echo: update quality only.
func (m *Manager) handleEcho(e *wire.Echo, tag wire.PHYTag) {
	m.quality.Update(e.SourceNodeID, tag.SNR)
	m.log.LogMsgEcho("recv")
}

// ChannelWoke implements quality.WakeNotifier: every TransportStates whose
// group includes neighbour as an adjacent node gets its congestion
// controller woken and its queue re-drained.
func (m *Manager) ChannelWoke(neighbour wire.NodeID) {
	for key, ts := range m.transports {
		for _, id := range m.routes.NeighboursInGroup(key.ConsumerID, key.Prefix) {
			if id == neighbour {
				ts.Congestion.ChannelWoke()
				m.drainQueue(ts)
				break
			}
		}
	}
}

func indexOfNode(ids []wire.NodeID, target wire.NodeID) int {
	for i, id := range ids {
		if id == target {
			return i
		}
	}
	return -1
}

func containsNode(ids []wire.NodeID, target wire.NodeID) bool {
	return indexOfNode(ids, target) >= 0
}

func appendNode(ids []wire.NodeID, id wire.NodeID) []wire.NodeID {
	out := make([]wire.NodeID, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

func appendFloat(xs []float64, x float64) []float64 {
	out := make([]float64, len(xs), len(xs)+1)
	copy(out, xs)
	return append(out, x)
}

func reverseNodes(ids []wire.NodeID) []wire.NodeID {
	out := make([]wire.NodeID, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

func reverseFloats(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[len(xs)-1-i] = x
	}
	return out
}
