package transport

import (
	"testing"

	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/discovery"
	"github.com/sart-mesh/rntp/internal/face"
	"github.com/sart-mesh/rntp/internal/keychain"
	"github.com/sart-mesh/rntp/internal/quality"
	"github.com/sart-mesh/rntp/internal/routing"
	"github.com/sart-mesh/rntp/internal/wire"
)

// capturingNet wraps a NetFace and records every envelope handed to Send,
// so a test can inspect what a Manager actually put on the wire.
type capturingNet struct {
	face.NetFace
	sent []*wire.Envelope
}

func (c *capturingNet) Send(env *wire.Envelope) error {
	c.sent = append(c.sent, env)
	return c.NetFace.Send(env)
}

type recordingApp struct {
	delivered []uint32
}

func (a *recordingApp) DeliverCapsule(prefix string, dataID uint32, payload []byte) {
	a.delivered = append(a.delivered, dataID)
}

// node bundles one simulated node's full stack for the integration tests
// below: its own route table, quality table, discovery engine and
// transport manager, all sharing one clock and one medium.
type node struct {
	id      wire.NodeID
	mgr     *Manager
	app     *recordingApp
	routes  *routing.Table
}

func newNode(id wire.NodeID, sched clock.Scheduler, medium *face.Medium, params Params) *node {
	routes := routing.New(id)
	app := &recordingApp{}
	mgr := &Manager{} // placeholder to capture address for ChannelWoke closure
	qTable := quality.New(quality.Config{Self: id, Alpha: 0.5, ThroughputQueueSize: 8, MaxPIAT: 5, PIATQuantile: 0.9}, sched, routes, mgr)
	net := medium.Attach(id, func(from wire.NodeID, env *wire.Envelope, tag wire.PHYTag) {
		mgr.HandleEnvelope(env, tag)
	})
	disc := discovery.New(id, net, sched, nil, discovery.Config{SendTimes: 1, ContentionTime: 0.1})
	*mgr = *New(id, routes, qTable, net, app, nil, sched, disc, params, nil)
	return &node{id: id, mgr: mgr, app: app, routes: routes}
}

func TestTwoHopSinglePathDelivery(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	params := Params{CapsulePerHopTimeout: 1, CapsuleRetryingMaxTimes: 5, CongestionInitWin: 4, CongestionThreshold: 8, InterestSendTimes: 1, InterestContentionTime: 0.1}

	consumer := newNode(0, sched, medium, params)
	relay := newNode(1, sched, medium, params)
	producer := newNode(2, sched, medium, params)
	producer.mgr.Produce("/video")

	// Out-of-range direct link: consumer and producer can only reach each
	// other via the relay, making this a genuine two-hop topology.
	medium.SetLinkDown(0, 2, true)
	medium.SetLinkDown(2, 0, true)

	consumer.mgr.OnLocalInterest("/video")
	sched.RunUntil(2.0)

	route, ok := consumer.routes.LookupRoute(0, "/video", nil, 0)
	if !ok {
		t.Fatalf("expected consumer to have discovered a route")
	}
	if len(route.NodeIDs) != 3 || route.NodeIDs[0] != 2 || route.NodeIDs[1] != 1 || route.NodeIDs[2] != 0 {
		t.Fatalf("expected canonical route [2 1 0], got %v", route.NodeIDs)
	}

	for i := uint32(0); i < 5; i++ {
		if ok := producer.mgr.EmitCapsule("/video", 0, i, []byte{byte(i)}); !ok {
			t.Fatalf("expected EmitCapsule to find a live transport for dataID=%d", i)
		}
	}
	sched.RunUntil(10.0)

	if len(consumer.app.delivered) != 5 {
		t.Fatalf("expected 5 capsules delivered, got %d: %v", len(consumer.app.delivered), consumer.app.delivered)
	}
	for i, id := range consumer.app.delivered {
		if id != uint32(i) {
			t.Fatalf("expected capsules delivered in order, got %v", consumer.app.delivered)
		}
	}

	relayKey := transportKey{Prefix: "/video", ConsumerID: 0}
	if ts, ok := relay.mgr.transport(relayKey); ok {
		if len(ts.sendCapStates) != 0 {
			t.Fatalf("expected relay to have no outstanding sends after full delivery, got %d", len(ts.sendCapStates))
		}
	}
}

func TestDuplicateBroadcastSuppression(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	params := Params{CapsulePerHopTimeout: 1, CapsuleRetryingMaxTimes: 5, CongestionInitWin: 4, CongestionThreshold: 8, InterestSendTimes: 3, InterestContentionTime: 0.1}

	producer := newNode(1, sched, medium, params)
	producer.mgr.Produce("/video")

	// Three identical copies of the same broadcast wave (shared nonce),
	// as a genuine triplicated re-send would arrive.
	ib := &wire.InterestBroadcast{
		HopCount:            0,
		ProducerPrefix:      "/video",
		ConsumerNodeID:      0,
		TransmittingHopNode: 0,
		Nonce:               42,
		VisitedNodeIDs:      []wire.NodeID{0},
	}
	for i := 0; i < 3; i++ {
		producer.mgr.handleInterestBroadcast(ib, wire.PHYTag{SNR: 10})
	}

	key := transportKey{Prefix: "/video", ConsumerID: 0}
	ts, ok := producer.mgr.transport(key)
	if !ok {
		t.Fatalf("expected a transport to be created for the discovering consumer")
	}
	if len(ts.receivedBroadcastNonces) != 1 {
		t.Fatalf("expected exactly one distinct nonce recorded, got %d", len(ts.receivedBroadcastNonces))
	}

	group, ok := producer.routes.LookupRoute(0, "/video", nil, 0)
	if !ok {
		t.Fatalf("expected exactly one route installed from the first copy")
	}
	if len(group.NodeIDs) != 2 || group.NodeIDs[0] != 1 || group.NodeIDs[1] != 0 {
		t.Fatalf("expected route [1 0], got %v", group.NodeIDs)
	}
	// AddRoute rejects a second insert with identical NodeIDs, so a
	// rank-1 lookup on a single-route group wraps back to the same
	// route rather than exposing a distinct duplicate.
	again, ok := producer.routes.LookupRoute(0, "/video", nil, 1)
	if !ok || !sameRoute(again, group) {
		t.Fatalf("expected rank-1 lookup to wrap to the sole route, got %+v", again)
	}
}

// recordingOthersLogger only cares about LogOthers, the sink
// handleCapsule reports a signature mismatch to.
type recordingOthersLogger struct {
	NopLogger
	others []string
}

func (l *recordingOthersLogger) LogOthers(line string) { l.others = append(l.others, line) }

func TestEmitCapsuleAttachesVerifiableSignature(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	params := Params{CapsulePerHopTimeout: 1, CapsuleRetryingMaxTimes: 5, CongestionInitWin: 4, CongestionThreshold: 8, InterestSendTimes: 1, InterestContentionTime: 0.1}
	keys := keychain.New("/secret")

	consumerRoutes := routing.New(0)
	consumerApp := &recordingApp{}
	consumerMgr := &Manager{}
	consumerQ := quality.New(quality.Config{Self: 0, Alpha: 0.5, ThroughputQueueSize: 8, MaxPIAT: 5, PIATQuantile: 0.9}, sched, consumerRoutes, consumerMgr)
	consumerNet := medium.Attach(0, func(from wire.NodeID, env *wire.Envelope, tag wire.PHYTag) { consumerMgr.HandleEnvelope(env, tag) })
	consumerLog := &recordingOthersLogger{}
	*consumerMgr = *New(0, consumerRoutes, consumerQ, consumerNet, consumerApp, keys, sched, nil, params, consumerLog)
	consumerMgr.routes.AddRoute("/video", 0, []wire.NodeID{1, 0}, []float64{0})

	producerRoutes := routing.New(1)
	producerMgr := &Manager{}
	producerQ := quality.New(quality.Config{Self: 1, Alpha: 0.5, ThroughputQueueSize: 8, MaxPIAT: 5, PIATQuantile: 0.9}, sched, producerRoutes, producerMgr)
	rawProducerNet := medium.Attach(1, func(from wire.NodeID, env *wire.Envelope, tag wire.PHYTag) { producerMgr.HandleEnvelope(env, tag) })
	producerNet := &capturingNet{NetFace: rawProducerNet}
	*producerMgr = *New(1, producerRoutes, producerQ, producerNet, nil, keys, sched, nil, params, nil)
	producerMgr.Produce("/video")
	producerRoutes.AddRoute("/video", 0, []wire.NodeID{1, 0}, []float64{0})
	producerMgr.transports[transportKey{Prefix: "/video", ConsumerID: 0}] = newTransportStates("/video", 0, nil, nil, params.CongestionInitWin, params.CongestionThreshold)

	if ok := producerMgr.EmitCapsule("/video", 0, 7, []byte("payload")); !ok {
		t.Fatalf("expected EmitCapsule to succeed")
	}
	sched.RunUntil(2.0)

	if len(producerNet.sent) == 0 {
		t.Fatalf("expected the producer to have sent at least one envelope")
	}
	sent := producerNet.sent[0].Capsule
	want := keys.Sign("/video", []byte("payload"))
	if string(sent.Signature) != string(want) {
		t.Fatalf("capsule signature = %x, want %x", sent.Signature, want)
	}
	if len(consumerApp.delivered) != 1 || consumerApp.delivered[0] != 7 {
		t.Fatalf("expected dataID 7 delivered to the consumer, got %v", consumerApp.delivered)
	}
	if len(consumerLog.others) != 0 {
		t.Fatalf("expected no signature-mismatch log lines, got %v", consumerLog.others)
	}
}

func TestHandleCapsuleLogsSignatureMismatch(t *testing.T) {
	sched := clock.NewManual()
	routes := routing.New(0)
	mgr := &Manager{}
	qTable := quality.New(quality.Config{Self: 0, Alpha: 0.5, ThroughputQueueSize: 8, MaxPIAT: 5, PIATQuantile: 0.9}, sched, routes, mgr)
	medium := face.NewMedium(nil)
	net := medium.Attach(0, func(from wire.NodeID, env *wire.Envelope, tag wire.PHYTag) {})
	app := &recordingApp{}
	log := &recordingOthersLogger{}
	keys := keychain.New("/secret")
	params := Params{CapsulePerHopTimeout: 1, CapsuleRetryingMaxTimes: 5, CongestionInitWin: 4, CongestionThreshold: 8}
	*mgr = *New(0, routes, qTable, net, app, keys, sched, nil, params, log)

	bogus := keychain.New("/wrong-secret").Sign("/video", []byte("payload"))
	c := &wire.Capsule{Prefix: "/video", DataID: 1, ConsumerNodeID: 0, Payload: []byte("payload"), Signature: bogus}
	mgr.handleCapsule(c, wire.PHYTag{SNR: 10})

	if len(log.others) != 1 {
		t.Fatalf("expected exactly one signature-mismatch log line, got %v", log.others)
	}
	if len(app.delivered) != 1 {
		t.Fatalf("expected delivery to proceed despite the mismatch (non-enforcing verify), got %v", app.delivered)
	}
}

func sameRoute(a, b *routing.Route) bool {
	if len(a.NodeIDs) != len(b.NodeIDs) {
		return false
	}
	for i := range a.NodeIDs {
		if a.NodeIDs[i] != b.NodeIDs[i] {
			return false
		}
	}
	return true
}
