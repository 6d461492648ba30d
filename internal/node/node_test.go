package node

import (
	"math/rand"
	"testing"

	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/config"
	"github.com/sart-mesh/rntp/internal/face"
	"github.com/sart-mesh/rntp/internal/wire"
)

func testConfig(consumer, producer uint32) *config.Config {
	return &config.Config{
		ConsumerNodeID:               consumer,
		ProducerNodeID:               producer,
		CapsulePerHopTimeout:         1,
		CapsuleRetryingTimes:         5,
		CongestionControlInitWin:     4,
		CongestionControlThreshold:   8,
		InterestSendTimes:            1,
		InterestContentionTimeInSecs: 0.1,
		EchoPeriodInSecs:             0, // disabled: beacon noise would only complicate delivery assertions
		MsgTimeoutInSecs:             10,
		QualityAlpha:                 0.5,
		ThroughputQueueSizeInSecs:    8,
		PIATEstimationConfidentRatio: 0.9,
		ConsumerMaxWaitTimeInSecs:    3,
	}
}

func TestTwoHopDeliveryThroughRelay(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	cfg := testConfig(0, 2)

	consumerApp := &RecordingApp{}
	consumer := New(cfg, 0, sched, medium, nil, consumerApp, rand.New(rand.NewSource(1)))
	relay := New(cfg, 1, sched, medium, nil, nil, rand.New(rand.NewSource(2)))
	producer := New(cfg, 2, sched, medium, nil, nil, rand.New(rand.NewSource(3)))

	medium.SetLinkDown(0, 2, true)
	medium.SetLinkDown(2, 0, true)

	producer.Start()
	consumer.Start()
	relay.Start()
	sched.RunUntil(2.0)

	for i := uint32(0); i < 3; i++ {
		if !producer.Emit(i, []byte{byte(i)}) {
			t.Fatalf("expected producer to find a live transport for dataID=%d", i)
		}
	}
	sched.RunUntil(10.0)

	if len(consumerApp.Delivered) != 3 {
		t.Fatalf("expected 3 capsules delivered, got %d: %+v", len(consumerApp.Delivered), consumerApp.Delivered)
	}
	for i, got := range consumerApp.Delivered {
		if got.DataID != uint32(i) {
			t.Fatalf("expected in-order delivery, got %+v", consumerApp.Delivered)
		}
		if got.Prefix != DefaultPrefix {
			t.Fatalf("expected prefix %q, got %q", DefaultPrefix, got.Prefix)
		}
	}
}

func TestEmitRejectedOnNonProducer(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	cfg := testConfig(0, 1)

	consumer := New(cfg, 0, sched, medium, nil, nil, nil)
	if consumer.Emit(0, []byte("x")) {
		t.Fatalf("expected Emit to fail on a node that isn't the configured producer")
	}
}

func TestTerminateNoopForNonConsumer(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	cfg := testConfig(0, 1)

	producer := New(cfg, 1, sched, medium, nil, nil, nil)
	producer.Start()
	// Terminate on a non-consumer must not panic and must not broadcast.
	producer.Terminate()
}

func TestSnapshotReportsRouteAndTransportState(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	cfg := testConfig(0, 1)

	consumer := New(cfg, 0, sched, medium, nil, nil, rand.New(rand.NewSource(1)))
	producer := New(cfg, 1, sched, medium, nil, nil, rand.New(rand.NewSource(2)))
	producer.Start()
	consumer.Start()
	sched.RunUntil(2.0)

	snap := consumer.Snapshot()
	if snap.NodeID != uint32(consumer.Self) {
		t.Fatalf("expected snapshot NodeID %d, got %d", consumer.Self, snap.NodeID)
	}
	if len(snap.Routes) == 0 {
		t.Fatalf("expected consumer to have discovered at least one route by t=2.0")
	}
	found := false
	for _, r := range snap.Routes {
		if r.Prefix == DefaultPrefix && r.ConsumerID == uint32(consumer.Self) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a route for (%s, consumer=%d), got %+v", DefaultPrefix, consumer.Self, snap.Routes)
	}

	if !producer.Emit(0, []byte("hello")) {
		t.Fatalf("expected producer Emit to succeed")
	}
	sched.RunUntil(5.0)

	psnap := producer.Snapshot()
	if len(psnap.Transports) == 0 {
		t.Fatalf("expected producer to report at least one transport after emitting")
	}
}

func TestChannelWokeForwardsToManager(t *testing.T) {
	sched := clock.NewManual()
	medium := face.NewMedium(nil)
	cfg := testConfig(0, 1)

	n := New(cfg, 0, sched, medium, nil, nil, nil)
	// Must not panic even with no outstanding transport for the neighbour.
	n.ChannelWoke(wire.NodeID(9))
}
