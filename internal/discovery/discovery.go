// Package discovery implements route-discovery broadcast propagation:
// building an InterestBroadcast carrying a fresh 32-bit nonce and
// transmitting interestSendTimes independently jittered copies, relying
// on the receiver's visited-node check and per-pair TransportStates
// existence (internal/transport) for duplicate suppression rather than
// any state kept here.
//
// Grounded on the teacher's internal/radar.Scanner: both run a periodic or
// triggered sweep that fans out multiple timed transmissions from a
// single injected random source, retargeted here from spatial contact
// scans to broadcast-wave propagation.
package discovery

import (
	"math/rand"

	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/face"
	"github.com/sart-mesh/rntp/internal/wire"
)

// Recorder is notified of every nonce this node originates or
// re-propagates, letting a caller track its own route-request history
// without this package needing to know its shape.
type Recorder interface {
	RecordNonce(nonce uint32)
}

// Config bundles the propagation tunables.
type Config struct {
	SendTimes      uint32  // INTEREST_SEND_TIMES
	ContentionTime float64 // INTEREST_CONTENTION_TIME_IN_SECS
}

// Engine propagates InterestBroadcast waves on behalf of a node.
type Engine struct {
	self  wire.NodeID
	net   face.NetFace
	sched clock.Scheduler
	rng   *rand.Rand
	cfg   Config
}

// New constructs a propagation engine. rng may be nil to use a
// default-seeded source.
func New(self wire.NodeID, net face.NetFace, sched clock.Scheduler, rng *rand.Rand, cfg Config) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(self) + 7))
	}
	if cfg.SendTimes == 0 {
		cfg.SendTimes = 1
	}
	return &Engine{self: self, net: net, sched: sched, rng: rng, cfg: cfg}
}

// Propagate builds and schedules transmission of an InterestBroadcast,
// returning the nonce it drew (shared across every jittered copy).
func (e *Engine) Propagate(prefix string, visited []wire.NodeID, qualities []float64, consumerID wire.NodeID, hopCount uint32, end bool, rec Recorder) uint32 {
	nonce := e.rng.Uint32()
	if rec != nil {
		rec.RecordNonce(nonce)
	}
	env := &wire.Envelope{
		Kind: wire.KindInterestBroadcast,
		InterestBroadcast: &wire.InterestBroadcast{
			HopCount:            hopCount,
			ProducerPrefix:      prefix,
			ConsumerNodeID:      consumerID,
			TransmittingHopNode: e.self,
			Nonce:               nonce,
			End:                 end,
			VisitedNodeIDs:      append([]wire.NodeID(nil), visited...),
			ChannelQualities:    append([]float64(nil), qualities...),
		},
	}
	for i := uint32(0); i < e.cfg.SendTimes; i++ {
		delay := e.rng.Float64() * e.cfg.ContentionTime
		if e.sched == nil {
			continue
		}
		e.sched.Schedule(delay, func() {
			if e.net != nil {
				e.net.Send(env)
			}
		})
	}
	return nonce
}
