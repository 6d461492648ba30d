// Package echobeacon implements the periodic liveness beacon: after a
// random initial delay it emits an Echo carrying a monotonically
// increasing sequence number, then reschedules itself every echoPeriod.
// Its purpose is to keep neighbours' liveness timers fed during
// otherwise-silent intervals and to seed initial quality estimates.
//
// Grounded on the teacher's internal/timesync.Service periodic-emission
// shape (send an initial sample immediately, then on every tick), adapted
// from a ticker-driven gRPC stream to a one-shot scheduled event that
// reschedules itself on this package's discrete-event clock.
package echobeacon

import (
	"math/rand"

	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/face"
	"github.com/sart-mesh/rntp/internal/wire"
)

// Beacon periodically transmits Echo messages on the netdev face.
type Beacon struct {
	self   wire.NodeID
	period float64
	net    face.NetFace
	sched  clock.Scheduler
	rng    *rand.Rand
	seq    uint64
}

// New constructs a beacon. rng may be nil, in which case a
// default-seeded source is used (production callers should still supply
// a deterministic source if reproducible traces matter).
func New(self wire.NodeID, period float64, net face.NetFace, sched clock.Scheduler, rng *rand.Rand) *Beacon {
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(self) + 1))
	}
	return &Beacon{self: self, period: period, net: net, sched: sched, rng: rng}
}

// Start schedules the first emission after a uniform random delay in
// (0, period].
func (b *Beacon) Start() {
	if b.sched == nil || b.period <= 0 {
		return
	}
	delay := b.rng.Float64() * b.period
	if delay <= 0 {
		delay = b.period
	}
	b.sched.Schedule(delay, b.fire)
}

func (b *Beacon) fire() {
	b.seq++
	env := &wire.Envelope{
		Kind: wire.KindEcho,
		Echo: &wire.Echo{SourceNodeID: b.self, Sequence: b.seq},
	}
	if b.net != nil {
		b.net.Send(env)
	}
	if b.sched != nil {
		b.sched.Schedule(b.period, b.fire)
	}
}
