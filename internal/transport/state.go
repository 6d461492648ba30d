package transport

import (
	"github.com/sart-mesh/rntp/internal/clock"
	"github.com/sart-mesh/rntp/internal/congestion"
	"github.com/sart-mesh/rntp/internal/sendqueue"
	"github.com/sart-mesh/rntp/internal/wire"
)

// transportKey indexes TransportStates by (prefix, consumerID), the
// hash(prefix, consumerID) key used to look up per-pair state.
type transportKey struct {
	Prefix     string
	ConsumerID wire.NodeID
}

// sentKey pairs a dataID with a next-hop/downstream node, used both for
// send-side duplicate suppression (sentDataIDAndNextHops) and ack-side
// idempotency (ackedDataIDAndDownstream).
type sentKey struct {
	DataID uint32
	Node   wire.NodeID
}

// SendCapState is the per-outstanding-capsule retry state.
type SendCapState struct {
	sendEventID clock.EventID
	sendTimes   int
	downstream  map[wire.NodeID]struct{}
}

// TransportStates is the per-(consumer,prefix) send/receive state held on
// every node that participates in that pair's subpath.
type TransportStates struct {
	Prefix     string
	ConsumerID wire.NodeID

	Congestion *congestion.Controller
	Queue      *sendqueue.Queue

	sendCapStates           map[uint32]*SendCapState
	sentDataIDAndNextHops   map[sentKey]struct{}
	ackedDataIDAndDownstream map[sentKey]struct{}
	receivedBroadcastNonces map[uint32]struct{}

	destroyed bool
}

func newTransportStates(prefix string, consumerID wire.NodeID, congestionLog congestion.TransitionLogger, bufferLog sendqueue.BufferLogger, initWin, threshold uint32) *TransportStates {
	return &TransportStates{
		Prefix:                   prefix,
		ConsumerID:               consumerID,
		Congestion:               congestion.New(initWin, threshold, congestionLog),
		Queue:                    sendqueue.New(bufferLog),
		sendCapStates:            make(map[uint32]*SendCapState),
		sentDataIDAndNextHops:    make(map[sentKey]struct{}),
		ackedDataIDAndDownstream: make(map[sentKey]struct{}),
		receivedBroadcastNonces:  make(map[uint32]struct{}),
	}
}

// RecordNonce implements discovery.Recorder: remembers that this
// TransportStates has already processed a given broadcast wave, so a
// duplicate copy (same nonce, re-received) is dropped rather than
// reinstalling a route or re-propagating.
func (t *TransportStates) RecordNonce(nonce uint32) {
	t.receivedBroadcastNonces[nonce] = struct{}{}
}

// sawNonce reports whether this is a duplicate of an already-seen
// broadcast wave, recording it as seen if not.
func (t *TransportStates) sawNonce(nonce uint32) bool {
	if _, seen := t.receivedBroadcastNonces[nonce]; seen {
		return true
	}
	t.receivedBroadcastNonces[nonce] = struct{}{}
	return false
}
