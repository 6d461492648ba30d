// Package face defines the two substrate ports every node strategy talks
// to -- an app port and a netdev port per node -- plus the PHY-tag
// provider contract, and supplies an in-memory medium useful for tests
// and single-process simulation.
//
// Grounded on the teacher's internal/websockettest dial/accept harness:
// both wire up a minimal transport between in-process peers without a
// real socket, favouring a registration callback over a channel so
// delivery stays synchronous within the single-threaded event loop model.
package face

import (
	"sync"

	"github.com/sart-mesh/rntp/internal/wire"
)

// NetFace is the radio/netdev port: Send transmits env onto the shared
// broadcast medium, where every other attached node's receive handler
// fires, each tagged with its own PHY reading of the transmission.
type NetFace interface {
	Send(env *wire.Envelope) error
}

// PHYTagProvider attaches an (SNR, RSSI) reading to a packet received
// from a given neighbour.
type PHYTagProvider interface {
	Tag(from wire.NodeID) wire.PHYTag
}

// AppFace is the local application port: DeliverCapsule hands a
// reassembled, in-order payload up to the consuming application.
type AppFace interface {
	DeliverCapsule(prefix string, dataID uint32, payload []byte)
}

// ReceiveFunc is invoked once per envelope delivered to a node by the
// medium, tagged with that node's PHY reading of the sender.
type ReceiveFunc func(from wire.NodeID, env *wire.Envelope, tag wire.PHYTag)

// Medium is an in-memory broadcast channel connecting a handful of nodes,
// standing in for the shared wireless substrate in tests and single-
// process simulation runs. Every Send from one node is delivered to every
// other registered node.
type Medium struct {
	mu       sync.Mutex
	tagger   func(from, to wire.NodeID) wire.PHYTag
	nodes    map[wire.NodeID]ReceiveFunc
	dropFrom map[wire.NodeID]map[wire.NodeID]bool
}

// NewMedium constructs an empty medium. tagger computes the PHY tag a
// receiver observes for a transmission from a given sender; if nil, every
// reading defaults to the zero PHYTag.
func NewMedium(tagger func(from, to wire.NodeID) wire.PHYTag) *Medium {
	if tagger == nil {
		tagger = func(wire.NodeID, wire.NodeID) wire.PHYTag { return wire.PHYTag{} }
	}
	return &Medium{
		tagger:   tagger,
		nodes:    make(map[wire.NodeID]ReceiveFunc),
		dropFrom: make(map[wire.NodeID]map[wire.NodeID]bool),
	}
}

// Attach registers a node's receive handler with the medium and returns a
// NetFace bound to that node's identity for sending.
func (m *Medium) Attach(id wire.NodeID, recv ReceiveFunc) NetFace {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[id] = recv
	return &mediumFace{medium: m, self: id}
}

// SetLinkDown makes transmissions from `from` invisible to `to`, modelling
// a hard propagation-loss link (the NOISE_* configuration knobs of §6).
func (m *Medium) SetLinkDown(from, to wire.NodeID, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dropFrom[to] == nil {
		m.dropFrom[to] = make(map[wire.NodeID]bool)
	}
	m.dropFrom[to][from] = down
}

func (m *Medium) send(from wire.NodeID, env *wire.Envelope) error {
	m.mu.Lock()
	type target struct {
		id   wire.NodeID
		recv ReceiveFunc
	}
	targets := make([]target, 0, len(m.nodes))
	for id, recv := range m.nodes {
		if id == from {
			continue
		}
		if blocked, ok := m.dropFrom[id]; ok && blocked[from] {
			continue
		}
		targets = append(targets, target{id, recv})
	}
	tagger := m.tagger
	m.mu.Unlock()

	for _, tgt := range targets {
		tgt.recv(from, env.Clone(), tagger(from, tgt.id))
	}
	return nil
}

type mediumFace struct {
	medium *Medium
	self   wire.NodeID
}

func (f *mediumFace) Send(env *wire.Envelope) error {
	return f.medium.send(f.self, env)
}
