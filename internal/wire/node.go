// Package wire implements the name codec and message types shared by every
// RNTP strategy component: the five message kinds, NDN-style name
// encode/decode, and the binary payload formats carried by CapsuleAck and
// InterestBroadcast.
package wire

import "fmt"

// NodeID identifies a node. NoNode is the sentinel meaning "no consumer" or
// "no next hop".
type NodeID uint32

// NoNode is the reserved sentinel for an absent consumer or next-hop node.
const NoNode NodeID = 0xFFFFFFFF

// Valid reports whether the ID is a real node identifier rather than the
// sentinel.
func (n NodeID) Valid() bool { return n != NoNode }

// String renders the node ID, substituting a readable token for the sentinel.
func (n NodeID) String() string {
	if n == NoNode {
		return "none"
	}
	return fmt.Sprintf("%d", uint32(n))
}

// Kind enumerates the five message kinds carried over the substrate.
type Kind int

const (
	KindInterest Kind = iota
	KindInterestBroadcast
	KindCapsule
	KindCapsuleAck
	KindEcho
)

// String names the message kind for logging.
func (k Kind) String() string {
	switch k {
	case KindInterest:
		return "Interest"
	case KindInterestBroadcast:
		return "InterestBroadcast"
	case KindCapsule:
		return "Capsule"
	case KindCapsuleAck:
		return "CapsuleAck"
	case KindEcho:
		return "Echo"
	default:
		return "Unknown"
	}
}

// PHYTag carries the out-of-band SNR/RSSI sample attached by the receive
// path (tag type 0x60000004 in the original NDN lp field table).
type PHYTag struct {
	SNR  float64
	RSSI float64
}
