package wire

// Interest is the consumer-issued request for a producer prefix. It is
// the only kind not carried as NDN Data.
type Interest struct {
	Prefix         string
	ConsumerNodeID NodeID
	NextHopNodeID  NodeID
}

// Clone returns a deep copy so callers can mutate their copy safely.
func (i *Interest) Clone() *Interest {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// InterestBroadcast is the flood used for route discovery.
type InterestBroadcast struct {
	HopCount             uint32
	ProducerPrefix       string
	ConsumerNodeID       NodeID
	TransmittingHopNode  NodeID
	Nonce                uint32
	End                  bool
	VisitedNodeIDs       []NodeID
	ChannelQualities     []float64
}

// Clone deep-copies the broadcast, including its variable-length slices.
func (b *InterestBroadcast) Clone() *InterestBroadcast {
	if b == nil {
		return nil
	}
	clone := *b
	//1.- Copy both variable-length sub-lists so the clone shares no backing array.
	clone.VisitedNodeIDs = append([]NodeID(nil), b.VisitedNodeIDs...)
	clone.ChannelQualities = append([]float64(nil), b.ChannelQualities...)
	return &clone
}

// Capsule is the application payload forwarded hop by hop along a subpath.
// Signature is set once by the producer (over Prefix and Payload) and
// travels unchanged with the capsule; every later hop can re-verify it
// against the same shared keychain secret without re-signing.
type Capsule struct {
	Prefix              string
	DataID               uint32
	Nonce                uint32
	TransmittingHopNode  NodeID
	NodeIDs              []NodeID
	HopCountSoFar        uint32
	ConsumerNodeID       NodeID
	Payload              []byte
	Signature            []byte
}

// Clone deep-copies the capsule, including its node-ID path, payload and
// signature.
func (c *Capsule) Clone() *Capsule {
	if c == nil {
		return nil
	}
	clone := *c
	clone.NodeIDs = append([]NodeID(nil), c.NodeIDs...)
	clone.Payload = append([]byte(nil), c.Payload...)
	clone.Signature = append([]byte(nil), c.Signature...)
	return &clone
}

// CapsuleAck is the per-hop acknowledgement for one or more dataIDs.
type CapsuleAck struct {
	Prefix              string
	DataIDsReceived      []uint32
	DownstreamNodeID     NodeID
	UpstreamNodeIDs      []NodeID
	TransmittingHopNode  NodeID
	ConsumerNodeID       NodeID
}

// Clone deep-copies the ack, including both variable-length lists.
func (a *CapsuleAck) Clone() *CapsuleAck {
	if a == nil {
		return nil
	}
	clone := *a
	clone.DataIDsReceived = append([]uint32(nil), a.DataIDsReceived...)
	clone.UpstreamNodeIDs = append([]NodeID(nil), a.UpstreamNodeIDs...)
	return &clone
}

// Echo is the one-hop liveness beacon.
type Echo struct {
	SourceNodeID NodeID
	Sequence     uint64
}

// Clone returns a deep copy of the echo (trivial, no slices).
func (e *Echo) Clone() *Echo {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Envelope is the typed union of every message kind a Face can deliver,
// mirroring how a single dispatch point classifies an inbound event by
// kind before routing it to the matching handler.
type Envelope struct {
	Kind              Kind
	Tag               PHYTag
	Interest          *Interest
	InterestBroadcast *InterestBroadcast
	Capsule           *Capsule
	CapsuleAck        *CapsuleAck
	Echo              *Echo
}

// Clone duplicates the envelope together with whichever payload it carries.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	clone := &Envelope{Kind: e.Kind, Tag: e.Tag}
	clone.Interest = e.Interest.Clone()
	clone.InterestBroadcast = e.InterestBroadcast.Clone()
	clone.Capsule = e.Capsule.Clone()
	clone.CapsuleAck = e.CapsuleAck.Clone()
	clone.Echo = e.Echo.Clone()
	return clone
}
