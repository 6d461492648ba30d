package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// namespace is the fixed leading name component for every RNTP message.
const namespace = "rntp"

// operation tokens used as the third name component.
const (
	opInterest  = "interest"
	opIBcast    = "ibcast"
	opCapsule   = "capsule"
	opCapAck    = "capack"
	opEcho      = "echo"
)

// ErrUnknownMessageKind is returned when a name's operation token does not
// match any of the five known message kinds.
var ErrUnknownMessageKind = errors.New("wire: unknown message kind")

// ErrMalformedName is returned when a name does not have the expected
// number of ASCII decimal components for its operation.
var ErrMalformedName = errors.New("wire: malformed name")

// Encode renders an Envelope as an NDN name plus an optional binary blob.
// Interest and Echo carry no blob; InterestBroadcast, Capsule and
// CapsuleAck each carry a non-nil one.
func Encode(env *Envelope) (name string, payload []byte, err error) {
	if env == nil {
		return "", nil, errors.New("wire: nil envelope")
	}
	switch env.Kind {
	case KindInterest:
		return encodeInterest(env.Interest)
	case KindInterestBroadcast:
		return encodeInterestBroadcast(env.InterestBroadcast)
	case KindCapsule:
		return encodeCapsule(env.Capsule)
	case KindCapsuleAck:
		return encodeCapsuleAck(env.CapsuleAck)
	case KindEcho:
		return encodeEcho(env.Echo)
	default:
		return "", nil, ErrUnknownMessageKind
	}
}

// Decode parses an NDN name plus binary blob back into a typed Envelope.
// decode(encode(m)) == m for every message kind.
func Decode(name string, payload []byte) (*Envelope, error) {
	parts := strings.Split(strings.TrimPrefix(name, "/"), "/")
	if len(parts) < 3 || parts[0] != namespace {
		return nil, ErrMalformedName
	}
	prefix := parts[1]
	op := parts[2]
	fields := parts[3:]
	switch op {
	case opInterest:
		return decodeInterest(prefix, fields)
	case opIBcast:
		return decodeInterestBroadcast(prefix, fields, payload)
	case opCapsule:
		return decodeCapsule(prefix, fields, payload)
	case opCapAck:
		return decodeCapsuleAck(prefix, fields, payload)
	case opEcho:
		return decodeEcho(fields)
	default:
		return nil, ErrUnknownMessageKind
	}
}

func encodeInterest(m *Interest) (string, []byte, error) {
	if m == nil {
		return "", nil, errors.New("wire: nil Interest")
	}
	name := fmt.Sprintf("/%s/%s/%s/%d/%d", namespace, m.Prefix, opInterest, uint32(m.ConsumerNodeID), uint32(m.NextHopNodeID))
	return name, nil, nil
}

func decodeInterest(prefix string, fields []string) (*Envelope, error) {
	if len(fields) != 2 {
		return nil, ErrMalformedName
	}
	consumer, err := parseNodeID(fields[0])
	if err != nil {
		return nil, err
	}
	nextHop, err := parseNodeID(fields[1])
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindInterest, Interest: &Interest{Prefix: prefix, ConsumerNodeID: consumer, NextHopNodeID: nextHop}}, nil
}

func encodeInterestBroadcast(m *InterestBroadcast) (string, []byte, error) {
	if m == nil {
		return "", nil, errors.New("wire: nil InterestBroadcast")
	}
	endFlag := 0
	if m.End {
		endFlag = 1
	}
	visited := joinNodeIDs(m.VisitedNodeIDs)
	name := fmt.Sprintf("/%s/%s/%s/%d/%d/%d/%d/%d/%s",
		namespace, m.ProducerPrefix, opIBcast,
		m.HopCount, uint32(m.ConsumerNodeID), uint32(m.TransmittingHopNode), m.Nonce, endFlag, visited)
	payload, err := EncodeInterestBroadcastPayload(m.VisitedNodeIDs, m.ChannelQualities)
	if err != nil {
		return "", nil, err
	}
	return name, payload, nil
}

func decodeInterestBroadcast(prefix string, fields []string, payload []byte) (*Envelope, error) {
	// fields[5] repeats the visited list in the name; the payload copy is
	// the one decoded.
	if len(fields) != 6 {
		return nil, ErrMalformedName
	}
	hopCount, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return nil, ErrMalformedName
	}
	consumer, err := parseNodeID(fields[1])
	if err != nil {
		return nil, err
	}
	transHop, err := parseNodeID(fields[2])
	if err != nil {
		return nil, err
	}
	nonce, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, ErrMalformedName
	}
	end := fields[4] == "1"
	nodeIDs, qualities, err := DecodeInterestBroadcastPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindInterestBroadcast, InterestBroadcast: &InterestBroadcast{
		HopCount:            uint32(hopCount),
		ProducerPrefix:      prefix,
		ConsumerNodeID:      consumer,
		TransmittingHopNode: transHop,
		Nonce:               uint32(nonce),
		End:                 end,
		VisitedNodeIDs:      nodeIDs,
		ChannelQualities:    qualities,
	}}, nil
}

func encodeCapsule(m *Capsule) (string, []byte, error) {
	if m == nil {
		return "", nil, errors.New("wire: nil Capsule")
	}
	name := fmt.Sprintf("/%s/%s/%s/%d/%d/%d/%d/%d/%s",
		namespace, m.Prefix, opCapsule,
		m.DataID, m.Nonce, uint32(m.TransmittingHopNode), m.HopCountSoFar, uint32(m.ConsumerNodeID), joinNodeIDs(m.NodeIDs))
	return name, EncodeCapsulePayload(m.Signature, m.Payload), nil
}

func decodeCapsule(prefix string, fields []string, payload []byte) (*Envelope, error) {
	if len(fields) != 6 {
		return nil, ErrMalformedName
	}
	dataID, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return nil, ErrMalformedName
	}
	nonce, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, ErrMalformedName
	}
	transHop, err := parseNodeID(fields[2])
	if err != nil {
		return nil, err
	}
	hopCount, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, ErrMalformedName
	}
	consumer, err := parseNodeID(fields[4])
	if err != nil {
		return nil, err
	}
	nodeIDs, err := splitNodeIDs(fields[5])
	if err != nil {
		return nil, err
	}
	signature, appPayload, err := DecodeCapsulePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindCapsule, Capsule: &Capsule{
		Prefix:              prefix,
		DataID:              uint32(dataID),
		Nonce:               uint32(nonce),
		TransmittingHopNode: transHop,
		NodeIDs:             nodeIDs,
		HopCountSoFar:       uint32(hopCount),
		ConsumerNodeID:      consumer,
		Payload:             appPayload,
		Signature:           signature,
	}}, nil
}

func encodeCapsuleAck(m *CapsuleAck) (string, []byte, error) {
	if m == nil {
		return "", nil, errors.New("wire: nil CapsuleAck")
	}
	name := fmt.Sprintf("/%s/%s/%s/%d/%d/%d/%s",
		namespace, m.Prefix, opCapAck,
		uint32(m.DownstreamNodeID), uint32(m.TransmittingHopNode), uint32(m.ConsumerNodeID), joinNodeIDs(m.UpstreamNodeIDs))
	payload := EncodeCapsuleAckPayload(m.DataIDsReceived)
	return name, payload, nil
}

func decodeCapsuleAck(prefix string, fields []string, payload []byte) (*Envelope, error) {
	if len(fields) != 4 {
		return nil, ErrMalformedName
	}
	downstream, err := parseNodeID(fields[0])
	if err != nil {
		return nil, err
	}
	transHop, err := parseNodeID(fields[1])
	if err != nil {
		return nil, err
	}
	consumer, err := parseNodeID(fields[2])
	if err != nil {
		return nil, err
	}
	upstream, err := splitNodeIDs(fields[3])
	if err != nil {
		return nil, err
	}
	dataIDs, err := DecodeCapsuleAckPayload(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindCapsuleAck, CapsuleAck: &CapsuleAck{
		Prefix:              prefix,
		DataIDsReceived:     dataIDs,
		DownstreamNodeID:    downstream,
		UpstreamNodeIDs:     upstream,
		TransmittingHopNode: transHop,
		ConsumerNodeID:      consumer,
	}}, nil
}

// Echo carries no producer prefix, so its name uses "-" in the prefix slot
// to keep every message kind's name shaped as namespace/prefix/operation/…
func encodeEcho(m *Echo) (string, []byte, error) {
	if m == nil {
		return "", nil, errors.New("wire: nil Echo")
	}
	name := fmt.Sprintf("/%s/-/%s/%d/%d", namespace, opEcho, uint32(m.SourceNodeID), m.Sequence)
	return name, nil, nil
}

func decodeEcho(fields []string) (*Envelope, error) {
	if len(fields) != 2 {
		return nil, ErrMalformedName
	}
	source, err := parseNodeID(fields[0])
	if err != nil {
		return nil, err
	}
	seq, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, ErrMalformedName
	}
	return &Envelope{Kind: KindEcho, Echo: &Echo{SourceNodeID: source, Sequence: seq}}, nil
}

func joinNodeIDs(ids []NodeID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, "-")
}

func splitNodeIDs(s string) ([]NodeID, error) {
	if s == "-" || s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	ids := make([]NodeID, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, ErrMalformedName
		}
		ids[i] = NodeID(v)
	}
	return ids, nil
}

func parseNodeID(s string) (NodeID, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, ErrMalformedName
	}
	return NodeID(v), nil
}
