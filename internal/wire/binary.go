package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrMalformedQualities is returned when a decoded InterestBroadcast payload
// does not satisfy the m = n-1 invariant between node IDs and hop qualities.
// Reported rather than left to panic on an out-of-range index downstream.
var ErrMalformedQualities = errors.New("wire: quality list length must be one less than node list length")

// ErrShortBuffer is returned when a binary payload ends before a declared
// length-prefixed field is fully read.
var ErrShortBuffer = errors.New("wire: payload too short")

// sizeFieldBytes is the on-wire width of every length prefix, fixed at 8
// bytes regardless of host size_t width, for determinism across platforms.
const sizeFieldBytes = 8

// EncodeCapsuleAckPayload writes "[count:size_t][dataIDs:u32[]]".
func EncodeCapsuleAckPayload(dataIDs []uint32) []byte {
	buf := make([]byte, sizeFieldBytes+4*len(dataIDs))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(dataIDs)))
	off := sizeFieldBytes
	for _, id := range dataIDs {
		binary.LittleEndian.PutUint32(buf[off:off+4], id)
		off += 4
	}
	return buf
}

// DecodeCapsuleAckPayload parses the CapsuleAck binary payload.
func DecodeCapsuleAckPayload(payload []byte) ([]uint32, error) {
	if len(payload) < sizeFieldBytes {
		return nil, ErrShortBuffer
	}
	count := binary.LittleEndian.Uint64(payload[0:8])
	need := sizeFieldBytes + int(count)*4
	if len(payload) < need {
		return nil, ErrShortBuffer
	}
	dataIDs := make([]uint32, count)
	off := sizeFieldBytes
	for i := range dataIDs {
		dataIDs[i] = binary.LittleEndian.Uint32(payload[off : off+4])
		off += 4
	}
	return dataIDs, nil
}

// EncodeCapsulePayload writes "[sigLen:size_t][signature][payload]": the
// keychain-produced signature tag ahead of the free-form application
// payload, which fills the remainder of the buffer with no length prefix
// of its own.
func EncodeCapsulePayload(signature, payload []byte) []byte {
	buf := make([]byte, sizeFieldBytes+len(signature)+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(len(signature)))
	off := sizeFieldBytes
	copy(buf[off:], signature)
	off += len(signature)
	copy(buf[off:], payload)
	return buf
}

// DecodeCapsulePayload parses the Capsule binary payload written by
// EncodeCapsulePayload.
func DecodeCapsulePayload(payload []byte) (signature, appPayload []byte, err error) {
	if len(payload) < sizeFieldBytes {
		return nil, nil, ErrShortBuffer
	}
	sigLen := int(binary.LittleEndian.Uint64(payload[0:8]))
	off := sizeFieldBytes
	if sigLen < 0 || len(payload) < off+sigLen {
		return nil, nil, ErrShortBuffer
	}
	signature = append([]byte(nil), payload[off:off+sigLen]...)
	off += sigLen
	appPayload = append([]byte(nil), payload[off:]...)
	return signature, appPayload, nil
}

// EncodeInterestBroadcastPayload writes
// "[n:size_t][nodeIDs:u32[n]][m:size_t][qualities:f64[m]]" with m = n-1,
// per §4.1.
func EncodeInterestBroadcastPayload(nodeIDs []NodeID, qualities []float64) ([]byte, error) {
	n := len(nodeIDs)
	m := len(qualities)
	if n > 0 && m != n-1 {
		return nil, ErrMalformedQualities
	}
	if n == 0 && m != 0 {
		return nil, ErrMalformedQualities
	}
	size := sizeFieldBytes + 4*n + sizeFieldBytes + 8*m
	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(n))
	off := sizeFieldBytes
	for _, id := range nodeIDs {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(id))
		off += 4
	}
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(m))
	off += sizeFieldBytes
	for _, q := range qualities {
		binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(q))
		off += 8
	}
	return buf, nil
}

// DecodeInterestBroadcastPayload parses the InterestBroadcast binary
// payload, returning ErrMalformedQualities if m != n-1.
func DecodeInterestBroadcastPayload(payload []byte) ([]NodeID, []float64, error) {
	if len(payload) < sizeFieldBytes {
		return nil, nil, ErrShortBuffer
	}
	n := int(binary.LittleEndian.Uint64(payload[0:8]))
	off := sizeFieldBytes
	if len(payload) < off+4*n+sizeFieldBytes {
		return nil, nil, ErrShortBuffer
	}
	nodeIDs := make([]NodeID, n)
	for i := range nodeIDs {
		nodeIDs[i] = NodeID(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
	}
	m := int(binary.LittleEndian.Uint64(payload[off : off+8]))
	off += sizeFieldBytes
	if (n > 0 && m != n-1) || (n == 0 && m != 0) {
		return nil, nil, ErrMalformedQualities
	}
	if len(payload) < off+8*m {
		return nil, nil, ErrShortBuffer
	}
	qualities := make([]float64, m)
	for i := range qualities {
		qualities[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off : off+8]))
		off += 8
	}
	if n == 0 {
		return nil, nil, nil
	}
	return nodeIDs, qualities, nil
}
