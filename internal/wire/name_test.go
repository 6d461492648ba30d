package wire

import (
	"reflect"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		env  *Envelope
	}{
		{
			name: "interest",
			env: &Envelope{Kind: KindInterest, Interest: &Interest{
				Prefix: "producerA", ConsumerNodeID: 7, NextHopNodeID: NoNode,
			}},
		},
		{
			name: "interest broadcast",
			env: &Envelope{Kind: KindInterestBroadcast, InterestBroadcast: &InterestBroadcast{
				HopCount: 2, ProducerPrefix: "producerA", ConsumerNodeID: 0, TransmittingHopNode: 3,
				Nonce: 0xDEADBEEF, End: false,
				VisitedNodeIDs:   []NodeID{2, 1, 0},
				ChannelQualities: []float64{10.5, -3.25},
			}},
		},
		{
			name: "interest broadcast empty",
			env: &Envelope{Kind: KindInterestBroadcast, InterestBroadcast: &InterestBroadcast{
				HopCount: 0, ProducerPrefix: "producerA", ConsumerNodeID: NoNode, TransmittingHopNode: 0,
				Nonce: 1, End: true,
			}},
		},
		{
			name: "capsule",
			env: &Envelope{Kind: KindCapsule, Capsule: &Capsule{
				Prefix: "producerA", DataID: 42, Nonce: 9, TransmittingHopNode: 1,
				NodeIDs: []NodeID{2, 1, 0}, HopCountSoFar: 2, ConsumerNodeID: 0,
				Payload: nil,
			}},
		},
		{
			name: "capsule with payload and signature",
			env: &Envelope{Kind: KindCapsule, Capsule: &Capsule{
				Prefix: "producerA", DataID: 42, Nonce: 9, TransmittingHopNode: 1,
				NodeIDs: []NodeID{2, 1, 0}, HopCountSoFar: 2, ConsumerNodeID: 0,
				Payload:   []byte("hello sensor mesh"),
				Signature: []byte{0xDE, 0xAD, 0xBE, 0xEF},
			}},
		},
		{
			name: "capsule ack",
			env: &Envelope{Kind: KindCapsuleAck, CapsuleAck: &CapsuleAck{
				Prefix: "producerA", DataIDsReceived: []uint32{42, 43},
				DownstreamNodeID: 2, UpstreamNodeIDs: []NodeID{1, 0},
				TransmittingHopNode: 1, ConsumerNodeID: 0,
			}},
		},
		{
			name: "echo",
			env:  &Envelope{Kind: KindEcho, Echo: &Echo{SourceNodeID: 5, Sequence: 99}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name, payload, err := Encode(tc.env)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(name, payload)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			want := tc.env.Clone()
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, want)
			}
		})
	}
}

func TestDecodeInterestBroadcastMalformedQualities(t *testing.T) {
	payload, _ := EncodeInterestBroadcastPayload([]NodeID{2, 1, 0}, []float64{1, 2})
	// Corrupt the declared quality count (stored at offset 20: 8 bytes for n,
	// then 4*3 bytes of node IDs) so m != n-1.
	payload[20] = 3
	if _, _, err := DecodeInterestBroadcastPayload(payload); err != ErrMalformedQualities {
		t.Fatalf("expected ErrMalformedQualities, got %v", err)
	}
}

func TestDecodeCapsulePayloadShortBuffer(t *testing.T) {
	if _, _, err := DecodeCapsulePayload([]byte{1, 2, 3}); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	payload := EncodeCapsulePayload([]byte{0xAA, 0xBB}, []byte("x"))
	if _, _, err := DecodeCapsulePayload(payload[:sizeFieldBytes+1]); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer for truncated signature, got %v", err)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	if _, err := Decode("/rntp/producerA/bogus/1", nil); err != ErrUnknownMessageKind {
		t.Fatalf("expected ErrUnknownMessageKind, got %v", err)
	}
}
