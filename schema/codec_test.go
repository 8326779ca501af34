package schema

import (
	"bytes"
	"testing"

	"rubin.dev/archive/internal/primitives"
)

func TestCompactSizeRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000} {
		buf := AppendCompactSize(nil, n)
		got, consumed, err := DecodeCompactSize(buf)
		if err != nil {
			t.Fatalf("n=%d: DecodeCompactSize: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d: decoded = %d", n, got)
		}
		if consumed != len(buf) {
			t.Fatalf("n=%d: consumed = %d, want %d", n, consumed, len(buf))
		}
	}
}

func TestCompactSizeTruncated(t *testing.T) {
	buf := AppendCompactSize(nil, 0x10000)
	if _, _, err := DecodeCompactSize(buf[:2]); err == nil {
		t.Fatalf("DecodeCompactSize on truncated buffer: want error")
	}
}

func TestHeaderPayloadRoundTrip(t *testing.T) {
	want := HeaderPayload{
		Height:         12345,
		MedianTimePast: 999,
		Milestone:      true,
		ParentLink:     primitives.Link(42),
		Version:        1,
		Time:           1700000000,
		Bits:           0x1d00ffff,
		Nonce:          7,
	}
	copy(want.MerkleRoot[:], bytes.Repeat([]byte{0xab}, 32))

	got, err := DecodeHeaderPayload(EncodeHeaderPayload(want))
	if err != nil {
		t.Fatalf("DecodeHeaderPayload: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestHeaderPayloadWrongSize(t *testing.T) {
	if _, err := DecodeHeaderPayload(make([]byte, HeaderRecordSize-1)); err == nil {
		t.Fatalf("DecodeHeaderPayload on short buffer: want error")
	}
}

func TestInputPayloadRoundTrip(t *testing.T) {
	want := InputPayload{
		PointLink:  primitives.Link(7),
		PointIndex: 3,
		Sequence:   0xfffffffe,
		Script:     []byte{0x51, 0x52},
		Witness:    bytes.Repeat([]byte{0x01}, 300), // exercises the multi-byte CompactSize path
	}
	got, err := DecodeInputPayload(EncodeInputPayload(want))
	if err != nil {
		t.Fatalf("DecodeInputPayload: %v", err)
	}
	if got.PointLink != want.PointLink || got.PointIndex != want.PointIndex || got.Sequence != want.Sequence {
		t.Fatalf("round trip fixed fields = %+v, want %+v", got, want)
	}
	if !bytes.Equal(got.Script, want.Script) || !bytes.Equal(got.Witness, want.Witness) {
		t.Fatalf("round trip variable fields mismatch")
	}
}

func TestInputPayloadEmptyScriptAndWitness(t *testing.T) {
	want := InputPayload{PointLink: 1, PointIndex: 0, Sequence: 0}
	got, err := DecodeInputPayload(EncodeInputPayload(want))
	if err != nil {
		t.Fatalf("DecodeInputPayload: %v", err)
	}
	if len(got.Script) != 0 || len(got.Witness) != 0 {
		t.Fatalf("expected empty script/witness, got %+v", got)
	}
}

func TestOutputPayloadRoundTrip(t *testing.T) {
	want := OutputPayload{ParentTxLink: primitives.Link(99), Value: 5000000000, Script: []byte{0x76, 0xa9}}
	got, err := DecodeOutputPayload(EncodeOutputPayload(want))
	if err != nil {
		t.Fatalf("DecodeOutputPayload: %v", err)
	}
	if got.ParentTxLink != want.ParentTxLink || got.Value != want.Value || !bytes.Equal(got.Script, want.Script) {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}
