package schema

import (
	"encoding/binary"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// SpendFingerprintSize is the compact key width of the SPEND multimap
// (spec.md 3, glossary "Fingerprint"): a 4-byte prevout-hash stub plus a
// 3-byte point index, avoiding a full 32-byte hash in the hot chain key.
const SpendFingerprintSize = 4 + 3

// SpendPayloadSize is {parent_tx_link, sequence, input_link}.
const SpendPayloadSize = TxLinkWidth + 4 + InputLinkWidth

// SpendFingerprint computes the compact key for a prevout point.
func SpendFingerprint(pointHash [32]byte, pointIndex uint32) []byte {
	out := make([]byte, SpendFingerprintSize)
	copy(out[:4], pointHash[:4])
	out[4] = byte(pointIndex)
	out[5] = byte(pointIndex >> 8)
	out[6] = byte(pointIndex >> 16)
	return out
}

type SpendPayload struct {
	ParentTxLink primitives.Link
	Sequence     uint32
	InputLink    primitives.Link
}

func EncodeSpendPayload(p SpendPayload) []byte {
	buf := make([]byte, SpendPayloadSize)
	off := 0
	primitives.PutLink(buf[off:], TxLinkWidth, p.ParentTxLink)
	off += TxLinkWidth
	binary.LittleEndian.PutUint32(buf[off:], p.Sequence)
	off += 4
	primitives.PutLink(buf[off:], InputLinkWidth, p.InputLink)
	return buf
}

func DecodeSpendPayload(b []byte) (SpendPayload, error) {
	if len(b) != SpendPayloadSize {
		return SpendPayload{}, dberr.New(dberr.Integrity5, "schema.DecodeSpendPayload")
	}
	var p SpendPayload
	off := 0
	p.ParentTxLink = primitives.GetLink(b[off:], TxLinkWidth)
	off += TxLinkWidth
	p.Sequence = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.InputLink = primitives.GetLink(b[off:], InputLinkWidth)
	return p, nil
}
