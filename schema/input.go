package schema

import (
	"encoding/binary"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// InputPayload is the unindexed, variable-size INPUT record of spec.md 3:
// opaque (script, witness) bytes plus the point reference and sequence
// needed to materialize a chain.Input. Layout:
//
//	point_link(PointLinkWidth) point_index(4) sequence(4)
//	script_len(CompactSize) script
//	witness_len(CompactSize) witness
type InputPayload struct {
	PointLink  primitives.Link
	PointIndex uint32
	Sequence   uint32
	Script     []byte
	Witness    []byte
}

func EncodeInputPayload(p InputPayload) []byte {
	buf := make([]byte, 0, PointLinkWidth+4+4+len(p.Script)+len(p.Witness)+10)
	fixed := make([]byte, PointLinkWidth+4+4)
	primitives.PutLink(fixed, PointLinkWidth, p.PointLink)
	binary.LittleEndian.PutUint32(fixed[PointLinkWidth:], p.PointIndex)
	binary.LittleEndian.PutUint32(fixed[PointLinkWidth+4:], p.Sequence)
	buf = append(buf, fixed...)
	buf = AppendCompactSize(buf, uint64(len(p.Script)))
	buf = append(buf, p.Script...)
	buf = AppendCompactSize(buf, uint64(len(p.Witness)))
	buf = append(buf, p.Witness...)
	return buf
}

func DecodeInputPayload(b []byte) (InputPayload, error) {
	fixedLen := PointLinkWidth + 4 + 4
	if len(b) < fixedLen {
		return InputPayload{}, dberr.New(dberr.Integrity3, "schema.DecodeInputPayload")
	}
	var p InputPayload
	p.PointLink = primitives.GetLink(b[:PointLinkWidth], PointLinkWidth)
	p.PointIndex = binary.LittleEndian.Uint32(b[PointLinkWidth:])
	p.Sequence = binary.LittleEndian.Uint32(b[PointLinkWidth+4:])
	off := fixedLen

	scriptLen, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return InputPayload{}, err
	}
	off += n
	if uint64(off)+scriptLen > uint64(len(b)) {
		return InputPayload{}, dberr.New(dberr.Integrity3, "schema.DecodeInputPayload")
	}
	p.Script = append([]byte(nil), b[off:off+int(scriptLen)]...)
	off += int(scriptLen)

	witnessLen, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return InputPayload{}, err
	}
	off += n
	if uint64(off)+witnessLen > uint64(len(b)) {
		return InputPayload{}, dberr.New(dberr.Integrity3, "schema.DecodeInputPayload")
	}
	p.Witness = append([]byte(nil), b[off:off+int(witnessLen)]...)
	return p, nil
}

// InputPayloadSize returns the exact byte size of the encoded payload so
// callers can pre-allocate the slab of the right length.
func InputPayloadSize(p InputPayload) int64 {
	return int64(len(EncodeInputPayload(p)))
}
