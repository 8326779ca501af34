package schema

import (
	"encoding/binary"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// PrevoutKeySize/PrevoutPayloadSize mirror TXS: a header_link key
// pointing at a variable-size slab (spec.md 3, PREVOUT cache).
const (
	PrevoutKeySize     = HeaderLinkWidth
	PrevoutPayloadSize = PrevoutSlabLinkWidth
)

// PrevoutEntry is one input's pre-resolved prevout metadata.
type PrevoutEntry struct {
	OutputTxLink primitives.Link
	Coinbase     bool
	Sequence     uint32
}

// PrevoutSlab is the decoded per-header PREVOUT cache: one entry per
// input of every non-coinbase tx, in tx/input order, plus the set of
// spender tx links observed conflicting over a duplicated point.
type PrevoutSlab struct {
	Entries     []PrevoutEntry
	Conflicting []primitives.Link
}

const prevoutEntrySize = TxLinkWidth + 1 + 4

func EncodePrevoutSlab(s PrevoutSlab) []byte {
	size := 4 + len(s.Entries)*prevoutEntrySize + 4 + len(s.Conflicting)*TxLinkWidth
	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s.Entries)))
	off += 4
	for _, e := range s.Entries {
		primitives.PutLink(buf[off:], TxLinkWidth, e.OutputTxLink)
		off += TxLinkWidth
		if e.Coinbase {
			buf[off] = 1
		}
		off++
		binary.LittleEndian.PutUint32(buf[off:], e.Sequence)
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s.Conflicting)))
	off += 4
	for _, l := range s.Conflicting {
		primitives.PutLink(buf[off:], TxLinkWidth, l)
		off += TxLinkWidth
	}
	return buf
}

func DecodePrevoutSlab(b []byte) (PrevoutSlab, error) {
	if len(b) < 4 {
		return PrevoutSlab{}, dberr.New(dberr.Integrity7, "schema.DecodePrevoutSlab")
	}
	off := 0
	entryCount := binary.LittleEndian.Uint32(b[off:])
	off += 4
	var s PrevoutSlab
	s.Entries = make([]PrevoutEntry, entryCount)
	for i := range s.Entries {
		if off+prevoutEntrySize > len(b) {
			return PrevoutSlab{}, dberr.New(dberr.Integrity7, "schema.DecodePrevoutSlab")
		}
		s.Entries[i].OutputTxLink = primitives.GetLink(b[off:], TxLinkWidth)
		off += TxLinkWidth
		s.Entries[i].Coinbase = b[off] == 1
		off++
		s.Entries[i].Sequence = binary.LittleEndian.Uint32(b[off:])
		off += 4
	}
	if off+4 > len(b) {
		return PrevoutSlab{}, dberr.New(dberr.Integrity7, "schema.DecodePrevoutSlab")
	}
	conflictCount := binary.LittleEndian.Uint32(b[off:])
	off += 4
	s.Conflicting = make([]primitives.Link, conflictCount)
	for i := range s.Conflicting {
		if off+TxLinkWidth > len(b) {
			return PrevoutSlab{}, dberr.New(dberr.Integrity7, "schema.DecodePrevoutSlab")
		}
		s.Conflicting[i] = primitives.GetLink(b[off:], TxLinkWidth)
		off += TxLinkWidth
	}
	return s, nil
}
