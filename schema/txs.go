package schema

import (
	"encoding/binary"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// TxsKeySize is the TXS hashmap's key width: the owning header's Link,
// stored as its little-endian bytes (spec.md 3, "hashmap keyed by
// header_link").
const TxsKeySize = HeaderLinkWidth

// TxsPayloadSize is the payload of the TXS index record: a Link to the
// variable-size slab holding the tx list.
const TxsPayloadSize = TxsSlabLinkWidth

func HeaderLinkKey(l primitives.Link) []byte {
	buf := make([]byte, HeaderLinkWidth)
	primitives.PutLink(buf, HeaderLinkWidth, l)
	return buf
}

func TxLinkKey(l primitives.Link) []byte {
	buf := make([]byte, TxLinkWidth)
	primitives.PutLink(buf, TxLinkWidth, l)
	return buf
}

// TxsSlab is the decoded form of a TXS slab: {wire_size, tx_count,
// tx_link[tx_count]}.
type TxsSlab struct {
	WireSize uint32
	TxLinks  []primitives.Link
}

func EncodeTxsSlab(s TxsSlab) []byte {
	buf := make([]byte, 4+4+len(s.TxLinks)*TxLinkWidth)
	binary.LittleEndian.PutUint32(buf[0:4], s.WireSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(s.TxLinks)))
	off := 8
	for _, l := range s.TxLinks {
		primitives.PutLink(buf[off:], TxLinkWidth, l)
		off += TxLinkWidth
	}
	return buf
}

func DecodeTxsSlab(b []byte) (TxsSlab, error) {
	if len(b) < 8 {
		return TxsSlab{}, dberr.New(dberr.Integrity, "schema.DecodeTxsSlab")
	}
	var s TxsSlab
	s.WireSize = binary.LittleEndian.Uint32(b[0:4])
	count := binary.LittleEndian.Uint32(b[4:8])
	need := 8 + int(count)*TxLinkWidth
	if len(b) < need {
		return TxsSlab{}, dberr.New(dberr.Integrity, "schema.DecodeTxsSlab")
	}
	s.TxLinks = make([]primitives.Link, count)
	off := 8
	for i := range s.TxLinks {
		s.TxLinks[i] = primitives.GetLink(b[off:], TxLinkWidth)
		off += TxLinkWidth
	}
	return s, nil
}
