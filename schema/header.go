package schema

import (
	"encoding/binary"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// HeaderKeySize is the HEADER table's search key width: the block hash.
const HeaderKeySize = 32

// HeaderRecordSize is the fixed payload size of a HEADER record (spec.md
// 3): flags(4) height(4) mtp(4) parent_link(HeaderLinkWidth) version(4)
// time(4) bits(4) nonce(4) merkle_root(32).
const HeaderRecordSize = 4 + 4 + 4 + HeaderLinkWidth + 4 + 4 + 4 + 4 + 32

const headerMilestoneBit = 1 << 0

// HeaderPayload is the decoded form of a HEADER record's payload.
type HeaderPayload struct {
	Height         uint32
	MedianTimePast uint32
	Milestone      bool
	ParentLink     primitives.Link
	Version        uint32
	Time           uint32
	Bits           uint32
	Nonce          uint32
	MerkleRoot     [32]byte
}

func EncodeHeaderPayload(p HeaderPayload) []byte {
	buf := make([]byte, HeaderRecordSize)
	off := 0
	var flags uint32
	if p.Milestone {
		flags |= headerMilestoneBit
	}
	binary.LittleEndian.PutUint32(buf[off:], flags)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.Height)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.MedianTimePast)
	off += 4
	primitives.PutLink(buf[off:], HeaderLinkWidth, p.ParentLink)
	off += HeaderLinkWidth
	binary.LittleEndian.PutUint32(buf[off:], p.Version)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.Time)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.Bits)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.Nonce)
	off += 4
	copy(buf[off:], p.MerkleRoot[:])
	return buf
}

func DecodeHeaderPayload(b []byte) (HeaderPayload, error) {
	if len(b) != HeaderRecordSize {
		return HeaderPayload{}, dberr.New(dberr.Integrity1, "schema.DecodeHeaderPayload")
	}
	var p HeaderPayload
	off := 0
	flags := binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Milestone = flags&headerMilestoneBit != 0
	p.Height = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.MedianTimePast = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.ParentLink = primitives.GetLink(b[off:], HeaderLinkWidth)
	off += HeaderLinkWidth
	p.Version = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Time = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Bits = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Nonce = binary.LittleEndian.Uint32(b[off:])
	off += 4
	copy(p.MerkleRoot[:], b[off:off+32])
	return p, nil
}
