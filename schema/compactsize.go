package schema

import (
	"encoding/binary"

	"rubin.dev/archive/dberr"
)

// AppendCompactSize appends n to buf as a Bitcoin-style CompactSize
// varint, grounded on the teacher's consensus.EncodeCompactSize, used
// here purely as an engineering length prefix for slab bodies (script,
// witness, script-pubkey) rather than as a consensus wire format.
func AppendCompactSize(buf []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(buf, byte(n))
	case n <= 0xffff:
		tmp := make([]byte, 3)
		tmp[0] = 0xfd
		binary.LittleEndian.PutUint16(tmp[1:], uint16(n))
		return append(buf, tmp...)
	case n <= 0xffffffff:
		tmp := make([]byte, 5)
		tmp[0] = 0xfe
		binary.LittleEndian.PutUint32(tmp[1:], uint32(n))
		return append(buf, tmp...)
	default:
		tmp := make([]byte, 9)
		tmp[0] = 0xff
		binary.LittleEndian.PutUint64(tmp[1:], n)
		return append(buf, tmp...)
	}
}

// DecodeCompactSize decodes one CompactSize value from the front of buf,
// returning the value and the number of bytes consumed.
func DecodeCompactSize(buf []byte) (uint64, int, error) {
	if len(buf) < 1 {
		return 0, 0, dberr.New(dberr.Integrity, "schema.DecodeCompactSize")
	}
	tag := buf[0]
	switch {
	case tag < 0xfd:
		return uint64(tag), 1, nil
	case tag == 0xfd:
		if len(buf) < 3 {
			return 0, 0, dberr.New(dberr.Integrity, "schema.DecodeCompactSize")
		}
		return uint64(binary.LittleEndian.Uint16(buf[1:3])), 3, nil
	case tag == 0xfe:
		if len(buf) < 5 {
			return 0, 0, dberr.New(dberr.Integrity, "schema.DecodeCompactSize")
		}
		return uint64(binary.LittleEndian.Uint32(buf[1:5])), 5, nil
	default:
		if len(buf) < 9 {
			return 0, 0, dberr.New(dberr.Integrity, "schema.DecodeCompactSize")
		}
		return binary.LittleEndian.Uint64(buf[1:9]), 9, nil
	}
}
