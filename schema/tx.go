package schema

import (
	"encoding/binary"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// TxKeySize is the TX table's search key width: the transaction hash.
const TxKeySize = 32

// TxRecordSize is the fixed payload size of a TX record (spec.md 3):
// flags(4, bit0=coinbase) light_size(4) heavy_size(4) version(4)
// locktime(4) inputs_count(4) outputs_count(4) first_input_link(4)
// first_output_link(4). The first_*_link fields index into the PUTS
// arrays (store.Store.PutsIns/PutsOuts), not directly into INPUT/OUTPUT, so
// they are CandidateLinkWidth-equivalent small surrogate indices.
const TxRecordSize = 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4

const txCoinbaseBit = 1 << 0

type TxPayload struct {
	Coinbase        bool
	LightSize       uint32
	HeavySize       uint32
	Version         uint32
	Locktime        uint32
	InputsCount     uint32
	OutputsCount    uint32
	FirstInputLink  primitives.Link
	FirstOutputLink primitives.Link
}

func EncodeTxPayload(p TxPayload) []byte {
	buf := make([]byte, TxRecordSize)
	off := 0
	var flags uint32
	if p.Coinbase {
		flags |= txCoinbaseBit
	}
	binary.LittleEndian.PutUint32(buf[off:], flags)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.LightSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.HeavySize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.Version)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.Locktime)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.InputsCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], p.OutputsCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(p.FirstInputLink))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(p.FirstOutputLink))
	return buf
}

func DecodeTxPayload(b []byte) (TxPayload, error) {
	if len(b) != TxRecordSize {
		return TxPayload{}, dberr.New(dberr.Integrity2, "schema.DecodeTxPayload")
	}
	var p TxPayload
	off := 0
	flags := binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Coinbase = flags&txCoinbaseBit != 0
	p.LightSize = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.HeavySize = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Version = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.Locktime = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.InputsCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.OutputsCount = binary.LittleEndian.Uint32(b[off:])
	off += 4
	p.FirstInputLink = primitives.Link(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	p.FirstOutputLink = primitives.Link(binary.LittleEndian.Uint32(b[off:]))
	return p, nil
}
