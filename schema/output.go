package schema

import (
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// OutputPayload is the unindexed, variable-size OUTPUT record of spec.md
// 3: (parent_tx_link, value_varint, script_varint). Layout:
//
//	parent_tx_link(TxLinkWidth) value(CompactSize) script_len(CompactSize) script
type OutputPayload struct {
	ParentTxLink primitives.Link
	Value        uint64
	Script       []byte
}

func EncodeOutputPayload(p OutputPayload) []byte {
	buf := make([]byte, TxLinkWidth)
	primitives.PutLink(buf, TxLinkWidth, p.ParentTxLink)
	buf = AppendCompactSize(buf, p.Value)
	buf = AppendCompactSize(buf, uint64(len(p.Script)))
	buf = append(buf, p.Script...)
	return buf
}

func DecodeOutputPayload(b []byte) (OutputPayload, error) {
	if len(b) < TxLinkWidth {
		return OutputPayload{}, dberr.New(dberr.Integrity4, "schema.DecodeOutputPayload")
	}
	var p OutputPayload
	p.ParentTxLink = primitives.GetLink(b[:TxLinkWidth], TxLinkWidth)
	off := TxLinkWidth

	value, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return OutputPayload{}, err
	}
	p.Value = value
	off += n

	scriptLen, n, err := DecodeCompactSize(b[off:])
	if err != nil {
		return OutputPayload{}, err
	}
	off += n
	if uint64(off)+scriptLen > uint64(len(b)) {
		return OutputPayload{}, dberr.New(dberr.Integrity4, "schema.DecodeOutputPayload")
	}
	p.Script = append([]byte(nil), b[off:off+int(scriptLen)]...)
	return p, nil
}
