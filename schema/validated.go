package schema

import (
	"encoding/binary"

	"rubin.dev/archive/chain"
	"rubin.dev/archive/dberr"
)

// ValidatedBkKeySize/PayloadSize: header_link -> {block_state, fees}.
const (
	ValidatedBkKeySize     = HeaderLinkWidth
	ValidatedBkPayloadSize = 1 + 8
)

type ValidatedBkPayload struct {
	State chain.BlockState
	Fees  uint64
}

func EncodeValidatedBkPayload(p ValidatedBkPayload) []byte {
	buf := make([]byte, ValidatedBkPayloadSize)
	buf[0] = byte(p.State)
	binary.LittleEndian.PutUint64(buf[1:], p.Fees)
	return buf
}

func DecodeValidatedBkPayload(b []byte) (ValidatedBkPayload, error) {
	if len(b) != ValidatedBkPayloadSize {
		return ValidatedBkPayload{}, dberr.New(dberr.Integrity, "schema.DecodeValidatedBkPayload")
	}
	return ValidatedBkPayload{State: chain.BlockState(b[0]), Fees: binary.LittleEndian.Uint64(b[1:])}, nil
}

// ValidatedTxKeySize/PayloadSize: tx_link -> {context, state, fee, sigops}.
const (
	ValidatedTxKeySize     = TxLinkWidth
	ValidatedTxPayloadSize = 4 + 1 + 8 + 4
)

type ValidatedTxPayload struct {
	Context uint32
	State   chain.BlockState
	Fee     uint64
	Sigops  uint32
}

func EncodeValidatedTxPayload(p ValidatedTxPayload) []byte {
	buf := make([]byte, ValidatedTxPayloadSize)
	binary.LittleEndian.PutUint32(buf[0:], p.Context)
	buf[4] = byte(p.State)
	binary.LittleEndian.PutUint64(buf[5:], p.Fee)
	binary.LittleEndian.PutUint32(buf[13:], p.Sigops)
	return buf
}

func DecodeValidatedTxPayload(b []byte) (ValidatedTxPayload, error) {
	if len(b) != ValidatedTxPayloadSize {
		return ValidatedTxPayload{}, dberr.New(dberr.Integrity, "schema.DecodeValidatedTxPayload")
	}
	return ValidatedTxPayload{
		Context: binary.LittleEndian.Uint32(b[0:]),
		State:   chain.BlockState(b[4]),
		Fee:     binary.LittleEndian.Uint64(b[5:]),
		Sigops:  binary.LittleEndian.Uint32(b[13:]),
	}, nil
}
