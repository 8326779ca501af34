package schema

import (
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
)

// StrongTxKeySize is the STRONG_TX hashmap's key: a tx Link (spec.md 3).
const StrongTxKeySize = TxLinkWidth

// StrongTxPayloadSize is {header_link, sign-bit}.
const StrongTxPayloadSize = HeaderLinkWidth + 1

type StrongTxPayload struct {
	HeaderLink primitives.Link
	Positive   bool
}

func EncodeStrongTxPayload(p StrongTxPayload) []byte {
	buf := make([]byte, StrongTxPayloadSize)
	primitives.PutLink(buf, HeaderLinkWidth, p.HeaderLink)
	if p.Positive {
		buf[HeaderLinkWidth] = 1
	}
	return buf
}

func DecodeStrongTxPayload(b []byte) (StrongTxPayload, error) {
	if len(b) != StrongTxPayloadSize {
		return StrongTxPayload{}, dberr.New(dberr.Integrity6, "schema.DecodeStrongTxPayload")
	}
	return StrongTxPayload{
		HeaderLink: primitives.GetLink(b[:HeaderLinkWidth], HeaderLinkWidth),
		Positive:   b[HeaderLinkWidth] == 1,
	}, nil
}
