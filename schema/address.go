package schema

import "rubin.dev/archive/internal/primitives"

// ADDRESS is optional (gated by Config.AddressEnabled, spec.md 6): script
// hash -> output Link.
const (
	AddressKeySize     = 32
	AddressPayloadSize = AddressLinkWidth
)

func EncodeAddressPayload(outputLink primitives.Link) []byte {
	buf := make([]byte, AddressPayloadSize)
	primitives.PutLink(buf, AddressLinkWidth, outputLink)
	return buf
}

func DecodeAddressPayload(b []byte) primitives.Link {
	return primitives.GetLink(b, AddressLinkWidth)
}
