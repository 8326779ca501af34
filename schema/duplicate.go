package schema

// DUPLICATE is a presence set of prevout points seen more than once
// across all inputs (spec.md 3): key is the full point (hash + index),
// no payload. Its domain is expected to stay small.
const (
	DuplicateKeySize     = 32 + 4
	DuplicatePayloadSize = 0
)

func EncodeDuplicateKey(hash [32]byte, index uint32) []byte {
	buf := make([]byte, DuplicateKeySize)
	copy(buf[:32], hash[:])
	buf[32] = byte(index)
	buf[33] = byte(index >> 8)
	buf[34] = byte(index >> 16)
	buf[35] = byte(index >> 24)
	return buf
}
