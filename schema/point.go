package schema

// PointKeySize is the POINT table's search key width: a 32-byte prevout
// hash. POINT carries no payload (spec.md 3): presence of the key alone
// asserts the hash is referenced by some input.
const (
	PointKeySize     = 32
	PointPayloadSize = 0
)
