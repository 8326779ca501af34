// Package chain holds the already-decoded chain object types the storage
// engine consumes and produces. Parsing these from wire bytes, and
// evaluating scripts/signatures, are both out of this engine's scope
// (spec.md 1): an Input's Script and Witness and an Output's Script are
// opaque blobs the engine archives but never interprets.
package chain

import "encoding/hex"

// Hash is a 32-byte natural key (block hash or tx hash). The engine never
// computes these; callers supply already-hashed values.
type Hash [32]byte

var NullHash Hash

func (h Hash) IsNull() bool { return h == NullHash }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Point identifies a previous output: (tx hash, output index). A null
// point (coinbase prevout) has a null TxHash and Index == ^uint32(0).
type Point struct {
	TxHash Hash
	Index  uint32
}

// NullPoint is the single canonical null-prevout value every assembler
// shares by value, echoing spec.md 9's note on the source's
// shared_ptr<const T> null-point sharing optimization.
var NullPoint = Point{TxHash: NullHash, Index: ^uint32(0)}

func (p Point) IsNull() bool { return p == NullPoint }

// Header is a decoded block header plus application-level fields. The
// archive stores Height, MedianTimePast and the Milestone marker with it;
// Flags is not persisted (the HEADER record's flags word carries only the
// milestone bit), so headers read back from the archive have Flags zero.
type Header struct {
	Flags           uint32
	Height          uint32
	MedianTimePast  uint32
	Milestone       bool
	PreviousHash    Hash
	Version         uint32
	Time            uint32
	Bits            uint32
	Nonce           uint32
	MerkleRoot      Hash
}

// Input is one transaction input. Script and Witness are opaque bytes:
// the engine stores and returns them without interpretation.
type Input struct {
	Point    Point
	Script   []byte
	Witness  []byte
	Sequence uint32
}

// Output is one transaction output.
type Output struct {
	Value  uint64
	Script []byte
}

// Tx is a decoded transaction. LightSize/HeavySize are the caller's
// pre-computed weight figures (base size vs. total size including
// witness data); the engine persists them for wire_size fields in TXS
// without recomputing them.
type Tx struct {
	Hash        Hash
	Coinbase    bool
	LightSize   uint32
	HeavySize   uint32
	Version     uint32
	Locktime    uint32
	Inputs      []Input
	Outputs     []Output
}

// Block is a header plus its transactions, in order (coinbase first).
type Block struct {
	Header       Header
	Transactions []Tx
}

// BlockState is the outcome of confirmability evaluation, cached in the
// VALIDATED_BK table.
type BlockState uint8

const (
	BlockStateUnknown       BlockState = 0
	BlockStateValid         BlockState = 1
	BlockStateConfirmable   BlockState = 2
	BlockStateUnconfirmable BlockState = 3
)

// Context carries the per-block, per-chain settings that confirmability
// evaluation needs but that the engine does not itself derive (spec.md
// 4.7.4): which consensus rules are active, and the coinbase maturity
// constant in effect.
type Context struct {
	Height             uint32
	MedianTimePast     uint32
	Bip30Rule          bool
	Bip68Rule          bool
	CoinbaseMaturity   uint32
}
