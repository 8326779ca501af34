package query

import (
	"testing"

	"rubin.dev/archive/chain"
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/schema"
	"rubin.dev/archive/store"
)

func newTestQuery(t *testing.T) *Query {
	t.Helper()
	root := t.TempDir()
	s, err := store.Create(root, schema.DefaultConfig())
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func hashOf(b byte) chain.Hash {
	var h chain.Hash
	h[0] = b
	return h
}

func TestSetHeaderGenesisAndChild(t *testing.T) {
	q := newTestQuery(t)

	genesisHash := hashOf(1)
	genesis := chain.Header{Height: 0, PreviousHash: chain.NullHash, Bits: 0x1d00ffff}
	link0, err := q.SetHeader(genesisHash, genesis)
	if err != nil {
		t.Fatalf("SetHeader(genesis): %v", err)
	}

	childHash := hashOf(2)
	child := chain.Header{Height: 1, PreviousHash: genesisHash, Bits: 0x1d00ffff}
	link1, err := q.SetHeader(childHash, child)
	if err != nil {
		t.Fatalf("SetHeader(child): %v", err)
	}

	parent, err := q.ToParent(link1)
	if err != nil {
		t.Fatalf("ToParent: %v", err)
	}
	if parent != link0 {
		t.Fatalf("ToParent(child) = %d, want %d", parent, link0)
	}

	found, err := q.ToHeader(genesisHash)
	if err != nil {
		t.Fatalf("ToHeader: %v", err)
	}
	if found != link0 {
		t.Fatalf("ToHeader(genesisHash) = %d, want %d", found, link0)
	}
}

func TestSetHeaderUnknownParentIsOrphan(t *testing.T) {
	q := newTestQuery(t)
	h := chain.Header{Height: 1, PreviousHash: hashOf(0xaa)}
	if _, err := q.SetHeader(hashOf(2), h); !dberr.Is(err, dberr.OrphanBlock) {
		t.Fatalf("SetHeader with unknown parent: err = %v, want orphan_block", err)
	}
}

func coinbaseTx(hash chain.Hash, value uint64) chain.Tx {
	return chain.Tx{
		Hash:     hash,
		Coinbase: true,
		Inputs:   []chain.Input{{Point: chain.NullPoint, Sequence: 0xffffffff}},
		Outputs:  []chain.Output{{Value: value, Script: []byte{0x51}}},
	}
}

func TestSetTxAndGetTransaction(t *testing.T) {
	q := newTestQuery(t)

	hash := hashOf(3)
	tx := coinbaseTx(hash, 5_000_000_000)
	link, err := q.SetTx(hash, tx, SetTxOptions{})
	if err != nil {
		t.Fatalf("SetTx: %v", err)
	}

	got, err := q.GetTransaction(link)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Hash != hash || !got.Coinbase {
		t.Fatalf("got = %+v, want hash %v coinbase", got, hash)
	}
	if len(got.Inputs) != 1 || !got.Inputs[0].Point.IsNull() {
		t.Fatalf("got.Inputs = %+v, want one null-point input", got.Inputs)
	}
	if len(got.Outputs) != 1 || got.Outputs[0].Value != 5_000_000_000 {
		t.Fatalf("got.Outputs = %+v", got.Outputs)
	}
}

func TestSetBlockTxsAndGetBlock(t *testing.T) {
	q := newTestQuery(t)

	genesisHash := hashOf(1)
	genesis := chain.Header{Height: 0, PreviousHash: chain.NullHash, MerkleRoot: hashOf(9)}
	link0, err := q.SetHeader(genesisHash, genesis)
	if err != nil {
		t.Fatalf("SetHeader: %v", err)
	}

	cbHash := hashOf(4)
	block := chain.Block{Header: genesis, Transactions: []chain.Tx{coinbaseTx(cbHash, 1_000_000)}}
	if err := q.SetBlockTxs(link0, block, true, SetTxOptions{}); err != nil {
		t.Fatalf("SetBlockTxs: %v", err)
	}

	got, err := q.GetBlock(link0)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if got.Header.Height != 0 || got.Header.MerkleRoot != hashOf(9) {
		t.Fatalf("got.Header = %+v", got.Header)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Hash != cbHash {
		t.Fatalf("got.Transactions = %+v", got.Transactions)
	}

	strong, err := q.IsStrongBlock(link0)
	if err != nil {
		t.Fatalf("IsStrongBlock: %v", err)
	}
	if !strong {
		t.Fatalf("IsStrongBlock = false, want true")
	}

	links, err := q.ToTransactions(link0)
	if err != nil {
		t.Fatalf("ToTransactions: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("ToTransactions = %v, want one link", links)
	}

	cb, err := q.ToCoinbase(link0)
	if err != nil {
		t.Fatalf("ToCoinbase: %v", err)
	}
	if cb != links[0] {
		t.Fatalf("ToCoinbase = %d, want %d", cb, links[0])
	}
}

func TestSetBlockTxsEmptyErrors(t *testing.T) {
	q := newTestQuery(t)
	genesisHash := hashOf(1)
	genesis := chain.Header{Height: 0, PreviousHash: chain.NullHash}
	link0, err := q.SetHeader(genesisHash, genesis)
	if err != nil {
		t.Fatalf("SetHeader: %v", err)
	}
	err = q.SetBlockTxs(link0, chain.Block{Header: genesis}, false, SetTxOptions{})
	if !dberr.Is(err, dberr.TxsEmpty) {
		t.Fatalf("SetBlockTxs(empty): err = %v, want txs_empty", err)
	}
}

func TestSetTxEmptyInputsOrOutputsErrors(t *testing.T) {
	q := newTestQuery(t)

	noInputs := chain.Tx{Hash: hashOf(5), Outputs: []chain.Output{{Value: 1, Script: []byte{0x51}}}}
	if _, err := q.SetTx(noInputs.Hash, noInputs, SetTxOptions{}); !dberr.Is(err, dberr.TxEmpty) {
		t.Fatalf("SetTx(no inputs): err = %v, want tx_empty", err)
	}

	noOutputs := chain.Tx{Hash: hashOf(6), Inputs: []chain.Input{{Point: chain.NullPoint, Sequence: 0xffffffff}}}
	if _, err := q.SetTx(noOutputs.Hash, noOutputs, SetTxOptions{}); !dberr.Is(err, dberr.TxEmpty) {
		t.Fatalf("SetTx(no outputs): err = %v, want tx_empty", err)
	}
}
