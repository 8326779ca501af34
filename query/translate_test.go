package query

import (
	"testing"

	"golang.org/x/crypto/blake2b"

	"rubin.dev/archive/chain"
	"rubin.dev/archive/schema"
	"rubin.dev/archive/store"
)

func newTestQueryWithAddress(t *testing.T) *Query {
	t.Helper()
	cfg := schema.DefaultConfig()
	cfg.AddressEnabled = true
	s, err := store.Create(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestToSpendersReturnsNewestFirst(t *testing.T) {
	q := newTestQuery(t)

	genesisHash := hashOf(0xa0)
	genesis := chain.Header{Height: 0, PreviousHash: chain.NullHash}
	link0, err := q.SetHeader(genesisHash, genesis)
	if err != nil {
		t.Fatalf("SetHeader: %v", err)
	}
	cbHash := hashOf(0xa1)
	block := chain.Block{Header: genesis, Transactions: []chain.Tx{coinbaseTx(cbHash, 1_000_000)}}
	if err := q.SetBlockTxs(link0, block, true, SetTxOptions{}); err != nil {
		t.Fatalf("SetBlockTxs: %v", err)
	}
	cbLink, err := q.ToCoinbase(link0)
	if err != nil {
		t.Fatalf("ToCoinbase: %v", err)
	}

	// Two candidate spends of the same coinbase output, archived in order.
	spend1Hash := hashOf(0xa2)
	spend1Link, err := q.SetTx(spend1Hash, spendingTx(spend1Hash, cbHash, 0, 0xffffffff, 900_000), SetTxOptions{})
	if err != nil {
		t.Fatalf("SetTx(spend1): %v", err)
	}
	spend2Hash := hashOf(0xa3)
	spend2Link, err := q.SetTx(spend2Hash, spendingTx(spend2Hash, cbHash, 0, 0xffffffff, 900_000), SetTxOptions{})
	if err != nil {
		t.Fatalf("SetTx(spend2): %v", err)
	}

	outputs, err := q.outputLinksOf(cbLink)
	if err != nil {
		t.Fatalf("outputLinksOf: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("outputLinksOf = %v, want one output", outputs)
	}

	spenders, err := q.ToSpenders(outputs[0])
	if err != nil {
		t.Fatalf("ToSpenders: %v", err)
	}
	if len(spenders) != 2 {
		t.Fatalf("ToSpenders = %+v, want 2 entries", spenders)
	}
	if spenders[0].ParentTxLink != spend2Link || spenders[1].ParentTxLink != spend1Link {
		t.Fatalf("ToSpenders order = %+v, want [spend2, spend1] (newest first)", spenders)
	}
}

func TestToAddressResolvesIndexedOutput(t *testing.T) {
	q := newTestQueryWithAddress(t)

	genesisHash := hashOf(0xc0)
	genesis := chain.Header{Height: 0, PreviousHash: chain.NullHash}
	link0, err := q.SetHeader(genesisHash, genesis)
	if err != nil {
		t.Fatalf("SetHeader: %v", err)
	}

	script := []byte{0x51, 0x52, 0x53}
	cbHash := hashOf(0xc1)
	cb := chain.Tx{
		Hash:     cbHash,
		Coinbase: true,
		Inputs:   []chain.Input{{Point: chain.NullPoint, Sequence: 0xffffffff}},
		Outputs:  []chain.Output{{Value: 5_000_000_000, Script: script}},
	}
	block := chain.Block{Header: genesis, Transactions: []chain.Tx{cb}}
	if err := q.SetBlockTxs(link0, block, true, SetTxOptions{}); err != nil {
		t.Fatalf("SetBlockTxs: %v", err)
	}

	cbLink, err := q.ToCoinbase(link0)
	if err != nil {
		t.Fatalf("ToCoinbase: %v", err)
	}
	outputs, err := q.outputLinksOf(cbLink)
	if err != nil {
		t.Fatalf("outputLinksOf: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("outputLinksOf = %v, want one output", outputs)
	}

	link, found, err := q.ToAddress(blake2b.Sum256(script))
	if err != nil {
		t.Fatalf("ToAddress: %v", err)
	}
	if !found {
		t.Fatalf("ToAddress: found = false, want true")
	}
	if link != outputs[0] {
		t.Fatalf("ToAddress = %d, want %d", link, outputs[0])
	}
}

func TestToAddressDisabledFindsNothing(t *testing.T) {
	q := newTestQuery(t) // AddressEnabled is false in this config.
	_, found, err := q.ToAddress(blake2b.Sum256([]byte{0x51}))
	if err != nil {
		t.Fatalf("ToAddress: %v", err)
	}
	if found {
		t.Fatalf("ToAddress with AddressEnabled=false: found = true, want false")
	}
}

func TestToBlockResolvesConfirmingHeader(t *testing.T) {
	q := newTestQuery(t)

	genesisHash := hashOf(0xb0)
	genesis := chain.Header{Height: 0, PreviousHash: chain.NullHash}
	link0, err := q.SetHeader(genesisHash, genesis)
	if err != nil {
		t.Fatalf("SetHeader: %v", err)
	}
	cbHash := hashOf(0xb1)
	block := chain.Block{Header: genesis, Transactions: []chain.Tx{coinbaseTx(cbHash, 1_000_000)}}
	if err := q.SetBlockTxs(link0, block, true, SetTxOptions{}); err != nil {
		t.Fatalf("SetBlockTxs: %v", err)
	}

	cbLink, err := q.ToCoinbase(link0)
	if err != nil {
		t.Fatalf("ToCoinbase: %v", err)
	}
	headerLink, err := q.ToBlock(cbLink)
	if err != nil {
		t.Fatalf("ToBlock: %v", err)
	}
	if headerLink != link0 {
		t.Fatalf("ToBlock = %d, want %d", headerLink, link0)
	}
}
