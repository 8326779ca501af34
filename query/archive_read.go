package query

import (
	"rubin.dev/archive/chain"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

// GetBlock assembles {header, transactions[]} by walking headerLink's
// TXS slab and materializing every transaction in block order (spec.md
// 4.7.3).
func (q *Query) GetBlock(headerLink primitives.Link) (chain.Block, error) {
	release := q.s.Shared()
	defer release()

	hp, err := headerPayloadAt(q.s, headerLink)
	if err != nil {
		return chain.Block{}, err
	}
	header := chain.Header{
		Height:         hp.Height,
		MedianTimePast: hp.MedianTimePast,
		Milestone:      hp.Milestone,
		Version:        hp.Version,
		Time:           hp.Time,
		Bits:           hp.Bits,
		Nonce:          hp.Nonce,
		MerkleRoot:     chain.Hash(hp.MerkleRoot),
	}
	if hp.ParentLink != q.headerTerminal() {
		parentRec, err := q.s.Header.RecordAt(hp.ParentLink)
		if err != nil {
			return chain.Block{}, err
		}
		copy(header.PreviousHash[:], q.s.Header.KeyOf(parentRec))
	}

	slab, err := q.txsSlab(headerLink)
	if err != nil {
		return chain.Block{}, err
	}
	txs := make([]chain.Tx, len(slab.TxLinks))
	for i, link := range slab.TxLinks {
		tx, err := q.getTransaction(link)
		if err != nil {
			return chain.Block{}, err
		}
		txs[i] = tx
	}
	return chain.Block{Header: header, Transactions: txs}, nil
}

// GetTransaction assembles {hash, version, inputs[], outputs[],
// locktime}: scripts and witnesses are returned verbatim, the nominal
// hash is the TX table's own key, and the witness hash is not
// reconstructed (spec.md 4.7.3 — it is never stored).
func (q *Query) GetTransaction(txLink primitives.Link) (chain.Tx, error) {
	release := q.s.Shared()
	defer release()
	return q.getTransaction(txLink)
}

func (q *Query) getTransaction(txLink primitives.Link) (chain.Tx, error) {
	rec, err := q.s.Tx.RecordAt(txLink)
	if err != nil {
		return chain.Tx{}, err
	}
	p, err := schema.DecodeTxPayload(q.s.Tx.PayloadOf(rec))
	if err != nil {
		return chain.Tx{}, err
	}

	tx := chain.Tx{
		Coinbase:  p.Coinbase,
		LightSize: p.LightSize,
		HeavySize: p.HeavySize,
		Version:   p.Version,
		Locktime:  p.Locktime,
	}
	copy(tx.Hash[:], q.s.Tx.KeyOf(rec))

	tx.Inputs = make([]chain.Input, p.InputsCount)
	for i := range tx.Inputs {
		inRec, err := q.s.PutsIns.Get(int64(p.FirstInputLink) + int64(i))
		if err != nil {
			return chain.Tx{}, err
		}
		inputLink := primitives.GetLink(inRec, schema.InputLinkWidth)
		view, tok, err := q.s.Input.Get(inputLink)
		if err != nil {
			return chain.Tx{}, err
		}
		in, err := schema.DecodeInputPayload(view)
		tok.Release()
		if err != nil {
			return chain.Tx{}, err
		}
		tx.Inputs[i] = chain.Input{
			Point:    q.pointOf(in.PointLink, in.PointIndex),
			Script:   in.Script,
			Witness:  in.Witness,
			Sequence: in.Sequence,
		}
	}

	tx.Outputs = make([]chain.Output, p.OutputsCount)
	for i := range tx.Outputs {
		outRec, err := q.s.PutsOuts.Get(int64(p.FirstOutputLink) + int64(i))
		if err != nil {
			return chain.Tx{}, err
		}
		outputLink := primitives.GetLink(outRec, schema.OutputLinkWidth)
		view, tok, err := q.s.Output.Get(outputLink)
		if err != nil {
			return chain.Tx{}, err
		}
		out, err := schema.DecodeOutputPayload(view)
		tok.Release()
		if err != nil {
			return chain.Tx{}, err
		}
		tx.Outputs[i] = chain.Output{Value: out.Value, Script: out.Script}
	}
	return tx, nil
}

// pointOf materializes a prevout point from its POINT link and the
// input's own index field, sharing the canonical chain.NullPoint value
// when the point is the engine's null-prevout marker (spec.md 4.7.3,
// 9's shared_ptr<const T> note).
func (q *Query) pointOf(pointLink primitives.Link, index uint32) chain.Point {
	rec, err := q.s.Point.RecordAt(pointLink)
	if err != nil {
		return chain.NullPoint
	}
	var hash chain.Hash
	copy(hash[:], q.s.Point.KeyOf(rec))
	if hash.IsNull() {
		return chain.NullPoint
	}
	return chain.Point{TxHash: hash, Index: index}
}
