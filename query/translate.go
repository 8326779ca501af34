package query

import (
	"rubin.dev/archive/chain"
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

// ToHeader resolves a block hash to its header link, or the terminal
// sentinel if unknown (spec.md 4.7.1).
func (q *Query) ToHeader(hash chain.Hash) (primitives.Link, error) {
	release := q.s.Shared()
	defer release()
	link, _, found, err := q.s.Header.Find(hash[:])
	if err != nil {
		return 0, err
	}
	if !found {
		return q.headerTerminal(), nil
	}
	return link, nil
}

// ToTx resolves a transaction hash to its tx link, or the terminal
// sentinel if unknown. A duplicate-hash tx returns the first record in
// the bucket chain (the most recently inserted), matching STRONG_TX's
// "most recent wins" resolution rule.
func (q *Query) ToTx(hash chain.Hash) (primitives.Link, error) {
	release := q.s.Shared()
	defer release()
	link, _, found, err := q.s.Tx.Find(hash[:])
	if err != nil {
		return 0, err
	}
	if !found {
		return q.txTerminal(), nil
	}
	return link, nil
}

// ToCandidate resolves a chain height to the candidate index's header
// link, or terminal if height exceeds the index.
func (q *Query) ToCandidate(height uint32) (primitives.Link, error) {
	release := q.s.Shared()
	defer release()
	return arrayLinkAt(q.s.Candidate, int64(height), schema.CandidateLinkWidth)
}

// ToConfirmed is ToCandidate's confirmed-chain counterpart.
func (q *Query) ToConfirmed(height uint32) (primitives.Link, error) {
	release := q.s.Shared()
	defer release()
	return arrayLinkAt(q.s.Confirmed, int64(height), schema.ConfirmedLinkWidth)
}

func arrayLinkAt(a *primitives.ArrayMap, index int64, linkWidth int) (primitives.Link, error) {
	if index < 0 || index >= a.Count() {
		return primitives.Terminal(linkWidth), nil
	}
	rec, err := a.Get(index)
	if err != nil {
		return 0, err
	}
	return primitives.GetLink(rec, linkWidth), nil
}

// ToParent resolves a header link to its parent's header link, or
// terminal only at genesis.
func (q *Query) ToParent(headerLink primitives.Link) (primitives.Link, error) {
	release := q.s.Shared()
	defer release()
	p, err := headerPayloadAt(q.s, headerLink)
	if err != nil {
		return 0, err
	}
	return p.ParentLink, nil
}

// ToBlock resolves a tx link to the header link of the block that
// confirmed it: a self-strong lookup first, then (for the duplicate-hash
// case) a probe across every tx record sharing the same hash, returning
// the first with a positive strong record whose header still exists.
func (q *Query) ToBlock(txLink primitives.Link) (primitives.Link, error) {
	release := q.s.Shared()
	defer release()
	if link, ok, err := q.strongestHeaderFor(txLink); err != nil {
		return 0, err
	} else if ok {
		return link, nil
	}

	txRec, err := q.s.Tx.RecordAt(txLink)
	if err != nil {
		return 0, err
	}
	hash := q.s.Tx.KeyOf(txRec)
	it := q.s.Tx.Iter(hash)
	for {
		link, rec, ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		if !equalKey(q.s.Tx.KeyOf(rec), hash) || link == txLink {
			continue
		}
		if hlink, ok, err := q.strongestHeaderFor(link); err != nil {
			return 0, err
		} else if ok {
			return hlink, nil
		}
	}
	return q.headerTerminal(), nil
}

// strongestHeaderFor returns the header link of the most recent positive
// strong_tx record for txLink, if one exists and its header is present.
func (q *Query) strongestHeaderFor(txLink primitives.Link) (primitives.Link, bool, error) {
	key := schema.TxLinkKey(txLink)
	link, rec, found, err := q.s.StrongTx.Find(key)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	_ = link
	p, err := schema.DecodeStrongTxPayload(q.s.StrongTx.PayloadOf(rec))
	if err != nil {
		return 0, false, err
	}
	if !p.Positive {
		return 0, false, nil
	}
	if _, err := q.s.Header.RecordAt(p.HeaderLink); err != nil {
		if dberr.Is(err, dberr.Integrity) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return p.HeaderLink, true, nil
}

func equalKey(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ToTransactions returns every tx link archived under a header, in
// block order, from the TXS slab.
func (q *Query) ToTransactions(headerLink primitives.Link) ([]primitives.Link, error) {
	release := q.s.Shared()
	defer release()
	slab, err := q.txsSlab(headerLink)
	if err != nil {
		return nil, err
	}
	return slab.TxLinks, nil
}

func (q *Query) txsSlab(headerLink primitives.Link) (schema.TxsSlab, error) {
	_, rec, found, err := q.s.Txs.Find(schema.HeaderLinkKey(headerLink))
	if err != nil {
		return schema.TxsSlab{}, err
	}
	if !found {
		return schema.TxsSlab{}, dberr.New(dberr.TxsHeader, "query.txsSlab")
	}
	slabLink := primitives.GetLink(q.s.Txs.PayloadOf(rec), schema.TxsSlabLinkWidth)
	view, tok, err := q.s.TxsSlabs.Get(slabLink)
	if err != nil {
		return schema.TxsSlab{}, err
	}
	defer tok.Release()
	return schema.DecodeTxsSlab(view)
}

// ToCoinbase returns the first (coinbase) tx link archived under header.
func (q *Query) ToCoinbase(headerLink primitives.Link) (primitives.Link, error) {
	links, err := q.ToTransactions(headerLink)
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		return q.txTerminal(), nil
	}
	return links[0], nil
}

// ToAddress resolves a script hash (blake2b.Sum256 of the output script,
// matching indexAddress's key derivation) to the output link it was
// indexed under, per the ADDRESS table (DATA MODEL 3). found is false
// both when the hash is unindexed and when Config.AddressEnabled is
// false, since the table then holds nothing to find.
func (q *Query) ToAddress(scriptHash [32]byte) (link primitives.Link, found bool, err error) {
	if !q.s.Config().AddressEnabled {
		return 0, false, nil
	}
	release := q.s.Shared()
	defer release()
	_, rec, found, err := q.s.Address.Find(scriptHash[:])
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	return schema.DecodeAddressPayload(q.s.Address.PayloadOf(rec)), true, nil
}

// ToSpenders resolves the spending inputs of a prevout: it recovers the
// prevout's (tx hash, index) from the OUTPUT/TX/PUTS tables, derives the
// SPEND fingerprint, and walks every matching spend cell, most recent
// first (spec.md 4.7.1).
func (q *Query) ToSpenders(outputLink primitives.Link) ([]schema.SpendPayload, error) {
	release := q.s.Shared()
	defer release()
	return q.toSpenders(outputLink)
}

func (q *Query) toSpenders(outputLink primitives.Link) ([]schema.SpendPayload, error) {
	outBytes, outTok, err := q.s.Output.Get(outputLink)
	if err != nil {
		return nil, err
	}
	out, err := schema.DecodeOutputPayload(outBytes)
	outTok.Release()
	if err != nil {
		return nil, err
	}
	txRec, err := q.s.Tx.RecordAt(out.ParentTxLink)
	if err != nil {
		return nil, err
	}
	var hash [32]byte
	copy(hash[:], q.s.Tx.KeyOf(txRec))

	outputs, err := q.outputLinksOf(out.ParentTxLink)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, l := range outputs {
		if l == outputLink {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, dberr.New(dberr.Integrity, "query.ToSpenders")
	}

	it, err := q.s.Spend.Find(schema.SpendFingerprint(hash, uint32(index)))
	if err != nil {
		return nil, err
	}
	var spenders []schema.SpendPayload
	for {
		payload, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		sp, err := schema.DecodeSpendPayload(payload)
		if err != nil {
			return nil, err
		}
		spenders = append(spenders, sp)
	}
	return spenders, nil
}

// outputLinksOf returns the contiguous OUTPUT slab links for a tx, read
// via its PUTS_OUTS range.
func (q *Query) outputLinksOf(txLink primitives.Link) ([]primitives.Link, error) {
	p, err := txPayloadAt(q.s, txLink)
	if err != nil {
		return nil, err
	}
	out := make([]primitives.Link, p.OutputsCount)
	for i := range out {
		rec, err := q.s.PutsOuts.Get(int64(p.FirstOutputLink) + int64(i))
		if err != nil {
			return nil, err
		}
		out[i] = primitives.GetLink(rec, schema.OutputLinkWidth)
	}
	return out, nil
}
