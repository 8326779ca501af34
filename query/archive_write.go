package query

import (
	"golang.org/x/crypto/blake2b"

	"rubin.dev/archive/chain"
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

// SetHeader inserts a block header (spec.md 4.7.2). The parent must be
// present iff hash's previous-hash is non-null; milestone is the
// caller's own marker (checkpoint, assumed-valid boundary, etc.), opaque
// to the engine.
func (q *Query) SetHeader(hash chain.Hash, h chain.Header) (primitives.Link, error) {
	release := q.s.Exclusive()
	defer release()

	parentLink := q.headerTerminal()
	if !h.PreviousHash.IsNull() {
		link, _, found, err := q.s.Header.Find(h.PreviousHash[:])
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, dberr.New(dberr.OrphanBlock, "query.SetHeader")
		}
		parentLink = link
	}

	payload := schema.HeaderPayload{
		Height:         h.Height,
		MedianTimePast: h.MedianTimePast,
		Milestone:      h.Milestone,
		ParentLink:     parentLink,
		Version:        h.Version,
		Time:           h.Time,
		Bits:           h.Bits,
		Nonce:          h.Nonce,
		MerkleRoot:     [32]byte(h.MerkleRoot),
	}
	link, err := q.s.Header.PutLink(hash[:], schema.EncodeHeaderPayload(payload))
	if err != nil {
		return 0, dberr.Wrap(dberr.HeaderPut, "query.SetHeader", err)
	}
	return link, nil
}

// SetTxOptions controls the duplicate-guard relaxations of spec.md
// 4.7.2: Bypass skips the DUPLICATE-table twin guard outright (set by
// callers replaying an already-validated, checkpointed block under
// Config.Turbo); Dirty forces the guard back on regardless of Bypass
// because the store may hold orphaned state from a prior crash.
type SetTxOptions struct {
	Bypass bool
	Dirty  bool
}

// SetTx archives one transaction: allocates its tx slot, input/output
// slabs, and PUTS link arrays, resolves or appends POINT records for
// every input, optionally indexes outputs by script hash, and finally
// commits the tx key — the only step that makes it observable to
// readers (spec.md I2/I3, 4.7.2).
func (q *Query) SetTx(hash chain.Hash, tx chain.Tx, opts SetTxOptions) (primitives.Link, error) {
	release := q.s.Exclusive()
	defer release()
	return q.setTxLocked(hash, tx, opts)
}

// setTxLocked is SetTx's body, factored out so SetBlockTxs can archive
// every transaction of a block under one transactor acquisition.
func (q *Query) setTxLocked(hash chain.Hash, tx chain.Tx, opts SetTxOptions) (primitives.Link, error) {
	if len(tx.Inputs) == 0 || len(tx.Outputs) == 0 {
		return 0, dberr.New(dberr.TxEmpty, "query.SetTx")
	}

	txLink, err := q.s.Tx.Allocate()
	if err != nil {
		return 0, dberr.Wrap(dberr.TxTxAllocate, "query.SetTx", err)
	}

	firstInput := q.s.PutsIns.Count()
	firstOutput := q.s.PutsOuts.Count()

	payload := schema.TxPayload{
		Coinbase:        tx.Coinbase,
		LightSize:       tx.LightSize,
		HeavySize:       tx.HeavySize,
		Version:         tx.Version,
		Locktime:        tx.Locktime,
		InputsCount:     uint32(len(tx.Inputs)),
		OutputsCount:    uint32(len(tx.Outputs)),
		FirstInputLink:  primitives.Link(firstInput),
		FirstOutputLink: primitives.Link(firstOutput),
	}
	if err := q.s.Tx.Write(txLink, hash[:], schema.EncodeTxPayload(payload)); err != nil {
		return 0, dberr.Wrap(dberr.TxTxSet, "query.SetTx", err)
	}

	pendingSpends := make([]pendingSpend, 0, len(tx.Inputs))
	for i, in := range tx.Inputs {
		pointLink, err := q.resolvePoint(in.Point, opts)
		if err != nil {
			return 0, err
		}
		inputLink, err := q.writeInput(pointLink, in)
		if err != nil {
			return 0, err
		}
		if err := q.s.PutsIns.Put(firstInput+int64(i), encodeLinkField(inputLink, schema.InputLinkWidth)); err != nil {
			return 0, dberr.Wrap(dberr.TxInsPut, "query.SetTx", err)
		}
		spend, ok, err := q.allocateSpend(in.Point, txLink, in.Sequence, primitives.Link(firstInput)+primitives.Link(i))
		if err != nil {
			return 0, err
		}
		if ok {
			pendingSpends = append(pendingSpends, spend)
		}
	}

	for i, out := range tx.Outputs {
		outputLink, err := q.writeOutput(txLink, out)
		if err != nil {
			return 0, err
		}
		if err := q.s.PutsOuts.Put(firstOutput+int64(i), encodeLinkField(outputLink, schema.OutputLinkWidth)); err != nil {
			return 0, dberr.Wrap(dberr.TxPutsPut, "query.SetTx", err)
		}
		if q.s.Config().AddressEnabled {
			if err := q.indexAddress(out.Script, outputLink); err != nil {
				return 0, err
			}
		}
	}

	if err := q.s.Tx.Commit(txLink, hash[:]); err != nil {
		return 0, dberr.Wrap(dberr.TxTxCommit, "query.SetTx", err)
	}

	// Spend fingerprints are only committed once the tx record they
	// reference is itself committed (spec.md I3): a crash before this
	// point leaves the allocated cells unlinked and unobservable, never
	// a dangling reference to an orphan tx.
	for _, spend := range pendingSpends {
		if err := q.s.Spend.Commit(spend.fingerprint, spend.cellLink); err != nil {
			return 0, dberr.Wrap(dberr.TxSpendPut, "query.SetTx", err)
		}
	}
	return txLink, nil
}

type pendingSpend struct {
	fingerprint []byte
	cellLink    primitives.Link
}

func encodeLinkField(l primitives.Link, width int) []byte {
	buf := make([]byte, width)
	primitives.PutLink(buf, width, l)
	return buf
}

func (q *Query) writeInput(pointLink primitives.Link, in chain.Input) (primitives.Link, error) {
	payload := schema.InputPayload{
		PointLink:  pointLink,
		PointIndex: in.Point.Index,
		Sequence:   in.Sequence,
		Script:     in.Script,
		Witness:    in.Witness,
	}
	encoded := schema.EncodeInputPayload(payload)
	link, err := q.s.Input.Allocate(int64(len(encoded)))
	if err != nil {
		return 0, dberr.Wrap(dberr.TxInputPut, "query.writeInput", err)
	}
	if err := q.s.Input.PutLink(link, encoded); err != nil {
		return 0, dberr.Wrap(dberr.TxInputPut, "query.writeInput", err)
	}
	return link, nil
}

func (q *Query) writeOutput(txLink primitives.Link, out chain.Output) (primitives.Link, error) {
	payload := schema.OutputPayload{ParentTxLink: txLink, Value: out.Value, Script: out.Script}
	encoded := schema.EncodeOutputPayload(payload)
	link, err := q.s.Output.Allocate(int64(len(encoded)))
	if err != nil {
		return 0, dberr.Wrap(dberr.TxOutputPut, "query.writeOutput", err)
	}
	if err := q.s.Output.PutLink(link, encoded); err != nil {
		return 0, dberr.Wrap(dberr.TxOutputPut, "query.writeOutput", err)
	}
	return link, nil
}

// resolvePoint writes or reuses the POINT record for an input's prevout
// hash, guarding against twins via the DUPLICATE table except on a
// validated replay (Bypass and not Dirty). A null point (coinbase) is
// written unconditionally, per spec.md 4.7.2.
func (q *Query) resolvePoint(point chain.Point, opts SetTxOptions) (primitives.Link, error) {
	if point.IsNull() {
		link, err := q.s.Point.PutLink(chain.NullHash[:], nil)
		if err != nil {
			return 0, dberr.Wrap(dberr.TxNullPointPut, "query.resolvePoint", err)
		}
		return link, nil
	}

	guard := opts.Dirty || !opts.Bypass

	if q.s.Config().Minimize {
		if link, _, found, err := q.s.Point.Find(point.TxHash[:]); err != nil {
			return 0, dberr.Wrap(dberr.TxPointPut, "query.resolvePoint", err)
		} else if found {
			if guard {
				if err := q.recordDuplicate(point); err != nil {
					return 0, err
				}
			}
			return link, nil
		}
	} else if guard {
		if _, _, found, err := q.s.Point.Find(point.TxHash[:]); err != nil {
			return 0, dberr.Wrap(dberr.TxPointPut, "query.resolvePoint", err)
		} else if found {
			if err := q.recordDuplicate(point); err != nil {
				return 0, err
			}
		}
	}

	link, err := q.s.Point.PutLink(point.TxHash[:], nil)
	if err != nil {
		return 0, dberr.Wrap(dberr.TxPointAllocate, "query.resolvePoint", err)
	}
	return link, nil
}

func (q *Query) recordDuplicate(point chain.Point) error {
	key := schema.EncodeDuplicateKey(point.TxHash, point.Index)
	if _, _, found, err := q.s.Duplicate.Find(key); err != nil {
		return dberr.Wrap(dberr.TxDuplicatePut, "query.recordDuplicate", err)
	} else if found {
		return nil
	}
	if _, err := q.s.Duplicate.PutLink(key, nil); err != nil {
		return dberr.Wrap(dberr.TxDuplicatePut, "query.recordDuplicate", err)
	}
	return nil
}

// allocateSpend reserves and fills a SPEND cell for an input's prevout
// point without linking it into the fingerprint's chain (spec.md I2):
// the caller must Commit it only once the referencing tx is itself
// committed (spec.md I3). A null point (coinbase) has nothing to spend
// and yields ok=false.
func (q *Query) allocateSpend(point chain.Point, txLink primitives.Link, sequence uint32, inputLink primitives.Link) (pendingSpend, bool, error) {
	if point.IsNull() {
		return pendingSpend{}, false, nil
	}
	payload := schema.SpendPayload{ParentTxLink: txLink, Sequence: sequence, InputLink: inputLink}
	fp := schema.SpendFingerprint(point.TxHash, point.Index)
	cellLink, err := q.s.Spend.Allocate(schema.EncodeSpendPayload(payload))
	if err != nil {
		return pendingSpend{}, false, dberr.Wrap(dberr.TxSpendPut, "query.allocateSpend", err)
	}
	return pendingSpend{fingerprint: fp, cellLink: cellLink}, true, nil
}

func (q *Query) indexAddress(script []byte, outputLink primitives.Link) error {
	key := blake2b.Sum256(script)
	if _, err := q.s.Address.PutLink(key[:], schema.EncodeAddressPayload(outputLink)); err != nil {
		return dberr.Wrap(dberr.TxAddressPut, "query.indexAddress", err)
	}
	return nil
}

// SetBlockTxs archives every transaction of a block under one header in
// a single transactor acquisition, optionally marking each as strong,
// and writes the TXS slab that makes the block's tx list queryable
// (spec.md 4.7.2).
func (q *Query) SetBlockTxs(headerLink primitives.Link, block chain.Block, strong bool, opts SetTxOptions) error {
	if len(block.Transactions) == 0 {
		return dberr.New(dberr.TxsEmpty, "query.SetBlockTxs")
	}
	release := q.s.Exclusive()
	defer release()

	if _, err := q.s.Header.RecordAt(headerLink); err != nil {
		return dberr.Wrap(dberr.TxsHeader, "query.SetBlockTxs", err)
	}

	links := make([]primitives.Link, len(block.Transactions))
	for i, tx := range block.Transactions {
		link, err := q.setTxLocked(tx.Hash, tx, opts)
		if err != nil {
			return err
		}
		links[i] = link
		if strong {
			sp := schema.StrongTxPayload{HeaderLink: headerLink, Positive: true}
			if _, err := q.s.StrongTx.PutLink(schema.TxLinkKey(link), schema.EncodeStrongTxPayload(sp)); err != nil {
				return dberr.Wrap(dberr.TxsConfirm, "query.SetBlockTxs", err)
			}
		}
	}

	slab := schema.TxsSlab{WireSize: blockWireSize(block), TxLinks: links}
	encoded := schema.EncodeTxsSlab(slab)
	slabLink, err := q.s.TxsSlabs.Allocate(int64(len(encoded)))
	if err != nil {
		return dberr.Wrap(dberr.TxsTxsPut, "query.SetBlockTxs", err)
	}
	if err := q.s.TxsSlabs.PutLink(slabLink, encoded); err != nil {
		return dberr.Wrap(dberr.TxsTxsPut, "query.SetBlockTxs", err)
	}
	if _, err := q.s.Txs.PutLink(schema.HeaderLinkKey(headerLink), encodeLinkField(slabLink, schema.TxsSlabLinkWidth)); err != nil {
		return dberr.Wrap(dberr.TxsTxsPut, "query.SetBlockTxs", err)
	}
	return nil
}

func blockWireSize(block chain.Block) uint32 {
	var total uint32
	for _, tx := range block.Transactions {
		total += tx.HeavySize
	}
	return total
}
