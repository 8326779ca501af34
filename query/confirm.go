package query

import (
	"sync"
	"sync/atomic"

	"rubin.dev/archive/chain"
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

// SetStrong appends a strong_tx record for every tx of a block. Records
// are append-only and idempotent-safe: the current strength of a tx is
// whatever the most recent matching record says (spec.md 4.7.4), which
// falls out of HashMap.PutLink always prepending to its bucket chain.
func (q *Query) SetStrong(headerLink primitives.Link, txLinks []primitives.Link, positive bool) error {
	release := q.s.Exclusive()
	defer release()
	for _, link := range txLinks {
		p := schema.StrongTxPayload{HeaderLink: headerLink, Positive: positive}
		if _, err := q.s.StrongTx.PutLink(schema.TxLinkKey(link), schema.EncodeStrongTxPayload(p)); err != nil {
			return dberr.Wrap(dberr.TxsConfirm, "query.SetStrong", err)
		}
	}
	return nil
}

// IsStrongTx reports whether txLink's most recent strong_tx record is
// positive.
func (q *Query) IsStrongTx(txLink primitives.Link) (bool, error) {
	release := q.s.Shared()
	defer release()
	return q.isStrongTx(txLink)
}

func (q *Query) isStrongTx(txLink primitives.Link) (bool, error) {
	_, found, err := q.strongPayloadFor(txLink)
	return found, err
}

func (q *Query) strongPayloadFor(txLink primitives.Link) (schema.StrongTxPayload, bool, error) {
	_, rec, found, err := q.s.StrongTx.Find(schema.TxLinkKey(txLink))
	if err != nil {
		return schema.StrongTxPayload{}, false, err
	}
	if !found {
		return schema.StrongTxPayload{}, false, nil
	}
	p, err := schema.DecodeStrongTxPayload(q.s.StrongTx.PayloadOf(rec))
	if err != nil {
		return schema.StrongTxPayload{}, false, err
	}
	return p, p.Positive, nil
}

// IsStrongBlock reports whether every tx archived under headerLink is
// currently strong.
func (q *Query) IsStrongBlock(headerLink primitives.Link) (bool, error) {
	release := q.s.Shared()
	defer release()
	slab, err := q.txsSlab(headerLink)
	if err != nil {
		return false, err
	}
	for _, link := range slab.TxLinks {
		_, found, err := q.strongPayloadFor(link)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

// SetPrevouts computes, for every non-coinbase input of every
// non-coinbase tx in block, the prevout's (output tx link, coinbase
// flag, sequence), plus the list of double-candidate spender tx links
// recorded against duplicated points, and writes the result as a single
// PREVOUT slab keyed by headerLink (spec.md 4.7.4).
func (q *Query) SetPrevouts(headerLink primitives.Link, txLinks []primitives.Link) error {
	release := q.s.Exclusive()
	defer release()

	var entries []schema.PrevoutEntry
	conflicting := map[primitives.Link]struct{}{}

	for _, txLink := range txLinks {
		p, err := txPayloadAt(q.s, txLink)
		if err != nil {
			return err
		}
		if p.Coinbase {
			continue
		}
		for i := int64(0); i < int64(p.InputsCount); i++ {
			inRec, err := q.s.PutsIns.Get(int64(p.FirstInputLink) + i)
			if err != nil {
				return err
			}
			inputLink := primitives.GetLink(inRec, schema.InputLinkWidth)
			view, tok, err := q.s.Input.Get(inputLink)
			if err != nil {
				return err
			}
			in, err := schema.DecodeInputPayload(view)
			tok.Release()
			if err != nil {
				return err
			}

			outTxLink, coinbase, dupConflicts, err := q.resolvePrevoutTx(in.PointLink, in.PointIndex)
			if err != nil {
				return err
			}
			entries = append(entries, schema.PrevoutEntry{
				OutputTxLink: outTxLink,
				Coinbase:     coinbase,
				Sequence:     in.Sequence,
			})
			for _, c := range dupConflicts {
				if c != txLink {
					conflicting[c] = struct{}{}
				}
			}
		}
	}

	conflictList := make([]primitives.Link, 0, len(conflicting))
	for c := range conflicting {
		conflictList = append(conflictList, c)
	}
	slab := schema.PrevoutSlab{Entries: entries, Conflicting: conflictList}
	encoded := schema.EncodePrevoutSlab(slab)
	link, err := q.s.PrevoutSlabs.Allocate(int64(len(encoded)))
	if err != nil {
		return dberr.Wrap(dberr.Integrity5, "query.SetPrevouts", err)
	}
	if err := q.s.PrevoutSlabs.PutLink(link, encoded); err != nil {
		return dberr.Wrap(dberr.Integrity5, "query.SetPrevouts", err)
	}
	if _, err := q.s.Prevout.PutLink(schema.HeaderLinkKey(headerLink), encodeLinkField(link, schema.PrevoutSlabLinkWidth)); err != nil {
		return dberr.Wrap(dberr.Integrity5, "query.SetPrevouts", err)
	}
	return nil
}

// resolvePrevoutTx looks up the tx that owns a POINT record and whether
// it is a coinbase, plus, when the point is recorded in DUPLICATE, every
// tx with a SPEND entry on that point (spec.md 4.7.4's double-candidate
// spender list); SetPrevouts drops the spending tx itself from that list.
func (q *Query) resolvePrevoutTx(pointLink primitives.Link, pointIndex uint32) (primitives.Link, bool, []primitives.Link, error) {
	rec, err := q.s.Point.RecordAt(pointLink)
	if err != nil {
		return 0, false, nil, err
	}
	var hash chain.Hash
	copy(hash[:], q.s.Point.KeyOf(rec))

	txLink, txRec, found, err := q.s.Tx.Find(hash[:])
	if err != nil {
		return 0, false, nil, err
	}
	if !found {
		return q.txTerminal(), false, nil, nil
	}
	p, err := schema.DecodeTxPayload(q.s.Tx.PayloadOf(txRec))
	if err != nil {
		return 0, false, nil, err
	}

	var dupConflicts []primitives.Link
	dupKey := schema.EncodeDuplicateKey(hash, pointIndex)
	if _, _, found, err := q.s.Duplicate.Find(dupKey); err != nil {
		return 0, false, nil, err
	} else if found {
		spenders, err := q.spendersOf(hash, pointIndex)
		if err != nil {
			return 0, false, nil, err
		}
		for _, sp := range spenders {
			dupConflicts = append(dupConflicts, sp.ParentTxLink)
		}
	}
	return txLink, p.Coinbase, dupConflicts, nil
}

func (q *Query) spendersOf(hash chain.Hash, index uint32) ([]schema.SpendPayload, error) {
	it, err := q.s.Spend.Find(schema.SpendFingerprint(hash, index))
	if err != nil {
		return nil, err
	}
	var out []schema.SpendPayload
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
		out = append(out, sp)
	}
	return out, nil
}

// pointContext is the per-point spendability input of spec.md 4.7.4
// step 7: prevout height/mtp resolved from its owning header.
type pointContext struct {
	entry       schema.PrevoutEntry
	prevHeight  uint32
	prevMtp     uint32
	hasPrevout  bool
}

// BlockConfirmable runs the full confirmability algorithm of spec.md
// 4.7.4 against a block already archived and cached (SetPrevouts must
// have run first). ctx carries the caller-supplied consensus knobs this
// engine does not itself derive.
func (q *Query) BlockConfirmable(headerLink primitives.Link, ctx chain.Context) error {
	release := q.s.Shared()
	defer release()

	hp, err := headerPayloadAt(q.s, headerLink)
	if err != nil {
		return dberr.Wrap(dberr.Integrity6, "query.BlockConfirmable", err)
	}

	slab, err := q.txsSlab(headerLink)
	if err != nil {
		return dberr.Wrap(dberr.Integrity6, "query.BlockConfirmable", err)
	}
	if len(slab.TxLinks) == 0 {
		return nil
	}
	coinbaseLink := slab.TxLinks[0]

	if ctx.Bip30Rule {
		if err := q.checkUnspentDuplicates(coinbaseLink); err != nil {
			return err
		}
	}

	nonCoinbase := slab.TxLinks[1:]
	if len(nonCoinbase) == 0 {
		return nil
	}

	_, prevRec, found, err := q.s.Prevout.Find(schema.HeaderLinkKey(headerLink))
	if err != nil {
		return err
	}
	if !found {
		return dberr.New(dberr.Integrity5, "query.BlockConfirmable")
	}
	cacheLink := primitives.GetLink(q.s.Prevout.PayloadOf(prevRec), schema.PrevoutSlabLinkWidth)
	view, tok, err := q.s.PrevoutSlabs.Get(cacheLink)
	if err != nil {
		return err
	}
	cache, err := schema.DecodePrevoutSlab(view)
	tok.Release()
	if err != nil {
		return err
	}

	for _, conflictTx := range cache.Conflicting {
		positive, err := q.isStrongTx(conflictTx)
		if err != nil {
			return err
		}
		if positive {
			return dberr.New(dberr.ConfirmedDoubleSpend, "query.BlockConfirmable")
		}
	}

	points, err := q.buildPointContexts(cache, hp.Height)
	if err != nil {
		return err
	}

	var errSlot atomic.Value
	var wg sync.WaitGroup
	for _, pc := range points {
		if !pc.hasPrevout {
			continue
		}
		pc := pc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.checkSpendability(pc, ctx); err != nil {
				errSlot.CompareAndSwap(nil, err)
			}
		}()
	}
	wg.Wait()
	if v := errSlot.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (q *Query) buildPointContexts(cache schema.PrevoutSlab, currentHeight uint32) ([]pointContext, error) {
	out := make([]pointContext, len(cache.Entries))
	for i, e := range cache.Entries {
		if e.OutputTxLink == q.txTerminal() {
			out[i] = pointContext{entry: e, hasPrevout: false}
			continue
		}
		headerLink, ok, err := q.strongestHeaderFor(e.OutputTxLink)
		if err != nil {
			return nil, err
		}
		if !ok {
			out[i] = pointContext{entry: e, hasPrevout: true}
			continue
		}
		hp, err := headerPayloadAt(q.s, headerLink)
		if err != nil {
			return nil, err
		}
		out[i] = pointContext{entry: e, prevHeight: hp.Height, prevMtp: hp.MedianTimePast, hasPrevout: true}
	}
	return out, nil
}

func (q *Query) checkSpendability(pc pointContext, ctx chain.Context) error {
	positive, err := q.isStrongTx(pc.entry.OutputTxLink)
	if err != nil {
		return err
	}
	if !positive {
		return dberr.New(dberr.UnconfirmedSpend, "query.checkSpendability")
	}
	if ctx.Bip68Rule && relativeLocktimeApplies(pc.entry.Sequence) {
		if locked(ctx.Height, ctx.MedianTimePast, pc.prevHeight, pc.prevMtp, pc.entry.Sequence) {
			return dberr.New(dberr.RelativeTimeLocked, "query.checkSpendability")
		}
	}
	if pc.entry.Coinbase {
		if ctx.Height-pc.prevHeight <= ctx.CoinbaseMaturity {
			return dberr.New(dberr.CoinbaseMaturity, "query.checkSpendability")
		}
	}
	return nil
}

const sequenceLocktimeDisableFlag = 1 << 31
const sequenceLocktimeTypeFlag = 1 << 22
const sequenceLocktimeMask = 0x0000ffff

func relativeLocktimeApplies(sequence uint32) bool {
	return sequence&sequenceLocktimeDisableFlag == 0
}

func locked(currentHeight, currentMtp, prevHeight, prevMtp, sequence uint32) bool {
	if sequence&sequenceLocktimeTypeFlag != 0 {
		required := prevMtp + (sequence&sequenceLocktimeMask)<<9
		return currentMtp < required
	}
	required := prevHeight + (sequence & sequenceLocktimeMask)
	return currentHeight < required
}

// checkUnspentDuplicates runs spec.md 4.7.4 step 2 (BIP30): every
// predecessor coinbase sharing this block's coinbase hash that is
// currently strong must have every output already confirmed-spent.
func (q *Query) checkUnspentDuplicates(coinbaseLink primitives.Link) error {
	rec, err := q.s.Tx.RecordAt(coinbaseLink)
	if err != nil {
		return err
	}
	hash := q.s.Tx.KeyOf(rec)

	it := q.s.Tx.Iter(hash)
	for {
		link, candRec, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if !equalKey(q.s.Tx.KeyOf(candRec), hash) || link == coinbaseLink {
			continue
		}
		positive, err := q.isStrongTx(link)
		if err != nil {
			return err
		}
		if !positive {
			continue
		}
		if err := q.requireFullySpent(link); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) requireFullySpent(txLink primitives.Link) error {
	outputs, err := q.outputLinksOf(txLink)
	if err != nil {
		return err
	}
	for _, outputLink := range outputs {
		spenders, err := q.toSpenders(outputLink)
		if err != nil {
			return err
		}
		spent := false
		for _, sp := range spenders {
			positive, err := q.isStrongTx(sp.ParentTxLink)
			if err != nil {
				return err
			}
			if positive {
				spent = true
				break
			}
		}
		if !spent {
			return dberr.New(dberr.UnspentCoinbaseCollision, "query.checkUnspentDuplicates")
		}
	}
	return nil
}
