package query

import (
	"rubin.dev/archive/chain"
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

// PushCandidate appends headerLink to the candidate chain's height index
// (spec.md 4.7.5).
func (q *Query) PushCandidate(headerLink primitives.Link) (uint32, error) {
	release := q.s.Exclusive()
	defer release()
	return q.pushArray(q.s.Candidate, headerLink, schema.CandidateLinkWidth)
}

// PopCandidate truncates the candidate index by one.
func (q *Query) PopCandidate() error {
	release := q.s.Exclusive()
	defer release()
	return q.s.Candidate.Pop()
}

// PushConfirmed appends headerLink to the confirmed chain's height
// index and, if strong, records every tx of the block as strong.
func (q *Query) PushConfirmed(headerLink primitives.Link, strong bool) (uint32, error) {
	release := q.s.Exclusive()
	defer release()
	height, err := q.pushArray(q.s.Confirmed, headerLink, schema.ConfirmedLinkWidth)
	if err != nil {
		return 0, err
	}
	if strong {
		slab, err := q.txsSlab(headerLink)
		if err != nil {
			return 0, err
		}
		for _, link := range slab.TxLinks {
			p := schema.StrongTxPayload{HeaderLink: headerLink, Positive: true}
			if _, err := q.s.StrongTx.PutLink(schema.TxLinkKey(link), schema.EncodeStrongTxPayload(p)); err != nil {
				return 0, dberr.Wrap(dberr.TxsConfirm, "query.PushConfirmed", err)
			}
		}
	}
	return height, nil
}

// PopConfirmed truncates the confirmed index by one.
func (q *Query) PopConfirmed() error {
	release := q.s.Exclusive()
	defer release()
	return q.s.Confirmed.Pop()
}

func (q *Query) pushArray(a *primitives.ArrayMap, headerLink primitives.Link, width int) (uint32, error) {
	index := a.Count()
	if err := a.Put(index, encodeLinkField(headerLink, width)); err != nil {
		return 0, err
	}
	return uint32(index), nil
}

// Initialize creates a one-entry candidate/confirmed chain from a single
// genesis block (spec.md 4.7.5).
func (q *Query) Initialize(genesisHeaderLink primitives.Link) error {
	release := q.s.Exclusive()
	defer release()
	if _, err := q.pushArray(q.s.Candidate, genesisHeaderLink, schema.CandidateLinkWidth); err != nil {
		return err
	}
	if _, err := q.pushArray(q.s.Confirmed, genesisHeaderLink, schema.ConfirmedLinkWidth); err != nil {
		return err
	}
	return nil
}

// GetCandidateSize sums every archived block's wire size across the
// candidate chain. Diagnostic only, per spec.md 4.7.5.
func (q *Query) GetCandidateSize() (uint64, error) {
	release := q.s.Shared()
	defer release()
	return q.rangeWireSize(q.s.Candidate, schema.CandidateLinkWidth)
}

// GetConfirmedSize is GetCandidateSize's confirmed-chain counterpart.
func (q *Query) GetConfirmedSize() (uint64, error) {
	release := q.s.Shared()
	defer release()
	return q.rangeWireSize(q.s.Confirmed, schema.ConfirmedLinkWidth)
}

func (q *Query) rangeWireSize(a *primitives.ArrayMap, width int) (uint64, error) {
	var total uint64
	n := a.Count()
	for i := int64(0); i < n; i++ {
		rec, err := a.Get(i)
		if err != nil {
			return 0, err
		}
		headerLink := primitives.GetLink(rec, width)
		slab, err := q.txsSlab(headerLink)
		if err != nil {
			return 0, err
		}
		total += uint64(slab.WireSize)
	}
	return total, nil
}

// GetHeaderState returns the cached confirmability verdict for
// headerLink from VALIDATED_BK (spec.md 4.7.5). Absent state reports
// chain.BlockStateUnknown, not an error.
func (q *Query) GetHeaderState(headerLink primitives.Link) (chain.BlockState, error) {
	release := q.s.Shared()
	defer release()
	_, rec, found, err := q.s.ValidatedBk.Find(schema.HeaderLinkKey(headerLink))
	if err != nil {
		return chain.BlockStateUnknown, err
	}
	if !found {
		return chain.BlockStateUnknown, nil
	}
	p, err := schema.DecodeValidatedBkPayload(q.s.ValidatedBk.PayloadOf(rec))
	if err != nil {
		return chain.BlockStateUnknown, err
	}
	return p.State, nil
}

// SetHeaderState records headerLink's confirmability verdict in
// VALIDATED_BK, the cache GetHeaderState reads from.
func (q *Query) SetHeaderState(headerLink primitives.Link, state chain.BlockState, fees uint64) error {
	release := q.s.Exclusive()
	defer release()
	p := schema.ValidatedBkPayload{State: state, Fees: fees}
	if _, err := q.s.ValidatedBk.PutLink(schema.HeaderLinkKey(headerLink), schema.EncodeValidatedBkPayload(p)); err != nil {
		return dberr.Wrap(dberr.Integrity, "query.SetHeaderState", err)
	}
	return nil
}
