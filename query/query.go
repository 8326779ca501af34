// Package query is the consensus-adjacent surface of the archive
// (spec.md 4.7): translation between natural keys and surrogate links,
// multi-table archive writes, object assembly, confirmation evaluation,
// and chain indexation. It is the only package that interprets
// chain.Hash/chain.Tx/chain.Block semantics; store and below only move
// bytes.
package query

import (
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
	"rubin.dev/archive/store"
)

// Query is a thin, stateless view over an open *store.Store. Every
// method acquires the transactor itself (shared for reads, exclusive
// for writes) for exactly the duration of one logical operation, per
// spec.md 4.8.
type Query struct {
	s *store.Store
}

func New(s *store.Store) *Query { return &Query{s: s} }

func (q *Query) headerTerminal() primitives.Link { return primitives.Terminal(schema.HeaderLinkWidth) }
func (q *Query) txTerminal() primitives.Link     { return primitives.Terminal(schema.TxLinkWidth) }

func headerPayloadAt(s *store.Store, link primitives.Link) (schema.HeaderPayload, error) {
	rec, err := s.Header.RecordAt(link)
	if err != nil {
		return schema.HeaderPayload{}, err
	}
	return schema.DecodeHeaderPayload(s.Header.PayloadOf(rec))
}

func txPayloadAt(s *store.Store, link primitives.Link) (schema.TxPayload, error) {
	rec, err := s.Tx.RecordAt(link)
	if err != nil {
		return schema.TxPayload{}, err
	}
	return schema.DecodeTxPayload(s.Tx.PayloadOf(rec))
}
