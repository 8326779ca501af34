package primitives

import "rubin.dev/archive/dberr"

// Multimap is the record multimap of spec.md 4.5: a HashMap<key ->
// head-link> plus an auxiliary record manager of (next-Link, payload)
// cells. Link appends a new head cell per key; Find walks the chain;
// Unlink pops the current head cell.
type Multimap struct {
	index     *HashMap // payload of the index record is the head Link, width linkWidth.
	cells     *RecordManager
	linkWidth int
}

func NewMultimap(index *HashMap, cells *RecordManager) *Multimap {
	return &Multimap{index: index, cells: cells, linkWidth: cells.LinkWidth()}
}

func (m *Multimap) cellNext(cell []byte) Link { return GetLink(cell[:m.linkWidth], m.linkWidth) }
func (m *Multimap) setCellNext(cell []byte, l Link) { PutLink(cell[:m.linkWidth], m.linkWidth, l) }
func (m *Multimap) cellPayload(cell []byte) []byte  { return cell[m.linkWidth:] }

func (m *Multimap) headLinkPayload(l Link) []byte {
	buf := make([]byte, m.linkWidth)
	PutLink(buf, m.linkWidth, l)
	return buf
}

// Allocate reserves one cell and fills its payload without linking it
// into any key's chain (spec.md I2): the cell is an orphan until Commit
// is called.
func (m *Multimap) Allocate(payload []byte) (Link, error) {
	cellLink, err := m.cells.Allocate(1)
	if err != nil {
		return 0, err
	}
	cell, tok, err := m.cells.GetMutable(cellLink)
	if err != nil {
		return 0, err
	}
	if len(payload) != len(cell)-m.linkWidth {
		tok.Release()
		return 0, dberr.New(dberr.Integrity, "multimap.Allocate")
	}
	copy(m.cellPayload(cell), payload)
	tok.Release()
	return cellLink, nil
}

// Commit splices a previously allocated cell onto the front of key's
// chain and updates (or creates) the key's head pointer, making the
// cell observable to Find (spec.md I2).
func (m *Multimap) Commit(key []byte, cellLink Link) error {
	terminal := Terminal(m.linkWidth)
	idxLink, idxRec, found, err := m.index.Find(key)
	if err != nil {
		return err
	}
	head := terminal
	if found {
		head = GetLink(m.index.PayloadOf(idxRec), m.linkWidth)
	}

	cell, tok, err := m.cells.GetMutable(cellLink)
	if err != nil {
		return err
	}
	m.setCellNext(cell, head)
	tok.Release()

	if found {
		return m.index.UpdatePayload(idxLink, m.headLinkPayload(cellLink))
	}
	_, err = m.index.PutLink(key, m.headLinkPayload(cellLink))
	return err
}

// Link allocates a new cell holding payload, splices it onto the front
// of key's chain, and commits (or updates) the key's head pointer in
// one step, as spec.md 4.5 describes for callers with no deferred-commit
// requirement.
func (m *Multimap) Link(key, payload []byte) (Link, error) {
	cellLink, err := m.Allocate(payload)
	if err != nil {
		return 0, err
	}
	if err := m.Commit(key, cellLink); err != nil {
		return 0, err
	}
	return cellLink, nil
}

// CellIterator walks a key's value chain, newest first.
type CellIterator struct {
	m    *Multimap
	cur  Link
	term Link
}

// Find returns an iterator over every value linked to key, most recent
// first. An absent key yields an immediately-exhausted iterator.
func (m *Multimap) Find(key []byte) (*CellIterator, error) {
	terminal := Terminal(m.linkWidth)
	_, rec, found, err := m.index.Find(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return &CellIterator{m: m, cur: terminal, term: terminal}, nil
	}
	head := GetLink(m.index.PayloadOf(rec), m.linkWidth)
	return &CellIterator{m: m, cur: head, term: terminal}, nil
}

func (it *CellIterator) Next() (payload []byte, ok bool, err error) {
	if it.cur == it.term {
		return nil, false, nil
	}
	cell, tok, err := it.m.cells.Get(it.cur)
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), it.m.cellPayload(cell)...)
	it.cur = it.m.cellNext(cell)
	tok.Release()
	return out, true, nil
}

// Unlink removes the current head cell for key (pop-front only).
func (m *Multimap) Unlink(key []byte) error {
	idxLink, idxRec, found, err := m.index.Find(key)
	if err != nil {
		return err
	}
	if !found {
		return dberr.New(dberr.Integrity, "multimap.Unlink")
	}
	head := GetLink(m.index.PayloadOf(idxRec), m.linkWidth)
	terminal := Terminal(m.linkWidth)
	if head == terminal {
		return dberr.New(dberr.Integrity, "multimap.Unlink")
	}
	cell, tok, err := m.cells.Get(head)
	if err != nil {
		return err
	}
	next := m.cellNext(cell)
	tok.Release()
	return m.index.UpdatePayload(idxLink, m.headLinkPayload(next))
}
