package primitives

import (
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/mmapfile"
)

// RecordManager is a fixed-size allocator over a body file (spec.md 4.2).
// Link values are record indices, not byte offsets; Offset converts
// between the two.
type RecordManager struct {
	body       *mmapfile.File
	recordSize int64
	linkWidth  int
}

func NewRecordManager(body *mmapfile.File, recordSize int64, linkWidth int) *RecordManager {
	return &RecordManager{body: body, recordSize: recordSize, linkWidth: linkWidth}
}

func (m *RecordManager) RecordSize() int64 { return m.recordSize }
func (m *RecordManager) LinkWidth() int    { return m.linkWidth }

func (m *RecordManager) offset(link Link) int64 { return int64(link) * m.recordSize }

// Allocate extends the body by count records and returns the link of the
// first one.
func (m *RecordManager) Allocate(count int64) (Link, error) {
	if count <= 0 {
		return 0, dberr.New(dberr.Integrity, "record.Allocate")
	}
	old, err := m.body.Allocate(count * m.recordSize)
	if err != nil {
		return 0, err
	}
	return Link(old / m.recordSize), nil
}

// Get returns a view of exactly recordSize bytes at link.
func (m *RecordManager) Get(link Link) ([]byte, *mmapfile.Token, error) {
	tok, err := m.body.Get(m.offset(link))
	if err != nil {
		return nil, nil, err
	}
	data := tok.Bytes()
	if int64(len(data)) < m.recordSize {
		tok.Release()
		return nil, nil, dberr.New(dberr.Integrity, "record.Get")
	}
	return data[:m.recordSize], tok, nil
}

// GetMutable is like Get but reaches into capacity, not just logical
// size, so a record can be written before the table that owns it
// commits the record as observable (spec.md I2/I3 deferred commit).
func (m *RecordManager) GetMutable(link Link) ([]byte, *mmapfile.Token, error) {
	tok, err := m.body.GetCapacity(m.offset(link))
	if err != nil {
		return nil, nil, err
	}
	data := tok.Bytes()
	if int64(len(data)) < m.recordSize {
		tok.Release()
		return nil, nil, dberr.New(dberr.Integrity, "record.GetMutable")
	}
	return data[:m.recordSize], tok, nil
}

// Count returns the logical record count (body size / record size).
func (m *RecordManager) Count() int64 {
	return m.body.Size() / m.recordSize
}

// SetCount truncates (or would extend, though callers only truncate) the
// logical record count, used by pop_candidate/pop_confirmed.
func (m *RecordManager) SetCount(n int64) error {
	return m.body.Truncate(n * m.recordSize)
}
