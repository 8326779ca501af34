package primitives

import (
	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/mmapfile"
)

// SlabManager is a variable-size allocator over a body file (spec.md
// 4.2). Link values are byte offsets. Each slab's length is implied by
// its own record structure (a fixed prefix plus a variable tail); the
// manager itself is agnostic to that structure.
type SlabManager struct {
	body      *mmapfile.File
	linkWidth int
}

func NewSlabManager(body *mmapfile.File, linkWidth int) *SlabManager {
	return &SlabManager{body: body, linkWidth: linkWidth}
}

// Clear discards every slab in the body (used by store.Prune).
func (m *SlabManager) Clear() error {
	return m.body.Truncate(0)
}

func (m *SlabManager) LinkWidth() int { return m.linkWidth }

// Allocate reserves byteSize bytes and returns the link (byte offset) of
// the new slab.
func (m *SlabManager) Allocate(byteSize int64) (Link, error) {
	if byteSize < 0 {
		return 0, dberr.New(dberr.Integrity, "slab.Allocate")
	}
	old, err := m.body.Allocate(byteSize)
	if err != nil {
		return 0, err
	}
	return Link(old), nil
}

// Get returns a view starting at link and running to the body's current
// logical end; callers parse their own length from the slab's embedded
// fields.
func (m *SlabManager) Get(link Link) ([]byte, *mmapfile.Token, error) {
	tok, err := m.body.Get(int64(link))
	if err != nil {
		return nil, nil, err
	}
	return tok.Bytes(), tok, nil
}

// GetMutable is the not-yet-committed counterpart of Get (spec.md I2/I3).
func (m *SlabManager) GetMutable(link Link) ([]byte, *mmapfile.Token, error) {
	tok, err := m.body.GetCapacity(int64(link))
	if err != nil {
		return nil, nil, err
	}
	return tok.Bytes(), tok, nil
}

// PutLink writes exactly the given bytes into a slab link obtained from a
// prior Allocate call of matching size.
func (m *SlabManager) PutLink(link Link, data []byte) error {
	view, tok, err := m.GetMutable(link)
	if err != nil {
		return err
	}
	defer tok.Release()
	if int64(len(view)) < int64(len(data)) {
		return dberr.New(dberr.Integrity, "slab.PutLink")
	}
	copy(view, data)
	return nil
}
