package primitives

import "rubin.dev/archive/dberr"

// ArrayMap is a head-indexed array of fixed-size records (spec.md 4.4),
// used where the key is already a dense surrogate integer: chain
// heights, or point expansion by input index.
type ArrayMap struct {
	records *RecordManager
}

func NewArrayMap(records *RecordManager) *ArrayMap {
	return &ArrayMap{records: records}
}

// Expand grows the logical size to include index n (a no-op if it
// already does).
func (a *ArrayMap) Expand(n int64) error {
	count := a.records.Count()
	if n < count {
		return nil
	}
	_, err := a.records.Allocate(n - count + 1)
	return err
}

// Put writes record at index, expanding first if necessary.
func (a *ArrayMap) Put(index int64, record []byte) error {
	if int64(len(record)) != a.records.RecordSize() {
		return dberr.New(dberr.Integrity, "arraymap.Put")
	}
	if err := a.Expand(index); err != nil {
		return err
	}
	dst, tok, err := a.records.GetMutable(Link(index))
	if err != nil {
		return err
	}
	defer tok.Release()
	copy(dst, record)
	return nil
}

// Get reads the record at index.
func (a *ArrayMap) Get(index int64) ([]byte, error) {
	if index < 0 || index >= a.records.Count() {
		return nil, dberr.New(dberr.Integrity, "arraymap.Get")
	}
	rec, tok, err := a.records.Get(Link(index))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), rec...)
	tok.Release()
	return out, nil
}

// Count is the number of populated slots.
func (a *ArrayMap) Count() int64 { return a.records.Count() }

// Pop truncates the array by one (pop_candidate/pop_confirmed).
func (a *ArrayMap) Pop() error {
	n := a.records.Count()
	if n == 0 {
		return dberr.New(dberr.Integrity, "arraymap.Pop")
	}
	return a.records.SetCount(n - 1)
}
