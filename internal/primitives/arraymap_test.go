package primitives

import "testing"

func TestArrayMapPutGetExpand(t *testing.T) {
	body := newTestFile(t, "array.data")
	a := NewArrayMap(NewRecordManager(body, 4, 4))

	if err := a.Put(0, []byte{0, 0, 0, 1}); err != nil {
		t.Fatalf("Put 0: %v", err)
	}
	if err := a.Put(3, []byte{0, 0, 0, 4}); err != nil {
		t.Fatalf("Put 3: %v", err)
	}
	if a.Count() != 4 {
		t.Fatalf("Count = %d, want 4 (Put past the end must expand through it)", a.Count())
	}

	got, err := a.Get(3)
	if err != nil {
		t.Fatalf("Get 3: %v", err)
	}
	if got[3] != 4 {
		t.Fatalf("Get 3 = %v, want [.. 4]", got)
	}

	if _, err := a.Get(4); err == nil {
		t.Fatalf("Get 4: want out-of-range error")
	}
}

func TestArrayMapPop(t *testing.T) {
	body := newTestFile(t, "array.data")
	a := NewArrayMap(NewRecordManager(body, 4, 4))
	if err := a.Put(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := a.Pop(); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if a.Count() != 0 {
		t.Fatalf("Count after Pop = %d, want 0", a.Count())
	}
	if err := a.Pop(); err == nil {
		t.Fatalf("Pop on empty array: want error")
	}
}

func TestArrayMapPutWrongSize(t *testing.T) {
	body := newTestFile(t, "array.data")
	a := NewArrayMap(NewRecordManager(body, 4, 4))
	if err := a.Put(0, []byte{1, 2, 3}); err == nil {
		t.Fatalf("Put with wrong record size: want error")
	}
}
