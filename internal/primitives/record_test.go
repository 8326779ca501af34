package primitives

import (
	"path/filepath"
	"testing"

	"rubin.dev/archive/internal/mmapfile"
)

func newTestFile(t *testing.T, name string) *mmapfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f := mmapfile.New(path, mmapfile.Options{})
	if err := f.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() {
		f.Unload()
		f.Close()
	})
	return f
}

func TestRecordManagerAllocateGet(t *testing.T) {
	body := newTestFile(t, "records.data")
	m := NewRecordManager(body, 16, 4)

	link, err := m.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if link != 0 {
		t.Fatalf("first link = %d, want 0", link)
	}

	view, tok, err := m.GetMutable(link)
	if err != nil {
		t.Fatalf("GetMutable: %v", err)
	}
	copy(view, []byte("0123456789abcdef"))
	tok.Release()

	rec, tok, err := m.Get(link)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer tok.Release()
	if string(rec) != "0123456789abcdef" {
		t.Fatalf("record = %q", rec)
	}

	next, err := m.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate 2: %v", err)
	}
	if next != 1 {
		t.Fatalf("second link = %d, want 1", next)
	}
	if m.Count() != 2 {
		t.Fatalf("Count = %d, want 2", m.Count())
	}
}

func TestRecordManagerSetCount(t *testing.T) {
	body := newTestFile(t, "records.data")
	m := NewRecordManager(body, 8, 4)
	if _, err := m.Allocate(3); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := m.SetCount(1); err != nil {
		t.Fatalf("SetCount: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("Count = %d, want 1", m.Count())
	}
}
