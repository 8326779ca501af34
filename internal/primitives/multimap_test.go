package primitives

import "testing"

func newTestMultimap(t *testing.T, cellPayloadSize int) *Multimap {
	t.Helper()
	const linkWidth = 4
	index := newTestHashMap(t, 8, 7, linkWidth)
	cells := NewRecordManager(newTestFile(t, "cells.data"), int64(linkWidth+cellPayloadSize), linkWidth)
	return NewMultimap(index, cells)
}

func fingerprint(b byte) []byte {
	k := make([]byte, 7)
	k[0] = b
	return k
}

func TestMultimapLinkFindNewestFirst(t *testing.T) {
	m := newTestMultimap(t, 4)
	key := fingerprint(1)

	if _, err := m.Link(key, []byte{0, 0, 0, 1}); err != nil {
		t.Fatalf("Link 1: %v", err)
	}
	if _, err := m.Link(key, []byte{0, 0, 0, 2}); err != nil {
		t.Fatalf("Link 2: %v", err)
	}
	if _, err := m.Link(key, []byte{0, 0, 0, 3}); err != nil {
		t.Fatalf("Link 3: %v", err)
	}

	it, err := m.Find(key)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	var order []byte
	for {
		payload, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		order = append(order, payload[3])
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("order = %v, want [3 2 1] (newest first)", order)
	}
}

func TestMultimapFindMissingKey(t *testing.T) {
	m := newTestMultimap(t, 4)
	it, err := m.Find(fingerprint(9))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if _, ok, err := it.Next(); err != nil || ok {
		t.Fatalf("Next on missing key: ok=%v err=%v", ok, err)
	}
}

func TestMultimapAllocateNotObservableUntilCommit(t *testing.T) {
	m := newTestMultimap(t, 4)
	key := fingerprint(3)

	cellLink, err := m.Allocate([]byte{0, 0, 0, 9})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	it, err := m.Find(key)
	if err != nil {
		t.Fatalf("Find before Commit: %v", err)
	}
	if _, ok, err := it.Next(); err != nil || ok {
		t.Fatalf("Find before Commit: ok=%v err=%v, want no visible cell", ok, err)
	}

	if err := m.Commit(key, cellLink); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	it, err = m.Find(key)
	if err != nil {
		t.Fatalf("Find after Commit: %v", err)
	}
	payload, ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("Find after Commit: ok=%v err=%v", ok, err)
	}
	if payload[3] != 9 {
		t.Fatalf("committed payload = %v, want [.. 9]", payload)
	}
}

func TestMultimapUnlink(t *testing.T) {
	m := newTestMultimap(t, 4)
	key := fingerprint(2)
	if _, err := m.Link(key, []byte{0, 0, 0, 1}); err != nil {
		t.Fatalf("Link 1: %v", err)
	}
	if _, err := m.Link(key, []byte{0, 0, 0, 2}); err != nil {
		t.Fatalf("Link 2: %v", err)
	}
	if err := m.Unlink(key); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	it, err := m.Find(key)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	payload, ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if payload[3] != 1 {
		t.Fatalf("remaining head payload = %v, want [.. 1]", payload)
	}
	if _, ok, _ := it.Next(); ok {
		t.Fatalf("expected only one cell left after Unlink")
	}
}
