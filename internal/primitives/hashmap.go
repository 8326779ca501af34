package primitives

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/mmapfile"
)

// HashMap is the linear-probe, next-link-chained open-address hash map
// of spec.md 4.3. The head is a fixed array of bucket cells, each a
// Link to the chain's first record; a record is laid out as
// [next Link][search key][payload]. Load factor and bucket count are
// fixed at table-create time.
type HashMap struct {
	head        *mmapfile.File
	records     *RecordManager
	buckets     int64
	linkWidth   int
	keySize     int
	payloadSize int
}

// NewHashMap wires a HashMap atop a pre-sized head file (buckets *
// linkWidth bytes, every cell initialized to Terminal) and a record
// manager whose record size is linkWidth+keySize+payloadSize.
func NewHashMap(head *mmapfile.File, records *RecordManager, buckets int64, keySize, payloadSize int) *HashMap {
	return &HashMap{
		head:        head,
		records:     records,
		buckets:     buckets,
		linkWidth:   records.LinkWidth(),
		keySize:     keySize,
		payloadSize: payloadSize,
	}
}

func (h *HashMap) RecordSize() int64 { return int64(h.linkWidth + h.keySize + h.payloadSize) }

func (h *HashMap) bucketIndex(key []byte) int64 {
	sum := blake2b.Sum256(key)
	v := binary.LittleEndian.Uint64(sum[:8])
	return int64(v % uint64(h.buckets))
}

func (h *HashMap) bucketOffset(i int64) int64 { return i * int64(h.linkWidth) }

func (h *HashMap) getBucket(i int64) Link {
	raw := h.head.GetRaw(h.bucketOffset(i))
	return GetLink(raw, h.linkWidth)
}

func (h *HashMap) setBucket(i int64, l Link) {
	raw := h.head.GetRaw(h.bucketOffset(i))
	PutLink(raw, h.linkWidth, l)
}

func (h *HashMap) fieldOffsets() (nextEnd, keyEnd int) {
	nextEnd = h.linkWidth
	keyEnd = nextEnd + h.keySize
	return
}

func (h *HashMap) next(record []byte) Link {
	return GetLink(record[:h.linkWidth], h.linkWidth)
}

func (h *HashMap) setNext(record []byte, l Link) {
	PutLink(record[:h.linkWidth], h.linkWidth, l)
}

func (h *HashMap) keyOf(record []byte) []byte {
	_, keyEnd := h.fieldOffsets()
	return record[h.linkWidth:keyEnd]
}

// PayloadOf returns the payload slice of a full record.
func (h *HashMap) PayloadOf(record []byte) []byte {
	_, keyEnd := h.fieldOffsets()
	return record[keyEnd : keyEnd+h.payloadSize]
}

// Find walks key's bucket chain and returns the first record whose key
// matches, along with its link. found is false if no such record exists.
func (h *HashMap) Find(key []byte) (link Link, record []byte, found bool, err error) {
	terminal := Terminal(h.linkWidth)
	cur := h.getBucket(h.bucketIndex(key))
	for cur != terminal {
		rec, tok, gerr := h.records.Get(cur)
		if gerr != nil {
			return 0, nil, false, gerr
		}
		match := equalBytes(h.keyOf(rec), key)
		if match {
			out := append([]byte(nil), rec...)
			tok.Release()
			return cur, out, true, nil
		}
		nxt := h.next(rec)
		tok.Release()
		cur = nxt
	}
	return 0, nil, false, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clear resets every bucket to the terminal sentinel and discards the
// record body, emptying the table in place (used by store.Prune to
// clear the PREVOUT cache, spec.md 4.6).
func (h *HashMap) Clear() error {
	if err := h.head.Set(0, h.buckets*int64(h.linkWidth), 0xff); err != nil {
		return err
	}
	return h.records.body.Truncate(0)
}

// Allocate reserves one record without linking it into any bucket chain
// (spec.md I2): the record is an orphan until Commit is called.
func (h *HashMap) Allocate() (Link, error) {
	return h.records.Allocate(1)
}

// Write fills a previously allocated record's key and payload, leaving
// next untouched (it is set by Commit).
func (h *HashMap) Write(link Link, key, payload []byte) error {
	if len(key) != h.keySize || len(payload) != h.payloadSize {
		return dberr.New(dberr.Integrity, "hashmap.Write")
	}
	rec, tok, err := h.records.GetMutable(link)
	if err != nil {
		return err
	}
	defer tok.Release()
	_, keyEnd := h.fieldOffsets()
	copy(rec[h.linkWidth:keyEnd], key)
	copy(rec[keyEnd:keyEnd+h.payloadSize], payload)
	return nil
}

// Commit links an allocated-and-written record into its key's bucket
// chain, making it observable to readers (spec.md I2, 4.3).
func (h *HashMap) Commit(link Link, key []byte) error {
	rec, tok, err := h.records.GetMutable(link)
	if err != nil {
		return err
	}
	idx := h.bucketIndex(key)
	head := h.getBucket(idx)
	h.setNext(rec, head)
	tok.Release()
	h.setBucket(idx, link)
	return nil
}

// PutLink allocates, writes, and commits a record in one step, as
// spec.md 4.3 describes for tables with no deferred-commit requirement.
func (h *HashMap) PutLink(key, payload []byte) (Link, error) {
	link, err := h.Allocate()
	if err != nil {
		return 0, err
	}
	if err := h.Write(link, key, payload); err != nil {
		return 0, err
	}
	if err := h.Commit(link, key); err != nil {
		return 0, err
	}
	return link, nil
}

// UpdatePayload overwrites the payload of an already-committed record in
// place (used by the multimap's head-link index).
func (h *HashMap) UpdatePayload(link Link, payload []byte) error {
	if len(payload) != h.payloadSize {
		return dberr.New(dberr.Integrity, "hashmap.UpdatePayload")
	}
	rec, tok, err := h.records.GetMutable(link)
	if err != nil {
		return err
	}
	defer tok.Release()
	_, keyEnd := h.fieldOffsets()
	copy(rec[keyEnd:keyEnd+h.payloadSize], payload)
	return nil
}

// Iterator walks every record sharing a key's chain (not just the first
// match), used for duplicate-hash probes (spec.md 4.3 it()).
type Iterator struct {
	h    *HashMap
	cur  Link
	term Link
}

func (h *HashMap) Iter(key []byte) *Iterator {
	return &Iterator{h: h, cur: h.getBucket(h.bucketIndex(key)), term: Terminal(h.linkWidth)}
}

// Next returns the next record in the bucket chain (not filtered by key
// match: callers that want only a specific key's duplicates should check
// keyOf themselves, since distinct keys can share a bucket).
func (it *Iterator) Next() (link Link, record []byte, ok bool, err error) {
	if it.cur == it.term {
		return 0, nil, false, nil
	}
	rec, tok, err := it.h.records.Get(it.cur)
	if err != nil {
		return 0, nil, false, err
	}
	out := append([]byte(nil), rec...)
	link = it.cur
	it.cur = it.h.next(rec)
	tok.Release()
	return link, out, true, nil
}

// KeyOf exposes the key field of a raw record for iterator callers.
func (h *HashMap) KeyOf(record []byte) []byte { return h.keyOf(record) }

// RecordAt returns a copy of the full record (same layout Find/Iterator
// return: next-link prefix, key, payload) at a link already known to be
// committed, without a bucket walk. Used by translation helpers that
// hold a link from another table's payload (e.g. a header's
// parent_link): pass the result to KeyOf/PayloadOf as usual.
func (h *HashMap) RecordAt(link Link) ([]byte, error) {
	rec, tok, err := h.records.Get(link)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), rec...)
	tok.Release()
	return out, nil
}
