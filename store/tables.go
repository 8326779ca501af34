package store

import (
	"encoding/binary"
	"os"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/mmapfile"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

// tableFormatVersion stamps the on-disk layout of every head-bearing
// table (spec.md 4.6). Bump it whenever a head's record layout changes
// incompatibly.
const tableFormatVersion uint32 = 1

// verifyTableVersion writes the format-version stamp on create, or
// reads and compares it on open/restore, failing with verify_table on a
// missing or mismatched stamp (spec.md 4.6's open: "verifies each
// table's head format version").
func (s *Store) verifyTableVersion(table string) error {
	path := versionPath(s.root, table)
	if s.creating {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, tableFormatVersion)
		if err := writeFileAtomic(path, buf, 0o600); err != nil {
			return dberr.Wrap(dberr.VerifyTable, "store.verifyTableVersion", err)
		}
		return nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from an operator-controlled store directory, not user input.
	if err != nil {
		return dberr.Wrap(dberr.VerifyTable, "store.verifyTableVersion", err)
	}
	if len(data) != 4 || binary.LittleEndian.Uint32(data) != tableFormatVersion {
		return dberr.New(dberr.VerifyTable, "store.verifyTableVersion")
	}
	return nil
}

// openFile opens (creating if necessary), maps, and returns one body or
// head file, sized per initialSize/growthPercent. Every opened *mmapfile.File is appended to
// files so Flush/Close can walk them uniformly.
func (s *Store) openFile(path string, initialSize int64, growthPercent int) (*mmapfile.File, error) {
	f := mmapfile.New(path, mmapfile.Options{InitialSize: initialSize, GrowthPercent: growthPercent})
	if err := f.Open(); err != nil {
		return nil, err
	}
	if err := f.Load(); err != nil {
		return nil, err
	}
	s.files = append(s.files, f)
	return f, nil
}

// initHashHead fills a freshly created bucket head with the terminal
// sentinel (all-ones) in every cell; a reopened head already holds real
// bucket links and must not be touched (spec.md 4.3).
func initHashHead(head *mmapfile.File, buckets int64, linkWidth int) error {
	if head.Size() > 0 {
		return nil
	}
	return head.Set(0, buckets*int64(linkWidth), 0xff)
}

// openHashMap wires one HashMap table: a bucket head under heads/ and a
// record body under the table root, per store/paths.go's layout. The
// head is registered under table so Snapshot/Restore can find it.
func (s *Store) openHashMap(table string, tc schema.TableConfig, keySize, payloadSize, linkWidth int) (*primitives.HashMap, error) {
	if err := s.verifyTableVersion(table); err != nil {
		return nil, err
	}
	head, err := s.openFile(headPath(s.root, table), tc.Buckets*int64(linkWidth), 0)
	if err != nil {
		return nil, err
	}
	if err := initHashHead(head, tc.Buckets, linkWidth); err != nil {
		return nil, err
	}
	s.registerHead(table, head)
	body, err := s.openFile(bodyPath(s.root, table), tc.InitialSize, tc.GrowthPercent)
	if err != nil {
		return nil, err
	}
	recordSize := int64(linkWidth + keySize + payloadSize)
	records := primitives.NewRecordManager(body, recordSize, linkWidth)
	return primitives.NewHashMap(head, records, tc.Buckets, keySize, payloadSize), nil
}

// openArrayHead is openRecordManager for the two ArrayMap tables whose
// file lives under heads/ and is backed up by Snapshot (Candidate and
// Confirmed): small, chain-index arrays rather than append-only bodies.
func (s *Store) openArrayHead(table string, recordSize int64, linkWidth int, tc schema.TableConfig) (*primitives.RecordManager, error) {
	if err := s.verifyTableVersion(table); err != nil {
		return nil, err
	}
	f, err := s.openFile(headPath(s.root, table), tc.InitialSize, tc.GrowthPercent)
	if err != nil {
		return nil, err
	}
	s.registerHead(table, f)
	return primitives.NewRecordManager(f, recordSize, linkWidth), nil
}

func (s *Store) registerHead(table string, f *mmapfile.File) {
	if s.heads == nil {
		s.heads = make(map[string]*mmapfile.File)
	}
	s.heads[table] = f
}

// openRecordManager wires a bare fixed-size record allocator over a body
// file, used by Multimap cells and the PUTS link-list arrays.
func (s *Store) openRecordManager(path string, recordSize int64, linkWidth int, tc schema.TableConfig) (*primitives.RecordManager, error) {
	body, err := s.openFile(path, tc.InitialSize, tc.GrowthPercent)
	if err != nil {
		return nil, err
	}
	return primitives.NewRecordManager(body, recordSize, linkWidth), nil
}

// openSlabManager wires a bare variable-size allocator over a body file.
func (s *Store) openSlabManager(path string, linkWidth int, tc schema.TableConfig) (*primitives.SlabManager, error) {
	body, err := s.openFile(path, tc.InitialSize, tc.GrowthPercent)
	if err != nil {
		return nil, err
	}
	return primitives.NewSlabManager(body, linkWidth), nil
}
