package store

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/schema"
)

// writeFileAtomic mirrors the teacher's chainstate.go helper of the same
// name: write to a temp file, fsync it, rename into place, then fsync
// the parent directory so the rename itself survives a crash.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode) // #nosec G304 -- path derived from operator-controlled store root.
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}

// Snapshot flushes every body, dumps the current bucket/array heads into
// /temporary, and rotates /primary -> /secondary, /temporary -> /primary
// (spec.md 4.6). With prune it additionally clears the PREVOUT table,
// valid only when the candidate and confirmed chain tips coincide.
func (s *Store) Snapshot(prune bool) error {
	release := s.Exclusive()
	defer release()
	return s.snapshotLocked(prune)
}

func (s *Store) snapshotLocked(prune bool) error {
	for _, f := range s.files {
		if err := f.Flush(); err != nil {
			return dberr.Wrap(dberr.BackupTable, "store.Snapshot", err)
		}
	}

	if prune {
		n := s.Candidate.Count()
		if n != s.Confirmed.Count() {
			return dberr.New(dberr.PruneTable, "store.Snapshot")
		}
		if n > 0 {
			ctop, err := s.Candidate.Get(n - 1)
			if err != nil {
				return dberr.Wrap(dberr.PruneTable, "store.Snapshot", err)
			}
			ftop, err := s.Confirmed.Get(n - 1)
			if err != nil {
				return dberr.Wrap(dberr.PruneTable, "store.Snapshot", err)
			}
			if !bytes.Equal(ctop, ftop) {
				return dberr.New(dberr.PruneTable, "store.Snapshot")
			}
		}
		if err := s.clearPrevout(); err != nil {
			return dberr.Wrap(dberr.PruneTable, "store.Snapshot", err)
		}
	}

	temp := temporaryDir(s.root)
	if err := os.RemoveAll(temp); err != nil {
		return dberr.Wrap(dberr.ClearDirectory, "store.Snapshot", err)
	}
	if err := ensureDir(temp); err != nil {
		return dberr.Wrap(dberr.ClearDirectory, "store.Snapshot", err)
	}
	for table, head := range s.heads {
		data := append([]byte(nil), head.GetRaw(0)[:head.Size()]...)
		if err := writeFileAtomic(filepath.Join(temp, table+".head"), data, 0o600); err != nil {
			return dberr.Wrap(dberr.BackupTable, "store.Snapshot", err)
		}
	}

	primary := primaryDir(s.root)
	secondary := secondaryDir(s.root)
	if _, err := os.Stat(primary); err == nil {
		if err := os.RemoveAll(secondary); err != nil {
			return dberr.Wrap(dberr.RenameDirectory, "store.Snapshot", err)
		}
		if err := os.Rename(primary, secondary); err != nil {
			return dberr.Wrap(dberr.RenameDirectory, "store.Snapshot", err)
		}
	}
	if err := os.Rename(temp, primary); err != nil {
		return dberr.Wrap(dberr.RenameDirectory, "store.Snapshot", err)
	}
	return fsyncDir(headsDir(s.root))
}

func fsyncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return dberr.Wrap(dberr.FsyncFailure, "store.fsyncDir", err)
	}
	defer d.Close()
	return dberr.Wrap(dberr.FsyncFailure, "store.fsyncDir", d.Sync())
}

// Prune is Snapshot(prune=true): valid only when the candidate chain's
// tip equals the confirmed chain's tip (no outstanding fork), it clears
// the PREVOUT table since every cached prevout has now been consumed by
// confirmation (spec.md 4.6).
func (s *Store) Prune() error {
	release := s.Exclusive()
	defer release()
	return s.snapshotLocked(true)
}

func (s *Store) clearPrevout() error {
	if err := s.Prevout.Clear(); err != nil {
		return err
	}
	return s.PrevoutSlabs.Clear()
}

// Restore requires the flush-lock sentinel to be present: it clears a
// stale /temporary, copies the most recent backup generation
// (/primary, falling back to /secondary) back over the live heads, then
// re-opens every table (spec.md 4.6). Fails with `missing_snapshot` if
// neither generation exists.
func Restore(root string, cfg schema.Config) (*Store, error) {
	if !flushLockPresent(root) {
		return nil, dberr.New(dberr.MissingSnapshot, "store.Restore")
	}
	if err := os.RemoveAll(temporaryDir(root)); err != nil {
		return nil, dberr.Wrap(dberr.ClearDirectory, "store.Restore", err)
	}

	gen := primaryDir(root)
	if _, err := os.Stat(gen); err != nil {
		gen = secondaryDir(root)
		if _, err := os.Stat(gen); err != nil {
			return nil, dberr.New(dberr.MissingSnapshot, "store.Restore")
		}
	}

	entries, err := os.ReadDir(gen)
	if err != nil {
		return nil, dberr.Wrap(dberr.RestoreTable, "store.Restore", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(os.DirFS(gen), e.Name())
		if err != nil {
			return nil, dberr.Wrap(dberr.RestoreTable, "store.Restore", err)
		}
		if err := writeFileAtomic(filepath.Join(headsDir(root), e.Name()), data, 0o600); err != nil {
			return nil, dberr.Wrap(dberr.RestoreTable, "store.Restore", err)
		}
	}

	return open(root, cfg, false, true)
}
