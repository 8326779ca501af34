package store

import (
	"os"
	"path/filepath"
	"testing"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

func TestCreateCloseOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := schema.DefaultConfig()

	s, err := Create(root, cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	link, err := s.Header.PutLink(make([]byte, 32), schema.EncodeHeaderPayload(schema.HeaderPayload{Height: 1, ParentLink: primitives.Terminal(schema.HeaderLinkWidth)}))
	if err != nil {
		t.Fatalf("PutLink: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(root, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s2.Close()

	rec, err := s2.Header.RecordAt(link)
	if err != nil {
		t.Fatalf("RecordAt after reopen: %v", err)
	}
	p, err := schema.DecodeHeaderPayload(s2.Header.PayloadOf(rec))
	if err != nil {
		t.Fatalf("DecodeHeaderPayload: %v", err)
	}
	if p.Height != 1 {
		t.Fatalf("Height after reopen = %d, want 1", p.Height)
	}
}

func TestOpenRefusesAfterUncleanShutdown(t *testing.T) {
	root := t.TempDir()
	cfg := schema.DefaultConfig()

	s, err := Create(root, cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Simulate a crash: release the process lock directly without the
	// orderly Close path, leaving the flush-lock sentinel in place.
	if err := releaseProcessLock(s.processLock); err != nil {
		t.Fatalf("releaseProcessLock: %v", err)
	}

	if _, err := Open(root, cfg); err == nil {
		t.Fatalf("Open after unclean shutdown: want error routing the caller to Restore")
	} else if !dberr.Is(err, dberr.VerifyTable) {
		t.Fatalf("Open error = %v, want verify_table", err)
	}
}

func TestOpenRejectsMismatchedTableVersion(t *testing.T) {
	root := t.TempDir()
	cfg := schema.DefaultConfig()

	s, err := Create(root, cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stale := []byte{0xff, 0xff, 0xff, 0xff}
	if err := os.WriteFile(versionPath(root, "header"), stale, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Open(root, cfg); !dberr.Is(err, dberr.VerifyTable) {
		t.Fatalf("Open with stale table version: err = %v, want verify_table", err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := schema.DefaultConfig()

	s, err := Create(root, cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	link, err := s.Header.PutLink(make([]byte, 32), schema.EncodeHeaderPayload(schema.HeaderPayload{Height: 5, ParentLink: primitives.Terminal(schema.HeaderLinkWidth)}))
	if err != nil {
		t.Fatalf("PutLink: %v", err)
	}
	if err := s.Snapshot(false); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := releaseProcessLock(s.processLock); err != nil {
		t.Fatalf("releaseProcessLock: %v", err)
	}

	s2, err := Restore(root, cfg)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	defer s2.Close()

	rec, err := s2.Header.RecordAt(link)
	if err != nil {
		t.Fatalf("RecordAt after restore: %v", err)
	}
	p, err := schema.DecodeHeaderPayload(s2.Header.PayloadOf(rec))
	if err != nil {
		t.Fatalf("DecodeHeaderPayload: %v", err)
	}
	if p.Height != 5 {
		t.Fatalf("Height after restore = %d, want 5", p.Height)
	}
}

func TestRestoreWithoutSnapshotFails(t *testing.T) {
	root := t.TempDir()
	cfg := schema.DefaultConfig()
	s, err := Create(root, cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := releaseProcessLock(s.processLock); err != nil {
		t.Fatalf("releaseProcessLock: %v", err)
	}
	if _, err := Restore(root, cfg); !dberr.Is(err, dberr.MissingSnapshot) {
		t.Fatalf("Restore without a prior Snapshot: err = %v, want missing_snapshot", err)
	}
}

func TestProcessLockExclusive(t *testing.T) {
	root := t.TempDir()
	cfg := schema.DefaultConfig()
	s, err := Create(root, cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	if _, err := acquireProcessLock(root); err == nil {
		t.Fatalf("acquireProcessLock on an already-locked store: want error")
	}
}

func TestEnsureDirCreatesNested(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := ensureDir(nested); err != nil {
		t.Fatalf("ensureDir: %v", err)
	}
	if info, err := os.Stat(nested); err != nil || !info.IsDir() {
		t.Fatalf("nested dir not created: err=%v", err)
	}
}
