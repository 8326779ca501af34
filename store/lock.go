package store

import (
	"os"
	"sync"
	"time"

	"rubin.dev/archive/dberr"
)

// transactor is the in-process shared/exclusive mutex of spec.md 4.6/5:
// readers acquire shared, writers (and snapshot/prune/close) acquire
// exclusive. Shared acquisition blocks on RLock; exclusive acquisition
// retries indefinitely, polling once a second and invoking onWait (when
// set) so operators can observe stalls (spec.md 5, "wait_lock").
type transactor struct {
	mu     sync.RWMutex
	onWait func()
}

func (t *transactor) shared() func() {
	t.mu.RLock()
	return t.mu.RUnlock
}

func (t *transactor) exclusive() func() {
	if t.mu.TryLock() {
		return t.mu.Unlock
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		<-ticker.C
		if t.onWait != nil {
			t.onWait()
		}
		if t.mu.TryLock() {
			return t.mu.Unlock
		}
	}
}

// flushLockPresent reports whether the previous process failed to close
// cleanly (spec.md I8).
func flushLockPresent(root string) bool {
	_, err := os.Stat(flushLockPath(root))
	return err == nil
}

func createFlushLock(root string) error {
	f, err := os.OpenFile(flushLockPath(root), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- path derived from operator-controlled store root.
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return dberr.Wrap(dberr.FlushLock, "store.createFlushLock", err)
	}
	return f.Close()
}

func removeFlushLock(root string) error {
	if err := os.Remove(flushLockPath(root)); err != nil && !os.IsNotExist(err) {
		return dberr.Wrap(dberr.FlushUnlock, "store.removeFlushLock", err)
	}
	return nil
}
