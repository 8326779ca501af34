//go:build unix

package store

import (
	"os"

	"golang.org/x/sys/unix"
	"rubin.dev/archive/dberr"
)

// acquireProcessLock takes a non-blocking exclusive flock on
// <root>/process.lock so a second process opening the same store fails
// fast instead of corrupting it (spec.md 4.6, "process_lock").
func acquireProcessLock(root string) (*os.File, error) {
	f, err := os.OpenFile(processLockPath(root), os.O_CREATE|os.O_RDWR, 0o600) // #nosec G304 -- path derived from operator-controlled store root.
	if err != nil {
		return nil, dberr.Wrap(dberr.ProcessLock, "store.acquireProcessLock", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, dberr.Wrap(dberr.ProcessLock, "store.acquireProcessLock", err)
	}
	return f, nil
}

func releaseProcessLock(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close()
		return dberr.Wrap(dberr.ProcessUnlock, "store.releaseProcessLock", err)
	}
	return dberr.Wrap(dberr.ProcessUnlock, "store.releaseProcessLock", f.Close())
}
