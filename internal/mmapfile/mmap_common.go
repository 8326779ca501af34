//go:build unix

package mmapfile

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func mmapRegion(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func munmapRegion(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}

func msyncRegion(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

func isENOSPC(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}
