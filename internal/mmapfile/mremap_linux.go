//go:build linux

package mmapfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// mremapRegion grows an existing mapping in place where the kernel can,
// falling back to munmap+mmap only if the address range can't be
// extended. The backing file must already be truncated to newSize.
func mremapRegion(f *os.File, old []byte, newSize int64) ([]byte, error) {
	if len(old) == 0 {
		return mmapRegion(f, newSize)
	}
	data, err := unix.Mremap(old, int(newSize), unix.MREMAP_MAYMOVE)
	if err != nil {
		return nil, err
	}
	return data, nil
}
