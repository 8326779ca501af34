//go:build unix && !linux

package mmapfile

import "os"

// mremapRegion has no portable syscall outside Linux: unmap then remap
// over the (already truncated) backing file.
func mremapRegion(f *os.File, old []byte, newSize int64) ([]byte, error) {
	if len(old) > 0 {
		if err := munmapRegion(old); err != nil {
			return nil, err
		}
	}
	return mmapRegion(f, newSize)
}
