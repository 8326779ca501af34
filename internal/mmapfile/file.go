// Package mmapfile owns one OS file handle and its current memory
// mapping, as spec.md 4.1 describes: open/close the handle, load/unload
// the mapping, grow and flush it, and hand out bounded, lock-scoped
// views into it.
package mmapfile

import (
	"os"
	"sync"

	"rubin.dev/archive/dberr"
)

const page = 4096

// Token is a shared access view into a File's current mapping. While any
// Token is live, the File cannot be remapped, unloaded, or closed: Get
// takes the remap mutex for read and Release gives it back. Callers must
// not hold a Token across an operation that might allocate (spec.md 4.1).
type Token struct {
	data    []byte
	release func()
	once    sync.Once
}

func (t *Token) Bytes() []byte { return t.data }

func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
}

// File is one table's head or body file.
type File struct {
	path string

	growthPercent int
	initialSize   int64

	mu     sync.RWMutex // remap mutex: shared while a Token lives, exclusive during remap/unload/close.
	osFile *os.File
	data   []byte // current mapping, length == capacity.
	size   int64  // logical size; size <= capacity == len(data).
	opened bool
	loaded bool

	diskFull   bool
	firstFault *dberr.Error
}

// Options configures a File's growth policy.
type Options struct {
	InitialSize   int64 // rounded up to a page; 0 means one page.
	GrowthPercent int   // percent capacity grows by when exhausted; 0 means 50.
}

func New(path string, opts Options) *File {
	initial := opts.InitialSize
	if initial <= 0 {
		initial = page
	}
	growth := opts.GrowthPercent
	if growth <= 0 {
		growth = 50
	}
	return &File{path: path, initialSize: roundPage(initial), growthPercent: growth}
}

func roundPage(n int64) int64 {
	if n%page == 0 {
		return n
	}
	return (n/page + 1) * page
}

func (f *File) fault(code dberr.Code, op string, err error) error {
	e := &dberr.Error{Code: code, Op: op, Err: err}
	f.firstFault = e
	return e
}

// latched returns the file's first-fault error if one has ever been
// recorded: once a File faults, every later mutation fails fast with
// that same code without touching the OS again (spec.md 4.1).
func (f *File) latched() error {
	if f.firstFault != nil {
		return f.firstFault
	}
	return nil
}

// Open opens (creating if necessary) the backing OS file. It does not map it.
func (f *File) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opened {
		return dberr.New(dberr.OpenOpen, "mmapfile.Open")
	}
	osf, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- path is derived from an operator-controlled store directory, not user input.
	if err != nil {
		return dberr.Wrap(dberr.LoadFailure, "mmapfile.Open", err)
	}
	f.osFile = osf
	f.opened = true
	return nil
}

// Close closes the OS handle. It fails with close_loaded while the file
// is still mapped; Unload must come first.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opened {
		return nil
	}
	if f.loaded {
		return dberr.New(dberr.CloseLoaded, "mmapfile.Close")
	}
	if err := f.osFile.Close(); err != nil {
		return dberr.Wrap(dberr.CloseLoaded, "mmapfile.Close", err)
	}
	f.opened = false
	f.osFile = nil
	return nil
}

// Load maps the file at its current on-disk size (at least initialSize).
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.opened {
		return dberr.New(dberr.LoadFailure, "mmapfile.Load")
	}
	if f.loaded {
		return dberr.New(dberr.LoadLoaded, "mmapfile.Load")
	}
	if err := f.latched(); err != nil {
		return err
	}

	info, err := f.osFile.Stat()
	if err != nil {
		return f.fault(dberr.LoadFailure, "mmapfile.Load", err)
	}
	logical := info.Size()
	capacity := logical
	if capacity < f.initialSize {
		capacity = f.initialSize
	}
	capacity = roundPage(capacity)
	if info.Size() < capacity {
		if err := f.osFile.Truncate(capacity); err != nil {
			return f.fault(dberr.FtruncateFailure, "mmapfile.Load", err)
		}
	}
	data, err := mmapRegion(f.osFile, capacity)
	if err != nil {
		return f.fault(dberr.MmapFailure, "mmapfile.Load", err)
	}
	f.data = data
	f.size = logical
	f.loaded = true
	return nil
}

// Unload unmaps without closing the handle, then truncates the file to
// its logical size so the next Load recovers Size() from its length.
func (f *File) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return dberr.New(dberr.UnloadLocked, "mmapfile.Unload")
	}
	if err := munmapRegion(f.data); err != nil {
		return f.fault(dberr.MunmapFailure, "mmapfile.Unload", err)
	}
	f.data = nil
	f.loaded = false
	if err := f.osFile.Truncate(f.size); err != nil {
		return f.fault(dberr.FtruncateFailure, "mmapfile.Unload", err)
	}
	return nil
}

// Reload clears a latched disk-full state once capacity is known to be
// available again (spec.md 4.1).
func (f *File) Reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return dberr.New(dberr.ReloadUnloaded, "mmapfile.Reload")
	}
	f.diskFull = false
	if f.firstFault != nil && f.firstFault.Code == dberr.DiskFull {
		f.firstFault = nil
	}
	return nil
}

// Flush msyncs then fsyncs the mapping and backing file.
func (f *File) Flush() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.loaded {
		return dberr.New(dberr.FlushUnloaded, "mmapfile.Flush")
	}
	if err := f.latched(); err != nil {
		return err
	}
	if err := msyncRegion(f.data); err != nil {
		return f.fault(dberr.FlushFailure, "mmapfile.Flush", err)
	}
	if err := f.osFile.Sync(); err != nil {
		return f.fault(dberr.FsyncFailure, "mmapfile.Flush", err)
	}
	return nil
}

// Size returns the logical size (the portion of the mapping that holds
// committed data).
func (f *File) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

// Capacity returns the mapped region's length, which may exceed Size.
func (f *File) Capacity() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return int64(len(f.data))
}

// Truncate sets the logical size directly (used to pop index arrays and
// by prune). It never shrinks capacity.
func (f *File) Truncate(n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return dberr.New(dberr.UnloadedFile, "mmapfile.Truncate")
	}
	if n < 0 || n > int64(len(f.data)) {
		return dberr.New(dberr.Integrity, "mmapfile.Truncate")
	}
	f.size = n
	return nil
}

// grow raises capacity by growthPercent percent until it covers want, remapping
// under the exclusive remap lock. Caller must already hold f.mu.
func (f *File) grow(want int64) error {
	capacity := int64(len(f.data))
	if capacity == 0 {
		capacity = f.initialSize
	}
	for capacity < want {
		capacity = capacity + capacity*int64(f.growthPercent)/100
		if capacity < want {
			capacity = want
		}
	}
	capacity = roundPage(capacity)
	if err := f.osFile.Truncate(capacity); err != nil {
		if isENOSPC(err) {
			f.diskFull = true
			return f.fault(dberr.DiskFull, "mmapfile.grow", err)
		}
		return f.fault(dberr.FtruncateFailure, "mmapfile.grow", err)
	}
	newData, err := mremapRegion(f.osFile, f.data, capacity)
	if err != nil {
		return f.fault(dberr.MremapFailure, "mmapfile.grow", err)
	}
	f.data = newData
	return nil
}

// Allocate extends the logical size by n bytes, growing capacity first if
// needed, and returns the old logical size (the offset of the new
// region).
func (f *File) Allocate(n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return 0, dberr.New(dberr.UnloadedFile, "mmapfile.Allocate")
	}
	if err := f.latched(); err != nil {
		return 0, err
	}
	if f.diskFull {
		return 0, dberr.New(dberr.EOF, "mmapfile.Allocate")
	}
	old := f.size
	want := old + n
	if want > int64(len(f.data)) {
		if err := f.grow(want); err != nil {
			return 0, err
		}
	}
	f.size = want
	return old, nil
}

// Reserve ensures capacity covers n bytes without moving the logical size.
func (f *File) Reserve(n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return dberr.New(dberr.UnloadedFile, "mmapfile.Reserve")
	}
	if int64(len(f.data)) >= n {
		return nil
	}
	return f.grow(n)
}

// Set zero-allocates (or fills) a region at an arbitrary offset, growing
// logical size (and capacity) to cover it if necessary.
func (f *File) Set(offset, size int64, fill byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return dberr.New(dberr.UnloadedFile, "mmapfile.Set")
	}
	want := offset + size
	if want > int64(len(f.data)) {
		if err := f.grow(want); err != nil {
			return err
		}
	}
	region := f.data[offset:want]
	for i := range region {
		region[i] = fill
	}
	if want > f.size {
		f.size = want
	}
	return nil
}

// Get returns a read-locked Token bounded by the current logical size.
func (f *File) Get(offset int64) (*Token, error) {
	f.mu.RLock()
	if !f.loaded {
		f.mu.RUnlock()
		return nil, dberr.New(dberr.UnloadedFile, "mmapfile.Get")
	}
	if offset < 0 || offset > f.size {
		f.mu.RUnlock()
		return nil, dberr.New(dberr.Integrity, "mmapfile.Get")
	}
	tok := &Token{data: f.data[offset:f.size], release: f.mu.RUnlock}
	return tok, nil
}

// GetCapacity is like Get but bounds the view by capacity, not logical
// size; used when writing into freshly allocated but not-yet-committed
// space.
func (f *File) GetCapacity(offset int64) (*Token, error) {
	f.mu.RLock()
	if !f.loaded {
		f.mu.RUnlock()
		return nil, dberr.New(dberr.UnloadedFile, "mmapfile.GetCapacity")
	}
	if offset < 0 || offset > int64(len(f.data)) {
		f.mu.RUnlock()
		return nil, dberr.New(dberr.Integrity, "mmapfile.GetCapacity")
	}
	tok := &Token{data: f.data[offset:], release: f.mu.RUnlock}
	return tok, nil
}

// GetRaw returns a direct, non-remap-safe slice into the mapping. It is
// only for fixed table heads, whose size never changes after create, so
// remap never invalidates it in practice; callers must not retain it
// across a Close/Unload.
func (f *File) GetRaw(offset int64) []byte {
	return f.data[offset:]
}

func (f *File) Loaded() bool { return f.loaded }
func (f *File) Path() string { return f.path }
