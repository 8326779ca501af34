// Package store owns the per-table head/body file pairs, the
// process-exclusive lock, the flush-lock crash sentinel, and the
// transactor mutex described by spec.md 4.6. It is the only package
// that opens internal/mmapfile files and wires them into
// internal/primitives tables; the query layer above it drives those
// primitives through Store's exported fields.
package store

import (
	"os"

	"rubin.dev/archive/dberr"
	"rubin.dev/archive/internal/mmapfile"
	"rubin.dev/archive/internal/primitives"
	"rubin.dev/archive/schema"
)

const spendCellLinkWidth = schema.SpendCellLinkWidth

// Store is the open, loaded archive: every table wired up and ready for
// the query layer to drive. Fields are exported so the query package
// can reach the primitives directly; Store itself only owns lifecycle.
type Store struct {
	root string
	cfg  schema.Config

	processLock *os.File
	tx          transactor
	dirty       bool // set by every create/open/restore; the flush lock stays until a clean Close.
	creating    bool // true only for the open() call that originates from Create.

	files []*mmapfile.File
	heads map[string]*mmapfile.File // table name -> head file, for Snapshot/Restore.

	Header *primitives.HashMap
	Tx     *primitives.HashMap
	Point  *primitives.HashMap

	PutsIns  *primitives.ArrayMap
	PutsOuts *primitives.ArrayMap

	Input  *primitives.SlabManager
	Output *primitives.SlabManager

	Spend *primitives.Multimap

	Txs      *primitives.HashMap
	TxsSlabs *primitives.SlabManager

	StrongTx  *primitives.HashMap
	Duplicate *primitives.HashMap

	Prevout      *primitives.HashMap
	PrevoutSlabs *primitives.SlabManager

	ValidatedBk *primitives.HashMap
	ValidatedTx *primitives.HashMap

	Candidate *primitives.ArrayMap
	Confirmed *primitives.ArrayMap

	Address *primitives.HashMap // nil unless cfg.AddressEnabled

	FilterBk    *primitives.HashMap // nil unless cfg.FilterEnabled
	FilterTx    *primitives.HashMap
	FilterSlabs *primitives.SlabManager
}

// Create opens a store at root, writing fresh table version stamps and
// filling every empty bucket head with terminal sentinels. Mirrors
// spec.md 4.6's `create`. It does not check for or clear existing table
// files: a head that already has content is kept as is, and existing
// bodies are mapped at their current size rather than truncated.
func Create(root string, cfg schema.Config) (*Store, error) {
	return open(root, cfg, true, false)
}

// Open opens an existing store at root. Mirrors spec.md 4.6's `open`.
// It refuses to proceed if the flush-lock sentinel is present (spec.md
// 4.6's state diagram routes a crashed store through Restore, not
// Open); callers should call Restore instead.
func Open(root string, cfg schema.Config) (*Store, error) {
	return open(root, cfg, false, false)
}

func open(root string, cfg schema.Config, creating, restoring bool) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensureDir(root); err != nil {
		return nil, err
	}
	if err := ensureDir(headsDir(root)); err != nil {
		return nil, err
	}

	s := &Store{root: root, cfg: cfg, creating: creating}
	lock, err := acquireProcessLock(root)
	if err != nil {
		return nil, err
	}
	s.processLock = lock

	if !creating && !restoring && flushLockPresent(root) {
		releaseProcessLock(lock)
		return nil, dberr.New(dberr.VerifyTable, "store.Open")
	}
	if err := createFlushLock(root); err != nil {
		releaseProcessLock(lock)
		return nil, err
	}
	s.dirty = true

	if err := s.openTables(); err != nil {
		s.closeFiles()
		releaseProcessLock(lock)
		return nil, err
	}
	return s, nil
}

func (s *Store) openTables() error {
	var err error

	if s.Header, err = s.openHashMap("header", s.cfg.Header, schema.HeaderKeySize, schema.HeaderRecordSize, schema.HeaderLinkWidth); err != nil {
		return err
	}
	if s.Tx, err = s.openHashMap("tx", s.cfg.Tx, schema.TxKeySize, schema.TxRecordSize, schema.TxLinkWidth); err != nil {
		return err
	}
	if s.Point, err = s.openHashMap("point", s.cfg.Point, schema.PointKeySize, schema.PointPayloadSize, schema.PointLinkWidth); err != nil {
		return err
	}

	putsIns, err := s.openRecordManager(bodyPath(s.root, "puts_ins"), schema.PutsInsRecordSize, schema.InputLinkWidth, defaultsFor(schema.InputLinkWidth))
	if err != nil {
		return err
	}
	s.PutsIns = primitives.NewArrayMap(putsIns)

	putsOuts, err := s.openRecordManager(bodyPath(s.root, "puts_outs"), schema.PutsOutsRecordSize, schema.OutputLinkWidth, defaultsFor(schema.OutputLinkWidth))
	if err != nil {
		return err
	}
	s.PutsOuts = primitives.NewArrayMap(putsOuts)

	if s.Input, err = s.openSlabManager(bodyPath(s.root, "input"), schema.InputLinkWidth, defaultsFor(schema.InputLinkWidth)); err != nil {
		return err
	}
	if s.Output, err = s.openSlabManager(bodyPath(s.root, "output"), schema.OutputLinkWidth, defaultsFor(schema.OutputLinkWidth)); err != nil {
		return err
	}

	spendIndex, err := s.openHashMap("spend_index", s.cfg.Spend, schema.SpendFingerprintSize, spendCellLinkWidth, spendCellLinkWidth)
	if err != nil {
		return err
	}
	spendCells, err := s.openRecordManager(bodyPath(s.root, "spend_cells"), spendCellLinkWidth+schema.SpendPayloadSize, spendCellLinkWidth, s.cfg.Spend)
	if err != nil {
		return err
	}
	s.Spend = primitives.NewMultimap(spendIndex, spendCells)

	if s.Txs, err = s.openHashMap("txs", s.cfg.Txs, schema.TxsKeySize, schema.TxsPayloadSize, schema.HeaderLinkWidth); err != nil {
		return err
	}
	if s.TxsSlabs, err = s.openSlabManager(bodyPath(s.root, "txs_slabs"), schema.TxsSlabLinkWidth, s.cfg.Txs); err != nil {
		return err
	}

	if s.StrongTx, err = s.openHashMap("strong_tx", s.cfg.StrongTx, schema.StrongTxKeySize, schema.StrongTxPayloadSize, schema.StrongTxLinkWidth); err != nil {
		return err
	}
	if s.Duplicate, err = s.openHashMap("duplicate", s.cfg.Duplicate, schema.DuplicateKeySize, schema.DuplicatePayloadSize, schema.DuplicateLinkWidth); err != nil {
		return err
	}

	if s.Prevout, err = s.openHashMap("prevout", s.cfg.Prevout, schema.PrevoutKeySize, schema.PrevoutPayloadSize, schema.HeaderLinkWidth); err != nil {
		return err
	}
	if s.PrevoutSlabs, err = s.openSlabManager(bodyPath(s.root, "prevout_slabs"), schema.PrevoutSlabLinkWidth, s.cfg.Prevout); err != nil {
		return err
	}

	if s.ValidatedBk, err = s.openHashMap("validated_bk", s.cfg.ValidatedBk, schema.ValidatedBkKeySize, schema.ValidatedBkPayloadSize, schema.ValidatedBkLinkWidth); err != nil {
		return err
	}
	if s.ValidatedTx, err = s.openHashMap("validated_tx", s.cfg.ValidatedTx, schema.ValidatedTxKeySize, schema.ValidatedTxPayloadSize, schema.ValidatedTxLinkWidth); err != nil {
		return err
	}

	candidate, err := s.openArrayHead("candidate", schema.CandidateRecordSize, schema.CandidateLinkWidth, defaultsFor(schema.CandidateLinkWidth))
	if err != nil {
		return err
	}
	s.Candidate = primitives.NewArrayMap(candidate)

	confirmed, err := s.openArrayHead("confirmed", schema.ConfirmedRecordSize, schema.ConfirmedLinkWidth, defaultsFor(schema.ConfirmedLinkWidth))
	if err != nil {
		return err
	}
	s.Confirmed = primitives.NewArrayMap(confirmed)

	if s.cfg.AddressEnabled {
		if s.Address, err = s.openHashMap("address", s.cfg.Address, schema.AddressKeySize, schema.AddressPayloadSize, schema.AddressLinkWidth); err != nil {
			return err
		}
	}
	if s.cfg.FilterEnabled {
		if s.FilterBk, err = s.openHashMap("filter_bk", s.cfg.FilterBk, schema.FilterBkKeySize, schema.FilterPayloadSize, schema.FilterSlabLinkWidth); err != nil {
			return err
		}
		if s.FilterTx, err = s.openHashMap("filter_tx", s.cfg.FilterTx, schema.FilterTxKeySize, schema.FilterPayloadSize, schema.FilterSlabLinkWidth); err != nil {
			return err
		}
		if s.FilterSlabs, err = s.openSlabManager(bodyPath(s.root, "filter_slabs"), schema.FilterSlabLinkWidth, defaultsFor(schema.FilterSlabLinkWidth)); err != nil {
			return err
		}
	}
	return nil
}

// defaultsFor returns the body sizing defaults for a table with no
// caller-tunable schema.TableConfig of its own (link-list and slab
// bodies that never bucket).
func defaultsFor(int) schema.TableConfig {
	return schema.TableConfig{}.WithDefaults(0)
}

// Root returns the directory this store was opened on.
func (s *Store) Root() string { return s.root }

// Config returns the configuration the store was opened with.
func (s *Store) Config() schema.Config { return s.cfg }

// Shared acquires the transactor for a read-only operation; the
// returned func releases it.
func (s *Store) Shared() func() { return s.tx.shared() }

// Exclusive acquires the transactor for a write operation, snapshot,
// prune, or close; the returned func releases it.
func (s *Store) Exclusive() func() { return s.tx.exclusive() }

func (s *Store) closeFiles() {
	for i := len(s.files) - 1; i >= 0; i-- {
		f := s.files[i]
		if f.Loaded() {
			f.Unload()
		}
		f.Close()
	}
	s.files = nil
}

// Close flushes and unmaps every table, releases the flush lock (clean
// shutdown, spec.md I8) and the process lock.
func (s *Store) Close() error {
	release := s.Exclusive()
	defer release()

	var firstErr error
	for _, f := range s.files {
		if err := f.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closeFiles()

	if firstErr == nil {
		if err := removeFlushLock(s.root); err != nil {
			firstErr = err
		} else {
			s.dirty = false
		}
	}
	if err := releaseProcessLock(s.processLock); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
