// Package dberr defines the single error taxonomy shared by every layer of
// the archival storage engine, from the file map up through the query
// layer. Callers compare Code values, never message text.
package dberr

// Code names one failure kind. The string value is the spec vocabulary
// (snake_case) so it can be logged or asserted against literally.
type Code string

const (
	// Lifecycle / file map (spec.md 4.1, 7).
	OpenOpen         Code = "open_open"
	SizeFailure      Code = "size_failure"
	CloseLoaded      Code = "close_loaded"
	LoadLoaded       Code = "load_loaded"
	LoadLocked       Code = "load_locked"
	LoadFailure      Code = "load_failure"
	ReloadUnloaded   Code = "reload_unloaded"
	ReloadLocked     Code = "reload_locked"
	FlushUnloaded    Code = "flush_unloaded"
	FlushFailure     Code = "flush_failure"
	UnloadLocked     Code = "unload_locked"
	UnloadFailure    Code = "unload_failure"
	DiskFull         Code = "disk_full"
	MmapFailure      Code = "mmap_failure"
	MremapFailure    Code = "mremap_failure"
	MunmapFailure    Code = "munmap_failure"
	MadviseFailure   Code = "madvise_failure"
	FtruncateFailure Code = "ftruncate_failure"
	FsyncFailure     Code = "fsync_failure"
	SysconfFailure   Code = "sysconf_failure"

	// Locking (spec.md 7).
	TransactorLock Code = "transactor_lock"
	ProcessLock    Code = "process_lock"
	FlushLock      Code = "flush_lock"
	FlushUnlock    Code = "flush_unlock"
	ProcessUnlock  Code = "process_unlock"

	// Storage layout (spec.md 7).
	MissingDirectory Code = "missing_directory"
	ClearDirectory   Code = "clear_directory"
	RenameDirectory  Code = "rename_directory"
	MissingSnapshot  Code = "missing_snapshot"
	UnloadedFile     Code = "unloaded_file"
	CreateTable      Code = "create_table"
	CloseTable       Code = "close_table"
	BackupTable      Code = "backup_table"
	RestoreTable     Code = "restore_table"
	VerifyTable      Code = "verify_table"
	NotCoalesced     Code = "not_coalesced"
	PruneTable       Code = "prune_table"

	// Integrity (spec.md 7).
	Integrity     Code = "integrity"
	Integrity1    Code = "integrity1"
	Integrity2    Code = "integrity2"
	Integrity3    Code = "integrity3"
	Integrity4    Code = "integrity4"
	Integrity5    Code = "integrity5"
	Integrity6    Code = "integrity6"
	Integrity7    Code = "integrity7"
	UnknownState  Code = "unknown_state"

	// Consensus (spec.md 7).
	Unassociated             Code = "unassociated"
	Unvalidated              Code = "unvalidated"
	MissingPreviousOutput    Code = "missing_previous_output"
	CoinbaseMaturity         Code = "coinbase_maturity"
	UnspentCoinbaseCollision Code = "unspent_coinbase_collision"
	RelativeTimeLocked       Code = "relative_time_locked"
	UnconfirmedSpend         Code = "unconfirmed_spend"
	ConfirmedDoubleSpend     Code = "confirmed_double_spend"
	BlockValid               Code = "block_valid"
	BlockConfirmable         Code = "block_confirmable"
	BlockUnconfirmable       Code = "block_unconfirmable"

	// Archive writes (spec.md 7).
	TxEmpty            Code = "tx_empty"
	TxTxAllocate       Code = "tx_tx_allocate"
	TxSpendAllocate    Code = "tx_spend_allocate"
	TxInputPut         Code = "tx_input_put"
	TxPointAllocate    Code = "tx_point_allocate"
	TxPointPut         Code = "tx_point_put"
	TxInsAllocate      Code = "tx_ins_allocate"
	TxInsPut           Code = "tx_ins_put"
	TxOutputPut        Code = "tx_output_put"
	TxPutsPut          Code = "tx_puts_put"
	TxTxSet            Code = "tx_tx_set"
	TxSpendPut         Code = "tx_spend_put"
	TxAddressAllocate  Code = "tx_address_allocate"
	TxAddressPut       Code = "tx_address_put"
	TxTxCommit         Code = "tx_tx_commit"
	TxDuplicatePut     Code = "tx_duplicate_put"
	TxSpendCommit      Code = "tx_spend_commit"
	TxNullPointPut     Code = "tx_null_point_put"
	HeaderPut          Code = "header_put"
	TxsHeader          Code = "txs_header"
	TxsEmpty           Code = "txs_empty"
	TxsConfirm         Code = "txs_confirm"
	TxsTxsPut          Code = "txs_txs_put"

	// Engine-level, not named individually in spec.md but required by
	// operations that validate caller input before touching a table.
	OrphanBlock Code = "orphan_block"
	EOF         Code = "eof"
)
