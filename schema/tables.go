// Package schema declares the fixed table family of spec.md 3: the
// key/record layout of every archive, index, cache, and optional table,
// plus the per-table configuration fixed at store-create time.
package schema

import "fmt"

// Link widths, fixed at schema-compile time (spec.md I1). Most record
// tables use 4 bytes (up to ~4.29B entries); slab bodies that can grow
// past 4GiB (inputs, outputs, txs, prevouts, filters) use 5, as do the
// SPEND cells and the ADDRESS table.
const (
	HeaderLinkWidth      = 4
	TxLinkWidth          = 4
	PointLinkWidth       = 4
	InputLinkWidth       = 5
	OutputLinkWidth      = 5
	SpendCellLinkWidth   = 5
	TxsSlabLinkWidth     = 5
	PrevoutSlabLinkWidth = 5
	CandidateLinkWidth   = 4
	ConfirmedLinkWidth   = 4
	StrongTxLinkWidth    = 4
	ValidatedBkLinkWidth = 4
	ValidatedTxLinkWidth = 4
	AddressLinkWidth     = 5
	DuplicateLinkWidth   = 4
	FilterSlabLinkWidth  = 5
)

// TableConfig is the per-table knob set of spec.md 6: bucket count (for
// hashmap tables), initial body size, and growth rate.
type TableConfig struct {
	Buckets       int64 `json:"buckets,omitempty"`
	InitialSize   int64 `json:"initial_size"`
	GrowthPercent int   `json:"growth_percent"`
}

func (c TableConfig) WithDefaults(defaultBuckets int64) TableConfig {
	if c.Buckets <= 0 {
		c.Buckets = defaultBuckets
	}
	if c.InitialSize <= 0 {
		c.InitialSize = 4096
	}
	if c.GrowthPercent <= 0 {
		c.GrowthPercent = 50
	}
	return c
}

// Config is the store-wide, create-time-stable configuration of
// spec.md 6.
type Config struct {
	Turbo          bool `json:"turbo"`
	Minimize       bool `json:"minimize"`
	AddressEnabled bool `json:"address_enabled"`
	FilterEnabled  bool `json:"filter_enabled"`
	IntervalDepth  uint32 `json:"interval_depth"`

	Header      TableConfig `json:"header"`
	Tx          TableConfig `json:"tx"`
	Point       TableConfig `json:"point"`
	Spend       TableConfig `json:"spend"`
	Txs         TableConfig `json:"txs"`
	StrongTx    TableConfig `json:"strong_tx"`
	Duplicate   TableConfig `json:"duplicate"`
	Prevout     TableConfig `json:"prevout"`
	ValidatedBk TableConfig `json:"validated_bk"`
	ValidatedTx TableConfig `json:"validated_tx"`
	Address     TableConfig `json:"address"`
	FilterBk    TableConfig `json:"filter_bk"`
	FilterTx    TableConfig `json:"filter_tx"`
}

// DefaultConfig mirrors the teacher's DefaultConfig (node/config.go):
// sane defaults for every knob, no implicit disk-size assumptions.
func DefaultConfig() Config {
	return Config{
		IntervalDepth: 2016,
		Header:        TableConfig{}.WithDefaults(1 << 16),
		Tx:            TableConfig{}.WithDefaults(1 << 20),
		Point:         TableConfig{}.WithDefaults(1 << 20),
		Spend:         TableConfig{}.WithDefaults(1 << 20),
		Txs:           TableConfig{}.WithDefaults(1 << 16),
		StrongTx:      TableConfig{}.WithDefaults(1 << 20),
		Duplicate:     TableConfig{}.WithDefaults(1 << 10),
		Prevout:       TableConfig{}.WithDefaults(1 << 16),
		ValidatedBk:   TableConfig{}.WithDefaults(1 << 16),
		ValidatedTx:   TableConfig{}.WithDefaults(1 << 20),
		Address:       TableConfig{}.WithDefaults(1 << 20),
		FilterBk:      TableConfig{}.WithDefaults(1 << 16),
		FilterTx:      TableConfig{}.WithDefaults(1 << 16),
	}
}

// Validate hand-checks the configuration the way the teacher's
// ValidateConfig does: plain comparisons, no schema/validation library.
func (c Config) Validate() error {
	tables := map[string]TableConfig{
		"header": c.Header, "tx": c.Tx, "point": c.Point, "spend": c.Spend,
		"txs": c.Txs, "strong_tx": c.StrongTx, "duplicate": c.Duplicate,
		"prevout": c.Prevout, "validated_bk": c.ValidatedBk, "validated_tx": c.ValidatedTx,
	}
	if c.AddressEnabled {
		tables["address"] = c.Address
	}
	if c.FilterEnabled {
		tables["filter_bk"] = c.FilterBk
		tables["filter_tx"] = c.FilterTx
	}
	for name, t := range tables {
		if t.InitialSize <= 0 {
			return fmt.Errorf("schema: table %s: initial_size must be > 0", name)
		}
		if t.GrowthPercent <= 0 || t.GrowthPercent > 500 {
			return fmt.Errorf("schema: table %s: growth_percent must be in (0,500]", name)
		}
	}
	return nil
}
