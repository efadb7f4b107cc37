// Package config holds the construction-time settings for both prefetcher
// cores, the Go-native replacement for the original's `namespace knob`
// globals (spec.md §9: "pass them explicitly as a configuration record to
// each component"). Values bind to YAML/flags via spf13/viper in
// cmd/prefetchsim; the structs here carry mapstructure tags for that and are
// otherwise plain data, validated once at construction (spec.md §7 item 3).
package config

import (
	"fmt"

	"github.com/sarchlab/llcprefetch/internal/fill"
)

// VoteStrategy selects how PatternHistoryTable loose matches are turned into
// a per-offset fill-level verdict (spec.md §4.4, supplemented by pmp.cc's
// decaying counter variant, SPEC_FULL.md §3.1).
type VoteStrategy int

const (
	// VoteFractional is the default: fraction of voters per offset compared
	// against L2C/LLC thresholds.
	VoteFractional VoteStrategy = iota
	// VotePMP uses a decaying saturating-counter matrix instead
	// (internal/mlsp.PMPVoteTable), grounded on pmp.cc's PatternTable.
	VotePMP
)

// Core selects which of the two parallel prediction cores (spec.md §2) the
// public prefetch.Prefetcher façade constructs.
type Core int

const (
	// CoreMLSP is the multi-level spatial pattern prefetcher (Core A).
	CoreMLSP Core = iota
	// CoreACP is the address-correlation prefetcher (Core B).
	CoreACP
)

// Strategy selects the ACP prediction path (spec.md §4.7 vs §4.8).
type Strategy int

const (
	// StrategyDomino is the default HistoryBuffer/IndexTable/ActiveStreamSet
	// three-way lookup (Domino.cc).
	StrategyDomino Strategy = iota
	// StrategyISB is the structural-address-translator path (isb.cc).
	StrategyISB
)

// Geometry holds the cache/block-size facts both cores need but neither
// owns (spec.md §3's "block number = addr >> LOG2_BLOCK_SIZE").
type Geometry struct {
	Log2BlockSize uint `mapstructure:"log2_block_size" yaml:"log2_block_size"`
}

// BlockSize returns 2^Log2BlockSize.
func (g Geometry) BlockSize() uint64 { return uint64(1) << g.Log2BlockSize }

// FillLevels names the near/far fill levels a single MLSP engine instance
// emits, parameterizing the rb_l1/rb duplication into one engine
// (SPEC_FULL.md §3.1).
type FillLevels struct {
	Near fill.Level `mapstructure:"near" yaml:"near"`
	Far  fill.Level `mapstructure:"far" yaml:"far"`
}

// MLSP configures the multi-level spatial pattern prefetcher (Core A,
// spec.md §6 "MLSP:" option list).
type MLSP struct {
	Levels          int     `mapstructure:"levels" yaml:"levels"`
	PatternLen      []int   `mapstructure:"pattern_len" yaml:"pattern_len"`
	PCWidth         uint    `mapstructure:"pc_width" yaml:"pc_width"`
	MinAddrWidth    []uint  `mapstructure:"min_addr_width" yaml:"min_addr_width"`
	MaxAddrWidth    uint    `mapstructure:"max_addr_width" yaml:"max_addr_width"`
	FTSize          []int   `mapstructure:"ft_size" yaml:"ft_size"`
	FTWays          int     `mapstructure:"ft_ways" yaml:"ft_ways"`
	ATSize          []int   `mapstructure:"at_size" yaml:"at_size"`
	ATWays          int     `mapstructure:"at_ways" yaml:"at_ways"`
	PHTSize         []int   `mapstructure:"pht_size" yaml:"pht_size"`
	PHTWays         int     `mapstructure:"pht_ways" yaml:"pht_ways"`
	PBSize          int     `mapstructure:"pb_size" yaml:"pb_size"`
	DefaultInsertLv int     `mapstructure:"default_insert_level" yaml:"default_insert_level"`
	L2CThresh       float64 `mapstructure:"l2c_thresh" yaml:"l2c_thresh"`
	LLCThresh       float64 `mapstructure:"llc_thresh" yaml:"llc_thresh"`
	AccuracyThresh  float64 `mapstructure:"accuracy_thresh" yaml:"accuracy_thresh"`
	OrThresh        float64 `mapstructure:"or_thresh" yaml:"or_thresh"`
	PFDegree        int     `mapstructure:"pf_degree" yaml:"pf_degree"`

	FillLevels FillLevels `mapstructure:"fill_levels" yaml:"fill_levels"`

	// ShortAccumulation/AccuracyLevelDown are the SHORT_ACCUMULATION /
	// ACCURACY_LEVELDOWN feature flags of rb.cc (spec.md §9); the defaults
	// below leave ShortAccumulation off and turn AccuracyLevelDown on.
	ShortAccumulation bool `mapstructure:"short_accumulation" yaml:"short_accumulation"`
	AccuracyLevelDown bool `mapstructure:"accuracy_leveldown" yaml:"accuracy_leveldown"`

	// EagerLevelDown supplements rsa.cc's eager split-at-promotion variant
	// (SPEC_FULL.md §3.1); false reproduces rb.cc's retirement-only split.
	EagerLevelDown bool `mapstructure:"eager_leveldown" yaml:"eager_leveldown"`

	VoteStrategy VoteStrategy `mapstructure:"vote_strategy" yaml:"vote_strategy"`

	DebugLevel int `mapstructure:"debug_level" yaml:"debug_level"`
}

// DefaultMLSP mirrors rb.cc's knob defaults: two levels of 32/64-block
// regions, fractional voting at 50%/25%, accuracy-leveldown on.
func DefaultMLSP() MLSP {
	return MLSP{
		Levels:          2,
		PatternLen:      []int{32, 64},
		PCWidth:         16,
		MinAddrWidth:    []uint{5, 6},
		MaxAddrWidth:    16,
		FTSize:          []int{64, 64},
		FTWays:          4,
		ATSize:          []int{64, 64},
		ATWays:          4,
		PHTSize:         []int{8192, 8192},
		PHTWays:         16,
		PBSize:          32,
		DefaultInsertLv: 0,
		L2CThresh:       0.5,
		LLCThresh:       0.25,
		AccuracyThresh:  0.5,
		OrThresh:        0.5,
		PFDegree:        4,
		FillLevels:      FillLevels{Near: fill.L2, Far: fill.LLC},
		AccuracyLevelDown: true,
		VoteStrategy:    VoteFractional,
	}
}

// DefaultMLSPL1 reproduces rb_l1.cc's near-level relabelling from the same
// engine (SPEC_FULL.md §3.1): FILL_L1/FILL_L2 instead of FILL_L2/FILL_LLC.
func DefaultMLSPL1() MLSP {
	c := DefaultMLSP()
	c.FillLevels = FillLevels{Near: fill.L1, Far: fill.L2}
	return c
}

// Validate rejects out-of-range or internally inconsistent configuration at
// construction time (spec.md §7 item 3): "reject at construction with a
// descriptive diagnostic; the core will not start."
func (c MLSP) Validate() error {
	if c.Levels < 1 {
		return fmt.Errorf("mlsp: levels must be >= 1, got %d", c.Levels)
	}
	if len(c.PatternLen) != c.Levels {
		return fmt.Errorf("mlsp: pattern_len must have %d entries, got %d", c.Levels, len(c.PatternLen))
	}
	if len(c.MinAddrWidth) != c.Levels {
		return fmt.Errorf("mlsp: min_addr_width must have %d entries, got %d", c.Levels, len(c.MinAddrWidth))
	}
	if len(c.FTSize) != c.Levels || len(c.ATSize) != c.Levels || len(c.PHTSize) != c.Levels {
		return fmt.Errorf("mlsp: ft_size/at_size/pht_size must each have %d entries", c.Levels)
	}
	for i, p := range c.PatternLen {
		if p <= 0 || p&(p-1) != 0 {
			return fmt.Errorf("mlsp: pattern_len[%d] = %d is not a positive power of two", i, p)
		}
		if i > 0 && p != 2*c.PatternLen[i-1] {
			return fmt.Errorf("mlsp: pattern_len[%d] = %d must be double pattern_len[%d] = %d", i, p, i-1, c.PatternLen[i-1])
		}
	}
	if c.DefaultInsertLv < 0 || c.DefaultInsertLv >= c.Levels {
		return fmt.Errorf("mlsp: default_insert_level %d out of range [0, %d)", c.DefaultInsertLv, c.Levels)
	}
	if c.PFDegree < 1 {
		return fmt.Errorf("mlsp: pf_degree must be >= 1, got %d", c.PFDegree)
	}
	if c.PBSize < 1 {
		return fmt.Errorf("mlsp: pb_size must be >= 1, got %d", c.PBSize)
	}
	return nil
}

// ACP configures the address-correlation prefetcher (Core B, spec.md §6
// "ACP/ISB:" option list).
type ACP struct {
	StreamMaxLength     int `mapstructure:"stream_max_length" yaml:"stream_max_length"`
	StreamMaxLengthBits uint `mapstructure:"stream_max_length_bits" yaml:"stream_max_length_bits"`
	IsRestrictRegion    bool `mapstructure:"is_restrict_region" yaml:"is_restrict_region"`
	Degree              int `mapstructure:"degree" yaml:"degree"`
	SuperEntrySize      int `mapstructure:"super_entry_size" yaml:"super_entry_size"`
	ActiveStreamSize    int `mapstructure:"active_stream_size" yaml:"active_stream_size"`
	HistorySize         int `mapstructure:"history_size" yaml:"history_size"`
	IndexTableSize      int `mapstructure:"index_table_size" yaml:"index_table_size"`

	Strategy Strategy `mapstructure:"strategy" yaml:"strategy"`
}

// DefaultACP mirrors Domino.cc/isb.cc's knob defaults.
func DefaultACP() ACP {
	return ACP{
		StreamMaxLength:     4096,
		StreamMaxLengthBits: 12,
		IsRestrictRegion:    false,
		Degree:              4,
		SuperEntrySize:      4,
		ActiveStreamSize:    64,
		HistorySize:         1 << 16,
		IndexTableSize:      1 << 14,
		Strategy:            StrategyDomino,
	}
}

// Validate rejects inconsistent ACP configuration at construction.
func (c ACP) Validate() error {
	if c.StreamMaxLength <= 0 || c.StreamMaxLength&(c.StreamMaxLength-1) != 0 {
		return fmt.Errorf("acp: stream_max_length %d is not a positive power of two", c.StreamMaxLength)
	}
	if uint(1)<<c.StreamMaxLengthBits != uint(c.StreamMaxLength) {
		return fmt.Errorf("acp: stream_max_length_bits %d does not match stream_max_length %d", c.StreamMaxLengthBits, c.StreamMaxLength)
	}
	if c.Degree < 1 {
		return fmt.Errorf("acp: degree must be >= 1, got %d", c.Degree)
	}
	if c.SuperEntrySize < 1 {
		return fmt.Errorf("acp: super_entry_size must be >= 1, got %d", c.SuperEntrySize)
	}
	if c.ActiveStreamSize < 1 {
		return fmt.Errorf("acp: active_stream_size must be >= 1, got %d", c.ActiveStreamSize)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("acp: history_size must be >= 1, got %d", c.HistorySize)
	}
	return nil
}

// Config is the top-level settings record passed to prefetch.New. Only the
// section named by Core is used; the other is carried so a single config
// file can switch cores without losing its tuning (spec.md §2 "selectable
// at construction").
type Config struct {
	Core     Core     `mapstructure:"core" yaml:"core"`
	Geometry Geometry `mapstructure:"geometry" yaml:"geometry"`
	MLSP     MLSP     `mapstructure:"mlsp" yaml:"mlsp"`
	ACP      ACP      `mapstructure:"acp" yaml:"acp"`
}

// Default returns the MLSP+ACP defaults both described above, at a 64-byte
// block size, selecting Core A (MLSP) as the active core.
func Default() Config {
	return Config{
		Core:     CoreMLSP,
		Geometry: Geometry{Log2BlockSize: 6},
		MLSP:     DefaultMLSP(),
		ACP:      DefaultACP(),
	}
}

// Validate checks every nested section.
func (c Config) Validate() error {
	if c.Geometry.Log2BlockSize == 0 || c.Geometry.Log2BlockSize > 16 {
		return fmt.Errorf("geometry: log2_block_size %d out of range", c.Geometry.Log2BlockSize)
	}
	if err := c.MLSP.Validate(); err != nil {
		return err
	}
	if err := c.ACP.Validate(); err != nil {
		return err
	}
	return nil
}
