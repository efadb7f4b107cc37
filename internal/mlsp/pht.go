package mlsp

import (
	"github.com/sarchlab/llcprefetch/internal/bitpattern"
)

// MatchKind classifies a PatternHistoryTable lookup result (spec.md §4.4).
type MatchKind int

const (
	// MatchMiss means no entry agreed with the query under either width.
	MatchMiss MatchKind = iota
	// MatchPCOffset is a loose match: same PC and region offset, possibly a
	// different region. Several such entries may be collected and voted.
	MatchPCOffset
	// MatchPCAddress is a strict match: same PC and the same region, which
	// pre-empts every loose match found so far.
	MatchPCAddress
)

type phtEntry struct {
	valid   bool
	pc      uint64
	address uint64
	stamp   uint64
	pattern []bool
}

// PatternHistoryTable is the per-level associative memory of spec.md §4.4,
// grounded on rb.h's PHTRB. Unlike FilterTable/AccumulationTable it does not
// wrap assoc.Table[T]: PHTRB itself overrides the generic find() to walk
// entries by hand, because a lookup must compare two independent bit widths
// (PC+Offset vs PC+Address) against the same key, which a single opaque LRU
// tag cannot express. PatternHistoryTable reproduces that override directly.
type PatternHistoryTable struct {
	sets         [][]phtEntry
	numWays      int
	patternLen   int
	pcWidth      uint
	minAddrWidth uint
	maxAddrWidth uint
	clock        uint64
	lastEvent    MatchKind
}

// NewPatternHistoryTable builds a table of size/ways entries, keyed by a
// PC masked to pcWidth bits and a region-relative address masked to
// minAddrWidth (loose) or maxAddrWidth (strict) bits.
func NewPatternHistoryTable(size, ways, patternLen int, pcWidth, minAddrWidth, maxAddrWidth uint) *PatternHistoryTable {
	if ways <= 0 {
		ways = 1
	}
	numSets := size / ways
	if numSets <= 0 {
		numSets = 1
	}
	sets := make([][]phtEntry, numSets)
	for i := range sets {
		sets[i] = make([]phtEntry, ways)
	}
	return &PatternHistoryTable{
		sets:         sets,
		numWays:      ways,
		patternLen:   patternLen,
		pcWidth:      pcWidth,
		minAddrWidth: minAddrWidth,
		maxAddrWidth: maxAddrWidth,
	}
}

func mask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

func (t *PatternHistoryTable) index(pc, address uint64) int {
	pcMasked := pc & mask(t.pcWidth)
	offset := address & mask(t.minAddrWidth)
	h := mixKey((pcMasked << t.minAddrWidth) | offset)
	return int(h % uint64(len(t.sets)))
}

func mixKey(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

func (t *PatternHistoryTable) nextStamp() uint64 {
	t.clock++
	return t.clock
}

// Insert rotates pattern so offset 0 corresponds to address's offset within
// the region, then upserts it under (pc, address) (spec.md §4.4 "Insertion
// rotates pattern left by -trigger_offset mod P_ℓ").
func (t *PatternHistoryTable) Insert(pc, address uint64, pattern []bool) {
	offset := int(address) % t.patternLen
	rotated := bitpattern.RotateLeft(pattern, offset)
	t.upsert(pc, address, rotated)
}

func (t *PatternHistoryTable) upsert(pc, address uint64, pattern []bool) {
	index := t.index(pc, address)
	set := t.sets[index]
	pcMasked := pc & mask(t.pcWidth)
	addrMasked := address & mask(t.maxAddrWidth)

	for i := range set {
		if set[i].valid && set[i].pc&mask(t.pcWidth) == pcMasked && set[i].address&mask(t.maxAddrWidth) == addrMasked {
			set[i].pattern = pattern
			set[i].stamp = t.nextStamp()
			return
		}
	}

	victim := -1
	for i := range set {
		if !set[i].valid {
			victim = i
			break
		}
	}
	if victim == -1 {
		victim = 0
		for i := 1; i < len(set); i++ {
			if set[i].stamp < set[victim].stamp {
				victim = i
			}
		}
	}
	set[victim] = phtEntry{valid: true, pc: pcMasked, address: addrMasked, stamp: t.nextStamp(), pattern: pattern}
}

// Erase removes the entry keyed by (pc, address), if present.
func (t *PatternHistoryTable) Erase(pc, address uint64) (pattern []bool, ok bool) {
	index := t.index(pc, address)
	set := t.sets[index]
	pcMasked := pc & mask(t.pcWidth)
	addrMasked := address & mask(t.maxAddrWidth)
	for i := range set {
		if set[i].valid && set[i].pc == pcMasked && set[i].address == addrMasked {
			pattern = set[i].pattern
			set[i] = phtEntry{}
			return pattern, true
		}
	}
	return nil, false
}

// Find performs the two-width lookup of spec.md §4.4: a strict PC+Address
// match short-circuits and pre-empts every loose PC+Offset match collected
// so far; all returned patterns are rotated right by the query's offset
// before leaving the table.
func (t *PatternHistoryTable) Find(pc, address uint64) []([]bool) {
	index := t.index(pc, address)
	set := t.sets[index]
	pcMasked := pc & mask(t.pcWidth)
	minMasked := address & mask(t.minAddrWidth)
	maxMasked := address & mask(t.maxAddrWidth)

	t.lastEvent = MatchMiss
	var matches [][]bool
	for i := range set {
		if !set[i].valid {
			continue
		}
		samePC := set[i].pc == pcMasked
		maxMatch := samePC && set[i].address == maxMasked
		minMatch := samePC && set[i].address&mask(t.minAddrWidth) == minMasked
		if maxMatch {
			t.lastEvent = MatchPCAddress
			set[i].stamp = t.nextStamp()
			matches = [][]bool{set[i].pattern}
			break
		}
		if minMatch {
			t.lastEvent = MatchPCOffset
			matches = append(matches, set[i].pattern)
		}
	}

	offset := int(address) % t.patternLen
	out := make([][]bool, len(matches))
	for i, m := range matches {
		out[i] = bitpattern.RotateRight(m, offset)
	}
	return out
}

// LastEvent reports how the most recent Find resolved.
func (t *PatternHistoryTable) LastEvent() MatchKind { return t.lastEvent }

// PatternLen returns this level's region size.
func (t *PatternHistoryTable) PatternLen() int { return t.patternLen }
