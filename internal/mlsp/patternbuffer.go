package mlsp

import (
	"github.com/sarchlab/llcprefetch/internal/assoc"
	"github.com/sarchlab/llcprefetch/internal/fill"
)

// PBData is the PatternBuffer payload: a per-offset fill-level pattern for
// one top-level region (spec.md §3/§4.6).
type PBData struct {
	Pattern []fill.Level
}

// PatternBuffer merges pending prefetch patterns per top-level region and
// issues prefetches under the host cache's PQ/MSHR budget (spec.md §4.6),
// grounded on rb.h's PBRB.
type PatternBuffer struct {
	table         *assoc.Table[PBData]
	patternLen    int
	pfDegree      int
	log2BlockSize uint
}

// NewPatternBuffer builds a size/ways-way pattern buffer for the top level's
// region size (patternLen), issuing at most pfDegree prefetches per call.
func NewPatternBuffer(size, ways, patternLen, pfDegree int, log2BlockSize uint) *PatternBuffer {
	numSets := size / ways
	if numSets <= 0 {
		numSets = 1
	}
	return &PatternBuffer{
		table:         assoc.New[PBData](numSets, ways),
		patternLen:    patternLen,
		pfDegree:      pfDegree,
		log2BlockSize: log2BlockSize,
	}
}

// Insert merges pattern into region's entry, keeping the higher fill level
// at every offset where pattern proposes one (spec.md §4.6 "merges by taking
// the max fill-level per offset").
func (p *PatternBuffer) Insert(region uint64, pattern []fill.Level) {
	e, ok := p.table.Find(region)
	if !ok {
		cp := make([]fill.Level, len(pattern))
		copy(cp, pattern)
		p.table.Insert(region, PBData{Pattern: cp})
		p.table.SetMRU(region)
		return
	}
	for i, lvl := range pattern {
		if lvl != fill.None {
			e.Data.Pattern[i] = fill.Max(e.Data.Pattern[i], lvl)
		}
	}
	p.table.SetMRU(region)
}

// Prefetch locates blockNumber's top-level region and issues prefetches for
// its pending offsets, nearest distance first with positive strides
// preferred at equal distance, until pfDegree prefetches have been issued
// or the cache's PQ/MSHR budget is exhausted (spec.md §4.6). It returns the
// byte addresses issued, in issue order.
func (p *PatternBuffer) Prefetch(cache Cache, pc, blockNumber uint64) []uint64 {
	regionOffset := int(blockNumber) % p.patternLen
	region := blockNumber / uint64(p.patternLen)

	e, ok := p.table.Find(region)
	if !ok {
		return nil
	}
	p.table.SetMRU(region)

	pattern := e.Data.Pattern
	baseAddr := blockNumber << p.log2BlockSize
	pattern[regionOffset] = fill.None // the accessed block is fetched on demand regardless

	var issued []uint64
	for d := 1; d < p.patternLen; d++ {
		for _, sgn := range []int{+1, -1} {
			pfOffset := regionOffset + sgn*d
			if pfOffset < 0 || pfOffset >= p.patternLen || pattern[pfOffset] == fill.None {
				continue
			}
			if p.pfDegree > 0 && len(issued) >= p.pfDegree {
				return issued
			}
			if !(cache.PQOccupancy()+cache.MSHROccupancy() < cache.MSHRSize()-1 && cache.PQOccupancy() < cache.PQSize()) {
				return issued
			}
			pfAddr := (region*uint64(p.patternLen) + uint64(pfOffset)) << p.log2BlockSize
			cache.PrefetchLine(pc, baseAddr, pfAddr, pattern[pfOffset], 0)
			issued = append(issued, pfAddr)
			pattern[pfOffset] = fill.None
		}
	}

	p.table.Erase(region)
	return issued
}
