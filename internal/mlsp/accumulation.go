package mlsp

import "github.com/sarchlab/llcprefetch/internal/assoc"

// ATData is the AccumulationTable payload (spec.md §3), grounded on rb.h's
// ATDataRB. Region is carried alongside the payload (absent from the
// original, whose Entry exposed the table's own obscured key and relied on
// "unhashing" it back) so a capacity-evicted or retired entry can still be
// keyed into the PatternHistoryTable without reconstructing its origin.
type ATData struct {
	Region          uint64
	PC              uint64
	Offset          int
	Pattern         []bool
	PatternPrefetch []bool
}

// AccumulationTable holds active region entries collecting observed offsets
// into a bit-pattern while the region is hot (spec.md §4.2).
type AccumulationTable struct {
	table      *assoc.Table[ATData]
	patternLen int

	// eventToRegion supports rb.h's SHORT_ACCUMULATION feature: a region can
	// be recovered from the (pc, offset) of the access that created it,
	// letting a later trigger access on the same footprint re-find the
	// region it started even after the offset moved on.
	eventToRegion     map[uint64]uint64
	shortAccumulation bool
}

// NewAccumulationTable builds a size/ways-way accumulation table for a level
// whose region size is patternLen blocks.
func NewAccumulationTable(size, ways, patternLen int, shortAccumulation bool) *AccumulationTable {
	numSets := size / ways
	t := &AccumulationTable{table: assoc.New[ATData](numSets, ways), patternLen: patternLen, shortAccumulation: shortAccumulation}
	if shortAccumulation {
		t.eventToRegion = make(map[uint64]uint64)
	}
	return t
}

func eventKey(pc uint64, offset int) uint64 {
	return (uint64(offset) << 16) | (pc & 0xFFFF)
}

// SetPattern marks offset observed in region's entry, reporting whether the
// entry existed (spec.md §4.2 AccumulationTable.touch).
func (a *AccumulationTable) SetPattern(region uint64, offset int) bool {
	e, ok := a.table.Find(region)
	if !ok {
		return false
	}
	e.Data.Pattern[offset] = true
	a.table.SetMRU(region)
	return true
}

// Insert creates a fresh entry for region with only offset set in the
// observed pattern (rb.h ATRB's 4-arg insert, used on first promotion).
func (a *AccumulationTable) Insert(region, pc uint64, offset int, patternPrefetch []bool) (evicted ATData, hadVictim bool) {
	pattern := make([]bool, a.patternLen)
	pattern[offset] = true
	old, had := a.table.Insert(region, ATData{Region: region, PC: pc, Offset: offset, Pattern: pattern, PatternPrefetch: patternPrefetch})
	if a.shortAccumulation {
		a.eventToRegion[eventKey(pc, offset)] = region
	}
	return old.Data, had
}

// InsertFull creates an entry for region with a caller-supplied observed
// pattern (rb.h ATRB's 5-arg insert, used when merging two children on
// level-up).
func (a *AccumulationTable) InsertFull(region, pc uint64, offset int, pattern, patternPrefetch []bool) (evicted ATData, hadVictim bool) {
	old, had := a.table.Insert(region, ATData{Region: region, PC: pc, Offset: offset, Pattern: pattern, PatternPrefetch: patternPrefetch})
	return old.Data, had
}

// Find looks up region without modifying LRU state, used by Engine to peek
// at an in-progress entry for eager level-down checks.
func (a *AccumulationTable) Find(region uint64) (*ATData, bool) {
	e, ok := a.table.Find(region)
	if !ok {
		return nil, false
	}
	return &e.Data, true
}

// Erase removes region's entry, if present.
func (a *AccumulationTable) Erase(region uint64) (ATData, bool) {
	e, ok := a.table.Erase(region)
	if ok && a.shortAccumulation {
		delete(a.eventToRegion, eventKey(e.Data.PC, e.Data.Offset))
	}
	return e.Data, ok
}

// SearchByEvent recovers the region that was created by the access
// (pc, offset), supporting rb.h's SHORT_ACCUMULATION search_by_event.
func (a *AccumulationTable) SearchByEvent(pc uint64, offset int) (uint64, bool) {
	if !a.shortAccumulation {
		return 0, false
	}
	region, ok := a.eventToRegion[eventKey(pc, offset)]
	return region, ok
}

// PatternLen returns this level's region size.
func (a *AccumulationTable) PatternLen() int { return a.patternLen }
