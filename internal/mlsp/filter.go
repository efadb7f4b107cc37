package mlsp

import "github.com/sarchlab/llcprefetch/internal/assoc"

// FTData is the FilterTable payload (spec.md §3 "FilterTable payload"),
// grounded on rb.h's FTDataRB.
type FTData struct {
	PC              uint64
	Offset          int
	PatternPrefetch []bool
}

// FilterTable holds one entry per recently-seen region with a single
// observed offset, pending the pre-computed prefetch mask that will seed an
// AccumulationTable entry on promotion (spec.md §4.2).
type FilterTable struct {
	table      *assoc.Table[FTData]
	patternLen int
}

// NewFilterTable builds a size/ways-way filter table for a level whose
// region size is patternLen blocks.
func NewFilterTable(size, ways, patternLen int) *FilterTable {
	numSets := size / ways
	return &FilterTable{table: assoc.New[FTData](numSets, ways), patternLen: patternLen}
}

// Find looks up region, refreshing MRU on hit (rb.h's FT::find does the
// same: a successful find always counts as a touch).
func (f *FilterTable) Find(region uint64) (*FTData, bool) {
	e, ok := f.table.Find(region)
	if !ok {
		return nil, false
	}
	f.table.SetMRU(region)
	return &e.Data, true
}

// Insert creates a new entry for region, evicting the minimum-stamp way if
// the set is full.
func (f *FilterTable) Insert(region, pc uint64, offset int, patternPrefetch []bool) {
	f.table.Insert(region, FTData{PC: pc, Offset: offset, PatternPrefetch: patternPrefetch})
}

// Erase removes region's entry, if present.
func (f *FilterTable) Erase(region uint64) (FTData, bool) {
	e, ok := f.table.Erase(region)
	return e.Data, ok
}

// PatternLen returns this level's region size.
func (f *FilterTable) PatternLen() int { return f.patternLen }
