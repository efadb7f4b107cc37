package acp

// indexTable maps a first address to the SuperEntry of second addresses
// observed to follow it (spec.md §3 "IndexTable"), grounded on Domino.h's
// `map<uint64_t, Super_Entry> index_table`. The original is an unbounded
// std::map; spec.md §5 requires every table be bounded, so this port caps
// entry count and evicts by insertion-order LRU (a plain FIFO over a
// std::map's lack of one, the closest bounded analogue).
type indexTable struct {
	entries  map[uint64]*superEntry
	order    []uint64
	capacity int
}

func newIndexTable(capacity int) *indexTable {
	if capacity < 1 {
		capacity = 1
	}
	return &indexTable{entries: make(map[uint64]*superEntry), capacity: capacity}
}

// Find returns the SuperEntry for first, if any.
func (t *indexTable) Find(first uint64) (*superEntry, bool) {
	e, ok := t.entries[first]
	return e, ok
}

// Record inserts the (first -> second, ptr) observation (spec.md §4.7
// "Training: ... IndexTable[last_address].insert(block, |H|-1)"): if first
// already has an entry its SuperEntry gains the candidate, else a fresh
// SuperEntry is created seeded with it, evicting the oldest key if at
// capacity.
func (t *indexTable) Record(first, second, ptr uint64, superEntrySize int) {
	if e, ok := t.entries[first]; ok {
		e.Insert(second, ptr)
		return
	}
	if len(t.entries) >= t.capacity && len(t.order) > 0 {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.entries, oldest)
	}
	t.entries[first] = newSuperEntry(superEntrySize, second, ptr)
	t.order = append(t.order, first)
}
