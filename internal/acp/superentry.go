package acp

// superEntry holds S candidate second-addresses observed after a given
// first address, each pointing into the HistoryBuffer (spec.md §3
// "SuperEntry"), grounded on Domino.h's Super_Entry.
type superEntry struct {
	data    []superSlot
	lru     []uint64
	clock   uint64
	mruAddr uint64
}

type superSlot struct {
	valid  bool
	second uint64
	ptr    uint64
}

func newSuperEntry(size int, second, ptr uint64) *superEntry {
	s := &superEntry{data: make([]superSlot, size), lru: make([]uint64, size)}
	s.data[0] = superSlot{valid: true, second: second, ptr: ptr}
	s.clock++
	s.lru[0] = s.clock
	s.mruAddr = second
	return s
}

func (s *superEntry) selectVictim() int {
	victim := 0
	for i := 1; i < len(s.lru); i++ {
		if s.lru[i] < s.lru[victim] {
			victim = i
		}
	}
	return victim
}

// Insert records a new (second, ptr) pair, evicting the LRU slot
// (spec.md §3 "eviction = minimum lru_stamp"); uniqueness by second_address
// is not enforced here, matching Domino.h's insert, which never
// deduplicates.
func (s *superEntry) Insert(second, ptr uint64) {
	victim := s.selectVictim()
	s.data[victim] = superSlot{valid: true, second: second, ptr: ptr}
	s.clock++
	s.lru[victim] = s.clock
	s.mruAddr = second
}

// Find looks up second among this entry's candidates, refreshing its LRU
// stamp on hit.
func (s *superEntry) Find(second uint64) (uint64, bool) {
	for i := range s.data {
		if s.data[i].valid && s.data[i].second == second {
			s.clock++
			s.lru[i] = s.clock
			return s.data[i].ptr, true
		}
	}
	return 0, false
}

// MRUAddress returns the most recently inserted second address.
func (s *superEntry) MRUAddress() uint64 { return s.mruAddr }

// streamData is one in-flight prefetch stream: the HistoryBuffer pointer to
// replay next, and the set of addresses already emitted and awaiting a
// matching access (spec.md §3 "Stream"), grounded on Domino.h's Stream_data.
type streamData struct {
	pointer        uint64
	prefetchedAddr map[uint64]bool
}

// activeStreamSet tracks in-flight prefetch streams, advancing them on
// partial hits (spec.md §4.7 item 1), grounded on Domino.h's Active_stream.
type activeStreamSet struct {
	streams []streamData
	valid   []bool
	lru     []uint64
	clock   uint64
	history *HistoryBuffer
}

func newActiveStreamSet(size int, history *HistoryBuffer) *activeStreamSet {
	return &activeStreamSet{
		streams: make([]streamData, size),
		valid:   make([]bool, size),
		lru:     make([]uint64, size),
		history: history,
	}
}

func (a *activeStreamSet) selectVictim() int {
	victim := 0
	for i := 1; i < len(a.lru); i++ {
		if a.lru[i] < a.lru[victim] {
			victim = i
		}
	}
	return victim
}

// CreateStream installs data into the set, evicting the LRU slot.
func (a *activeStreamSet) CreateStream(data streamData) {
	victim := a.selectVictim()
	a.streams[victim] = data
	a.valid[victim] = true
	a.clock++
	a.lru[victim] = a.clock
}

// Search advances any stream whose pending set contains addr, returning the
// next address it pulls from the HistoryBuffer (spec.md §4.7 item 1).
func (a *activeStreamSet) Search(addr uint64) (uint64, bool) {
	for i := range a.streams {
		if !a.valid[i] || !a.streams[i].prefetchedAddr[addr] {
			continue
		}
		delete(a.streams[i].prefetchedAddr, addr)
		next, ok := a.history.At(a.streams[i].pointer)
		a.streams[i].pointer++
		if !ok {
			continue
		}
		a.streams[i].prefetchedAddr[next] = true
		a.clock++
		a.lru[i] = a.clock
		return next, true
	}
	return 0, false
}
