// Package acp implements the address-correlation prefetcher (Core B,
// spec.md §4.7-§4.8): a HistoryBuffer/IndexTable/ActiveStreamSet pipeline
// (grounded on Domino.h/Domino.cc) with an alternate structural-address
// translator path (grounded on isb.h/isb.cc), selected at construction via
// config.ACP.Strategy.
package acp

// HistoryBuffer is the append-only ordered sequence of observed block
// numbers (spec.md §3 "HistoryBuffer"), implemented as a ring buffer of
// configurable capacity per spec.md §5 ("MUST be implemented as a ring
// buffer ... in a faithful port"), grounded on Domino.h's bare
// vector<uint64_t> history_buffer with pointer-wrap added.
type HistoryBuffer struct {
	data  []uint64
	next  uint64 // monotonic logical length; physical index = next % cap
	count uint64
}

// NewHistoryBuffer builds a ring buffer holding up to capacity entries.
func NewHistoryBuffer(capacity int) *HistoryBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &HistoryBuffer{data: make([]uint64, capacity)}
}

// Append pushes block, returning its logical pointer (monotonically
// increasing, matching Domino.cc's `history_buffer.size() - 1`).
func (h *HistoryBuffer) Append(block uint64) uint64 {
	p := h.next
	h.data[p%uint64(len(h.data))] = block
	h.next++
	if h.count < uint64(len(h.data)) {
		h.count++
	}
	return p
}

// Len returns the number of live (not yet overwritten) entries.
func (h *HistoryBuffer) Len() uint64 { return h.count }

// At returns the block number stored at logical pointer p, or false if p
// has already been overwritten or never written.
func (h *HistoryBuffer) At(p uint64) (uint64, bool) {
	if p >= h.next {
		return 0, false
	}
	if h.next-p > h.count {
		return 0, false
	}
	return h.data[p%uint64(len(h.data))], true
}
