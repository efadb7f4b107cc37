// Package event defines the access/fill vocabulary both prefetcher cores are
// driven by (spec.md §6): a stream of memory accesses annotated with their
// originating request type, and fill notifications used to retire transient
// per-region/per-stream bookkeeping.
package event

// AccessType mirrors the request classification both original cores gate
// their training on ("if (type != LOAD) return", rb.cc/isb.cc/pmp.cc/
// rsa.cc/sdomino.cc all open their access handler with this check).
type AccessType int

const (
	// Load is a demand read. Both cores only train and predict on loads.
	Load AccessType = iota
	// RFO is a read-for-ownership (store miss).
	RFO
	// Prefetch marks an access caused by a previously issued prefetch,
	// used to avoid re-training on the core's own traffic.
	Prefetch
	// Writeback is a dirty-eviction write, never block-address-useful for
	// spatial training.
	Writeback
	// Translation is a page-table-walk access; out of scope for this
	// physical-block-only design (spec.md Non-goals) but kept so a trace
	// reader can classify every record it sees rather than dropping them
	// silently.
	Translation
)

// String renders the access type the way trace dumps and log lines expect.
func (t AccessType) String() string {
	switch t {
	case Load:
		return "LOAD"
	case RFO:
		return "RFO"
	case Prefetch:
		return "PREFETCH"
	case Writeback:
		return "WRITEBACK"
	case Translation:
		return "TRANSLATION"
	default:
		return "UNKNOWN"
	}
}

// Access is one observed memory reference, the unit both cores' OnAccess
// methods are driven by.
type Access struct {
	PC       uint64
	Addr     uint64
	CacheHit bool
	Type     AccessType
}

// Fill notifies a core that a line left the cache (eviction) or entered it
// (on_fill, spec.md §6), carrying enough detail to clear state keyed to the
// departing address without the core needing its own copy of the directory.
type Fill struct {
	Addr        uint64
	Set, Way    uint32
	WasPrefetch bool
	EvictedAddr uint64
	EvictedVal  bool
}
