package mlsp

import "github.com/sarchlab/llcprefetch/internal/fill"

// Cache is the narrow call-out surface the PatternBuffer issues prefetches
// through (spec.md §5/§6): read-only occupancy counters plus a single
// prefetch-issue call. internal/simcache.Harness implements this.
type Cache interface {
	PQOccupancy() int
	PQSize() int
	MSHROccupancy() int
	MSHRSize() int
	PrefetchLine(pc, triggerAddr, targetAddr uint64, level fill.Level, metadata uint32)
}
