package simcache

import (
	"github.com/rs/zerolog"
	"github.com/sarchlab/llcprefetch/internal/fill"
)

// Harness is the host simulator both prefetcher cores are exercised against
// (SPEC_FULL.md §4.10): an in-process LLC model over the adapted
// Directory/VictimFinder, exposing the PQ/MSHR occupancy counters and the
// PrefetchLine call-out spec.md §6 names. cmd/prefetchsim drives accesses
// through this type directly; it implements both mlsp.Cache and
// prefetch.Cache without importing either package (structural typing).
type Harness struct {
	dir Directory

	pqSize, pqOccupancy     int
	mshrSize, mshrOccupancy int

	issued []PrefetchRecord
	logger zerolog.Logger
}

// PrefetchRecord captures one issued prefetch for test assertions and
// cmd/prefetchsim's summary report.
type PrefetchRecord struct {
	PC, TriggerAddr, TargetAddr uint64
	Level                       fill.Level
	Metadata                    uint32
}

// NewHarness builds a Harness over an LLC of the given geometry and
// replacement policy, with pqSize/mshrSize queue budgets (spec.md §5).
func NewHarness(numSets, numWays, blockSize, pqSize, mshrSize int, victimFinder VictimFinder, logger zerolog.Logger) *Harness {
	return &Harness{
		dir:      NewDirectory(numSets, numWays, blockSize, victimFinder),
		pqSize:   pqSize,
		mshrSize: mshrSize,
		logger:   logger.With().Str("component", "harness").Logger(),
	}
}

// PQOccupancy implements mlsp.Cache/prefetch.Cache.
func (h *Harness) PQOccupancy() int { return h.pqOccupancy }

// PQSize implements mlsp.Cache/prefetch.Cache.
func (h *Harness) PQSize() int { return h.pqSize }

// MSHROccupancy implements mlsp.Cache/prefetch.Cache.
func (h *Harness) MSHROccupancy() int { return h.mshrOccupancy }

// MSHRSize implements mlsp.Cache/prefetch.Cache.
func (h *Harness) MSHRSize() int { return h.mshrSize }

// PrefetchLine implements mlsp.Cache/prefetch.Cache: it installs targetAddr
// into the directory synchronously and records the issue for inspection. It
// does not change the PQ/MSHR occupancy counters, which only
// SetQueueOccupancy sets.
func (h *Harness) PrefetchLine(pc, triggerAddr, targetAddr uint64, level fill.Level, metadata uint32) {
	h.issued = append(h.issued, PrefetchRecord{PC: pc, TriggerAddr: triggerAddr, TargetAddr: targetAddr, Level: level, Metadata: metadata})
	h.logger.Trace().Uint64("target", targetAddr).Str("level", level.String()).Msg("prefetch issued")

	block := h.Fill(targetAddr, true, level)
	_ = block
}

// Access performs a demand read at addr, allocating a block on miss via the
// configured victim finder, and reports whether it hit.
func (h *Harness) Access(addr uint64) (hit bool) {
	if b := h.dir.Lookup(addr); b != nil {
		h.dir.Visit(b)
		return true
	}
	h.Fill(addr, false, fill.None)
	return false
}

// Fill installs addr into the cache, evicting the current victim of its set,
// and returns the evicted block's prior address (0 if the victim was
// already invalid).
func (h *Harness) Fill(addr uint64, wasPrefetch bool, level fill.Level) (evictedAddr uint64) {
	victim := h.dir.FindVictim(addr)
	if victim == nil {
		return 0
	}
	if victim.IsValid {
		evictedAddr = victim.Tag
	}
	victim.IsValid = true
	victim.Tag = addr
	victim.WasPrefetch = wasPrefetch
	victim.FillLevel = level
	h.dir.Visit(victim)
	return evictedAddr
}

// BlockValid reports whether the block at (set, way) holds valid data
// (spec.md §6 read-only surface "block[set][way].valid").
func (h *Harness) BlockValid(set, way int) bool {
	sets := h.dir.GetSets()
	if set < 0 || set >= len(sets) || way < 0 || way >= len(sets[set].Blocks) {
		return false
	}
	return sets[set].Blocks[way].IsValid
}

// IssuedPrefetches returns every PrefetchLine call observed so far.
func (h *Harness) IssuedPrefetches() []PrefetchRecord { return h.issued }

// SetQueueOccupancy lets a driver simulate PQ/MSHR pressure directly,
// exercising spec.md §4.9's budget-exhaustion path.
func (h *Harness) SetQueueOccupancy(pq, mshr int) {
	h.pqOccupancy = pq
	h.mshrOccupancy = mshr
}
