// Package prefetch exposes the two cores behind one selectable interface
// (spec.md §2 "Two parallel cores share the same event interface. Each is
// selectable at construction.").
package prefetch

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sarchlab/llcprefetch/internal/acp"
	"github.com/sarchlab/llcprefetch/internal/config"
	"github.com/sarchlab/llcprefetch/internal/event"
	"github.com/sarchlab/llcprefetch/internal/fill"
	"github.com/sarchlab/llcprefetch/internal/mlsp"
)

// Cache is the narrow call-out surface both cores issue prefetches through
// (spec.md §6): PQ/MSHR occupancy plus a single prefetch-issue call. Identical
// in shape to mlsp.Cache; re-declared here so callers depend only on the
// public façade package.
type Cache interface {
	PQOccupancy() int
	PQSize() int
	MSHROccupancy() int
	MSHRSize() int
	PrefetchLine(pc, triggerAddr, targetAddr uint64, level fill.Level, metadata uint32)
}

// Prefetcher is the uniform event interface spec.md §6 describes: an
// on_access callback that trains and predicts in one step, returning
// proposed prefetch byte addresses, and an on_fill callback that clears
// transient per-region/per-stream state for an evicted block.
type Prefetcher interface {
	// OnAccess trains the core on (pc, addr, cacheHit, accessType) and
	// returns the byte-aligned addresses it prefetched this call, subject to
	// cache's PQ/MSHR budget.
	OnAccess(cache Cache, pc, addr uint64, cacheHit bool, accessType event.AccessType) []uint64
	// OnFill clears bookkeeping keyed to evictedAddr.
	OnFill(evictedAddr uint64)
}

// New builds the core named by cfg.Core (spec.md §2), validating cfg first.
func New(cfg config.Config, reg prometheus.Registerer, logger zerolog.Logger) (Prefetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("prefetch: invalid config: %w", err)
	}

	switch cfg.Core {
	case config.CoreMLSP:
		engine, err := mlsp.NewEngine(cfg.MLSP, cfg.Geometry, reg, logger, "rb")
		if err != nil {
			return nil, err
		}
		return &mlspAdapter{engine: engine}, nil
	case config.CoreACP:
		engine, err := acp.NewEngine(cfg.ACP, cfg.Geometry, reg, logger)
		if err != nil {
			return nil, err
		}
		return &acpAdapter{engine: engine, log2BlockSize: cfg.Geometry.Log2BlockSize, fillLevel: fill.L2}, nil
	default:
		return nil, fmt.Errorf("prefetch: unknown core %d", cfg.Core)
	}
}

// mlspAdapter wires mlsp.Engine (which issues prefetches itself through the
// Cache call-out, per rb.cc's design) to the uniform Prefetcher interface.
type mlspAdapter struct {
	engine *mlsp.Engine
}

func (a *mlspAdapter) OnAccess(cache Cache, pc, addr uint64, cacheHit bool, accessType event.AccessType) []uint64 {
	a.engine.OnAccess(pc, addr, cacheHit, accessType)
	if accessType != event.Load {
		return nil
	}
	return a.engine.Prefetch(cache, pc, addr)
}

func (a *mlspAdapter) OnFill(evictedAddr uint64) {
	a.engine.OnFill(evictedAddr)
}

// acpAdapter wires acp.Engine (which returns candidate block numbers rather
// than issuing through a Cache, per Domino.cc/isb.cc's design) to the
// uniform Prefetcher interface: it shifts blocks to byte addresses and
// issues them itself, honoring the same PQ/MSHR budget mlsp.PatternBuffer
// enforces (spec.md §4.9 "Budget-exceeded prefetches are silently skipped").
type acpAdapter struct {
	engine        *acp.Engine
	log2BlockSize uint
	fillLevel     fill.Level
}

func (a *acpAdapter) OnAccess(cache Cache, pc, addr uint64, cacheHit bool, accessType event.AccessType) []uint64 {
	blocks := a.engine.OnAccess(pc, addr, cacheHit, accessType)
	var issued []uint64
	for _, b := range blocks {
		if !(cache.PQOccupancy()+cache.MSHROccupancy() < cache.MSHRSize()-1 && cache.PQOccupancy() < cache.PQSize()) {
			break
		}
		target := b << a.log2BlockSize
		cache.PrefetchLine(pc, addr, target, a.fillLevel, 0)
		issued = append(issued, target)
	}
	return issued
}

func (a *acpAdapter) OnFill(evictedAddr uint64) {
	a.engine.OnFill(evictedAddr)
}
