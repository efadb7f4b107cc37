package acp

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sarchlab/llcprefetch/internal/config"
	"github.com/sarchlab/llcprefetch/internal/event"
	"github.com/sarchlab/llcprefetch/internal/metrics"
)

// Engine is the ACP façade (spec.md §4.7/§4.8), grounded on Domino.cc's
// Domino class, with isb.cc's structural-translator path available as an
// alternate strategy (config.ACP.Strategy).
//
// Engine is not safe for concurrent use, matching mlsp.Engine.
type Engine struct {
	cfg           config.ACP
	log2BlockSize uint

	// Domino strategy state.
	history      *HistoryBuffer
	index        *indexTable
	streams      *activeStreamSet
	lastAddress  uint64
	prefetched   map[uint64]bool
	candidate    *superEntry
	candidateSet bool

	// ISB strategy state.
	translator   *Translator
	training     *TrainingUnit
	allocCounter uint64
	lastISBAddr  uint64

	metrics *metrics.ACP
	logger  zerolog.Logger
}

// NewEngine constructs an Engine from cfg, validating it first.
func NewEngine(cfg config.ACP, geom config.Geometry, reg prometheus.Registerer, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("acp: invalid config: %w", err)
	}

	strategyName := "domino"
	if cfg.Strategy == config.StrategyISB {
		strategyName = "isb"
	}

	e := &Engine{
		cfg:           cfg,
		log2BlockSize: geom.Log2BlockSize,
		metrics:       metrics.NewACP(reg, strategyName),
		logger:        logger.With().Str("component", "acp").Str("strategy", strategyName).Logger(),
	}

	if cfg.Strategy == config.StrategyISB {
		e.translator = NewTranslator()
		e.training = NewTrainingUnit()
	} else {
		e.history = NewHistoryBuffer(cfg.HistorySize)
		e.index = newIndexTable(cfg.IndexTableSize)
		e.streams = newActiveStreamSet(cfg.ActiveStreamSize, e.history)
		e.prefetched = make(map[uint64]bool)
	}

	return e, nil
}

// OnAccess implements prefetch.Prefetcher for the ACP core (spec.md §4.7's
// "on_access(pc, addr)"); it both trains and predicts in one call, returning
// proposed prefetch block addresses (block-aligned, not yet shifted to byte
// addresses).
func (e *Engine) OnAccess(pc, addr uint64, cacheHit bool, accessType event.AccessType) []uint64 {
	if accessType != event.Load {
		return nil
	}
	block := addr >> e.log2BlockSize
	if e.cfg.Strategy == config.StrategyISB {
		return e.accessISB(pc, block)
	}
	return e.accessDomino(pc, block)
}

// OnFill clears transient bookkeeping for an evicted block (spec.md §4.7's
// on_fill contract, grounded on Domino.cc's register_fill).
func (e *Engine) OnFill(evictedAddr uint64) {
	if e.cfg.Strategy == config.StrategyISB {
		return
	}
	delete(e.prefetched, evictedAddr>>e.log2BlockSize)
}

// --- Domino (default) strategy, grounded on Domino.cc ---

func (e *Engine) accessDomino(pc, block uint64) []uint64 {
	if block == e.lastAddress {
		return nil
	}

	var pref []uint64
	if next, ok := e.streams.Search(block); ok {
		pref = append(pref, next)
	} else if addrs, ok := e.matchSecondAddress(block); ok {
		pref = addrs
	} else {
		e.searchFirstAddress(block, &pref)
	}

	for _, a := range pref {
		e.prefetched[a] = true
	}

	ptr := e.history.Append(block)
	if e.lastAddress != 0 {
		e.index.Record(e.lastAddress, block, ptr, e.cfg.SuperEntrySize)
	}
	e.lastAddress = block
	return pref
}

// matchSecondAddress replays the candidate SuperEntry armed by the previous
// first-address match (spec.md §4.7 item 2), grounded on
// Domino::match_second_address.
func (e *Engine) matchSecondAddress(second uint64) ([]uint64, bool) {
	if !e.candidateSet {
		return nil, false
	}
	ptr, ok := e.candidate.Find(second)
	if !ok {
		return nil, false
	}

	var pref []uint64
	streamAddrs := make(map[uint64]bool)
	next := ptr
	i := 1
	for ; i <= e.cfg.Degree; i++ {
		v, ok := e.history.At(ptr + uint64(i))
		if !ok {
			break
		}
		pref = append(pref, v)
		streamAddrs[v] = true
		next = ptr + uint64(i)
	}
	e.streams.CreateStream(streamData{pointer: next + 1, prefetchedAddr: streamAddrs})
	return pref, true
}

// searchFirstAddress arms the candidate SuperEntry for first (spec.md §4.7
// item 3), grounded on Domino::seach_first_address.
func (e *Engine) searchFirstAddress(first uint64, pref *[]uint64) bool {
	entry, ok := e.index.Find(first)
	if !ok {
		e.candidateSet = false
		return false
	}
	e.candidate = entry
	e.candidateSet = true
	*pref = append(*pref, entry.MRUAddress())
	return true
}

// --- ISB strategy, grounded on isb.cc ---

func (e *Engine) accessISB(pc, addrB uint64) []uint64 {
	if addrB == e.lastISBAddr {
		return nil
	}
	e.lastISBAddr = addrB
	e.metrics.TotalAccess.Inc()

	var pref []uint64
	strB, ok := e.translator.Structural(addrB)
	if ok {
		candidates := e.predict(strB)
		n := 0
		for _, c := range candidates {
			if n >= e.cfg.Degree {
				break
			}
			pref = append(pref, c)
			e.metrics.Predictions.Inc()
			n++
		}
	} else {
		e.metrics.NoPrediction.Inc()
	}

	lastAddr, lastStr, train := e.training.Observe(pc, addrB)
	if train {
		if lastStr == 0 {
			lastStr = e.assignStructuralAddr()
			e.translator.Update(lastAddr, lastStr)
		}
		strB = e.train(lastStr, addrB)
	}
	e.training.Update(pc, addrB, strB)

	return pref
}

// predict walks forward from a trigger structural address, restricted-region
// or not (spec.md §4.8, supplemented by SPEC_FULL.md §3.1's
// is_restrict_region mode), grounded on isb.cc's predict().
func (e *Engine) predict(triggerStr uint64) []uint64 {
	var candidates []uint64
	streamLen := uint64(e.cfg.StreamMaxLength)

	if !e.cfg.IsRestrictRegion {
		ideal := 0
		for i := uint64(0); i < streamLen; i++ {
			if ideal >= e.cfg.Degree {
				break
			}
			strCandidate := triggerStr + 1 + i
			if strCandidate%streamLen == 0 {
				e.metrics.StreamEnd.Inc()
				break
			}
			if phys, ok := e.translator.Physical(strCandidate); ok {
				ideal++
				candidates = append(candidates, phys)
			} else {
				e.metrics.NoTranslation.Inc()
			}
		}
		return candidates
	}

	windowStart := (triggerStr >> e.cfg.StreamMaxLengthBits) << e.cfg.StreamMaxLengthBits
	numPrefetched := 0
	for i := uint64(0); i < streamLen; i++ {
		strCandidate := windowStart + i
		if strCandidate == triggerStr {
			continue
		}
		if phys, ok := e.translator.Physical(strCandidate); ok {
			candidates = append(candidates, phys)
			if numPrefetched >= e.cfg.Degree {
				break
			}
			numPrefetched++
		}
	}
	return candidates
}

// train binds B to A's stream, handling divergence and re-assignment
// (spec.md §4.8), grounded on isb.cc's ISB::train.
func (e *Engine) train(strA, physB uint64) uint64 {
	streamLen := uint64(e.cfg.StreamMaxLength)

	if strB, ok := e.translator.Structural(physB); ok {
		if strB == strA+1 {
			e.translator.IncreaseConfidence(physB)
			return strB
		}
		conf := e.translator.LowerConfidence(physB)
		if conf > 0 {
			return strB
		}
		e.translator.Invalidate(physB, strB)
	}

	if (strA+1)%streamLen == 0 {
		e.metrics.ExceedStreamAlloc.Inc()
		strB := e.assignStructuralAddr()
		e.translator.Update(physB, strB)
		return strB
	}

	if physAplus1, ok := e.translator.Physical(strA + 1); ok {
		e.metrics.StreamDivergenceCount.Inc()
		e.translator.Invalidate(physAplus1, strA+1)
	}

	strB := strA + 1
	e.translator.Update(physB, strB)
	return strB
}

func (e *Engine) assignStructuralAddr() uint64 {
	e.allocCounter += uint64(e.cfg.StreamMaxLength)
	return e.allocCounter
}
