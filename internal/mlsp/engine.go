// Package mlsp implements the multi-level spatial pattern prefetcher (Core
// A / MLSP) of spec.md §2-§4.6: a recursive, region-coalescing Bingo-style
// pattern learner built from a FilterTable, AccumulationTable, and
// PatternHistoryTable per level, feeding a single top-level PatternBuffer.
// It is grounded on rb.h/rb.cc, with rb_l1.cc's near-level relabelling and
// rsa.cc's eager level-down folded in as configuration (SPEC_FULL.md §3.1).
package mlsp

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sarchlab/llcprefetch/internal/bitpattern"
	"github.com/sarchlab/llcprefetch/internal/config"
	"github.com/sarchlab/llcprefetch/internal/event"
	"github.com/sarchlab/llcprefetch/internal/fill"
	"github.com/sarchlab/llcprefetch/internal/metrics"
)

// Engine drives the access/eviction/prefetch pipeline across every level's
// tables (spec.md §2 "Prefetcher façade"), grounded on rb.cc's RB class.
//
// Engine is not safe for concurrent use (spec.md §5): it is driven
// synchronously by a single caller.
type Engine struct {
	cfg           config.MLSP
	log2BlockSize uint

	ft  []*FilterTable
	at  []*AccumulationTable
	pht []*PatternHistoryTable
	pb  *PatternBuffer

	pmpVote []*PMPVoteTable

	metrics *metrics.MLSP
	logger  zerolog.Logger
}

// NewEngine constructs an Engine from cfg, validating it first (spec.md §7
// item 3: "reject at construction with a descriptive diagnostic").
func NewEngine(cfg config.MLSP, geom config.Geometry, reg prometheus.Registerer, logger zerolog.Logger, name string) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mlsp: invalid config: %w", err)
	}

	e := &Engine{
		cfg:           cfg,
		log2BlockSize: geom.Log2BlockSize,
		metrics:       metrics.NewMLSP(reg, name),
		logger:        logger.With().Str("component", "mlsp").Str("engine", name).Logger(),
	}

	for i := 0; i < cfg.Levels; i++ {
		e.ft = append(e.ft, NewFilterTable(cfg.FTSize[i], cfg.FTWays, cfg.PatternLen[i]))
		e.at = append(e.at, NewAccumulationTable(cfg.ATSize[i], cfg.ATWays, cfg.PatternLen[i], cfg.ShortAccumulation))
		e.pht = append(e.pht, NewPatternHistoryTable(cfg.PHTSize[i], cfg.PHTWays, cfg.PatternLen[i], cfg.PCWidth, cfg.MinAddrWidth[i], cfg.MaxAddrWidth))
		if cfg.VoteStrategy == config.VotePMP {
			e.pmpVote = append(e.pmpVote, NewPMPVoteTable(cfg.PatternLen[i], 16, cfg.L2CThresh, cfg.LLCThresh))
		}
	}
	e.pb = NewPatternBuffer(cfg.PBSize, cfg.PHTWays, cfg.PatternLen[cfg.Levels-1], cfg.PFDegree, geom.Log2BlockSize)

	return e, nil
}

// NewRB builds an Engine with rb.cc's defaults (far fill levels L2/LLC).
func NewRB(geom config.Geometry, reg prometheus.Registerer, logger zerolog.Logger) (*Engine, error) {
	return NewEngine(config.DefaultMLSP(), geom, reg, logger, "rb")
}

// NewRBL1 builds an Engine with rb_l1.cc's near fill levels (L1/L2) from the
// same code (SPEC_FULL.md §3.1).
func NewRBL1(geom config.Geometry, reg prometheus.Registerer, logger zerolog.Logger) (*Engine, error) {
	return NewEngine(config.DefaultMLSPL1(), geom, reg, logger, "rb_l1")
}

// OnAccess implements prefetch.Prefetcher's half of the MLSP contract
// (spec.md §6): it trains the tables on a LOAD access but does not itself
// issue prefetches — callers invoke Prefetch separately once per access
// (matching rb.cc's invoke_prefetcher calling access() then prefetch()).
func (e *Engine) OnAccess(pc, addr uint64, cacheHit bool, accessType event.AccessType) {
	if accessType != event.Load {
		return
	}
	block := addr >> e.log2BlockSize
	e.access(block, pc)
}

// Prefetch issues pending prefetches for block's top-level region via the
// PatternBuffer (spec.md §4.6), returning the byte addresses issued.
func (e *Engine) Prefetch(cache Cache, pc, addr uint64) []uint64 {
	block := addr >> e.log2BlockSize
	return e.pb.Prefetch(cache, pc, block)
}

// OnFill clears transient bookkeeping for an evicted block, at every level
// (spec.md §2 "On each on_fill(evicted_addr): clear transient bookkeeping").
func (e *Engine) OnFill(evictedAddr uint64) {
	block := evictedAddr >> e.log2BlockSize
	e.eviction(block)
}

func (e *Engine) access(block, pc uint64) {
	for i := 0; i < e.cfg.Levels; i++ {
		patLen := uint64(e.at[i].PatternLen())
		region := block / patLen
		offset := int(block % patLen)
		if e.at[i].SetPattern(region, offset) {
			return
		}
	}

	ftHitLevel := -1
	var ftRegion uint64
	var ftEntry FTData
	for i := 0; i < e.cfg.Levels; i++ {
		patLen := uint64(e.ft[i].PatternLen())
		region := block / patLen
		if entry, ok := e.ft[i].Find(region); ok {
			ftHitLevel = i
			ftRegion = region
			ftEntry = *entry
			break
		}
	}

	if ftHitLevel < 0 {
		e.onFilterMiss(block, pc)
		return
	}

	regionOffset := int(block % uint64(e.cfg.PatternLen[ftHitLevel]))
	if ftEntry.Offset == regionOffset {
		return
	}

	e.metrics.RegionExpandChecked.Inc()
	e.promote(ftHitLevel, ftRegion, regionOffset, pc, ftEntry)
}

func (e *Engine) onFilterMiss(block, pc uint64) {
	if e.cfg.ShortAccumulation {
		for i := 0; i < e.cfg.Levels; i++ {
			offset := int(block % uint64(e.at[i].PatternLen()))
			if region, ok := e.at[i].SearchByEvent(pc, offset); ok {
				if atEntry, had := e.at[i].Erase(region); had && i > 0 {
					e.insertInPHT(atEntry, i)
				}
				break
			}
		}
	}

	pattern, phtHitLevel := e.findInPHT(pc, block)
	ftInsertLevel := phtHitLevel
	if ftInsertLevel < 0 {
		ftInsertLevel = e.cfg.DefaultInsertLv
	}
	patternPrefetch := make([]bool, e.cfg.PatternLen[ftInsertLevel])
	if pattern != nil {
		for i := range patternPrefetch {
			if pattern[i] != fill.None {
				patternPrefetch[i] = true
			}
		}
	}

	patLen := uint64(e.cfg.PatternLen[ftInsertLevel])
	region := block / patLen
	regionOffset := int(block % patLen)
	e.ft[ftInsertLevel].Insert(region, pc, regionOffset, patternPrefetch)

	if pattern != nil {
		topLen := e.cfg.PatternLen[e.cfg.Levels-1]
		expandPattern := make([]fill.Level, topLen)
		start := (int(block) % topLen) / len(pattern) * len(pattern)
		copy(expandPattern[start:], pattern)
		e.pb.Insert(block/uint64(topLen), expandPattern)
	}
}

// promote moves a second-touched FilterTable entry into the
// AccumulationTable, coalescing with its sibling region when present
// (spec.md §4.3 "level-up").
func (e *Engine) promote(ftHitLevel int, region uint64, regionOffset int, pc uint64, ftEntry FTData) {
	insertAtLevel := ftHitLevel
	regionInsert := region
	pcTrigger := ftEntry.PC
	offsetTrigger := ftEntry.Offset
	patternPrefetch := ftEntry.PatternPrefetch
	var patternInsert []bool
	var merged bool

	if ftHitLevel != e.cfg.Levels-1 {
		siblingLevelLen := e.at[ftHitLevel].PatternLen()
		if region&1 != 0 {
			if sib, had := e.at[ftHitLevel].Erase(region - 1); had {
				e.metrics.RegionExpanded.Inc()
				insertAtLevel++
				regionInsert >>= 1
				pcTrigger = sib.PC
				offsetTrigger = sib.Offset
				patternInsert = make([]bool, e.cfg.PatternLen[insertAtLevel])
				copy(patternInsert, sib.Pattern)
				half := len(patternInsert) / 2
				patternInsert[ftEntry.Offset+half] = true
				patternInsert[regionOffset+half] = true
				patternPrefetch = bitpattern.Concat(sib.PatternPrefetch, ftEntry.PatternPrefetch)
				merged = true
				e.mergeSiblingPHT(ftHitLevel, insertAtLevel, region-1, sib.PC, sib.Offset, pc, region, regionOffset)
			}
		} else {
			if sib, had := e.at[ftHitLevel].Erase(region + 1); had {
				e.metrics.RegionExpanded.Inc()
				insertAtLevel++
				regionInsert >>= 1
				pcTrigger = sib.PC
				offsetTrigger = sib.Offset + siblingLevelLen
				patternInsert = make([]bool, e.cfg.PatternLen[insertAtLevel])
				half := len(patternInsert) / 2
				copy(patternInsert[half:], sib.Pattern)
				patternInsert[ftEntry.Offset] = true
				patternInsert[regionOffset] = true
				patternPrefetch = bitpattern.Concat(ftEntry.PatternPrefetch, sib.PatternPrefetch)
				merged = true
				e.mergeSiblingPHT(ftHitLevel, insertAtLevel, region, pc, regionOffset, sib.PC, region+1, sib.Offset)
			}
		}
	}

	var victim ATData
	var hadVictim bool
	if ftHitLevel == insertAtLevel {
		victim, hadVictim = e.at[insertAtLevel].Insert(regionInsert, ftEntry.PC, ftEntry.Offset, ftEntry.PatternPrefetch)
		e.at[insertAtLevel].SetPattern(regionInsert, regionOffset)
	} else {
		victim, hadVictim = e.at[insertAtLevel].InsertFull(regionInsert, pcTrigger, offsetTrigger, patternInsert, patternPrefetch)
	}
	e.ft[ftHitLevel].Erase(region)

	if hadVictim {
		e.insertInPHT(victim, insertAtLevel)
	}

	if merged && e.cfg.EagerLevelDown && insertAtLevel > 0 {
		if cur, ok := e.at[insertAtLevel].Find(regionInsert); ok {
			e.insertInPHT(*cur, insertAtLevel)
		}
	}
}

// mergeSiblingPHT erases both children's PatternHistoryTable entries and, if
// either held a pattern, installs their concatenation at the parent level
// (spec.md §4.3 step 4). leftRegion/leftPC/leftOffset describe the
// lower-numbered child, right* the upper-numbered child.
func (e *Engine) mergeSiblingPHT(childLevel, parentLevel int, leftRegion uint64, leftPC uint64, leftOffset int, rightPC uint64, rightRegion uint64, rightOffset int) {
	childLen := e.cfg.PatternLen[childLevel]
	leftAddress := leftRegion*uint64(childLen) + uint64(leftOffset)
	rightAddress := rightRegion*uint64(childLen) + uint64(rightOffset)

	leftPattern, leftOk := e.pht[childLevel].Erase(leftPC, leftAddress)
	rightPattern, rightOk := e.pht[childLevel].Erase(rightPC, rightAddress)
	if !leftOk {
		leftPattern = make([]bool, childLen)
	}
	if !rightOk {
		rightPattern = make([]bool, childLen)
	}
	if leftOk || rightOk {
		e.pht[parentLevel].Insert(leftPC, leftAddress, bitpattern.Concat(leftPattern, rightPattern))
	}
}

func (e *Engine) eviction(block uint64) {
	for i := 0; i < e.cfg.Levels; i++ {
		patLen := uint64(e.at[i].PatternLen())
		region := block / patLen
		e.ft[i].Erase(region)
		if entry, had := e.at[i].Erase(region); had {
			e.insertInPHT(entry, i)
		}
	}
}

// findInPHT queries every level and returns the winning pattern plus the
// level it came from (spec.md §4.5): a strict match at any level
// short-circuits; otherwise the configured default level wins if it voted
// non-empty, else the highest level that did.
func (e *Engine) findInPHT(pc, address uint64) ([]fill.Level, int) {
	patterns := make([][]fill.Level, e.cfg.Levels)
	for i := 0; i < e.cfg.Levels; i++ {
		matches := e.pht[i].Find(pc, address)
		switch e.pht[i].LastEvent() {
		case MatchPCAddress:
			res := make([]fill.Level, e.cfg.PatternLen[i])
			for j, v := range matches[0] {
				if v {
					res[j] = e.cfg.FillLevels.Near
				}
			}
			return res, i
		case MatchPCOffset:
			patterns[i] = e.vote(matches, i, address)
		}
	}
	if patterns[e.cfg.DefaultInsertLv] != nil {
		return patterns[e.cfg.DefaultInsertLv], e.cfg.DefaultInsertLv
	}
	for i := e.cfg.Levels - 1; i >= 0; i-- {
		if patterns[i] != nil {
			return patterns[i], i
		}
	}
	return nil, -1
}

// vote turns loose PHT matches into a per-offset fill-level verdict
// (spec.md §4.4).
func (e *Engine) vote(matches [][]bool, level int, address uint64) []fill.Level {
	if e.cfg.VoteStrategy == config.VotePMP {
		offset := int(address) % e.cfg.PatternLen[level]
		return e.pmpVote[level].Extract(offset)
	}

	n := len(matches)
	if n == 0 {
		return nil
	}
	res := make([]fill.Level, e.cfg.PatternLen[level])
	any := false
	for i := range res {
		cnt := 0
		for _, m := range matches {
			if m[i] {
				cnt++
			}
		}
		p := float64(cnt) / float64(n)
		switch {
		case p >= e.cfg.L2CThresh:
			res[i] = e.cfg.FillLevels.Near
		case p >= e.cfg.LLCThresh:
			res[i] = e.cfg.FillLevels.Far
		default:
			res[i] = fill.None
		}
		if res[i] != fill.None {
			any = true
		}
	}
	if !any {
		return nil
	}
	return res
}

// insertInPHT retires an AccumulationTable entry into the PatternHistoryTable
// at atLevel, considering level-down at retirement (spec.md §4.3, §4.4),
// grounded on rb.cc's insert_in_pht.
func (e *Engine) insertInPHT(entry ATData, atLevel int) {
	e.metrics.RegionShrinkChecked.Inc()
	if e.cfg.VoteStrategy == config.VotePMP {
		e.pmpVote[atLevel].Merge(entry.Offset, entry.Pattern)
	}

	address := entry.Region*uint64(e.cfg.PatternLen[atLevel]) + uint64(entry.Offset)
	newPattern := entry.Pattern
	oldPattern := entry.PatternPrefetch
	half := len(newPattern) / 2

	if atLevel == 0 {
		if bitpattern.AgreementFraction(newPattern, oldPattern, 0, len(newPattern)) >= e.cfg.OrThresh && len(oldPattern) == len(newPattern) {
			e.pht[atLevel].Insert(entry.PC, address, bitpattern.Or(newPattern, oldPattern, 0, len(newPattern)))
		} else {
			e.pht[atLevel].Insert(entry.PC, address, newPattern)
		}
		return
	}

	lowerHalf := entry.Offset < half
	var checkL, checkR int
	if lowerHalf {
		checkL, checkR = half, len(newPattern)
	} else {
		checkL, checkR = 0, half
	}

	shrink := !bitpattern.AnyInRange(newPattern, checkL, checkR)
	if e.cfg.AccuracyLevelDown && len(oldPattern) == len(newPattern) {
		shrink = shrink || bitpattern.AgreementFraction(newPattern, oldPattern, checkL, checkR) < e.cfg.AccuracyThresh
	}

	if shrink {
		e.metrics.RegionShrunk.Inc()
		var subL, subR int
		if lowerHalf {
			subL, subR = 0, half
		} else {
			subL, subR = half, len(newPattern)
		}
		if len(oldPattern) == len(newPattern) && bitpattern.AgreementFraction(newPattern, oldPattern, subL, subR) >= e.cfg.OrThresh {
			e.pht[atLevel-1].Insert(entry.PC, address, bitpattern.Or(newPattern, oldPattern, subL, subR))
		} else {
			e.pht[atLevel-1].Insert(entry.PC, address, bitpattern.Sub(newPattern, subL, subR))
		}
		e.pht[atLevel].Erase(entry.PC, address)
		return
	}

	if len(oldPattern) == len(newPattern) && bitpattern.AgreementFraction(newPattern, oldPattern, 0, len(newPattern)) >= e.cfg.OrThresh {
		e.pht[atLevel].Insert(entry.PC, address, bitpattern.Or(newPattern, oldPattern, 0, len(newPattern)))
	} else {
		e.pht[atLevel].Insert(entry.PC, address, newPattern)
	}
}
