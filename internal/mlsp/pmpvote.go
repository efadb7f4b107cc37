package mlsp

import (
	"github.com/sarchlab/llcprefetch/internal/bitpattern"
	"github.com/sarchlab/llcprefetch/internal/fill"
)

// PMPVoteTable is the decaying-counter voting backend supplemented from
// pmp.h's PatternTable (SPEC_FULL.md §3.1), selectable via
// config.MLSP.VoteStrategy as an alternative to the default fractional
// threshold vote of spec.md §4.4/§4.5.
//
// Each row is indexed by trigger offset and holds one saturating counter per
// candidate offset; counters increment on agreement and the whole row
// halves once the trigger offset's own counter reaches counterMax — the
// source's compiled-in decay (spec.md §9 open question (b), resolved as
// intentional decay, not an overflow guard).
type PMPVoteTable struct {
	patternLen int
	counterMax int
	l2Thresh   float64
	llcThresh  float64
	table      [][]int
}

// NewPMPVoteTable builds a patternLen x patternLen counter matrix.
func NewPMPVoteTable(patternLen, counterMax int, l2Thresh, llcThresh float64) *PMPVoteTable {
	table := make([][]int, patternLen)
	for i := range table {
		table[i] = make([]int, patternLen)
	}
	return &PMPVoteTable{patternLen: patternLen, counterMax: counterMax, l2Thresh: l2Thresh, llcThresh: llcThresh, table: table}
}

func (p *PMPVoteTable) rowIndex(triggerOffset int) int {
	if triggerOffset < 0 {
		triggerOffset = -triggerOffset
	}
	return triggerOffset % p.patternLen
}

// Merge records an observed region pattern against triggerOffset's row,
// rotated so the trigger offset lands at index 0, then halves the row if the
// trigger counter saturated.
func (p *PMPVoteTable) Merge(triggerOffset int, pattern []bool) {
	row := p.table[p.rowIndex(triggerOffset)]
	for i, set := range bitpattern.RotateLeft(pattern, triggerOffset) {
		if set {
			row[i]++
		}
	}
	if row[0] == p.counterMax {
		for i := range row {
			row[i] /= 2
		}
	}
}

// Extract returns the fill-level prediction for triggerOffset's row in region
// offset order, or nil if the row's trigger counter is still zero (no
// observations yet).
func (p *PMPVoteTable) Extract(triggerOffset int) []fill.Level {
	row := p.table[p.rowIndex(triggerOffset)]
	if row[0] == 0 {
		return nil
	}
	result := make([]fill.Level, p.patternLen)
	base := float64(row[0])
	for i := 1; i < p.patternLen; i++ {
		v := float64(row[i])
		switch {
		case v >= p.l2Thresh*base:
			result[i] = fill.L1
		case v >= p.llcThresh*base:
			result[i] = fill.L2
		}
	}
	return bitpattern.RotateRight(result, triggerOffset)
}
