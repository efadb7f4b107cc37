package acp

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/llcprefetch/internal/config"
)

func TestACP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ACP Suite")
}

var _ = Describe("Domino strategy", func() {
	// history holds a repeated access sequence 10,11,12,...,17 at positions
	// 0..7, with the IndexTable already trained that 10 was once followed by
	// 11 (spec.md §4.7's "Training" step, grounded on Domino.cc's
	// index_table[last_address].insert(block, |H|-1)).
	newFixture := func() *Engine {
		h := NewHistoryBuffer(16)
		for _, b := range []uint64{10, 11, 12, 13, 14, 15, 16, 17} {
			h.Append(b)
		}
		idx := newIndexTable(8)
		idx.Record(10, 11, 1, 4)
		streams := newActiveStreamSet(4, h)
		return &Engine{
			cfg:        config.ACP{Degree: 4},
			history:    h,
			index:      idx,
			streams:    streams,
			prefetched: make(map[uint64]bool),
		}
	}

	It("emits a degree-sized run and arms an active stream on a second-address match", func() {
		e := newFixture()
		cand, ok := e.index.Find(10)
		Expect(ok).To(BeTrue())
		e.candidate = cand
		e.candidateSet = true

		pref, ok := e.matchSecondAddress(11)
		Expect(ok).To(BeTrue())
		Expect(pref).To(Equal([]uint64{12, 13, 14, 15}))
	})

	It("advances the stream and emits exactly one new address on a partial hit", func() {
		e := newFixture()
		cand, _ := e.index.Find(10)
		e.candidate = cand
		e.candidateSet = true
		pref, ok := e.matchSecondAddress(11)
		Expect(ok).To(BeTrue())
		Expect(pref).To(Equal([]uint64{12, 13, 14, 15}))

		next, ok := e.streams.Search(12)
		Expect(ok).To(BeTrue())
		Expect(next).To(Equal(uint64(16)))
	})

	It("reports no match when the candidate has no such second address", func() {
		e := newFixture()
		cand, _ := e.index.Find(10)
		e.candidate = cand
		e.candidateSet = true

		_, ok := e.matchSecondAddress(999)
		Expect(ok).To(BeFalse())
	})

	It("arms a candidate and emits its MRU address on a first-address match", func() {
		e := newFixture()
		var pref []uint64
		ok := e.searchFirstAddress(10, &pref)
		Expect(ok).To(BeTrue())
		Expect(pref).To(Equal([]uint64{11}))
		Expect(e.candidateSet).To(BeTrue())
	})
})

var _ = Describe("HistoryBuffer", func() {
	It("wraps around at capacity and forgets overwritten entries", func() {
		h := NewHistoryBuffer(4)
		for i := uint64(0); i < 4; i++ {
			h.Append(100 + i)
		}
		// capacity exhausted; appending a 5th entry overwrites position 0
		h.Append(104)

		_, ok := h.At(0)
		Expect(ok).To(BeFalse())

		v, ok := h.At(4)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint64(104)))
	})
})

var _ = Describe("indexTable", func() {
	It("gains an additional candidate on a repeat first address", func() {
		it := newIndexTable(8)
		it.Record(1, 2, 0, 4)
		it.Record(1, 3, 1, 4)

		e, ok := it.Find(1)
		Expect(ok).To(BeTrue())
		_, found2 := e.Find(2)
		_, found3 := e.Find(3)
		Expect(found2).To(BeTrue())
		Expect(found3).To(BeTrue())
	})

	It("evicts the oldest key once at capacity", func() {
		it := newIndexTable(2)
		it.Record(1, 10, 0, 4)
		it.Record(2, 20, 0, 4)
		it.Record(3, 30, 0, 4)

		_, ok := it.Find(1)
		Expect(ok).To(BeFalse())
		_, ok = it.Find(3)
		Expect(ok).To(BeTrue())
	})
})
