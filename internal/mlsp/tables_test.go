package mlsp_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/llcprefetch/internal/fill"
	"github.com/sarchlab/llcprefetch/internal/mlsp"
)

func TestMLSP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MLSP Suite")
}

var _ = Describe("FilterTable", func() {
	It("finds what was inserted and refreshes MRU on hit", func() {
		ft := mlsp.NewFilterTable(8, 4, 32)
		ft.Insert(3, 0xA, 5, []bool{true, false})

		e, ok := ft.Find(3)
		Expect(ok).To(BeTrue())
		Expect(e.PC).To(Equal(uint64(0xA)))
		Expect(e.Offset).To(Equal(5))
	})

	It("misses after being erased", func() {
		ft := mlsp.NewFilterTable(8, 4, 32)
		ft.Insert(3, 0xA, 5, nil)
		old, ok := ft.Erase(3)
		Expect(ok).To(BeTrue())
		Expect(old.PC).To(Equal(uint64(0xA)))

		_, ok = ft.Find(3)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("AccumulationTable", func() {
	It("starts a fresh entry with only the trigger offset set", func() {
		at := mlsp.NewAccumulationTable(8, 4, 8, false)
		at.Insert(1, 0xA, 2, []bool{true, false, false, false, false, false, false, false})

		e, ok := at.Find(1)
		Expect(ok).To(BeTrue())
		Expect(e.Pattern).To(Equal([]bool{false, false, true, false, false, false, false, false}))
	})

	It("accumulates further touches via SetPattern", func() {
		at := mlsp.NewAccumulationTable(8, 4, 8, false)
		at.Insert(1, 0xA, 2, nil)
		Expect(at.SetPattern(1, 5)).To(BeTrue())

		e, _ := at.Find(1)
		Expect(e.Pattern[2]).To(BeTrue())
		Expect(e.Pattern[5]).To(BeTrue())
	})

	It("reports a miss from SetPattern on an absent region", func() {
		at := mlsp.NewAccumulationTable(8, 4, 8, false)
		Expect(at.SetPattern(99, 0)).To(BeFalse())
	})

	It("recovers a region by its creating event under SHORT_ACCUMULATION", func() {
		at := mlsp.NewAccumulationTable(8, 4, 8, true)
		at.Insert(7, 0xB, 3, nil)

		region, ok := at.SearchByEvent(0xB, 3)
		Expect(ok).To(BeTrue())
		Expect(region).To(Equal(uint64(7)))

		at.Erase(7)
		_, ok = at.SearchByEvent(0xB, 3)
		Expect(ok).To(BeFalse())
	})

	It("does not track events when SHORT_ACCUMULATION is off", func() {
		at := mlsp.NewAccumulationTable(8, 4, 8, false)
		at.Insert(7, 0xB, 3, nil)
		_, ok := at.SearchByEvent(0xB, 3)
		Expect(ok).To(BeFalse())
	})

	It("installs a caller-supplied merged pattern via InsertFull", func() {
		at := mlsp.NewAccumulationTable(8, 4, 8, false)
		full := []bool{true, true, false, false, false, false, false, false}
		at.InsertFull(2, 0xC, 0, full, nil)

		e, ok := at.Find(2)
		Expect(ok).To(BeTrue())
		Expect(e.Pattern).To(Equal(full))
	})
})

var _ = Describe("PatternHistoryTable", func() {
	It("round-trips an exact (pc, address) match", func() {
		pht := mlsp.NewPatternHistoryTable(16, 4, 4, 8, 2, 8)
		pattern := []bool{true, false, false, true}
		pht.Insert(0x10, 4, pattern)

		matches := pht.Find(0x10, 4)
		Expect(matches).To(HaveLen(1))
		Expect(matches[0]).To(Equal(pattern))
		Expect(pht.LastEvent()).To(Equal(mlsp.MatchPCAddress))
	})

	It("reports a loose PC+offset match across different regions", func() {
		pht := mlsp.NewPatternHistoryTable(16, 4, 4, 8, 2, 8)
		pht.Insert(0x10, 4, []bool{true, false, false, false})  // region 1, offset 0
		pht.Insert(0x10, 20, []bool{false, true, false, false}) // region 5, offset 0

		matches := pht.Find(0x10, 36) // region 9, offset 0: no exact match
		Expect(pht.LastEvent()).To(Equal(mlsp.MatchPCOffset))
		Expect(len(matches)).To(BeNumerically(">=", 1))
	})

	It("misses on an unrelated pc", func() {
		pht := mlsp.NewPatternHistoryTable(16, 4, 4, 8, 2, 8)
		pht.Insert(0x10, 4, []bool{true, false, false, false})

		pht.Find(0x99, 4)
		Expect(pht.LastEvent()).To(Equal(mlsp.MatchMiss))
	})

	It("removes an entry on Erase", func() {
		pht := mlsp.NewPatternHistoryTable(16, 4, 4, 8, 2, 8)
		pht.Insert(0x10, 4, []bool{true, false, false, false})
		_, ok := pht.Erase(0x10, 4)
		Expect(ok).To(BeTrue())

		pht.Find(0x10, 4)
		Expect(pht.LastEvent()).To(Equal(mlsp.MatchMiss))
	})
})

// fakeCache is a minimal mlsp.Cache for PatternBuffer tests: unlimited
// budget unless the test configures otherwise, recording every issued line.
type fakeCache struct {
	pqSize, pqOcc     int
	mshrSize, mshrOcc int
	issued            []uint64
}

func newFakeCache() *fakeCache {
	return &fakeCache{pqSize: 1024, mshrSize: 1024}
}

func (c *fakeCache) PQOccupancy() int   { return c.pqOcc }
func (c *fakeCache) PQSize() int        { return c.pqSize }
func (c *fakeCache) MSHROccupancy() int { return c.mshrOcc }
func (c *fakeCache) MSHRSize() int      { return c.mshrSize }
func (c *fakeCache) PrefetchLine(pc, triggerAddr, targetAddr uint64, level fill.Level, metadata uint32) {
	c.issued = append(c.issued, targetAddr)
}

var _ = Describe("PatternBuffer", func() {
	It("issues the nearest pending offsets first, up to pfDegree", func() {
		pb := mlsp.NewPatternBuffer(8, 4, 8, 2, 0)
		pattern := make([]fill.Level, 8)
		pattern[2] = fill.LLC
		pattern[5] = fill.LLC
		pb.Insert(0, pattern)

		cache := newFakeCache()
		issued := pb.Prefetch(cache, 0x1, 0)

		Expect(issued).To(Equal([]uint64{2, 5}))
		Expect(cache.issued).To(Equal([]uint64{2, 5}))
	})

	It("never issues when the MSHR budget is already exhausted", func() {
		pb := mlsp.NewPatternBuffer(8, 4, 8, 10, 0)
		pattern := make([]fill.Level, 8)
		pattern[2] = fill.LLC
		pb.Insert(0, pattern)

		cache := &fakeCache{pqSize: 1, mshrSize: 1}
		issued := pb.Prefetch(cache, 0x1, 0)

		Expect(issued).To(BeEmpty())
		Expect(cache.issued).To(BeEmpty())
	})

	It("returns nil for a region with no pending entry", func() {
		pb := mlsp.NewPatternBuffer(8, 4, 8, 2, 0)
		cache := newFakeCache()
		Expect(pb.Prefetch(cache, 0x1, 0)).To(BeNil())
	})
})
