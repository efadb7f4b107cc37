package simcache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/sarchlab/llcprefetch/internal/fill"
	"github.com/sarchlab/llcprefetch/internal/simcache"
)

func TestSimcache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Simcache Suite")
}

var _ = Describe("Harness", func() {
	var h *simcache.Harness

	BeforeEach(func() {
		h = simcache.NewHarness(1, 2, 1, 8, 8, simcache.NewLRUVictimFinder(), zerolog.Nop())
	})

	It("misses on a cold address and hits on a repeat", func() {
		Expect(h.Access(10)).To(BeFalse())
		Expect(h.Access(10)).To(BeTrue())
	})

	It("evicts the LRU way once both ways in the set are filled", func() {
		Expect(h.Access(10)).To(BeFalse()) // fills way 0
		Expect(h.Access(20)).To(BeFalse()) // fills way 1, making way 0 the LRU way

		evicted := h.Fill(30, false, fill.None)
		Expect(evicted).To(Equal(uint64(10)))

		Expect(h.Access(10)).To(BeFalse()) // re-fetched as a cold miss
		Expect(h.Access(20)).To(BeTrue())  // still resident
	})

	It("records every PrefetchLine call and installs the line", func() {
		h.PrefetchLine(0x400, 10, 40, fill.LLC, 0)

		issued := h.IssuedPrefetches()
		Expect(issued).To(HaveLen(1))
		Expect(issued[0].TargetAddr).To(Equal(uint64(40)))
		Expect(issued[0].Level).To(Equal(fill.LLC))
		Expect(h.Access(40)).To(BeTrue())
	})

	It("reports queue budgets through the driver-set occupancy", func() {
		h.SetQueueOccupancy(3, 5)
		Expect(h.PQOccupancy()).To(Equal(3))
		Expect(h.MSHROccupancy()).To(Equal(5))
		Expect(h.PQSize()).To(Equal(8))
		Expect(h.MSHRSize()).To(Equal(8))
	})

	It("exposes block validity for the read-only debug surface", func() {
		Expect(h.BlockValid(0, 0)).To(BeFalse())
		h.Access(10)
		Expect(h.BlockValid(0, 0)).To(BeTrue())
		Expect(h.BlockValid(0, 5)).To(BeFalse())
	})
})
