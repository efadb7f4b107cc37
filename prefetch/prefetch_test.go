package prefetch_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sarchlab/llcprefetch/internal/config"
	"github.com/sarchlab/llcprefetch/internal/event"
	"github.com/sarchlab/llcprefetch/internal/simcache"
	"github.com/sarchlab/llcprefetch/prefetch"
)

func TestPrefetch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Prefetch Suite")
}

func newTestHarness() *simcache.Harness {
	return simcache.NewHarness(64, 8, 64, 64, 64, simcache.NewLRUVictimFinder(), zerolog.Nop())
}

var _ = Describe("New", func() {
	It("rejects an invalid configuration before building either core", func() {
		cfg := config.Default()
		cfg.Geometry.Log2BlockSize = 0
		_, err := prefetch.New(cfg, prometheus.NewRegistry(), zerolog.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("builds the MLSP core by default and drives accesses without panicking", func() {
		cfg := config.Default()
		core, err := prefetch.New(cfg, prometheus.NewRegistry(), zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())

		h := newTestHarness()
		blockSize := cfg.Geometry.BlockSize()
		for i := uint64(1); i <= 8; i++ {
			addr := i * blockSize
			hit := h.Access(addr)
			core.OnAccess(h, 0x1000, addr, hit, event.Load)
		}
	})

	It("drives the ACP core end to end through a Harness, honoring its PQ/MSHR budget", func() {
		cfg := config.Default()
		cfg.Core = config.CoreACP
		cfg.ACP = config.DefaultACP()
		core, err := prefetch.New(cfg, prometheus.NewRegistry(), zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())

		h := newTestHarness()
		blockSize := cfg.Geometry.BlockSize()
		const pc = 0x1000

		access := func(block uint64) []uint64 {
			addr := block * blockSize
			hit := h.Access(addr)
			return core.OnAccess(h, pc, addr, hit, event.Load)
		}

		// Train the correlation 10->11->12->...->17.
		for _, b := range []uint64{10, 11, 12, 13, 14, 15, 16, 17} {
			access(b)
		}

		// Replay 10, arming the candidate on a first-address match.
		first := access(10)
		Expect(first).To(Equal([]uint64{11 * blockSize}))

		// Replay 11, confirming the second address and emitting a run.
		second := access(11)
		Expect(second).To(Equal([]uint64{12 * blockSize, 13 * blockSize, 14 * blockSize, 15 * blockSize}))

		for _, a := range second {
			Expect(h.Access(a)).To(BeTrue())
		}

		issued := h.IssuedPrefetches()
		Expect(len(issued)).To(BeNumerically(">=", 4))
	})

	It("starves the active stream once the MSHR budget is exhausted", func() {
		cfg := config.Default()
		cfg.Core = config.CoreACP
		cfg.ACP = config.DefaultACP()
		core, err := prefetch.New(cfg, prometheus.NewRegistry(), zerolog.Nop())
		Expect(err).NotTo(HaveOccurred())

		h := simcache.NewHarness(64, 8, 64, 1, 1, simcache.NewLRUVictimFinder(), zerolog.Nop())
		blockSize := cfg.Geometry.BlockSize()
		const pc = 0x1000

		for _, b := range []uint64{10, 11, 12, 13, 14, 15, 16, 17} {
			addr := b * blockSize
			hit := h.Access(addr)
			core.OnAccess(h, pc, addr, hit, event.Load)
		}

		addr := uint64(10) * blockSize
		core.OnAccess(h, pc, addr, h.Access(addr), event.Load)
		second := core.OnAccess(h, pc, uint64(11)*blockSize, h.Access(uint64(11)*blockSize), event.Load)
		Expect(second).To(BeEmpty())
	})
})
