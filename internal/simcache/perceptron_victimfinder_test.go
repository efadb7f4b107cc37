package simcache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/llcprefetch/internal/simcache"
)

var _ = Describe("PerceptronVictimFinder", func() {
	It("prefers an empty way over running its prediction", func() {
		p := simcache.NewPerceptronVictimFinder()
		dir := simcache.NewDirectory(1, 2, 1, p)

		victim := dir.FindVictim(10)
		Expect(victim).NotTo(BeNil())
		Expect(victim.IsValid).To(BeFalse())
	})

	It("reports zero accuracy before any prediction is trained", func() {
		p := simcache.NewPerceptronVictimFinder()
		Expect(p.GetAccuracy()).To(Equal(0.0))
	})

	It("tracks a correct prediction once trained on its outcome", func() {
		p := simcache.NewPerceptronVictimFinder()
		set := &simcache.Set{Blocks: []*simcache.Block{
			{IsValid: true, Tag: 1}, {IsValid: true, Tag: 2},
		}}

		victim := p.FindVictimWithContext(set, &simcache.VictimContext{Address: 0x1000})
		Expect(victim).NotTo(BeNil())

		p.TrainOnEviction(0x1000)
		total, correct, _ := p.GetStats()
		Expect(total).To(Equal(int64(1)))
		Expect(correct).To(Equal(int64(1)))
	})
})
