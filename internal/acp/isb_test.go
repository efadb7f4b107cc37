package acp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Translator", func() {
	It("binds both directions with confidence 3 on a fresh Update", func() {
		t := NewTranslator()
		t.Update(0xA, 0xB)

		str, ok := t.Structural(0xA)
		Expect(ok).To(BeTrue())
		Expect(str).To(Equal(uint64(0xB)))

		phys, ok := t.Physical(0xB)
		Expect(ok).To(BeTrue())
		Expect(phys).To(Equal(uint64(0xA)))

		Expect(t.LowerConfidence(0xA)).To(Equal(2))
	})

	It("saturates IncreaseConfidence at 3", func() {
		t := NewTranslator()
		t.Update(0xA, 0xB)
		for i := 0; i < 5; i++ {
			t.IncreaseConfidence(0xA)
		}
		Expect(t.IncreaseConfidence(0xA)).To(Equal(3))
	})

	It("floors LowerConfidence at 0", func() {
		t := NewTranslator()
		t.Update(0xA, 0xB)
		for i := 0; i < 5; i++ {
			t.LowerConfidence(0xA)
		}
		Expect(t.LowerConfidence(0xA)).To(Equal(0))
	})

	It("removes both directions on Invalidate", func() {
		t := NewTranslator()
		t.Update(0xA, 0xB)
		t.Invalidate(0xA, 0xB)

		_, ok := t.Structural(0xA)
		Expect(ok).To(BeFalse())
		_, ok = t.Physical(0xB)
		Expect(ok).To(BeFalse())
	})

	It("rebinds a physical address to a new stream on a later Update", func() {
		t := NewTranslator()
		t.Update(0xA, 0xB)
		t.LowerConfidence(0xA)
		t.Update(0xA, 0xC)

		str, _ := t.Structural(0xA)
		Expect(str).To(Equal(uint64(0xC)))
		Expect(t.IncreaseConfidence(0xA)).To(Equal(3))
	})
})

var _ = Describe("TrainingUnit", func() {
	It("does not request training on the very first access under a pc", func() {
		u := NewTrainingUnit()
		_, _, train := u.Observe(0x1000, 0x200)
		Expect(train).To(BeFalse())
	})

	It("does not request training on a repeat of the last address", func() {
		u := NewTrainingUnit()
		u.Observe(0x1000, 0x200)
		u.Update(0x1000, 0x200, 0x40)

		_, _, train := u.Observe(0x1000, 0x200)
		Expect(train).To(BeFalse())
	})

	It("requests training once a second, distinct address arrives", func() {
		u := NewTrainingUnit()
		u.Observe(0x1000, 0x200)
		u.Update(0x1000, 0x200, 0x40)

		lastAddr, lastStr, train := u.Observe(0x1000, 0x201)
		Expect(train).To(BeTrue())
		Expect(lastAddr).To(Equal(uint64(0x200)))
		Expect(lastStr).To(Equal(uint64(0x40)))
	})
})
