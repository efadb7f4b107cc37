package event_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/llcprefetch/internal/event"
)

func TestEvent(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Event Suite")
}

var _ = Describe("AccessType.String", func() {
	It("renders every known access type", func() {
		Expect(event.Load.String()).To(Equal("LOAD"))
		Expect(event.RFO.String()).To(Equal("RFO"))
		Expect(event.Prefetch.String()).To(Equal("PREFETCH"))
		Expect(event.Writeback.String()).To(Equal("WRITEBACK"))
		Expect(event.Translation.String()).To(Equal("TRANSLATION"))
	})

	It("falls back to UNKNOWN for an out-of-range value", func() {
		Expect(event.AccessType(99).String()).To(Equal("UNKNOWN"))
	})
})
