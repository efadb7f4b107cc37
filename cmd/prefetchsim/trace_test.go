package main

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/llcprefetch/internal/event"
)

func TestCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cmd Suite")
}

var _ = Describe("parseTraceLine", func() {
	It("parses a fully specified hex line", func() {
		rec, err := parseTraceLine("0x1000 0x4000 1 RFO")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.PC).To(Equal(uint64(0x1000)))
		Expect(rec.Addr).To(Equal(uint64(0x4000)))
		Expect(rec.Hit).To(BeTrue())
		Expect(rec.Type).To(Equal(event.RFO))
	})

	It("defaults hit to false and type to LOAD when omitted", func() {
		rec, err := parseTraceLine("16 64")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.PC).To(Equal(uint64(16)))
		Expect(rec.Addr).To(Equal(uint64(64)))
		Expect(rec.Hit).To(BeFalse())
		Expect(rec.Type).To(Equal(event.Load))
	})

	It("accepts a numeric 0/1 for hit", func() {
		rec, err := parseTraceLine("1 2 0")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Hit).To(BeFalse())
	})

	It("rejects a line missing the address field", func() {
		_, err := parseTraceLine("0x10")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unparsable pc", func() {
		_, err := parseTraceLine("not-a-number 0x10")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("parseAccessType", func() {
	It("is case-insensitive and defaults to LOAD", func() {
		Expect(parseAccessType("rfo")).To(Equal(event.RFO))
		Expect(parseAccessType("Prefetch")).To(Equal(event.Prefetch))
		Expect(parseAccessType("bogus")).To(Equal(event.Load))
	})
})

var _ = Describe("readTrace", func() {
	It("skips blank lines and comments, counting malformed ones", func() {
		input := strings.Join([]string{
			"# header comment",
			"",
			"0x10 0x40 1 LOAD",
			"garbage-line",
			"0x20 0x80 0 RFO",
		}, "\n")

		var recs []traceRecord
		malformed, err := readTrace(strings.NewReader(input), func(r traceRecord) {
			recs = append(recs, r)
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(malformed).To(Equal(1))
		Expect(recs).To(HaveLen(2))
		Expect(recs[0].Addr).To(Equal(uint64(0x40)))
		Expect(recs[1].Type).To(Equal(event.RFO))
	})
})
