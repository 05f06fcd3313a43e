package tlbdump_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ramparser/tlbdump"
)

var _ = Describe("Table", func() {
	var (
		table *tlbdump.Table
		out   *strings.Builder
	)

	BeforeEach(func() {
		table = tlbdump.NewTable()
		out = &strings.Builder{}
	})

	Describe("FormatWidth", func() {
		It("should keep the leading characters of long strings", func() {
			Expect(tlbdump.FormatWidth("ABCDE", 4)).To(Equal("ABCD"))
		})

		It("should pad short strings on the right", func() {
			Expect(tlbdump.FormatWidth("AB", 4)).To(Equal("AB  "))
		})

		It("should leave strings of exactly the width alone", func() {
			Expect(tlbdump.FormatWidth("ABCD", 4)).To(Equal("ABCD"))
		})
	})

	Describe("AddColumn", func() {
		It("should widen columns to the title length", func() {
			table.AddColumn("S1_LEVEL", "%01x", 2)
			Expect(table.Header()).To(Equal("S1_LEVEL"))
		})

		It("should pad titles to the requested width", func() {
			table.AddColumn("PA", "%016x", 16)
			Expect(table.Header()).To(HaveLen(16))
			Expect(table.Header()).To(HavePrefix("PA "))
		})

		It("should panic once the header was printed", func() {
			table.AddColumn("Way", "", 0)
			Expect(table.PrintLine(out, 1)).To(Succeed())
			Expect(func() { table.AddColumn("Set", "", 0) }).To(Panic())
		})
	})

	Describe("PrintLine", func() {
		BeforeEach(func() {
			table.AddColumn("Way", "%01x", 0)
			table.AddColumn("Set", "%03x", 0)
			table.AddColumn("NAME", "%s", 4)
			table.AddColumn("HEX", "%04x", 8)
		})

		It("should print the header once before the first row", func() {
			Expect(table.PrintLine(out, 1, 0x2a, "REG", 1)).To(Succeed())
			Expect(table.PrintLine(out, 2, 0x2b, "WALK", 2)).To(Succeed())

			Expect(lines(out.String())).To(Equal([]string{
				"Way Set NAME HEX     ",
				"1   02a REG  0001    ",
				"2   02b WALK 0002    ",
			}))
		})

		It("should clip values to the column width", func() {
			Expect(table.PrintLine(out, 0, 0, "ABCDE", 0)).To(Succeed())
			row := lines(out.String())[1]
			Expect(strings.Fields(row)[2]).To(Equal("ABCD"))
		})

		It("should pad formatted hex values to the column width", func() {
			line, err := table.FormatLine(0, 0, "", 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(line).To(HaveLen(len(table.Header())))
			hex := line[len(line)-8:]
			Expect(hex).To(Equal("0001    "))
		})

		It("should reject rows with the wrong number of values", func() {
			err := table.PrintLine(out, 1, 2, "REG")
			Expect(errors.Is(err, tlbdump.ErrShapeMismatch)).To(BeTrue())
			Expect(out.Len()).To(BeZero())
		})

		It("should not print the header for a rejected first row", func() {
			Expect(table.PrintLine(out, 1)).NotTo(Succeed())
			Expect(table.PrintLine(out, 1, 2, "IPA", 3)).To(Succeed())
			Expect(lines(out.String())).To(HaveLen(2))
		})
	})
})
