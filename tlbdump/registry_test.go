package tlbdump_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ramparser/tlbdump"
)

var _ = Describe("Registry", func() {
	DescribeTable("resolving built-in variants",
		func(hw string, client int, want tlbdump.Variant) {
			dec := tlbdump.Resolve(hw, client, tlbdump.DumpFormatV20)
			Expect(dec.Supported()).To(BeTrue())
			Expect(dec.Variant).To(Equal(want))
		},
		Entry("sdm845 silver", "sdm845", 0x20, tlbdump.VariantL1TLBKryo3xxSilver),
		Entry("sdm845 gold", "sdm845", 0x27, tlbdump.VariantL1TLBKryo3xxGold),
		Entry("sdm670 silver", "sdm670", 0x25, tlbdump.VariantL1TLBKryo3xxSilver),
		Entry("sdm670 gold", "sdm670", 0x26, tlbdump.VariantL1TLBKryo3xxGold),
		Entry("8998 a53", "8998", 0x21, tlbdump.VariantL1TLBA53),
		Entry("8998 gold", "8998", 0x24, tlbdump.VariantL1TLBKryo2xxGold),
		Entry("8998 second cluster a53", "8998", 0x43, tlbdump.VariantL1TLBA53),
		Entry("8998 second cluster gold", "8998", 0x47, tlbdump.VariantL1TLBKryo2xxGold),
	)

	DescribeTable("falling back to the unsupported sentinel",
		func(hw string, client, version int) {
			dec := tlbdump.Resolve(hw, client, version)
			Expect(dec.Supported()).To(BeFalse())
			Expect(dec.Variant).To(Equal(tlbdump.VariantUnsupported))

			out := &strings.Builder{}
			err := dec.Parse(newDumpImage(0, 16), 0, 16, out)
			Expect(errors.Is(err, tlbdump.ErrUnsupportedVariant)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(hw))
			Expect(out.Len()).To(BeZero())
		},
		Entry("unknown hardware", "msm8996", 0x20, tlbdump.DumpFormatV20),
		Entry("unknown client", "sdm845", 0x28, tlbdump.DumpFormatV20),
		Entry("unknown version", "sdm845", 0x20, 0x13),
		Entry("hardware id differing in case", "SDM845", 0x20, tlbdump.DumpFormatV20),
		Entry("hardware without a known layout", "sm8150", 0x24, tlbdump.DumpFormatV20),
	)

	It("should register exactly the known clients of every hardware id", func() {
		want := map[tlbdump.Key]tlbdump.Variant{}
		add := func(hw string, first, last int, v tlbdump.Variant) {
			for c := first; c <= last; c++ {
				want[tlbdump.Key{HardwareID: hw, ClientID: c, Version: 0x14}] = v
			}
		}
		add("sdm845", 0x20, 0x23, tlbdump.VariantL1TLBKryo3xxSilver)
		add("sdm845", 0x24, 0x27, tlbdump.VariantL1TLBKryo3xxGold)
		add("sdm670", 0x20, 0x25, tlbdump.VariantL1TLBKryo3xxSilver)
		add("sdm670", 0x26, 0x27, tlbdump.VariantL1TLBKryo3xxGold)
		add("8998", 0x20, 0x23, tlbdump.VariantL1TLBA53)
		add("8998", 0x24, 0x27, tlbdump.VariantL1TLBKryo2xxGold)
		add("8998", 0x40, 0x43, tlbdump.VariantL1TLBA53)
		add("8998", 0x44, 0x47, tlbdump.VariantL1TLBKryo2xxGold)

		reg := tlbdump.DefaultRegistry()
		got := map[tlbdump.Key]tlbdump.Variant{}
		for _, k := range reg.Keys() {
			dec := reg.Resolve(k)
			Expect(dec.Supported()).To(BeTrue(), k.String())
			got[k] = dec.Variant
		}
		Expect(got).To(Equal(want))
	})

	It("should list every built-in key in order", func() {
		keys := tlbdump.DefaultRegistry().Keys()
		Expect(keys).To(HaveLen(32))
		Expect(keys[0]).To(Equal(tlbdump.Key{HardwareID: "8998", ClientID: 0x20, Version: 0x14}))
		Expect(keys[len(keys)-1]).To(Equal(tlbdump.Key{HardwareID: "sdm845", ClientID: 0x27, Version: 0x14}))
	})

	It("should not be affected by changes to the map it was built from", func() {
		entries := map[tlbdump.Key]tlbdump.Variant{
			{HardwareID: "test", ClientID: 1, Version: 1}: tlbdump.VariantL1TLBA53,
		}
		reg := tlbdump.NewRegistry(entries)
		delete(entries, tlbdump.Key{HardwareID: "test", ClientID: 1, Version: 1})

		dec := reg.Resolve(tlbdump.Key{HardwareID: "test", ClientID: 1, Version: 1})
		Expect(dec.Variant).To(Equal(tlbdump.VariantL1TLBA53))
		Expect(dec.Geometry.NumEntries()).To(Equal(1024))
	})

	It("should describe the two-region gold geometry", func() {
		dec := tlbdump.DecoderFor(tlbdump.VariantL1TLBKryo2xxGold)
		Expect(dec.Geometry.Topology).To(Equal(tlbdump.TopologyDual))
		Expect(dec.Geometry.NumEntries()).To(Equal(1144))
		Expect(dec.DecodesTags()).To(BeTrue())
	})
})
