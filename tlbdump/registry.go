package tlbdump

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// DumpFormatV20 is the dump format version used by the built-in variants.
const DumpFormatV20 = 0x14

// Key selects a decoder. Lookups match all three fields exactly.
type Key struct {
	HardwareID string
	ClientID   int
	Version    int
}

// String formats the key as hwid/0xclient/0xversion.
func (k Key) String() string {
	return fmt.Sprintf("%s/0x%x/0x%x", k.HardwareID, k.ClientID, k.Version)
}

// decoders is the strategy table of every supported variant.
var decoders = map[Variant]Decoder{
	VariantL1TLBA53: {
		Variant: VariantL1TLBA53,
		Geometry: Geometry{
			Topology: TopologySingle,
			LineSize: 4,
			NumWays:  4,
			NumSets:  0x100,
		},
	},
	VariantL1TLBKryo3xxSilver: {
		Variant: VariantL1TLBKryo3xxSilver,
		Geometry: Geometry{
			Topology: TopologySingle,
			LineSize: 4,
			NumWays:  4,
			NumSets:  0x100,
		},
	},
	VariantL1TLBKryo2xxGold: {
		Variant:  VariantL1TLBKryo2xxGold,
		Geometry: kryoGoldL1Geometry,
		decode:   decodeKryo2xxGold,
	},
	VariantL1TLBKryo3xxGold: {
		Variant:  VariantL1TLBKryo3xxGold,
		Geometry: kryoGoldL1Geometry,
		decode:   decodeKryo3xxGold,
	},
	VariantL2TLBKryo4xxGold: {
		Variant:  VariantL2TLBKryo4xxGold,
		Geometry: kryo4xxGoldL2Geometry,
		decode:   newKryo4xxGoldDecoder(kryo4xxGoldL2Geometry),
	},
}

var kryoGoldL1Geometry = Geometry{
	Topology:    TopologyDual,
	LineSize:    4,
	NumWays:     4,
	NumSets:     0x100,
	NumWaysRam1: 2,
	NumSetsRam1: 0x3c,
}

// kryo4xxGoldL2Geometry holds 0x500 MAIN, 0x50 WALK and 0x50 IPA entries,
// the arrays delimited by the region ends.
var kryo4xxGoldL2Geometry = Geometry{
	Topology:      TopologySingle,
	LineSize:      4,
	NumWays:       6,
	NumSets:       0xf0,
	MainRegionEnd: Kryo4xxMainRegionEnd,
	WalkRegionEnd: Kryo4xxWalkRegionEnd,
}

// DecoderFor returns the decoder of a variant, or the unsupported sentinel.
func DecoderFor(v Variant) Decoder {
	if d, ok := decoders[v]; ok {
		return d
	}
	return Decoder{Variant: VariantUnsupported}
}

// Registry maps keys to variants. It is never modified after construction
// and is safe for concurrent readers.
type Registry struct {
	variants map[Key]Variant
}

// NewRegistry creates a registry holding a copy of entries.
func NewRegistry(entries map[Key]Variant) *Registry {
	return &Registry{variants: maps.Clone(entries)}
}

// Resolve returns the decoder registered for k. Unknown keys resolve to the
// unsupported sentinel, whose Parse always fails.
func (r *Registry) Resolve(k Key) Decoder {
	v, ok := r.variants[k]
	if !ok {
		return Decoder{Variant: VariantUnsupported, key: k}
	}
	d := DecoderFor(v)
	d.key = k
	return d
}

// Keys returns the registered keys ordered by hardware id, client id and
// version.
func (r *Registry) Keys() []Key {
	keys := slices.Collect(maps.Keys(r.variants))
	slices.SortFunc(keys, func(a, b Key) int {
		return cmp.Or(
			cmp.Compare(a.HardwareID, b.HardwareID),
			cmp.Compare(a.ClientID, b.ClientID),
			cmp.Compare(a.Version, b.Version),
		)
	})
	return keys
}

var defaultRegistry = NewRegistry(builtinVariants())

// DefaultRegistry returns the registry of the built-in hardware variants.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Resolve looks up a decoder in the default registry.
func Resolve(hardwareID string, clientID, version int) Decoder {
	return defaultRegistry.Resolve(Key{
		HardwareID: hardwareID,
		ClientID:   clientID,
		Version:    version,
	})
}

func builtinVariants() map[Key]Variant {
	m := make(map[Key]Variant)
	add := func(hw string, first, last int, v Variant) {
		for c := first; c <= last; c++ {
			m[Key{HardwareID: hw, ClientID: c, Version: DumpFormatV20}] = v
		}
	}

	add("sdm845", 0x20, 0x23, VariantL1TLBKryo3xxSilver)
	add("sdm845", 0x24, 0x27, VariantL1TLBKryo3xxGold)

	add("sdm670", 0x20, 0x25, VariantL1TLBKryo3xxSilver)
	add("sdm670", 0x26, 0x27, VariantL1TLBKryo3xxGold)

	add("8998", 0x20, 0x23, VariantL1TLBA53)
	add("8998", 0x24, 0x27, VariantL1TLBKryo2xxGold)
	add("8998", 0x40, 0x43, VariantL1TLBA53)
	add("8998", 0x44, 0x47, VariantL1TLBKryo2xxGold)

	return m
}
