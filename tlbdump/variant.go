package tlbdump

// Variant identifies one hardware TLB dump layout.
type Variant int

const (
	// VariantUnsupported is the sentinel returned for unknown keys.
	VariantUnsupported Variant = iota
	// VariantL1TLBA53 is the Cortex-A53 L1 TLB, dumped raw.
	VariantL1TLBA53
	// VariantL1TLBKryo3xxSilver is the Kryo 3xx silver L1 TLB, dumped raw.
	VariantL1TLBKryo3xxSilver
	// VariantL1TLBKryo2xxGold is the Kryo 2xx gold L1 TLB split in two RAMs.
	VariantL1TLBKryo2xxGold
	// VariantL1TLBKryo3xxGold is the Kryo 3xx gold L1 TLB split in two RAMs.
	VariantL1TLBKryo3xxGold
	// VariantL2TLBKryo4xxGold is the Kryo 4xx gold L2 TLB whose entry type
	// follows from the entry position inside the dump. No hardware key maps to
	// it; it is reached through DecoderFor.
	VariantL2TLBKryo4xxGold
)

var variantNames = map[Variant]string{
	VariantUnsupported:        "UNSUPPORTED",
	VariantL1TLBA53:           "L1_TLB_A53",
	VariantL1TLBKryo3xxSilver: "L1_TLB_KRYO3XX_SILVER",
	VariantL1TLBKryo2xxGold:   "L1_TLB_KRYO2XX_GOLD",
	VariantL1TLBKryo3xxGold:   "L1_TLB_KRYO3XX_GOLD",
	VariantL2TLBKryo4xxGold:   "L2_TLB_KRYO4XX_GOLD",
}

// String returns the variant name used in listings, e.g. "L1_TLB_A53".
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "UNKNOWN"
}

// Topology describes how the entries of a dump are laid out.
type Topology int

const (
	// TopologySingle is one array of NumWays x NumSets entries.
	TopologySingle Topology = iota
	// TopologyDual is RAM0 followed by RAM1, each with its own geometry.
	TopologyDual
)

// SetOffsetStride is the address contribution of one set index. The set bits
// are folded out of the raw tag and are added back from the set index.
const SetOffsetStride = 0x1000

// Geometry holds the constant shape of a dump. For dual-region dumps NumWays
// and NumSets describe RAM0.
type Geometry struct {
	Topology    Topology
	LineSize    int
	NumWays     int
	NumSets     int
	NumWaysRam1 int
	NumSetsRam1 int

	// MainRegionEnd and WalkRegionEnd split an offset-classified dump into
	// MAIN, WALK and IPA entries by byte offset from the dump start.
	MainRegionEnd uint64
	WalkRegionEnd uint64
}

// NumEntries returns the number of entries a full walk visits.
func (g Geometry) NumEntries() int {
	n := g.NumWays * g.NumSets
	if g.Topology == TopologyDual {
		n += g.NumWaysRam1 * g.NumSetsRam1
	}
	return n
}

// EntryType classifies a TLB entry.
type EntryType int

const (
	// TypeNA marks variants that do not encode an entry type.
	TypeNA EntryType = iota
	// TypeREG is a regular stage 1 translation.
	TypeREG
	// TypeWALK is a cached page table walk result.
	TypeWALK
	// TypeIPA is a stage 2 intermediate physical address translation.
	TypeIPA
	// TypeMAIN is an entry of the main translation array.
	TypeMAIN
)

// String returns the TYPE column text of the entry type.
func (t EntryType) String() string {
	switch t {
	case TypeREG:
		return "REG"
	case TypeWALK:
		return "WALK"
	case TypeIPA:
		return "IPA"
	case TypeMAIN:
		return "MAIN"
	default:
		return "N/A"
	}
}

// PageSize is the translation size of an entry.
type PageSize int

// Page sizes reported by the decoders. SizeNA marks a size code with no
// known mapping.
const (
	SizeNA PageSize = iota
	Size4KB
	Size16KB
	Size64KB
	Size1MB
	Size2MB
	Size16MB
	Size32MB
	Size512MB
	Size1GB
)

var pageSizes = [...]struct {
	label string
	bytes uint64
}{
	SizeNA:    {"N/A", 0},
	Size4KB:   {"4KB", 4 << 10},
	Size16KB:  {"16KB", 16 << 10},
	Size64KB:  {"64KB", 64 << 10},
	Size1MB:   {"1MB", 1 << 20},
	Size2MB:   {"2MB", 2 << 20},
	Size16MB:  {"16MB", 16 << 20},
	Size32MB:  {"32MB", 32 << 20},
	Size512MB: {"512MB", 512 << 20},
	Size1GB:   {"1GB", 1 << 30},
}

// String returns the SIZE column text, e.g. "4KB" or "N/A".
func (s PageSize) String() string {
	if s < 0 || int(s) >= len(pageSizes) {
		return pageSizes[SizeNA].label
	}
	return pageSizes[s].label
}

// Bytes returns the number of bytes mapped by one entry of this size, or 0
// when the size is not known.
func (s PageSize) Bytes() uint64 {
	if s < 0 || int(s) >= len(pageSizes) {
		return 0
	}
	return pageSizes[s].bytes
}

// Position locates an entry inside the walk.
type Position struct {
	Way int
	Set int
	Ram int
	// Offset is the per-way accumulator of SetOffsetStride.
	Offset uint64
	// ByteOffset is the distance of the entry from the dump start.
	ByteOffset uint64
}

// TagFields is the decoded content of one entry tag.
type TagFields struct {
	Ram     int
	Type    EntryType
	PA      uint64
	VA      uint64
	Valid   uint32
	VMID    uint32
	ASID    uint32
	S1Mode  uint32
	S1Level uint32
	Size    PageSize
}

// TagDecoder decodes one raw entry. It must not retain line.
type TagDecoder func(line []uint32, pos Position) TagFields
