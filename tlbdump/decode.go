package tlbdump

// CanonicalHighVA is OR-ed into a reconstructed virtual address whose bits
// [47:40] are all set.
const CanonicalHighVA = 0xffff000000000000

// CanonicalVA sign-extends a reconstructed kernel virtual address.
func CanonicalVA(va uint64) uint64 {
	if (va>>40)&0xff == 0xff {
		va |= CanonicalHighVA
	}
	return va
}

// Kryo 2xx gold L1 TLB.
//
//	word0: [1:0] s1 level, [3:2] s1 mode, [8:6] size, [25:10] asid, [31:26] vmid[5:0]
//	word1: [1:0] vmid[7:6], [31:2] va[47:16] low part
//	word2: [2:0] va high bits, [3] valid, [31:4] pa[43:12]
//	word3: [20] walk entry
func decodeKryo2xxGold(d []uint32, pos Position) TagFields {
	f := TagFields{
		Ram:     pos.Ram,
		S1Mode:  (d[0] >> 2) & 0x3,
		S1Level: d[0] & 0x3,
		Valid:   (d[2] >> 3) & 0x1,
		VMID:    (d[1]&0x3)<<6 | (d[0]>>26)&0x3f,
		ASID:    (d[0] >> 10) & 0xffff,
	}

	switch {
	case (d[3]>>20)&0x1 != 0:
		f.Type = TypeWALK
	case f.S1Level == 0x3:
		f.Type = TypeIPA
	default:
		f.Type = TypeREG
	}

	f.PA = uint64(d[2]>>4)*0x1000 + pos.Offset

	vaLow := uint64(d[1] >> 2)
	vaHigh := uint64(d[2] & 0x7)
	f.VA = CanonicalVA((vaHigh<<45 | vaLow<<16) + pos.Offset)

	code := (d[0] >> 6) & 0x7
	if f.Type != TypeREG {
		switch code {
		case 0x1:
			f.Size = Size4KB
		case 0x3:
			f.Size = Size16KB
		case 0x4:
			f.Size = Size64KB
		default:
			f.Size = SizeNA
		}
		return f
	}

	if pos.Ram == 0 {
		f.Size = kryo2xxRam0Size(code)
	} else {
		f.Size = kryo2xxRam1Size(code)
	}
	return f
}

func kryo2xxRam0Size(code uint32) PageSize {
	switch code {
	case 0x0:
		return Size4KB
	case 0x1:
		return Size16KB
	default:
		return Size64KB
	}
}

func kryo2xxRam1Size(code uint32) PageSize {
	switch code {
	case 0x0:
		return Size1MB
	case 0x1:
		return Size2MB
	case 0x2:
		return Size16MB
	case 0x3:
		return Size32MB
	case 0x4:
		return Size512MB
	default:
		return Size1GB
	}
}

// Kryo 3xx gold L1 TLB. The dump does not carry an entry type.
//
//	word0: [1:0] s1 level, [3:2] s1 mode, [8:6] size, [25:10] asid, [31:26] vmid[5:0]
//	word1: [9:0] vmid[15:6], [31:10] va low
//	word2: [9:0] va high, [11] valid, [31:14] pa low
//	word3: [12:0] pa high
func decodeKryo3xxGold(d []uint32, pos Position) TagFields {
	f := TagFields{
		Ram:     pos.Ram,
		Type:    TypeNA,
		S1Mode:  (d[0] >> 2) & 0x3,
		S1Level: d[0] & 0x3,
		Valid:   (d[2] >> 11) & 0x1,
		VMID:    (d[1]&0x3ff)<<6 | (d[0]>>26)&0x3f,
		ASID:    (d[0] >> 10) & 0xffff,
	}

	paLow := uint64(d[2] >> 14)
	paHigh := uint64(d[3] & 0x1fff)
	f.PA = (paHigh<<18|paLow)*0x1000 + pos.Offset

	vaLow := uint64(d[1] >> 10)
	vaHigh := uint64(d[2] & 0x3ff)
	f.VA = CanonicalVA((vaHigh<<22|vaLow)*0x1000 + pos.Offset)

	code := (d[0] >> 6) & 0x7
	if pos.Ram == 0 {
		switch code {
		case 0x0:
			f.Size = Size4KB
		case 0x1:
			f.Size = Size16KB
		default:
			f.Size = Size64KB
		}
		return f
	}

	switch code {
	case 0x0:
		f.Size = Size1MB
	case 0x1:
		f.Size = Size2MB
	case 0x2:
		f.Size = Size16MB
	case 0x3:
		f.Size = Size32MB
	case 0x4:
		f.Size = Size512MB
	default:
		f.Size = Size1GB
	}
	return f
}

// Byte offsets from the dump start that split the Kryo 4xx gold L2 TLB dump
// into its MAIN, WALK and IPA arrays.
const (
	Kryo4xxMainRegionEnd = 0x5000
	Kryo4xxWalkRegionEnd = 0x5500
)

// newKryo4xxGoldDecoder returns the Kryo 4xx gold L2 TLB decoder for the
// region split of g. Only the entry type is known for this array, from the
// entry position. The other tag fields stay unset, SIZE reads N/A and the raw
// words carry the entry.
func newKryo4xxGoldDecoder(g Geometry) TagDecoder {
	mainEnd, walkEnd := g.MainRegionEnd, g.WalkRegionEnd

	return func(_ []uint32, pos Position) TagFields {
		f := TagFields{Ram: pos.Ram, Size: SizeNA}
		switch {
		case pos.ByteOffset < mainEnd:
			f.Type = TypeMAIN
		case pos.ByteOffset < walkEnd:
			f.Type = TypeWALK
		default:
			f.Type = TypeIPA
		}
		return f
	}
}
