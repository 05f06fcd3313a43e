package tlbdump

import (
	"io"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Translation is one valid snapshot entry together with its position.
type Translation struct {
	Ram int
	Way int
	Set int
	TagFields
}

// Snapshot is an in-memory model of the decoded TLB arrays. Each region is
// kept in an akita cache directory with the geometry of the dump, so entries
// stay addressable by (ram, way, set) after the walk.
type Snapshot struct {
	dirs   []*akitacache.DirectoryImpl
	fields map[*akitacache.Block]TagFields
}

// NewSnapshot creates an empty snapshot shaped like g.
func NewSnapshot(g Geometry) *Snapshot {
	blockSize := g.LineSize * WordSize
	s := &Snapshot{
		fields: make(map[*akitacache.Block]TagFields),
	}

	s.dirs = append(s.dirs, akitacache.NewDirectory(
		g.NumSets, g.NumWays, blockSize, akitacache.NewLRUVictimFinder()))
	if g.Topology == TopologyDual {
		s.dirs = append(s.dirs, akitacache.NewDirectory(
			g.NumSetsRam1, g.NumWaysRam1, blockSize, akitacache.NewLRUVictimFinder()))
	}
	return s
}

func (s *Snapshot) block(ram, way, set int) *akitacache.Block {
	if ram < 0 || ram >= len(s.dirs) {
		return nil
	}
	sets := s.dirs[ram].GetSets()
	if set < 0 || set >= len(sets) {
		return nil
	}
	for _, b := range sets[set].Blocks {
		if b.WayID == way {
			return b
		}
	}
	return nil
}

// Record stores the decoded entry at pos. Positions outside the geometry are
// ignored.
func (s *Snapshot) Record(pos Position, f TagFields) {
	b := s.block(pos.Ram, pos.Way, pos.Set)
	if b == nil {
		return
	}
	b.Tag = f.VA
	b.IsValid = f.Valid != 0
	s.fields[b] = f
}

// Entry returns the entry recorded at (ram, way, set).
func (s *Snapshot) Entry(ram, way, set int) (TagFields, bool) {
	b := s.block(ram, way, set)
	if b == nil {
		return TagFields{}, false
	}
	f, ok := s.fields[b]
	return f, ok
}

// ValidEntries returns the number of recorded entries with the valid bit set.
func (s *Snapshot) ValidEntries() int {
	n := 0
	s.eachValid(func(int, *akitacache.Block, TagFields) bool {
		n++
		return true
	})
	return n
}

// Translate looks for a valid final translation of va tagged with asid and
// returns the physical address it maps to. Walk cache entries are skipped.
func (s *Snapshot) Translate(va uint64, asid uint32) (pa uint64, entry TagFields, ok bool) {
	s.eachValid(func(_ int, b *akitacache.Block, f TagFields) bool {
		if f.Type == TypeWALK || f.ASID != asid {
			return true
		}
		size := f.Size.Bytes()
		if size == 0 {
			size = pageSizes[Size4KB].bytes
		}
		mask := size - 1
		if b.Tag&^mask != va&^mask {
			return true
		}
		pa = f.PA&^mask | va&mask
		entry = f
		ok = true
		return false
	})
	return pa, entry, ok
}

// Translations returns the valid entries in ram, set, way order.
func (s *Snapshot) Translations() []Translation {
	var ts []Translation
	s.eachValid(func(ram int, b *akitacache.Block, f TagFields) bool {
		ts = append(ts, Translation{Ram: ram, Way: b.WayID, Set: b.SetID, TagFields: f})
		return true
	})
	return ts
}

// WriteTranslations writes the valid entries to w as a table. Nothing is
// written when no entry is valid.
func (s *Snapshot) WriteTranslations(w io.Writer) error {
	t := NewTable()
	t.AddColumn("RAM", "", 0)
	t.AddColumn("Way", "%01x", 0)
	t.AddColumn("Set", "%03x", 0)
	t.AddColumn("TYPE", "", 0)
	t.AddColumn("VA", "%016x", 16)
	t.AddColumn("PA", "%016x", 16)
	t.AddColumn("SIZE", "", 0)
	t.AddColumn("ASID", "%04x", 4)
	t.AddColumn("VMID", "%02x", 4)

	for _, tr := range s.Translations() {
		err := t.PrintLine(w, tr.Ram, tr.Way, tr.Set, tr.Type,
			tr.VA, tr.PA, tr.Size, tr.ASID, tr.VMID)
		if err != nil {
			return err
		}
	}
	return nil
}

// eachValid calls fn for every valid block in ram, set, way order until fn
// returns false.
func (s *Snapshot) eachValid(fn func(int, *akitacache.Block, TagFields) bool) {
	for ram, dir := range s.dirs {
		for _, set := range dir.GetSets() {
			for _, b := range set.Blocks {
				if !b.IsValid {
					continue
				}
				if !fn(ram, b, s.fields[b]) {
					return
				}
			}
		}
	}
}
