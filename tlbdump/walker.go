package tlbdump

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
)

// Decoder pairs a variant with its geometry and tag decoding strategy.
type Decoder struct {
	Variant  Variant
	Geometry Geometry

	decode TagDecoder
	key    Key
}

// Supported reports whether the decoder can parse a dump.
func (d Decoder) Supported() bool {
	return d.Variant != VariantUnsupported
}

// DecodesTags reports whether rows carry decoded tag columns in addition to
// the raw data words.
func (d Decoder) DecodesTags() bool {
	return d.decode != nil
}

// Decode decodes one raw entry. ok is false for variants dumped raw.
func (d Decoder) Decode(line []uint32, pos Position) (f TagFields, ok bool) {
	if d.decode == nil {
		return TagFields{}, false
	}
	return d.decode(line, pos), true
}

// NewTable creates the output table of the variant.
func (d Decoder) NewTable() *Table {
	t := NewTable()
	t.AddColumn("Way", "%01x", 0)
	t.AddColumn("Set", "%03x", 0)

	if d.DecodesTags() {
		t.AddColumn("RAM", "", 0)
		t.AddColumn("TYPE", "", 0)
		t.AddColumn("PA", "%016x", 16)
		t.AddColumn("VA", "%016x", 16)
		t.AddColumn("VALID", "", 0)
		t.AddColumn("VMID", "%02x", 4)
		t.AddColumn("ASID", "%04x", 4)
		t.AddColumn("S1_MODE", "%01x", 7)
		t.AddColumn("S1_LEVEL", "%01x", 8)
		t.AddColumn("SIZE", "", 0)
	}

	for i := 0; i < d.Geometry.LineSize; i++ {
		t.AddColumn(fmt.Sprintf("DATA%d", i), "%08x", 8)
	}
	return t
}

// Option configures a single Parse call.
type Option func(*walker)

// WithLogger sets the logger used during the walk.
func WithLogger(l logr.Logger) Option {
	return func(w *walker) {
		w.log = l
	}
}

// WithSnapshot records every decoded entry into s.
func WithSnapshot(s *Snapshot) Option {
	return func(w *walker) {
		w.snapshot = s
	}
}

// Parse walks the dump in [start, end] and writes one table row per entry.
// The walk stops at the first error; rows already written stay written.
func (d Decoder) Parse(r PhysicalReader, start, end uint64, out io.Writer, opts ...Option) error {
	if !d.Supported() {
		return fmt.Errorf("%w: %v", ErrUnsupportedVariant, d.key)
	}

	w := &walker{
		dec:    d,
		lines:  NewLineReader(r, d.Geometry.LineSize),
		table:  d.NewTable(),
		out:    out,
		start:  start,
		cursor: start,
		end:    end,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w.run()
}

// walker holds the state of one Parse call.
type walker struct {
	dec      Decoder
	lines    *LineReader
	table    *Table
	out      io.Writer
	start    uint64
	cursor   uint64
	end      uint64
	log      logr.Logger
	snapshot *Snapshot

	entries int
	valid   int
}

func (w *walker) run() error {
	g := w.dec.Geometry
	w.log.V(1).Info("walking tlb dump",
		"variant", w.dec.Variant.String(),
		"start", fmt.Sprintf("0x%x", w.start),
		"end", fmt.Sprintf("0x%x", w.end))

	if err := w.walkRegion(0, g.NumWays, g.NumSets); err != nil {
		return err
	}
	if g.Topology == TopologyDual {
		if err := w.walkRegion(1, g.NumWaysRam1, g.NumSetsRam1); err != nil {
			return err
		}
	}

	w.log.Info("decoded tlb dump",
		"variant", w.dec.Variant.String(),
		"entries", w.entries,
		"valid", w.valid)
	return nil
}

func (w *walker) walkRegion(ram, numWays, numSets int) error {
	w.log.V(1).Info("walking region", "ram", ram, "ways", numWays, "sets", numSets)

	for way := 0; way < numWays; way++ {
		var offset uint64
		for set := 0; set < numSets; set++ {
			pos := Position{
				Way:        way,
				Set:        set,
				Ram:        ram,
				Offset:     offset,
				ByteOffset: w.cursor - w.start,
			}
			if err := w.visit(pos); err != nil {
				return err
			}
			offset += SetOffsetStride
		}
	}
	return nil
}

func (w *walker) visit(pos Position) error {
	if w.cursor > w.end {
		return &OutOfRangeError{Addr: w.cursor, End: w.end}
	}

	line, err := w.lines.ReadLine(w.cursor)
	if err != nil {
		return err
	}

	row := make([]any, 0, w.table.NumColumns())
	row = append(row, pos.Way, pos.Set)

	if f, ok := w.dec.Decode(line, pos); ok {
		row = append(row, f.Ram, f.Type, f.PA, f.VA, f.Valid,
			f.VMID, f.ASID, f.S1Mode, f.S1Level, f.Size)
		if f.Valid != 0 {
			w.valid++
		}
		if w.snapshot != nil {
			w.snapshot.Record(pos, f)
		}
	}

	for _, word := range line {
		row = append(row, word)
	}

	if err := w.table.PrintLine(w.out, row...); err != nil {
		return err
	}

	w.entries++
	w.cursor += w.lines.LineBytes()
	return nil
}
