package ramdump

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/ramparser/loader"
)

// ErrUnmapped is returned for reads of addresses not captured in the dump.
var ErrUnmapped = errors.New("address not in dump")

// Default linear map parameters for ARM64 kernels.
const (
	DefaultPhysOffset = 0x80000000
	DefaultPageOffset = 0xffffffc000000000
)

// region is one captured physical range [start, end).
type region struct {
	start uint64
	end   uint64
}

// Ramdump is a loaded memory image together with the kernel metadata
// needed to interpret it.
type Ramdump struct {
	storage *mem.Storage
	regions []region

	arch       loader.Arch
	layout     Layout
	outDir     string
	numCPUs    int
	physOffset uint64
	pageOffset uint64
	log        logr.Logger
}

// Option is a functional option for configuring a Ramdump.
type Option func(*Ramdump)

// WithArch overrides the architecture recorded in the dump.
func WithArch(arch loader.Arch) Option {
	return func(r *Ramdump) {
		r.arch = arch
	}
}

// WithLayout sets the symbol and struct layout metadata.
func WithLayout(l Layout) Option {
	return func(r *Ramdump) {
		r.layout = l
	}
}

// WithOutDir sets the directory report files are created in.
func WithOutDir(dir string) Option {
	return func(r *Ramdump) {
		r.outDir = dir
	}
}

// WithNumCPUs sets the number of cores of the dumped device.
func WithNumCPUs(n int) Option {
	return func(r *Ramdump) {
		r.numCPUs = n
	}
}

// WithLinearMap sets the kernel linear map: virtual address pageOffset maps
// to physical address physOffset.
func WithLinearMap(physOffset, pageOffset uint64) Option {
	return func(r *Ramdump) {
		r.physOffset = physOffset
		r.pageOffset = pageOffset
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(r *Ramdump) {
		r.log = l
	}
}

// New builds a Ramdump from the segments of dump.
func New(dump *loader.Dump, opts ...Option) (*Ramdump, error) {
	if dump == nil || len(dump.Segments) == 0 {
		return nil, fmt.Errorf("ramdump has no segments")
	}

	r := &Ramdump{
		arch:       dump.Arch,
		outDir:     ".",
		numCPUs:    1,
		physOffset: DefaultPhysOffset,
		pageOffset: DefaultPageOffset,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var capacity uint64
	for _, seg := range dump.Segments {
		capacity = max(capacity, seg.End())
	}
	r.storage = mem.NewStorage(capacity)

	for _, seg := range dump.Segments {
		if len(seg.Data) == 0 {
			continue
		}
		if err := r.storage.Write(seg.PhysAddr, seg.Data); err != nil {
			return nil, fmt.Errorf("failed to load segment at 0x%x: %w", seg.PhysAddr, err)
		}
		r.regions = append(r.regions, region{start: seg.PhysAddr, end: seg.End()})
		r.log.V(1).Info("loaded segment",
			"paddr", fmt.Sprintf("0x%x", seg.PhysAddr),
			"size", len(seg.Data))
	}
	slices.SortFunc(r.regions, func(a, b region) int {
		return cmp.Compare(a.start, b.start)
	})

	return r, nil
}

// Arch returns the architecture of the dumped device.
func (r *Ramdump) Arch() loader.Arch {
	return r.arch
}

// IsArm64 reports whether the dumped device runs an AArch64 kernel.
func (r *Ramdump) IsArm64() bool {
	return r.arch == loader.ArchARM64
}

// PointerSize returns the size of a kernel pointer.
func (r *Ramdump) PointerSize() int {
	if r.IsArm64() {
		return 8
	}
	return 4
}

// NumCPUs returns the number of cores of the dumped device.
func (r *Ramdump) NumCPUs() int {
	return r.numCPUs
}

// OutDir returns the report output directory.
func (r *Ramdump) OutDir() string {
	return r.outDir
}

// Layout returns the kernel metadata.
func (r *Ramdump) Layout() Layout {
	return r.layout
}

// AddressOf returns the virtual address of a kernel symbol.
func (r *Ramdump) AddressOf(symbol string) (uint64, error) {
	return r.layout.AddressOf(symbol)
}

// FieldOffset returns the offset of field inside typ.
func (r *Ramdump) FieldOffset(typ, field string) (uint64, error) {
	return r.layout.FieldOffset(typ, field)
}

// SizeOf returns the size of typ.
func (r *Ramdump) SizeOf(typ string) (uint64, error) {
	return r.layout.SizeOf(typ)
}

// Constant returns the value of a kernel enum or macro.
func (r *Ramdump) Constant(name string) (int64, error) {
	return r.layout.Constant(name)
}

// OpenFile creates a report file in the output directory.
func (r *Ramdump) OpenFile(name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(r.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(r.outDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}

// ReadPhysical reads n bytes at a physical address. The whole range must
// lie inside one captured segment.
func (r *Ramdump) ReadPhysical(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read size %d", n)
	}
	end := addr + uint64(n)
	for _, reg := range r.regions {
		if addr >= reg.start && end <= reg.end && end >= addr {
			return r.storage.Read(addr, uint64(n))
		}
	}
	return nil, fmt.Errorf("%w: 0x%x+0x%x", ErrUnmapped, addr, n)
}

// VirtToPhys translates a kernel linear map address.
func (r *Ramdump) VirtToPhys(va uint64) (uint64, error) {
	if va < r.pageOffset {
		return 0, fmt.Errorf("%w: virtual address 0x%x below page offset 0x%x",
			ErrUnmapped, va, r.pageOffset)
	}
	return va - r.pageOffset + r.physOffset, nil
}

// ReadVirtual reads n bytes at a kernel virtual address.
func (r *Ramdump) ReadVirtual(va uint64, n int) ([]byte, error) {
	pa, err := r.VirtToPhys(va)
	if err != nil {
		return nil, err
	}
	return r.ReadPhysical(pa, n)
}

// ReadU32 reads a little-endian 32-bit value at a virtual address.
func (r *Ramdump) ReadU32(va uint64) (uint32, error) {
	data, err := r.ReadVirtual(va, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadU64 reads a little-endian 64-bit value at a virtual address.
func (r *Ramdump) ReadU64(va uint64) (uint64, error) {
	data, err := r.ReadVirtual(va, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ReadWord reads a pointer-sized value at a virtual address.
func (r *Ramdump) ReadWord(va uint64) (uint64, error) {
	if r.IsArm64() {
		return r.ReadU64(va)
	}
	v, err := r.ReadU32(va)
	return uint64(v), err
}

// ReadCString reads a NUL-terminated string of at most maxLen bytes at a
// virtual address.
func (r *Ramdump) ReadCString(va uint64, maxLen int) (string, error) {
	data, err := r.ReadVirtual(va, maxLen)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}
