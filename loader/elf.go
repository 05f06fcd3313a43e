// Package loader provides loading of ramdump images from ELF cores and raw
// memory binaries.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
)

// Arch is the architecture of the dumped device.
type Arch int

const (
	// ArchUnknown is used for raw binaries, whose architecture comes from
	// configuration.
	ArchUnknown Arch = iota
	// ArchARM is 32-bit ARM.
	ArchARM
	// ArchARM64 is AArch64.
	ArchARM64
)

// String returns the architecture name used in configuration files.
func (a Arch) String() string {
	switch a {
	case ArchARM:
		return "arm"
	case ArchARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// Segment is one contiguous range of captured physical memory.
type Segment struct {
	// PhysAddr is the physical address of the first byte of Data.
	PhysAddr uint64
	// Data contains the captured bytes.
	Data []byte
}

// End returns the physical address right after the segment.
func (s Segment) End() uint64 {
	return s.PhysAddr + uint64(len(s.Data))
}

// Dump is a loaded ramdump.
type Dump struct {
	// Arch is the architecture recorded in the ELF header.
	Arch Arch
	// Segments contains all captured memory ranges.
	Segments []Segment
}

// Load parses an ELF core ramdump and returns its PT_LOAD segments keyed by
// physical address.
func Load(path string) (*Dump, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dump := &Dump{}
	switch f.Machine {
	case elf.EM_AARCH64:
		if f.Class != elf.ELFCLASS64 {
			return nil, fmt.Errorf("not a 64-bit ELF file")
		}
		dump.Arch = ArchARM64
	case elf.EM_ARM:
		dump.Arch = ArchARM
	default:
		return nil, fmt.Errorf("not an ARM ELF file (machine type: %v)", f.Machine)
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Filesz == 0 {
			continue
		}

		data := make([]byte, phdr.Filesz)
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Paddr, n, phdr.Filesz)
		}

		dump.Segments = append(dump.Segments, Segment{PhysAddr: phdr.Paddr, Data: data})
	}

	if len(dump.Segments) == 0 {
		return nil, fmt.Errorf("no loadable segments in %s", path)
	}
	return dump, nil
}

// LoadRaw reads a raw memory binary (for example DDRCS0.BIN) captured at
// physical address base.
func LoadRaw(path string, base uint64) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw dump: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("raw dump %s is empty", path)
	}

	return &Dump{
		Segments: []Segment{{
			PhysAddr: base,
			Data:     data,
		}},
	}, nil
}
