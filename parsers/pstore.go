package parsers

import (
	"fmt"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Pstore output files.
const (
	ConsoleLogFile = "console_logs.txt"
	rtbFileFormat  = "rtb_core_%d.txt"
)

// RTBFileName returns the name of the register trace file of a CPU.
func RTBFileName(cpu int) string {
	return fmt.Sprintf(rtbFileFormat, cpu)
}

// printableText drops every byte that is not printable ASCII. ASCII
// whitespace, including carriage returns, is kept. Invalid UTF-8 decodes to
// utf8.RuneError and is dropped with the rest of the non-ASCII input.
var printableText = runes.Remove(runes.Predicate(func(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r':
		return false
	}
	return r > unicode.MaxASCII || !unicode.IsPrint(r)
}))

type ramZone struct {
	paddr uint64
	size  uint64
}

// Pstore extracts the persistent ram zones of the ramoops context: the
// per-CPU register trace buffers to rtb_core_<cpu>.txt and the console
// buffer to console_logs.txt.
func Pstore(h Host, opts ...Option) error {
	o := buildOptions(opts)

	l := &lookup{h: h}
	cxt := l.addr("oops_cxt")
	eprzs := l.offset("struct ramoops_context", "eprzs")
	cprz := l.offset("struct ramoops_context", "cprz")
	paddrOff := l.offset("struct persistent_ram_zone", "paddr")
	sizeOff := l.offset("struct persistent_ram_zone", "size")
	if l.err != nil {
		return fmt.Errorf("failed to resolve pstore layout: %w", l.err)
	}

	readZone := func(zonePtr uint64) (ramZone, error) {
		zone, err := h.ReadWord(zonePtr)
		if err != nil {
			return ramZone{}, err
		}
		paddr, err := h.ReadWord(zone + paddrOff)
		if err != nil {
			return ramZone{}, err
		}
		size, err := h.ReadWord(zone + sizeOff)
		if err != nil {
			return ramZone{}, err
		}
		return ramZone{paddr: paddr, size: size}, nil
	}

	// eprzs is an array of zone pointers; the first zone's geometry is
	// shared by all CPUs.
	array, err := h.ReadWord(cxt + eprzs)
	if err != nil {
		return fmt.Errorf("failed to read event zones: %w", err)
	}
	event, err := readZone(array)
	if err != nil {
		return fmt.Errorf("failed to read event zone: %w", err)
	}
	for cpu := range h.NumCPUs() {
		addr := event.paddr + uint64(cpu)*event.size
		if err := extractZone(h, RTBFileName(cpu), addr, event.size); err != nil {
			return err
		}
		o.log.V(1).Info("extracted event log", "cpu", cpu, "paddr", fmt.Sprintf("0x%x", addr))
	}

	console, err := readZone(cxt + cprz)
	if err != nil {
		return fmt.Errorf("failed to read console zone: %w", err)
	}
	if err := extractZone(h, ConsoleLogFile, console.paddr, console.size); err != nil {
		return err
	}

	o.log.Info("extracted pstore", "cpus", h.NumCPUs(), "console_bytes", console.size)
	return nil
}

func extractZone(h Host, name string, addr, size uint64) (err error) {
	data, err := h.ReadPhysical(addr, int(size))
	if err != nil {
		return fmt.Errorf("failed to read pstore zone at 0x%x: %w", addr, err)
	}

	out, err := h.OpenFile(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	text, _, err := transform.Bytes(printableText, data)
	if err != nil {
		return fmt.Errorf("failed to decode pstore zone at 0x%x: %w", addr, err)
	}
	if _, err := out.Write(append(text, '\n')); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
