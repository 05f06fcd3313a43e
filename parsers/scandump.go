package parsers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/sarchlab/ramparser/tlbdump"
)

// ScandumpRegsFile is the register table written by Scandump.
const ScandumpRegsFile = "scandump_regs.txt"

// ScandumpFirstCore is the first CPU with a scandump script; script N
// belongs to CPU ScandumpFirstCore+N.
const ScandumpFirstCore = 4

var registerSetRe = regexp.MustCompile(`(?i)^REGISTER.SET ([xse].*[0-9]+)\s(0x[0-9a-f]*)`)

// missingRegisters are not emitted by every scandump script and read as zero.
var missingRegisters = []string{
	"currentEL",
	"spsr_el1", "spsr_el2", "spsr_el3",
	"cpu_state_0", "cpu_state_1", "cpu_state_3", "cpu_state_4", "cpu_state_5",
}

// Registers is the register snapshot of one core.
type Registers map[string]uint64

// Names returns the register names in sorted order.
func (r Registers) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// ScandumpFileName returns the scandump script name of a CPU.
func ScandumpFileName(cpu int) string {
	return fmt.Sprintf("scandump_core%d.cmm", cpu-ScandumpFirstCore)
}

// ParseScandump reads the REGISTER.SET lines of a scandump script. Register
// names are lower-cased and a bare "0x" value reads as zero. Lines that are
// not register assignments are skipped.
func ParseScandump(r io.Reader) (Registers, error) {
	regs := Registers{}
	for _, name := range missingRegisters {
		regs[name] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := registerSetRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		digits := strings.TrimPrefix(strings.ToLower(m[2]), "0x")
		var v uint64
		if digits != "" {
			var err error
			v, err = strconv.ParseUint(digits, 16, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse register %s: %w", m[1], err)
			}
		}
		regs[strings.ToLower(m[1])] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scandump: %w", err)
	}
	return regs, nil
}

// LoadScandump parses the scandump script of a CPU from dir.
func LoadScandump(dir string, cpu int) (Registers, error) {
	f, err := os.Open(filepath.Join(dir, ScandumpFileName(cpu)))
	if err != nil {
		return nil, fmt.Errorf("failed to open scandump: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseScandump(f)
}

// Scandump collects the scandump scripts found in the output directory into
// one register table. CPUs without a script are skipped.
func Scandump(h Host, opts ...Option) (err error) {
	o := buildOptions(opts)

	out, err := h.OpenFile(ScandumpRegsFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	t := tlbdump.NewTable()
	t.AddColumn("CPU", "%d", 3)
	t.AddColumn("REGISTER", "%s", 12)
	t.AddColumn("VALUE", "%016x", 16)

	found := 0
	for cpu := ScandumpFirstCore; cpu < h.NumCPUs(); cpu++ {
		regs, err := LoadScandump(h.OutDir(), cpu)
		if errors.Is(err, os.ErrNotExist) {
			o.log.V(1).Info("no scandump for cpu", "cpu", cpu)
			continue
		}
		if err != nil {
			return fmt.Errorf("cpu %d: %w", cpu, err)
		}
		for _, name := range regs.Names() {
			if err := t.PrintLine(out, cpu, name, regs[name]); err != nil {
				return err
			}
		}
		found++
	}

	o.log.Info("parsed scandumps", "cores", found)
	return nil
}
