// Package config provides the run manifest of a ramdump analysis.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/ramparser/ramdump"
	"github.com/sarchlab/ramparser/tlbdump"
)

// Dump formats.
const (
	FormatELF = "elf"
	FormatRaw = "raw"
)

// Report names accepted in Config.Reports.
const (
	ReportPagetypeinfo = "pagetypeinfo"
	ReportPstore       = "pstore"
	ReportScandump     = "scandump"
)

// KnownReports lists every report name in the order they run.
var KnownReports = []string{ReportPagetypeinfo, ReportPstore, ReportScandump}

// Config describes where a ramdump lives, how to interpret it and which
// reports to produce from it.
type Config struct {
	// DumpPath is the ELF core or raw memory binary to analyze.
	DumpPath string `json:"dump_path" yaml:"dump_path"`

	// DumpFormat is FormatELF or FormatRaw. Default: elf.
	DumpFormat string `json:"dump_format" yaml:"dump_format"`

	// RawBase is the physical address of the first byte of a raw dump.
	RawBase uint64 `json:"raw_base" yaml:"raw_base"`

	// OutDir is where report files are written. Default: current directory.
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// Arch is "arm" or "arm64". Required for raw dumps; for ELF cores it
	// overrides the machine recorded in the file.
	Arch string `json:"arch" yaml:"arch"`

	// NumCPUs is the number of cores of the dumped device. Default: 8.
	NumCPUs int `json:"num_cpus" yaml:"num_cpus"`

	// PhysOffset and PageOffset describe the kernel linear map.
	PhysOffset uint64 `json:"phys_offset" yaml:"phys_offset"`
	PageOffset uint64 `json:"page_offset" yaml:"page_offset"`

	// Layout holds kernel symbols, struct layouts and constants.
	Layout ramdump.Layout `json:"layout" yaml:"layout"`

	// TLBDumps lists the TLB dump regions to decode.
	TLBDumps []TLBDumpJob `json:"tlb_dumps" yaml:"tlb_dumps"`

	// Reports lists the additional reports to run.
	Reports []string `json:"reports" yaml:"reports"`
}

// TLBDumpJob is one TLB dump region to decode.
type TLBDumpJob struct {
	HardwareID string `json:"hw_id" yaml:"hw_id"`
	ClientID   int    `json:"client_id" yaml:"client_id"`
	Version    int    `json:"version" yaml:"version"`
	Start      uint64 `json:"start" yaml:"start"`
	End        uint64 `json:"end" yaml:"end"`
	Output     string `json:"output" yaml:"output"`

	// Lookups are virtual addresses to translate through the decoded TLB.
	Lookups []Lookup `json:"lookups" yaml:"lookups"`
}

// Lookup is one virtual address translation query.
type Lookup struct {
	VA   uint64 `json:"va" yaml:"va"`
	ASID uint32 `json:"asid" yaml:"asid"`
}

// Key returns the registry key of the job.
func (j TLBDumpJob) Key() tlbdump.Key {
	return tlbdump.Key{
		HardwareID: j.HardwareID,
		ClientID:   j.ClientID,
		Version:    j.Version,
	}
}

// OutputName returns the report file name, derived from the key when the
// job does not name one.
func (j TLBDumpJob) OutputName() string {
	if j.Output != "" {
		return j.Output
	}
	return fmt.Sprintf("tlbdump_%s_0x%x.txt", j.HardwareID, j.ClientID)
}

// TranslationsName returns the name of the file listing the valid entries
// of the decoded TLB, derived from OutputName.
func (j TLBDumpJob) TranslationsName() string {
	name := j.OutputName()
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_valid.txt"
}

// DefaultConfig returns a Config with the defaults of an ARM64 target.
func DefaultConfig() *Config {
	return &Config{
		DumpFormat: FormatELF,
		OutDir:     ".",
		NumCPUs:    8,
		PhysOffset: ramdump.DefaultPhysOffset,
		PageOffset: ramdump.DefaultPageOffset,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadConfig loads a Config from a JSON or YAML file, chosen by extension.
// Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON or YAML file, chosen by extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the Config describes a usable run.
func (c *Config) Validate() error {
	if c.DumpPath == "" {
		return fmt.Errorf("dump_path must be set")
	}
	switch c.DumpFormat {
	case FormatELF:
	case FormatRaw:
		if c.Arch == "" {
			return fmt.Errorf("arch must be set for raw dumps")
		}
	default:
		return fmt.Errorf("dump_format must be %q or %q", FormatELF, FormatRaw)
	}
	switch c.Arch {
	case "", "arm", "arm64":
	default:
		return fmt.Errorf("arch must be \"arm\" or \"arm64\"")
	}
	if c.NumCPUs <= 0 {
		return fmt.Errorf("num_cpus must be > 0")
	}
	if c.PageOffset == 0 {
		return fmt.Errorf("page_offset must be > 0")
	}
	for i, job := range c.TLBDumps {
		if job.HardwareID == "" {
			return fmt.Errorf("tlb_dumps[%d]: hw_id must be set", i)
		}
	}
	for _, r := range c.Reports {
		if !slices.Contains(KnownReports, r) {
			return fmt.Errorf("unknown report %q", r)
		}
	}
	return nil
}
