package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/rs/xid"

	"github.com/sarchlab/ramparser/config"
	"github.com/sarchlab/ramparser/loader"
	"github.com/sarchlab/ramparser/parsers"
	"github.com/sarchlab/ramparser/ramdump"
	"github.com/sarchlab/ramparser/tlbdump"
)

// PagetypeinfoFile is the output file of the pagetypeinfo report.
const PagetypeinfoFile = "pagetypeinfo.txt"

// run executes every job of the manifest and returns the process exit code.
// A failed job is logged and the remaining jobs still run.
func run(cfg *config.Config, log logr.Logger) int {
	rd, err := openDump(cfg, log)
	if err != nil {
		log.Error(err, "failed to open ramdump", "path", cfg.DumpPath)
		return 1
	}

	failed := 0
	for _, job := range cfg.TLBDumps {
		jl := log.WithValues("job", xid.New().String(), "key", job.Key().String())
		if err := runTLBDump(rd, job, jl); err != nil {
			jl.Error(err, "tlb dump failed")
			failed++
		}
	}

	for _, name := range cfg.Reports {
		jl := log.WithValues("job", xid.New().String(), "report", name)
		if err := runReport(rd, name, jl); err != nil {
			jl.Error(err, "report failed")
			failed++
		}
	}

	if failed > 0 {
		log.Info("finished with failures", "failed", failed)
		return 1
	}
	return 0
}

func openDump(cfg *config.Config, log logr.Logger) (*ramdump.Ramdump, error) {
	var (
		dump *loader.Dump
		err  error
	)
	switch cfg.DumpFormat {
	case config.FormatRaw:
		dump, err = loader.LoadRaw(cfg.DumpPath, cfg.RawBase)
	default:
		dump, err = loader.Load(cfg.DumpPath)
	}
	if err != nil {
		return nil, err
	}

	opts := []ramdump.Option{
		ramdump.WithLayout(cfg.Layout),
		ramdump.WithOutDir(cfg.OutDir),
		ramdump.WithNumCPUs(cfg.NumCPUs),
		ramdump.WithLinearMap(cfg.PhysOffset, cfg.PageOffset),
		ramdump.WithLogger(log),
	}
	switch cfg.Arch {
	case "arm":
		opts = append(opts, ramdump.WithArch(loader.ArchARM))
	case "arm64":
		opts = append(opts, ramdump.WithArch(loader.ArchARM64))
	}

	return ramdump.New(dump, opts...)
}

func runTLBDump(rd *ramdump.Ramdump, job config.TLBDumpJob, log logr.Logger) error {
	opts := []tlbdump.Option{tlbdump.WithLogger(log)}

	dec := tlbdump.DefaultRegistry().Resolve(job.Key())
	var snap *tlbdump.Snapshot
	if dec.DecodesTags() {
		snap = tlbdump.NewSnapshot(dec.Geometry)
		opts = append(opts, tlbdump.WithSnapshot(snap))
	}

	err := tlbdump.DispatchAndParseFile(rd, job.Key(), job.Start, job.End, job.OutputName(), opts...)
	if err != nil {
		return err
	}

	if snap == nil {
		return nil
	}

	if err := writeTranslations(rd, snap, job.TranslationsName()); err != nil {
		return err
	}
	log.V(1).Info("tlb snapshot", "valid", snap.ValidEntries(), "output", job.TranslationsName())

	for _, l := range job.Lookups {
		va, asid := fmt.Sprintf("%#x", l.VA), fmt.Sprintf("%#x", l.ASID)
		pa, entry, ok := snap.Translate(l.VA, l.ASID)
		if !ok {
			log.Info("no translation", "va", va, "asid", asid)
			continue
		}
		log.Info("translation", "va", va, "asid", asid,
			"pa", fmt.Sprintf("%#x", pa), "size", entry.Size.String())
	}
	return nil
}

func writeTranslations(rd *ramdump.Ramdump, snap *tlbdump.Snapshot, name string) (err error) {
	out, err := rd.OpenFile(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	return snap.WriteTranslations(out)
}

func runReport(rd *ramdump.Ramdump, name string, log logr.Logger) error {
	switch name {
	case config.ReportPagetypeinfo:
		return writePagetypeinfo(rd, log)
	case config.ReportPstore:
		return parsers.Pstore(rd, parsers.WithLogger(log))
	case config.ReportScandump:
		return parsers.Scandump(rd, parsers.WithLogger(log))
	default:
		return fmt.Errorf("unknown report %q", name)
	}
}

func writePagetypeinfo(rd *ramdump.Ramdump, log logr.Logger) (err error) {
	out, err := rd.OpenFile(PagetypeinfoFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	return parsers.Pagetypeinfo(rd, out, parsers.WithLogger(log))
}
