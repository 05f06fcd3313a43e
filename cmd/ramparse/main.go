// Package main provides the entry point for ramparse.
// ramparse decodes TLB dumps and kernel state reports from ARM ramdumps.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/ramparser/config"
	"github.com/sarchlab/ramparser/tlbdump"
)

var (
	configPath = flag.String("config", "", "Path to the run manifest (JSON or YAML)")
	outDir     = flag.String("o", "", "Output directory, overrides out_dir of the manifest")
	list       = flag.Bool("list", false, "List the supported TLB dump keys and exit")
	verbosity  = flag.Int("v", 0, "Log verbosity")
)

func main() {
	flag.Parse()

	if *list {
		listKeys(os.Stdout, tlbdump.DefaultRegistry())
		return
	}

	if *configPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: ramparse [options] -config <manifest>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(cfg, newLogger(os.Stderr, *verbosity)))
}

func newLogger(w io.Writer, v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: v})
}

// listKeys prints every registered TLB dump key with the variant it selects.
func listKeys(w io.Writer, reg *tlbdump.Registry) {
	for _, k := range reg.Keys() {
		fmt.Fprintf(w, "%-28s %s\n", k, reg.Resolve(k).Variant)
	}
}
