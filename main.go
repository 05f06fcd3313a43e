// Package main provides the entry point for ramparse.
// ramparse is an offline analyzer for ARM ramdumps built on Akita.
//
// For the full CLI, use: go run ./cmd/ramparse
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("ramparse - ARM Ramdump Analyzer")
	fmt.Println("Decodes TLB dumps, free page lists, pstore logs and scandumps")
	fmt.Println("")
	fmt.Println("Usage: ramparse [options] -config <manifest>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to the run manifest (JSON or YAML)")
	fmt.Println("  -o         Output directory, overrides out_dir of the manifest")
	fmt.Println("  -list      List the supported TLB dump keys and exit")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ramparse' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ramparse' instead.")
	}
}
