// ============================================================================
// coresim - Main Entry Point
// ============================================================================
//
// File: cmd/coresim/main.go
// Purpose: Application entry point and CLI initialization.
//
// Responsibilities:
//   1. Version Management - inject build info via ldflags
//   2. Panic Recovery - catch unexpected panics gracefully
//   3. CLI Setup - build and execute the Cobra command tree
//
// Version Injection:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   coresim run --trace trace.json
//   coresim replay --journal coresim-data/journal.jsonl --all-schemes
//   coresim serve --config configs/default.yaml
//   coresim history --limit 20
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/kdesai/coresim/internal/cli"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
