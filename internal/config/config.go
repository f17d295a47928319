// ============================================================================
// Configuration
// ============================================================================
//
// Package: internal/config
// Purpose: Load the YAML configuration a simulation run, the HTTP server,
// and the history store read their settings from.
//
// Grounded on cmd/demo/main.go's loadConfig (teacher repo): a plain
// struct with `yaml` tags, unmarshalled with gopkg.in/yaml.v3 from a
// single file read with os.ReadFile.
//
// ============================================================================

// Package config loads coresim's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Run holds the parameters of one simulation run.
type Run struct {
	NumCores int    `yaml:"num_cores"`
	Scheme   string `yaml:"scheme"`
	Quantum  int64  `yaml:"quantum"`
}

// Journal holds the event journal's settings.
type Journal struct {
	Path string `yaml:"path"`
}

// Snapshot holds the run-state snapshot's settings.
type Snapshot struct {
	Path string `yaml:"path"`
}

// HTTP holds the REST driver's settings.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Metrics holds the Prometheus endpoint's settings.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// History holds the run-ledger database's settings.
type History struct {
	Path string `yaml:"path"`
}

// Config is the full set of settings coresim reads from a YAML file.
type Config struct {
	Run      Run      `yaml:"run"`
	Journal  Journal  `yaml:"journal"`
	Snapshot Snapshot `yaml:"snapshot"`
	HTTP     HTTP     `yaml:"http"`
	Metrics  Metrics  `yaml:"metrics"`
	History  History  `yaml:"history"`
}

// Default returns the configuration coresim runs with when no config
// file is given.
func Default() Config {
	return Config{
		Run:      Run{NumCores: 1, Scheme: "FCFS", Quantum: 1},
		Journal:  Journal{Path: "coresim-data/journal.jsonl"},
		Snapshot: Snapshot{Path: "coresim-data/snapshot.json"},
		HTTP:     HTTP{Addr: ":8080"},
		Metrics:  Metrics{Addr: ":9090"},
		History:  History{Path: "coresim-data/history.db"},
	}
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
