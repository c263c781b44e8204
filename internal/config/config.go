// Package config decodes the engine's YAML configuration file via
// goccy/go-yaml. This is deliberately a thin struct decoder, not a full
// flag/env/CLI configuration layer — the command-line grammar and flag
// parsing belong to the external process that embeds this engine.
package config

import (
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the engine's full configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig controls persistence and background maintenance.
type DatabaseConfig struct {
	// SnapshotPath is where SAVE/BGSAVE write the database snapshot.
	SnapshotPath string `yaml:"snapshot_path"`
	// SaveAfterSeconds is the periodic snapshot interval; 0 disables it.
	SaveAfterSeconds int `yaml:"save_after"`
	// MinMutations is the minimum number of mutations that must have
	// accumulated since the last snapshot before a scheduled (not manual)
	// snapshot actually writes; 0 means every tick writes.
	MinMutations uint64 `yaml:"mutations"`
}

// AuthConfig controls the server key required by AUTH.
type AuthConfig struct {
	Required  bool   `yaml:"required"`
	ServerKey string `yaml:"server_key"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with conservative defaults: persistence to
// ./dump.dat, no periodic snapshot, no auth required, metrics disabled.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			SnapshotPath:     "dump.dat",
			SaveAfterSeconds: 0,
		},
		Auth: AuthConfig{
			Required: false,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
	}
}

// Load reads and decodes the YAML file at path, starting from Default and
// overwriting whatever fields the file specifies.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
