package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "database:\n  snapshot_path: /var/lib/escanor/dump.dat\n  save_after: 300\n  mutations: 50\nauth:\n  required: true\n  server_key: s3cr3t\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.SnapshotPath != "/var/lib/escanor/dump.dat" {
		t.Fatalf("got %q", cfg.Database.SnapshotPath)
	}
	if cfg.Database.SaveAfterSeconds != 300 {
		t.Fatalf("got %d", cfg.Database.SaveAfterSeconds)
	}
	if cfg.Database.MinMutations != 50 {
		t.Fatalf("got %d", cfg.Database.MinMutations)
	}
	if !cfg.Auth.Required || cfg.Auth.ServerKey != "s3cr3t" {
		t.Fatalf("got %+v", cfg.Auth)
	}
	// Untouched sections keep their defaults.
	if cfg.Metrics.Enabled {
		t.Fatal("expected metrics to remain disabled")
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Database.SnapshotPath == "" {
		t.Fatal("expected a non-empty default snapshot path")
	}
	if cfg.Database.SaveAfterSeconds != 0 {
		t.Fatal("expected periodic snapshot disabled by default")
	}
}
