package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	if cfg.Session.DefaultTimeout.Seconds() != 30 {
		t.Fatalf("expected 30s default session timeout, got %s", cfg.Session.DefaultTimeout)
	}
	if !cfg.Session.RandomizeHosts {
		t.Fatalf("expected randomize_hosts to default true")
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected info log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ensemble.yaml")
	contents := "session:\n  randomize_hosts: false\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}

	if cfg.Session.RandomizeHosts {
		t.Fatalf("expected randomize_hosts overridden to false")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug log level, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	cfg := New()
	if err := loadFromFile(filepath.Join(t.TempDir(), "absent.yaml"), cfg); err != nil {
		t.Fatalf("missing file should be a no-op, got %v", err)
	}
}
