package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minicc.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
schema = "1.2.0"
target = "riscv32"
optimize = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Target != "riscv32" || !cfg.Optimize {
		t.Errorf("config values lost: %+v", cfg)
	}
}

func TestSchemaOutOfRange(t *testing.T) {
	path := writeConfig(t, `
schema = "2.0.0"
target = "aarch64"
`)
	if _, err := Load(path); err == nil {
		t.Error("schema 2.0.0 must be rejected")
	}
}

func TestBadSchemaVersion(t *testing.T) {
	path := writeConfig(t, `schema = "not-a-version"`)
	if _, err := Load(path); err == nil {
		t.Error("unparsable schema version must be rejected")
	}
}

func TestBadTOML(t *testing.T) {
	path := writeConfig(t, `target = [`)
	if _, err := Load(path); err == nil {
		t.Error("syntax error must be reported")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Target != "aarch64" {
		t.Errorf("default target should be aarch64, got %s", cfg.Target)
	}
	if err := checkSchema(cfg.Schema); err != nil {
		t.Errorf("default schema must satisfy the constraint: %v", err)
	}
}
