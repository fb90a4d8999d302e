package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestUnknownTarget(t *testing.T) {
	_, _, err := runCommand(t, "--target", "mips", filepath.Join("testdata", "add.yaml"))
	if err == nil || !strings.Contains(err.Error(), "unknown target") {
		t.Errorf("expected an unknown target error, got %v", err)
	}
}

func TestMissingInput(t *testing.T) {
	_, _, err := runCommand(t, "no-such-file.yaml")
	if err == nil {
		t.Error("missing input must be an error")
	}
}

func TestOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.s")
	_, _, err := runCommand(t, "-o", path, filepath.Join("testdata", "add.yaml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "add\tw0, w0, w1") {
		t.Errorf("assembly missing from output file:\n%s", data)
	}
}

func TestDumpJSON(t *testing.T) {
	_, errOut, err := runCommand(t, "--dump-json", filepath.Join("testdata", "add.yaml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(errOut, "\"Functions\"") {
		t.Errorf("json dump missing from stderr:\n%s", errOut)
	}
}

func TestConfigFileSetsTarget(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "minicc.toml")
	cfg := "schema = \"1.0.0\"\ntarget = \"riscv32\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCommand(t, "--config", cfgPath, filepath.Join("testdata", "add.yaml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "add\ta0, a0, a1") {
		t.Errorf("config target not applied:\n%s", out)
	}
}

func TestFlagBeatsConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "minicc.toml")
	cfg := "schema = \"1.0.0\"\ntarget = \"riscv32\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCommand(t, "--config", cfgPath, "--target", "aarch64",
		filepath.Join("testdata", "add.yaml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "add\tw0, w0, w1") {
		t.Errorf("explicit flag should beat the config file:\n%s", out)
	}
}

func TestPrintAfterAllGoesToStderr(t *testing.T) {
	out, errOut, err := runCommand(t, "--print-after-all", filepath.Join("testdata", "add.yaml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(errOut, "# after irtollir") {
		t.Errorf("pass dumps missing from stderr:\n%s", errOut)
	}
	if strings.Contains(out, "# after") {
		t.Error("pass dumps leaked into the assembly stream")
	}
}
