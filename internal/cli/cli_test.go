package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eunmann/ste-extract/pkg/benchutil"
	"github.com/eunmann/ste-extract/pkg/fileutil"
)

func writeInput(t *testing.T) string {
	t.Helper()
	data := benchutil.NewGenerator(benchutil.DefaultConfig(50)).Generate().Bytes()
	return benchutil.WriteFile(t, "model.ste", data)
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func TestRunNoArgs(t *testing.T) {
	err := Run(nil)
	if !errors.Is(err, ErrArgs) {
		t.Fatalf("err = %v, want ErrArgs", err)
	}
	if !strings.Contains(err.Error(), "0 were found") {
		t.Errorf("expected argument count in message, got: %v", err)
	}
}

func TestRunTooManyArgs(t *testing.T) {
	err := Run([]string{"a.ste", "b.ste"})
	if !errors.Is(err, ErrArgs) {
		t.Fatalf("err = %v, want ErrArgs", err)
	}
	if !strings.Contains(err.Error(), "2 were found: a.ste, b.ste") {
		t.Errorf("expected arguments listed in message, got: %v", err)
	}
}

func TestRunDefaultOutputs(t *testing.T) {
	input := writeInput(t)
	if err := Run([]string{input}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, suffix := range []string{".elements", ".nodes"} {
		if !nonEmpty(input + suffix) {
			t.Errorf("%s not written", input+suffix)
		}
	}
}

func TestRunExplicitOutputs(t *testing.T) {
	input := writeInput(t)
	out := t.TempDir()
	elements := filepath.Join(out, "e.txt")
	nodes := filepath.Join(out, "n.txt")
	parquetDir := filepath.Join(out, "pq")

	err := Run([]string{
		"--elements", elements,
		"--nodes", nodes,
		"--parquet-dir", parquetDir,
		"--workers", "2",
		"--mmap",
		"-l", "debug",
		input,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, p := range []string{
		elements,
		nodes,
		filepath.Join(parquetDir, "elements.parquet"),
		filepath.Join(parquetDir, "nodes.parquet"),
	} {
		if !nonEmpty(p) {
			t.Errorf("%s not written", p)
		}
	}
	if fileutil.Exists(input + ".elements") {
		t.Error("default output written despite --elements")
	}
}

func TestRunUnknownLogLevelFallsBack(t *testing.T) {
	input := writeInput(t)
	if err := Run([]string{"--log", "verbose", input}); err != nil {
		t.Fatalf("unknown level should fall back to info, got: %v", err)
	}
}

func TestRunConfigFile(t *testing.T) {
	input := writeInput(t)
	cfgPath := filepath.Join(t.TempDir(), "ste.yaml")
	// workers: 0 is invalid on its own; the flag below overrides it.
	doc := "elements_suffix: .el\nnodes_suffix: .nd\nworkers: 0\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Run([]string{"--config", cfgPath, input}); err == nil {
		t.Fatal("expected validation error for workers: 0")
	}
	if err := Run([]string{"--config", cfgPath, "--workers", "3", input}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !nonEmpty(input+".el") || !nonEmpty(input+".nd") {
		t.Error("config suffixes not applied")
	}
}

func TestRunInvalidFlags(t *testing.T) {
	input := writeInput(t)
	tests := [][]string{
		{"--workers", "0", input},
		{"--buffer-size=-1", input},
		{"--config", filepath.Join(t.TempDir(), "missing.yaml"), input},
		{"--no-such-flag", input},
	}
	for _, args := range tests {
		if err := Run(args); err == nil {
			t.Errorf("Run(%v) succeeded, want error", args)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.ste")
	err := Run([]string{missing})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
	if fileutil.Exists(missing + ".elements") {
		t.Error("output written for missing input")
	}
}
