package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const argonRunFile = `seed: 5
population: 2
constraints:
  min_interatomic_distance: 2.0
  min_atoms: 2
  max_atoms: 3
  lattice: {min_length: 4, max_length: 6, min_angle: 70, max_angle: 110}
composition_space: "1 Ar"
creator:
  kind: random
  random: {target_density: 1.5, density_tolerance: 0.5, max_density_attempts: 20}
energy:
  kind: pairpot
  pairpot: {epsilon: 0.0104, sigma: 3.4}
log:
  level: error
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestContainsCommand(t *testing.T) {
	out, err := runCLI(t, "contains", "--space", "2 Mg O", "--formula", "MgO")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if strings.TrimSpace(out) != "true" {
		t.Fatalf("unexpected output: %q", out)
	}

	out, err = runCLI(t, "contains", "--space", "2 Mg O", "--formula", "SiO2")
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	if strings.TrimSpace(out) != "false" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestSampleCommand(t *testing.T) {
	out, err := runCLI(t, "sample", "--space", "2 Mg O", "--min", "2", "--max", "6", "--count", "4", "--seed", "3")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 compositions, got %d: %q", len(lines), out)
	}
	again, err := runCLI(t, "sample", "--space", "2 Mg O", "--min", "2", "--max", "6", "--count", "4", "--seed", "3")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if again != out {
		t.Fatalf("sample not reproducible: %q vs %q", out, again)
	}
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(argonRunFile), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	exportDir := filepath.Join(dir, "exports")

	out, err := runCLI(t, "generate", "--config", path, "--run-id", "cli-run", "--export", exportDir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "run_id=cli-run") {
		t.Fatalf("missing run id in output: %q", out)
	}
	if !strings.Contains(out, "best=") {
		t.Fatalf("missing best line in output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "cli-run", "structures.xyz")); err != nil {
		t.Fatalf("expected exported structures: %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	cases := map[string][]string{
		"unknown command":  {"evolve"},
		"missing config":   {"generate"},
		"bad config path":  {"generate", "--config", filepath.Join(t.TempDir(), "missing.yaml")},
		"missing formula":  {"contains", "--space", "1 Si"},
		"malformed space":  {"contains", "--space", "2 Si", "--formula", "Si"},
		"bad sample range": {"sample", "--space", "1 Si", "--min", "4", "--max", "2"},
		"no runs":          {"organisms", "--latest"},
		"unknown store":    {"runs", "--store", "etcd"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := runCLI(t, args...); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestRunsCommandEmptyStore(t *testing.T) {
	out, err := runCLI(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if strings.TrimSpace(out) != "no runs" {
		t.Fatalf("unexpected output: %q", out)
	}
}
