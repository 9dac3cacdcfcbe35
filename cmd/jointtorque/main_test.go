package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/jointtorque/internal/config"
	"github.com/san-kum/jointtorque/internal/dynamo"
	"github.com/san-kum/jointtorque/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("iterations: 42\nkp: 1.0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--preset", "stiff", "--config", path, "--kp", "2.5"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Iterations != 42 {
		t.Errorf("config file should set iterations, got %d", cfg.Iterations)
	}
	if cfg.Kp != 2.5 {
		t.Errorf("flag should win over file and preset, got %f", cfg.Kp)
	}
	if cfg.Port != config.DefaultPort {
		t.Errorf("unset flag should keep the default port, got %d", cfg.Port)
	}
}

func TestResolveConfigRejectsUnknownPreset(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--preset", "wobbly"}); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveConfig(cmd); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range config.ListPresets() {
		if !strings.Contains(out, name) {
			t.Errorf("missing preset %s in:\n%s", name, out)
		}
	}
}

func TestRunLocalBackend(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "run", "--backend", "local", "--iterations", "30", "--every", "10",
		"--out-dir", dir, "--log-level", "error")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if n := strings.Count(out, "Applying torques..."); n != 3 {
		t.Errorf("expected 3 diagnostics blocks, got %d", n)
	}

	ref, read, err := storage.LoadPair(filepath.Join(dir, config.DefaultRefFile), filepath.Join(dir, config.DefaultReadFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(ref) != 30 || len(read) != 30 {
		t.Errorf("expected 30 rows, got %d and %d", len(ref), len(read))
	}
}

func writeLogs(t *testing.T, dir string, rows int) {
	t.Helper()
	logs, err := storage.OpenTorqueLogs(dir, config.DefaultRefFile, config.DefaultReadFile, 7)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < rows; i++ {
		ref := dynamo.Vector{1, 2, 3, 4, 5, 6, 7}.Scale(float64(i))
		if err := logs.Append(ref, ref.Scale(0.9)); err != nil {
			t.Fatal(err)
		}
	}
	if err := logs.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPlotCommand(t *testing.T) {
	dir := t.TempDir()
	writeLogs(t, dir, 20)

	out, err := execute(t, "plot", "--out-dir", dir, "--ascii", "--joint", "3")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "tau3") {
		t.Errorf("expected joint 3 chart, got:\n%s", out)
	}

	img := filepath.Join(dir, "torques.svg")
	if _, err := execute(t, "plot", filepath.Join(dir, config.DefaultRefFile), filepath.Join(dir, config.DefaultReadFile), "--out", img); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(img); err != nil {
		t.Errorf("expected %s: %v", img, err)
	}

	if _, err := execute(t, "plot", "only-one.csv"); err == nil {
		t.Error("expected error for a single log argument")
	}
}

func TestPlotCommandEmptyLogs(t *testing.T) {
	dir := t.TempDir()
	writeLogs(t, dir, 0)

	for _, args := range [][]string{
		{"plot", "--out-dir", dir, "--ascii"},
		{"plot", "--out-dir", dir, "--out", filepath.Join(dir, "torques.png")},
	} {
		_, err := execute(t, args...)
		if err == nil || !strings.Contains(err.Error(), "no rows to plot") {
			t.Errorf("%v: expected no rows error, got %v", args, err)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if _, err := execute(t, "config", path, "--preset", "short", "--backend", "local"); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Iterations != 500 || cfg.Backend != config.BackendLocal {
		t.Errorf("unexpected written config %+v", cfg)
	}
}

func TestTuneCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "tune", "--kp-values", "0.04,4.5", "--iterations", "200",
		"--out-dir", dir, "--log-level", "error")
	if err != nil {
		t.Fatalf("tune failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "best kp=4.5") {
		t.Errorf("expected kp 4.5 to win, got:\n%s", out)
	}
	stiff, soft := strings.Index(out, "kp=4.5 "), strings.Index(out, "kp=0.04 ")
	if stiff < 0 || soft < 0 || stiff > soft {
		t.Errorf("expected trials ranked best first, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "tune", "kp_4.5", config.DefaultRefFile)); err != nil {
		t.Errorf("expected per-trial logs: %v", err)
	}
}
