package check

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backmassage/poissonbatch/internal/config"
)

type recLogger struct {
	lines []string
}

func (r *recLogger) add(level, format string, args ...interface{}) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recLogger) Info(f string, a ...interface{})    { r.add("INFO", f, a...) }
func (r *recLogger) Success(f string, a ...interface{}) { r.add("SUCCESS", f, a...) }
func (r *recLogger) Warn(f string, a ...interface{})    { r.add("WARN", f, a...) }
func (r *recLogger) Error(f string, a ...interface{})   { r.add("ERROR", f, a...) }
func (r *recLogger) Debug(v bool, f string, a ...interface{}) {
	if v {
		r.add("DEBUG", f, a...)
	}
}

func (r *recLogger) has(prefix, substr string) bool {
	for _, l := range r.lines {
		if strings.HasPrefix(l, prefix) && strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func fakeTool(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunCheck_AllPresent(t *testing.T) {
	bin := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ReconBin = fakeTool(t, bin, "PoissonRecon")
	cfg.TrimBin = fakeTool(t, bin, "SurfaceTrimmer")
	cfg.InputDir = t.TempDir()
	cfg.OutputDir = filepath.Join(t.TempDir(), "new", "meshes")

	log := &recLogger{}
	if !RunCheck(&cfg, log) {
		t.Fatalf("RunCheck failed:\n%s", strings.Join(log.lines, "\n"))
	}
	if !log.has("SUCCESS", "will be created under") {
		t.Errorf("expected output ancestor message, got:\n%s", strings.Join(log.lines, "\n"))
	}
}

func TestRunCheck_MissingRecon(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ReconBin = filepath.Join(t.TempDir(), "nope")
	cfg.TrimBin = cfg.ReconBin

	log := &recLogger{}
	if RunCheck(&cfg, log) {
		t.Fatal("RunCheck passed with a missing reconstruction tool")
	}
	if !log.has("ERROR", "Reconstruction tool") || !log.has("ERROR", "Trimming tool") {
		t.Errorf("missing tool errors:\n%s", strings.Join(log.lines, "\n"))
	}
}

func TestRunCheck_TrimmerOptionalWhenTrimOff(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ReconBin = fakeTool(t, t.TempDir(), "PoissonRecon")
	cfg.TrimBin = filepath.Join(t.TempDir(), "nope")
	cfg.Options.Trim = 0

	log := &recLogger{}
	if !RunCheck(&cfg, log) {
		t.Fatalf("RunCheck failed:\n%s", strings.Join(log.lines, "\n"))
	}
	if !log.has("WARN", "trimming is off") {
		t.Errorf("expected trimming warning:\n%s", strings.Join(log.lines, "\n"))
	}
}

func TestRunCheck_InputIsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ReconBin = fakeTool(t, dir, "PoissonRecon")
	cfg.TrimBin = cfg.ReconBin
	cfg.InputDir = cfg.ReconBin

	log := &recLogger{}
	if RunCheck(&cfg, log) {
		t.Fatal("RunCheck passed with a file as input directory")
	}
}
