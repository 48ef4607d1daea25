package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cloud = `ply
format ascii 1.0
element vertex 1
property float x
property float y
property float z
property float nx
property float ny
property float nz
end_header
0 0 0 0 0 1
`

// reconOK writes a placeholder mesh to the path following --out.
const reconOK = `while [ $# -gt 0 ]; do
  if [ "$1" = "--out" ]; then out="$2"; fi
  shift
done
printf 'ply\n' > "$out"
`

const reconFail = `echo "[ERROR] out of memory" >&2
exit 1
`

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
}

// chdir changes the working directory for the duration of the test,
// like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

type workspace struct {
	dir    string
	in     string
	out    string
	recon  string
	ledger string
}

// newWorkspace creates an input directory with one cloud, a tool
// directory holding a reconstruction script with the given body and a
// trimmer that always succeeds.
func newWorkspace(t *testing.T, reconBody string) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		dir:    dir,
		in:     filepath.Join(dir, "scans"),
		out:    filepath.Join(dir, "meshes"),
		recon:  filepath.Join(dir, "PoissonRecon"),
		ledger: filepath.Join(dir, "runs.db"),
	}
	require.NoError(t, os.MkdirAll(w.in, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(w.in, "a.ply"), []byte(cloud), 0o644))
	require.NoError(t, os.WriteFile(w.recon, []byte("#!/bin/sh\n"+reconBody), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SurfaceTrimmer"), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return w
}

// config writes a config file with the workspace's tools plus extra lines.
func (w *workspace) config(t *testing.T, extra ...string) string {
	t.Helper()
	lines := append([]string{
		"recon_bin=" + w.recon,
		"trim_bin=" + filepath.Join(w.dir, "SurfaceTrimmer"),
		"mesh_stats=false",
	}, extra...)
	p := filepath.Join(w.dir, "batch.conf")
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func (w *workspace) dirs() []string {
	return []string{"input_dir=" + w.in, "output_dir=" + w.out}
}

func TestRun_ExitCodes(t *testing.T) {
	skipWithoutShell(t)

	tests := []struct {
		name  string
		recon string
		args  func(t *testing.T, w *workspace) []string
		want  int
	}{
		{"no arguments", reconOK, func(*testing.T, *workspace) []string { return nil }, 0},
		{"version", reconOK, func(*testing.T, *workspace) []string { return []string{"--version"} }, 0},
		{"unknown flag", reconOK, func(*testing.T, *workspace) []string { return []string{"--bogus"} }, 1},
		{"missing config file", reconOK, func(t *testing.T, w *workspace) []string {
			return []string{filepath.Join(w.dir, "missing.conf")}
		}, 1},
		{"config parse error", reconOK, func(t *testing.T, w *workspace) []string {
			return []string{w.config(t, "depth=deep")}
		}, 1},
		{"two config files", reconOK, func(t *testing.T, w *workspace) []string {
			p := w.config(t)
			return []string{p, p}
		}, 1},
		{"all files succeed", reconOK, func(t *testing.T, w *workspace) []string {
			return []string{w.config(t, w.dirs()...)}
		}, 0},
		{"file failure", reconFail, func(t *testing.T, w *workspace) []string {
			return []string{w.config(t, w.dirs()...)}
		}, 0},
		{"file failure with fail_on_error", reconFail, func(t *testing.T, w *workspace) []string {
			return []string{w.config(t, append(w.dirs(), "fail_on_error=true")...)}
		}, 1},
		{"success with fail_on_error", reconOK, func(t *testing.T, w *workspace) []string {
			return []string{w.config(t, append(w.dirs(), "fail_on_error=true")...)}
		}, 0},
		{"output is input", reconOK, func(t *testing.T, w *workspace) []string {
			return []string{w.config(t, "input_dir="+w.in, "output_dir="+w.in+"/")}
		}, 1},
		{"history without ledger", reconOK, func(t *testing.T, w *workspace) []string {
			return []string{"--history", w.config(t)}
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t, tt.recon)
			assert.Equal(t, tt.want, run(tt.args(t, w)))
		})
	}
}

func TestRun_WritesOutput(t *testing.T) {
	skipWithoutShell(t)
	w := newWorkspace(t, reconOK)

	require.Equal(t, 0, run([]string{"--no-color", w.config(t, w.dirs()...)}))
	data, err := os.ReadFile(filepath.Join(w.out, "a.ply"))
	require.NoError(t, err)
	assert.Equal(t, "ply\n", string(data))
}

func TestRun_EmptyOutputDirIsWorkingDir(t *testing.T) {
	skipWithoutShell(t)
	w := newWorkspace(t, reconOK)
	chdir(t, w.in)

	assert.Equal(t, 1, run([]string{w.config(t, "input_dir=.")}))

	data, err := os.ReadFile(filepath.Join(w.in, "a.ply"))
	require.NoError(t, err)
	assert.Equal(t, cloud, string(data), "input cloud must not be overwritten")
}

func TestRun_EmptyOutputDirElsewhere(t *testing.T) {
	skipWithoutShell(t)
	w := newWorkspace(t, reconOK)
	work := t.TempDir()
	chdir(t, work)

	require.Equal(t, 0, run([]string{w.config(t, "input_dir="+w.in)}))
	_, err := os.Stat(filepath.Join(work, "a.ply"))
	assert.NoError(t, err)
}

func TestRun_History(t *testing.T) {
	skipWithoutShell(t)
	w := newWorkspace(t, reconFail)
	conf := w.config(t, append(w.dirs(), "ledger="+w.ledger)...)

	require.Equal(t, 0, run([]string{conf}))
	assert.Equal(t, 0, run([]string{"--history", conf}))
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	tests := []struct {
		name    string
		in, out string
		wantErr bool
	}{
		{"no input", "", "", false},
		{"distinct", "scans", "meshes", false},
		{"same", "scans", "scans/", true},
		{"empty output is working dir", ".", "", true},
		{"empty output elsewhere", "scans", "", false},
		{"nested output", "scans", "scans/meshes", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.InputDir, cfg.OutputDir = tt.in, tt.out
			err := checkPaths(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
