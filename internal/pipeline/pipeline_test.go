package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/logging"
	"github.com/backmassage/poissonbatch/internal/poisson"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orientedCloud = `ply
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

// densityMesh is what the fake reconstruction writes: a closed tetrahedron
// with per-vertex density.
const densityMesh = `ply
format ascii 1.0
element vertex 4
property float x
property float y
property float z
property float value
element face 4
property list uchar int vertex_indices
end_header
0 0 0 2
1 0 0 4
0 1 0 6
0 0 1 8
3 0 2 1
3 0 1 3
3 0 3 2
3 1 2 3
`

// --- Discover tests ---

func TestDiscover_CaseFoldedOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "c.obj")
	touch(t, dir, "B.PLY")
	touch(t, dir, "a.ply")

	files, err := Discover(dir, ".ply")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ply", "B.PLY"}, basenames(files))
	assert.Equal(t, filepath.Join(dir, "a.ply"), files[0])
}

func TestDiscover_TieBreakByBytes(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "scan.ply")
	touch(t, dir, "Scan.ply")

	files, err := Discover(dir, ".ply")
	require.NoError(t, err)
	assert.Equal(t, []string{"Scan.ply", "scan.ply"}, basenames(files))
}

func TestDiscover_NonRecursiveRegularOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "top.ply")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	touch(t, filepath.Join(dir, "nested"), "deep.ply")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dir.ply"), 0o755))

	files, err := Discover(dir, ".ply")
	require.NoError(t, err)
	assert.Equal(t, []string{"top.ply"}, basenames(files))
}

func TestDiscover_FollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.ply")
	require.NoError(t, os.WriteFile(target, nil, 0o644))
	if err := os.Symlink(target, filepath.Join(dir, "link.ply")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "dangling.ply")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, err := Discover(dir, ".ply")
	require.NoError(t, err)
	assert.Equal(t, []string{"link.ply"}, basenames(files))
}

func TestDiscover_MissingOrEmpty(t *testing.T) {
	files, err := Discover(filepath.Join(t.TempDir(), "nope"), ".ply")
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = Discover("", ".ply")
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = Discover(t.TempDir(), ".ply")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "file.ply")
	_, err := Discover(filepath.Join(dir, "file.ply"), ".ply")
	assert.Error(t, err)
}

// --- Run tests ---

type call struct {
	Tool  string
	Recon poisson.ReconstructParams
	Trim  poisson.TrimParams
}

type fakeTools struct {
	calls     []call
	failRecon map[string]error
	failTrim  map[string]error
	mesh      string // written to the output path on reconstruct when set
}

func (f *fakeTools) Reconstruct(_ context.Context, p poisson.ReconstructParams) error {
	f.calls = append(f.calls, call{Tool: "reconstruct", Recon: p})
	if err := f.failRecon[filepath.Base(p.InputPath)]; err != nil {
		return err
	}
	if f.mesh != "" {
		return os.WriteFile(p.OutputPath, []byte(f.mesh), 0o644)
	}
	return nil
}

func (f *fakeTools) Trim(_ context.Context, p poisson.TrimParams) error {
	f.calls = append(f.calls, call{Tool: "trim", Trim: p})
	return f.failTrim[filepath.Base(p.InputPath)]
}

func (f *fakeTools) tools() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Tool)
	}
	return out
}

type memRecorder struct {
	results []FileResult
	err     error
}

func (m *memRecorder) RecordFile(_ context.Context, r FileResult) error {
	m.results = append(m.results, r)
	return m.err
}

func newTestConfig(t *testing.T, files ...string) *config.Config {
	t.Helper()
	in := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(in, f), []byte(orientedCloud), 0o644))
	}
	cfg := config.DefaultConfig()
	cfg.InputDir = in
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.MeshStats = false
	cfg.ColorMode = config.ColorNever
	return &cfg
}

func TestRun_ReconstructAndTrim(t *testing.T) {
	cfg := newTestConfig(t, "b.ply", "a.ply", "notes.txt")
	cfg.Options.NumThreads = 4
	tools := &fakeTools{}
	var buf bytes.Buffer

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&buf), tools, nil)

	assert.Equal(t, []string{"reconstruct", "trim", "reconstruct", "trim"}, tools.tools())

	outA := filepath.Join(cfg.OutputDir, "a.ply")
	want := poisson.ReconstructParams{
		InputPath:   filepath.Join(cfg.InputDir, "a.ply"),
		OutputPath:  outA,
		PointWeight: 1,
		Depth:       8,
		Color:       32,
		Threads:     4,
		Density:     true,
	}
	if diff := cmp.Diff(want, tools.calls[0].Recon); diff != "" {
		t.Errorf("reconstruct params (-want +got):\n%s", diff)
	}
	assert.Equal(t, poisson.TrimParams{InputPath: outA, OutputPath: outA, Trim: 10}, tools.calls[1].Trim)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Reconstructed)
	assert.Equal(t, 2, stats.Trimmed)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.DirExists(t, cfg.OutputDir)
	assert.Contains(t, buf.String(), "[1/2] a.ply")
}

func TestRun_TrimDisabled(t *testing.T) {
	cfg := newTestConfig(t, "a.ply", "b.ply")
	cfg.Options.Trim = 0
	tools := &fakeTools{}

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&bytes.Buffer{}), tools, nil)

	assert.Equal(t, []string{"reconstruct", "reconstruct"}, tools.tools())
	for _, c := range tools.calls {
		assert.False(t, c.Recon.Density, "density requested without trimming")
	}
	assert.Equal(t, 2, stats.Succeeded)
	assert.Zero(t, stats.Trimmed)
}

func TestRun_NegativeTrimSkipsDensity(t *testing.T) {
	cfg := newTestConfig(t, "a.ply")
	cfg.MeshStats = true
	cfg.Options.Trim = -5
	tools := &fakeTools{mesh: densityMesh}
	var buf bytes.Buffer

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&buf), tools, nil)

	require.Equal(t, []string{"reconstruct", "trim"}, tools.tools())
	assert.False(t, tools.calls[0].Recon.Density)
	assert.Equal(t, -5.0, tools.calls[1].Trim.Trim)
	assert.Equal(t, 1, stats.Trimmed)
	assert.NotContains(t, buf.String(), "below trim")
	assert.NotContains(t, buf.String(), "no density values")
}

func TestRun_FailureContinues(t *testing.T) {
	cfg := newTestConfig(t, "a.ply", "b.ply", "c.ply")
	tools := &fakeTools{
		failRecon: map[string]error{"a.ply": &poisson.ToolError{Bin: "PoissonRecon", Err: errors.New("exit status 1"), Cause: poisson.CauseOutOfMemory, Output: "std::bad_alloc"}},
		failTrim:  map[string]error{"b.ply": errors.New("exit status 2")},
	}
	rec := &memRecorder{}
	var buf bytes.Buffer

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&buf), tools, rec)

	assert.Equal(t, []string{"reconstruct", "reconstruct", "trim", "reconstruct", "trim"}, tools.tools())
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, []string{"a.ply", "b.ply"}, stats.Failures)
	assert.True(t, stats.HasFailures())

	require.Len(t, rec.results, 3)
	assert.Equal(t, StageReconstruct, rec.results[0].Stage)
	assert.False(t, rec.results[0].OK)
	assert.Equal(t, "out of memory", rec.results[0].Cause)
	assert.Equal(t, StageTrim, rec.results[1].Stage)
	assert.Equal(t, "exit status 2", rec.results[1].Err)
	assert.Equal(t, StageDone, rec.results[2].Stage)
	assert.True(t, rec.results[2].OK)
	assert.Equal(t, []int{1, 2, 3}, []int{rec.results[0].Index, rec.results[1].Index, rec.results[2].Index})

	out := buf.String()
	assert.Contains(t, out, "Last PoissonRecon output:")
	assert.Contains(t, out, "std::bad_alloc")
}

func TestRun_MissingInputDir(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.InputDir = filepath.Join(cfg.InputDir, "missing")
	tools := &fakeTools{}

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&bytes.Buffer{}), tools, nil)
	assert.Empty(t, tools.calls)
	assert.Equal(t, RunStats{}, stats)
}

func TestRun_DryRun(t *testing.T) {
	cfg := newTestConfig(t, "a.ply")
	cfg.DryRun = true
	tools := &fakeTools{}
	var buf bytes.Buffer

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&buf), tools, nil)

	assert.Empty(t, tools.calls)
	assert.Equal(t, 1, stats.Succeeded)
	assert.NoDirExists(t, cfg.OutputDir)
	assert.Contains(t, buf.String(), "[DRY] PoissonRecon --in ")
	assert.Contains(t, buf.String(), "--pointWeight 1.000000 --depth 8 --color 32.000000 --density")
	assert.Contains(t, buf.String(), "[DRY] SurfaceTrimmer --in ")
}

func TestRun_SkipExisting(t *testing.T) {
	cfg := newTestConfig(t, "a.ply", "b.ply")
	cfg.SkipExisting = true
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))
	touch(t, cfg.OutputDir, "a.ply")
	tools := &fakeTools{}

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&bytes.Buffer{}), tools, nil)

	require.Len(t, tools.calls, 2)
	assert.Equal(t, filepath.Join(cfg.InputDir, "b.ply"), tools.calls[0].Recon.InputPath)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Succeeded)
}

func TestRun_Canceled(t *testing.T) {
	cfg := newTestConfig(t, "a.ply")
	tools := &fakeTools{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := Run(ctx, cfg, logging.NewWriterLogger(&bytes.Buffer{}), tools, nil)
	assert.Empty(t, tools.calls)
	assert.Equal(t, 1, stats.Total)
	assert.Zero(t, stats.Current)
}

func TestRun_MeshStats(t *testing.T) {
	cfg := newTestConfig(t, "a.ply")
	cfg.MeshStats = true
	cfg.Options.Trim = 5
	tools := &fakeTools{mesh: densityMesh}
	rec := &memRecorder{err: errors.New("disk full")}
	var buf bytes.Buffer

	stats := Run(context.Background(), cfg, logging.NewWriterLogger(&buf), tools, rec)

	require.Equal(t, 1, stats.Succeeded)
	require.Len(t, rec.results, 1)
	assert.Equal(t, 4, rec.results[0].Triangles)
	assert.Equal(t, 1, rec.results[0].Points)
	assert.Positive(t, rec.results[0].OutputBytes)

	out := buf.String()
	assert.Contains(t, out, "2/4 below trim 5.00")
	assert.Contains(t, out, "4 triangles")
	assert.Contains(t, out, "closed")
	assert.Contains(t, out, "Remaining density: 2.00 to 8.00")
	assert.Contains(t, out, "Ledger write failed: disk full")
}

func TestRun_WarnsOnUnorientedInput(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "raw.ply"),
		[]byte(strings.Replace(orientedCloud, "property float nx\n", "", 1)), 0o644))
	var buf bytes.Buffer

	Run(context.Background(), cfg, logging.NewWriterLogger(&buf), &fakeTools{}, nil)
	assert.Contains(t, buf.String(), "no normals")
}

// --- Analyze tests ---

func TestComputeStats(t *testing.T) {
	b := computeStats([]float64{1000, 1100, 1200, 1300, 1400, 1500, 1600, 1700, 1e6})
	require.True(t, b.valid)
	assert.Equal(t, "", b.classify(1000))
	assert.Equal(t, "", b.classify(1700))
	assert.Equal(t, "extreme", b.classify(1e6))

	assert.False(t, computeStats([]float64{1, 2, 3}).valid)
	assert.False(t, computeStats([]float64{5, 5, 5, 5}).valid)
}

func TestAnalyze(t *testing.T) {
	cfg := newTestConfig(t, "a.ply", "b.ply")
	touch(t, cfg.InputDir, "broken.ply")
	var logBuf, table bytes.Buffer

	analyze(context.Background(), cfg, logging.NewWriterLogger(&logBuf), &table)

	assert.Contains(t, table.String(), "File")
	assert.Contains(t, table.String(), "a.ply")
	assert.Contains(t, table.String(), "b.ply")
	assert.NotContains(t, table.String(), "broken.ply")
	assert.Contains(t, logBuf.String(), "Skip (unreadable header): broken.ply")
	assert.Contains(t, logBuf.String(), "Analyzed 2 files")
}

// --- Helpers ---

func touch(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func basenames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
