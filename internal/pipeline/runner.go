package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/display"
	"github.com/backmassage/poissonbatch/internal/logging"
	"github.com/backmassage/poissonbatch/internal/planner"
	"github.com/backmassage/poissonbatch/internal/poisson"
	"github.com/backmassage/poissonbatch/internal/probe"
	"gonum.org/v1/gonum/floats"
)

// Toolchain runs the external reconstruction and trimming tools.
// *poisson.Executor is the production implementation.
type Toolchain interface {
	Reconstruct(ctx context.Context, p poisson.ReconstructParams) error
	Trim(ctx context.Context, p poisson.TrimParams) error
}

// Recorder receives the outcome of every processed file.
type Recorder interface {
	RecordFile(ctx context.Context, r FileResult) error
}

// maxLoggedOutputLines caps how much tool output is echoed on failure.
const maxLoggedOutputLines = 20

// Run is the top-level batch entry point. It discovers input files,
// processes each one sequentially, and returns aggregate stats. A failed
// file never stops the batch; only cancellation of ctx does. rec may be nil.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, tools Toolchain, rec Recorder) RunStats {
	var stats RunStats

	files, err := Discover(cfg.InputDir, cfg.Extension)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		return stats
	}

	stats.Total = len(files)
	logBatchHeader(cfg, log, &stats)

	for i, path := range files {
		if ctx.Err() != nil {
			log.Warn("Interrupted, %d file(s) not processed", len(files)-i)
			break
		}
		stats.Current = i + 1

		res := processFile(ctx, cfg, log, tools, path, &stats)
		res.Index = i + 1
		if !res.OK {
			stats.Failures = append(stats.Failures, res.Name)
		}
		if rec != nil {
			if err := rec.RecordFile(context.WithoutCancel(ctx), res); err != nil {
				log.Warn("Ledger write failed: %v", err)
			}
		}
		log.Blank()
	}

	logSummary(cfg, log, &stats)
	return stats
}

// processFile handles one point cloud: plan → probe → reconstruct → trim →
// summarize.
func processFile(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	tools Toolchain,
	path string,
	stats *RunStats,
) FileResult {
	start := time.Now()
	plan := planner.BuildPlan(cfg, path)
	res := FileResult{
		Name:       plan.Name,
		InputPath:  plan.InputPath,
		OutputPath: plan.OutputPath,
		Stage:      StagePrepare,
		DryRun:     cfg.DryRun,
	}
	fail := func(stage Stage, err error) FileResult {
		stats.Failed++
		res.Stage = stage
		res.Err = err.Error()
		var te *poisson.ToolError
		if errors.As(err, &te) {
			res.Cause = te.Cause.String()
		}
		res.Duration = time.Since(start)
		return res
	}

	log.Info("[%d/%d] %s", stats.Current, stats.Total, plan.Name)

	if fi, err := os.Stat(path); err == nil {
		res.InputBytes = fi.Size()
	}

	// --- Probe input (header only; the tool has the final word) ---
	if info, err := probe.Probe(path); err != nil {
		log.Warn("  Cannot read PLY header: %v", err)
	} else {
		res.Points = info.Vertices
		log.Info("  Input: %s (%s, %s)", info.Describe(), info.Format, display.FormatBytes(info.Size))
		if !info.Oriented() {
			log.Warn("  Point cloud has no normals (nx, ny, nz); reconstruction needs oriented points")
		}
		if plan.Reconstruct.Color > 0 && !info.HasColors {
			log.Debug(cfg.Verbose, "  Color requested but the cloud has no red/green/blue")
		}
	}

	// --- Skip-existing ---
	if plan.Action == planner.ActionSkip {
		log.Warn("Skip (%s): %s", plan.SkipReason, plan.Name)
		stats.Skipped++
		res.Stage = StageSkipped
		res.OK = true
		return res
	}

	log.Info("  -> %s", plan.OutputPath)
	log.Debug(cfg.Verbose, "  %d tool run(s) planned", plan.Stages())

	// --- Dry-run ---
	if cfg.DryRun {
		log.Success("[DRY] %s", poisson.CommandLine(cfg.ReconBin, plan.Reconstruct.Args()))
		stats.Reconstructed++
		if plan.Trim != nil {
			log.Success("[DRY] %s", poisson.CommandLine(cfg.TrimBin, plan.Trim.Args()))
			stats.Trimmed++
		}
		stats.Succeeded++
		res.Stage = StageDone
		res.OK = true
		return res
	}

	// --- Create output directory ---
	if err := os.MkdirAll(filepath.Dir(plan.OutputPath), 0o755); err != nil {
		log.Error("Cannot create output directory: %v", err)
		return fail(StagePrepare, err)
	}

	// --- Reconstruct ---
	log.Debug(cfg.Verbose, "  %s", poisson.CommandLine(cfg.ReconBin, plan.Reconstruct.Args()))
	if err := tools.Reconstruct(ctx, plan.Reconstruct); err != nil {
		log.Error("Reconstruction failed: %v", err)
		logToolOutput(cfg, log, err)
		return fail(StageReconstruct, err)
	}
	stats.Reconstructed++

	// --- Trim ---
	if plan.Trim != nil {
		if cfg.MeshStats && plan.Reconstruct.Density {
			logDensityPreview(log, plan)
		}
		log.Debug(cfg.Verbose, "  %s", poisson.CommandLine(cfg.TrimBin, plan.Trim.Args()))
		if err := tools.Trim(ctx, *plan.Trim); err != nil {
			log.Error("Trimming failed: %v", err)
			logToolOutput(cfg, log, err)
			return fail(StageTrim, err)
		}
		stats.Trimmed++
	}

	// --- Success ---
	res.Stage = StageDone
	res.OK = true
	res.Duration = time.Since(start)
	if fi, err := os.Stat(plan.OutputPath); err == nil {
		res.OutputBytes = fi.Size()
	}
	stats.Succeeded++
	stats.TotalInputBytes += res.InputBytes
	stats.TotalOutputBytes += res.OutputBytes

	log.Success("Done in %s (%s)", display.FormatDuration(res.Duration), display.FormatBytes(res.OutputBytes))

	if cfg.MeshStats {
		if m, err := probe.SummarizeMesh(plan.OutputPath); err != nil {
			log.Warn("  Cannot summarize mesh: %v", err)
		} else {
			res.Triangles = m.Triangles
			logMeshSummary(log, m)
		}
	}
	return res
}

func logDensityPreview(log *logging.Logger, plan *planner.FilePlan) {
	values, err := probe.ReadDensities(plan.OutputPath)
	if err != nil {
		log.Warn("  Cannot read densities: %v", err)
		return
	}
	if values == nil {
		log.Warn("  Reconstruction output has no density values; trimming may fail")
		return
	}
	ds := probe.NewDensityStats(values, plan.Trim.Trim)
	log.Info("  %s", ds)
	if ds.TrimmedFraction() > 0.5 {
		log.Outlier("  Trim %.2f discards %s of vertices",
			plan.Trim.Trim, display.FormatPercent(ds.TrimmedFraction()))
	}
}

func logMeshSummary(log *logging.Logger, m *probe.MeshSummary) {
	closed := "open"
	if m.Closed {
		closed = "closed"
	}
	ext := m.Extent()
	log.Info("  Mesh: %s vertices, %s triangles, area %.4g, extent %.4g x %.4g x %.4g, %s",
		display.FormatCount(m.Vertices), display.FormatCount(m.Triangles),
		m.Area, ext.X, ext.Y, ext.Z, closed)
	if len(m.Densities) > 0 {
		log.Info("  Remaining density: %.2f to %.2f", floats.Min(m.Densities), floats.Max(m.Densities))
	}
}

// logToolOutput echoes the tail of a failed tool's output. Verbose runs
// already streamed it.
func logToolOutput(cfg *config.Config, log *logging.Logger, err error) {
	var te *poisson.ToolError
	if cfg.Verbose || !errors.As(err, &te) || te.Output == "" {
		return
	}
	log.Error("Last %s output:", te.Bin)
	lines := strings.Split(strings.TrimSpace(te.Output), "\n")
	if len(lines) > maxLoggedOutputLines {
		lines = lines[len(lines)-maxLoggedOutputLines:]
	}
	for _, l := range lines {
		log.Error("  %s", l)
	}
}

// --- Logging helpers ---

func logBatchHeader(cfg *config.Config, log *logging.Logger, stats *RunStats) {
	log.Info("Found %d %s file(s) in %s", stats.Total, cfg.Extension, displayDir(cfg.InputDir))
	if stats.Total == 0 {
		return
	}
	o := cfg.Options
	log.Info("Reconstruction: depth %d, point weight %s", o.Depth, poisson.FormatFloat(o.PointWeight))
	if o.Color > 0 {
		log.Info("Color: weight %s", poisson.FormatFloat(o.Color))
	} else {
		log.Info("Color: off")
	}
	switch {
	case o.NumThreads > 0 && cfg.Parallel:
		log.Info("Threads: %d", o.NumThreads)
	case !cfg.Parallel:
		log.Info("Threads: tool default (parallel disabled)")
	default:
		log.Info("Threads: tool default")
	}
	if o.TrimEnabled() {
		log.Info("Trimming: density below %s", poisson.FormatFloat(o.Trim))
	} else {
		log.Info("Trimming: off")
	}
	log.Info("Output: %s", displayDir(cfg.OutputDir))
	if cfg.SkipExisting {
		log.Info("Existing outputs: skipped")
	}
	if cfg.DryRun {
		log.Warn("Dry run: commands are printed, not executed")
	}
	log.Blank()
}

func displayDir(dir string) string {
	if dir == "" {
		return "(unset)"
	}
	return dir
}

func logSummary(cfg *config.Config, log *logging.Logger, stats *RunStats) {
	log.Info("==============================")
	log.Info("Done: %d succeeded, %d skipped, %d failed", stats.Succeeded, stats.Skipped, stats.Failed)
	log.Info("Summary report:")
	log.Info("  Total files processed: %d of %d", stats.Current, stats.Total)
	log.Info("  Reconstructed: %d, trimmed: %d", stats.Reconstructed, stats.Trimmed)

	if cfg.DryRun {
		log.Info("  Output size: n/a (dry run)")
	} else if stats.Succeeded > 0 {
		log.Info("  Input %s -> output %s",
			display.FormatBytes(stats.TotalInputBytes),
			display.FormatBytes(stats.TotalOutputBytes))
	}

	if stats.HasFailures() {
		log.Error("  Failed files:")
		for _, name := range stats.Failures {
			log.Error("    %s", name)
		}
	}
}
