package planner

import (
	"os"
	"path/filepath"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/poisson"
)

// BuildPlan produces the FilePlan for inputPath. The output keeps the input's
// filename and lands in cfg.OutputDir.
//
// Rules:
//   - color is passed only when > 0
//   - threads are passed only when > 0 and parallel execution is enabled
//   - density output is requested only for a positive trim threshold
//   - any non-zero trim runs the trimmer, reading and writing the
//     reconstruction output
func BuildPlan(cfg *config.Config, inputPath string) *FilePlan {
	name := filepath.Base(inputPath)
	out := filepath.Join(cfg.OutputDir, name)
	opts := cfg.Options

	plan := &FilePlan{
		Name:       name,
		InputPath:  inputPath,
		OutputPath: out,
		Reconstruct: poisson.ReconstructParams{
			InputPath:   inputPath,
			OutputPath:  out,
			PointWeight: opts.PointWeight,
			Depth:       opts.Depth,
			Density:     opts.DensityEnabled(),
		},
	}
	if opts.Color > 0 {
		plan.Reconstruct.Color = opts.Color
	}
	if opts.NumThreads > 0 && cfg.Parallel {
		plan.Reconstruct.Threads = opts.NumThreads
	}
	if opts.TrimEnabled() {
		plan.Trim = &poisson.TrimParams{InputPath: out, OutputPath: out, Trim: opts.Trim}
	}

	if cfg.SkipExisting {
		if st, err := os.Stat(out); err == nil && st.Mode().IsRegular() {
			plan.Action = ActionSkip
			plan.SkipReason = "output exists"
		}
	}
	return plan
}
