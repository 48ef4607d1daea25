package pipeline

import "time"

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	Total         int
	Current       int
	Reconstructed int
	Trimmed       int
	Succeeded     int
	Skipped       int
	Failed        int

	TotalInputBytes  int64
	TotalOutputBytes int64

	// Failures lists the names of failed files in processing order.
	Failures []string
}

// HasFailures reports whether any file failed.
func (s *RunStats) HasFailures() bool { return s.Failed > 0 }

// Stage is how far a file got.
type Stage string

const (
	StagePrepare     Stage = "prepare"
	StageReconstruct Stage = "reconstruct"
	StageTrim        Stage = "trim"
	StageDone        Stage = "done"
	StageSkipped     Stage = "skipped"
)

// FileResult is the outcome of one file, as handed to a Recorder.
// Stage is the last stage attempted; when OK is false it is the stage that
// failed.
type FileResult struct {
	Index      int
	Name       string
	InputPath  string
	OutputPath string
	Stage      Stage
	OK         bool
	DryRun     bool
	Err        string
	Cause      string

	Duration    time.Duration
	InputBytes  int64
	OutputBytes int64
	Points      int
	Triangles   int
}
