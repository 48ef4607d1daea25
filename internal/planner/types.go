package planner

import "github.com/backmassage/poissonbatch/internal/poisson"

// Action describes the per-file processing decision.
type Action int

const (
	ActionProcess Action = iota
	ActionSkip
)

func (a Action) String() string {
	if a == ActionSkip {
		return "skip"
	}
	return "process"
}

// FilePlan holds everything needed to process a single input file.
type FilePlan struct {
	Action     Action
	SkipReason string

	Name       string // base filename, shared by input and output
	InputPath  string
	OutputPath string

	Reconstruct poisson.ReconstructParams

	// Trim is nil when trimming is disabled. Otherwise it trims the
	// reconstruction output in place.
	Trim *poisson.TrimParams
}

// Stages returns how many tool invocations the plan needs.
func (p *FilePlan) Stages() int {
	switch {
	case p.Action == ActionSkip:
		return 0
	case p.Trim != nil:
		return 2
	}
	return 1
}
