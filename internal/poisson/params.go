package poisson

import (
	"strconv"
	"strings"
)

// ReconstructParams are the inputs of one reconstruction run.
type ReconstructParams struct {
	InputPath   string
	OutputPath  string
	PointWeight float64
	Depth       int

	// Color is passed only when > 0.
	Color float64

	// Threads is passed only when > 0.
	Threads int

	// Density asks the tool to write a per-vertex density estimate, which
	// the trimmer needs.
	Density bool
}

// Args returns the tool arguments, without the program name.
func (p ReconstructParams) Args() []string {
	args := make([]string, 0, 14)
	args = append(args,
		"--in", p.InputPath,
		"--out", p.OutputPath,
		"--pointWeight", FormatFloat(p.PointWeight),
		"--depth", strconv.Itoa(p.Depth),
	)
	if p.Color > 0 {
		args = append(args, "--color", FormatFloat(p.Color))
	}
	if p.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(p.Threads))
	}
	if p.Density {
		args = append(args, "--density")
	}
	return args
}

// TrimParams are the inputs of one trimming run. The driver trims in place,
// so InputPath and OutputPath are normally the same file.
type TrimParams struct {
	InputPath  string
	OutputPath string
	Trim       float64
}

// Args returns the tool arguments, without the program name.
func (p TrimParams) Args() []string {
	return []string{
		"--in", p.InputPath,
		"--out", p.OutputPath,
		"--trim", FormatFloat(p.Trim),
	}
}

// FormatFloat renders v with six decimals ("1.000000"), the form the tools
// have always been given.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// CommandLine renders bin and args as a single shell-like line for logs.
// Arguments containing whitespace or quotes are quoted.
func CommandLine(bin string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{bin}, args...) {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
