package poisson

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// outputTailLines is how much tool output a ToolError keeps.
const outputTailLines = 20

// Executor runs the reconstruction and trimming tools.
type Executor struct {
	ReconBin string
	TrimBin  string

	// Verbose tees tool output to Stderr as it is produced. Output is
	// captured for error reporting either way.
	Verbose bool
	Stderr  io.Writer
}

// NewExecutor returns an Executor for the given executables.
func NewExecutor(reconBin, trimBin string, verbose bool) *Executor {
	return &Executor{ReconBin: reconBin, TrimBin: trimBin, Verbose: verbose, Stderr: os.Stderr}
}

// Reconstruct runs the reconstruction tool.
func (e *Executor) Reconstruct(ctx context.Context, p ReconstructParams) error {
	return e.run(ctx, "reconstruct", e.ReconBin, p.Args())
}

// Trim runs the trimming tool.
func (e *Executor) Trim(ctx context.Context, p TrimParams) error {
	return e.run(ctx, "trim", e.TrimBin, p.Args())
}

// Locate resolves bin on PATH. A bin containing a path separator is checked
// directly.
func Locate(bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s: %w", bin, ErrToolNotFound)
	}
	return path, nil
}

func (e *Executor) run(ctx context.Context, tool, bin string, args []string) error {
	path, err := Locate(bin)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var out bytes.Buffer
	var w io.Writer = &out
	if e.Verbose && e.Stderr != nil {
		w = io.MultiWriter(&out, e.Stderr)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err = cmd.Run()
	if err == nil {
		return nil
	}

	output := out.String()
	te := &ToolError{
		Tool:    tool,
		Bin:     bin,
		Args:    args,
		Err:     err,
		Cause:   Classify(output),
		Message: ErrorMessage(output),
		Output:  tail(output, outputTailLines),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		te.Err = ctxErr
		te.Cause = CauseInterrupted
	}
	return te
}

func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
