// Package poisson builds and executes the command lines of the external
// screened Poisson reconstruction and surface trimming tools.
//
// Layout:
//   - params.go: typed parameters for each tool and their argument lists.
//   - executor.go: runs a tool as a subprocess, capturing its output and
//     optionally teeing it to stderr.
//   - errors.go: ToolError and classification of tool output into a Cause.
//
// Nothing here retries. A failed tool run is reported once and the caller
// moves on.
package poisson
