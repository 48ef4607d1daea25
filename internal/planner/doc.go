// Package planner turns the run configuration and one input file into a
// FilePlan: the typed parameters for reconstruction and, when enabled, for
// trimming. The pipeline executes plans; the poisson package renders them.
package planner
