// Package config holds runtime configuration: defaults, the key=value config
// file loader, CLI flag parsing, and validation. Defaults match the legacy
// batch driver (depth 8, color 32, trim 10, threads unset) for parity.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Options are the reconstruction settings applied to every file of a run.
// They are read-only once the config file has been loaded.
type Options struct {
	// PointWeight is the importance given to interpolating the samples in
	// the screened Poisson equation. 0 gives the unscreened formulation.
	PointWeight float64

	// Depth is the maximum octree depth. A depth of d solves on a grid no
	// finer than 2^d per axis; the tool adapts below that bound.
	Depth int

	// Color is the relative weight of finer color estimates. Values <= 0
	// disable color extrapolation.
	Color float64

	// Trim is the density threshold below which the trimmer discards mesh
	// regions. 0 disables trimming. Only a positive threshold requests
	// density output from the reconstruction; a negative one still runs
	// the trimmer.
	Trim float64

	// NumThreads caps the reconstruction tool's worker pool. Values <= 0
	// leave the tool's own default in place.
	NumThreads int
}

// Config holds all runtime settings. It is populated by [DefaultConfig],
// then mutated by [ParseFlags] and [LoadFile] before being passed (by
// pointer) to packages that need it.
type Config struct {
	// Paths (set from the config file).
	ConfigFile string
	InputDir   string
	OutputDir  string
	Extension  string // Default: ".ply". Lowercase, with leading dot.

	// Reconstruction.
	Options  Options
	Parallel bool // Default: true. Gates the --threads argument.

	// External tools.
	ReconBin string // Default: "PoissonRecon".
	TrimBin  string // Default: "SurfaceTrimmer".

	// Behavior.
	DryRun       bool
	SkipExisting bool   // Default: false. Skip files whose output exists.
	FailOnError  bool   // Default: false. Exit 1 when any file failed.
	MeshStats    bool   // Default: true. Summarize density and final mesh.
	LedgerPath   string // Optional SQLite run ledger.

	// Display and logging.
	Verbose     bool
	ColorMode   ColorMode // Default: "auto".
	LogFile     string    // Optional log file path.
	CheckOnly   bool      // Run --check diagnostics and exit.
	AnalyzeOnly bool      // Run --analyze report and exit.
	HistoryOnly bool      // Print recent ledger runs and exit.
}

// DefaultConfig returns a Config with the built-in defaults. The depth is 8
// rather than the reconstruction tool's own default of 13, matching the
// legacy driver which lowered it before loading the config file.
func DefaultConfig() Config {
	return Config{
		Extension: ".ply",
		Options: Options{
			PointWeight: 1.0,
			Depth:       8,
			Color:       32.0,
			Trim:        10.0,
			NumThreads:  -1,
		},
		Parallel:     true,
		ReconBin:     "PoissonRecon",
		TrimBin:      "SurfaceTrimmer",
		SkipExisting: false,
		FailOnError:  false,
		MeshStats:    true,
		ColorMode:    ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// NormalizeExtension lowercases ext and ensures a single leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	return "." + strings.TrimLeft(ext, ".")
}

// Validate checks the loaded values and canonicalizes paths and the
// extension. Empty directories are allowed: they produce a no-op run.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	c.Extension = NormalizeExtension(c.Extension)
	if c.Extension == "" {
		return errors.New("extension must not be empty")
	}
	if c.Options.Depth < 1 {
		return fmt.Errorf("depth must be at least 1 (got %d)", c.Options.Depth)
	}
	if c.Options.PointWeight < 0 {
		return fmt.Errorf("point_weight must not be negative (got %g)", c.Options.PointWeight)
	}
	if c.ReconBin == "" {
		return errors.New("recon_bin must not be empty")
	}
	if c.Options.TrimEnabled() && c.TrimBin == "" {
		return errors.New("trim_bin must not be empty when trim is enabled")
	}
	if c.HistoryOnly && c.LedgerPath == "" {
		return errors.New("--history needs a ledger path in the config file")
	}

	c.InputDir = NormalizeDirArg(c.InputDir)
	c.OutputDir = NormalizeDirArg(c.OutputDir)
	return nil
}

// ValidatePaths ensures the output directory is not the input directory:
// outputs reuse the input filename, so the tools would overwrite the point
// clouds they are reading. Both arguments must be absolute, cleaned paths.
// A nested output directory is fine because the scan is not recursive.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	if filepath.Clean(inputAbs) == filepath.Clean(outputAbs) {
		return errors.New("output directory must not be the input directory")
	}
	return nil
}

// TrimEnabled reports whether the trimming step runs after reconstruction.
func (o Options) TrimEnabled() bool { return o.Trim != 0 }

// DensityEnabled reports whether reconstruction writes per-vertex density.
func (o Options) DensityEnabled() bool { return o.Trim > 0 }
