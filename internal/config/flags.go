package config

// This file implements CLI flag parsing and help text.
// Flags only cover display and run modes; everything about the batch itself
// comes from the config file named by the single positional argument.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// ErrExitEarly is returned by ParseFlags after --help or --version has been
// printed. Callers should exit 0.
var ErrExitEarly = errors.New("exit requested")

// ParseFlags parses args (without the program name) into cfg and, when a
// config file is named, loads it. With no positional argument the defaults
// stand and the directories stay empty, which yields a no-op run.
func ParseFlags(cfg *Config, args []string, version string) error {
	fs := flag.NewFlagSet("poissonbatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { printUsage(os.Stderr, version) }

	var m modeFlags
	defineRunFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &m)
	defineUtilityFlags(fs, cfg, &m)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ErrExitEarly
		}
		return err
	}

	applyModeFlags(cfg, &m)

	if m.showHelp {
		printUsage(os.Stderr, version)
		return ErrExitEarly
	}
	if m.showVersion {
		fmt.Fprintln(os.Stdout, "poissonbatch v"+version)
		return ErrExitEarly
	}

	return parsePositionalArgs(fs, cfg)
}

// modeFlags holds flags that are applied after Parse.
type modeFlags struct {
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// defineRunFlags registers -d/--dry-run.
func defineRunFlags(fs *flag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Plan and log commands without running them")
	fs.BoolVar(&cfg.DryRun, "d", false, "Same as --dry-run")
}

// defineDisplayFlags registers --color, --no-color, verbose, --check, --analyze,
// --history, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, m *modeFlags) {
	fs.BoolVar(&m.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&m.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output (stream tool output)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Same as --verbose")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Locate the external tools and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.BoolVar(&cfg.AnalyzeOnly, "analyze", false, "Report on input point clouds and exit")
	fs.BoolVar(&cfg.AnalyzeOnly, "a", false, "Same as --analyze")
	fs.BoolVar(&cfg.HistoryOnly, "history", false, "Print recent ledger runs and exit")
	fs.StringVar(&cfg.LogFile, "log", "", "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", "", "Same as --log")
}

// defineUtilityFlags registers --version and --help.
func defineUtilityFlags(fs *flag.FlagSet, cfg *Config, m *modeFlags) {
	fs.BoolVar(&m.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&m.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&m.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&m.showHelp, "h", false, "Same as --help")
}

func applyModeFlags(cfg *Config, m *modeFlags) {
	if m.noColor {
		cfg.ColorMode = ColorNever
	} else if m.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs loads the config file named by the single positional
// argument, if any. A --log flag wins over the file's log_file key.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	switch len(args) {
	case 0:
		return nil
	case 1:
		logFlag := cfg.LogFile
		if err := LoadFile(args[0], cfg); err != nil {
			return err
		}
		if logFlag != "" {
			cfg.LogFile = logFlag
		}
		return nil
	default:
		return fmt.Errorf("expected at most one config file, got %d arguments", len(args))
	}
}

// printUsage writes the help text. Column-aligned for readability.
func printUsage(w io.Writer, version string) {
	const col1 = 26 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "poissonbatch v" + version + " - batch screened Poisson surface reconstruction"},
		{"", ""},
		{"  poissonbatch [OPTIONS] [config_file]", ""},
		{"", ""},
		{"Run", ""},
		{"  -d, --dry-run", "Plan and log commands without running them"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output (stream tool output)"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  -c, --check", "Locate PoissonRecon and SurfaceTrimmer"},
		{"  -a, --analyze", "Report on input point clouds"},
		{"  --history", "List recent runs from the ledger"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
		{"", ""},
		{"Config file keys (key=value)", ""},
		{"  input_dir, output_dir", "Directories (empty = nothing to do)"},
		{"  depth", "Maximum octree depth (default: 8)"},
		{"  color", "Color weight, <= 0 disables (default: 32)"},
		{"  trim", "Trim threshold, 0 disables (default: 10)"},
		{"  num_threads", "Tool threads, <= 0 = tool default (default: -1)"},
		{"  point_weight", "Screening weight (default: 1)"},
		{"  parallel", "Pass num_threads to the tool (default: true)"},
		{"  extension", "Input extension (default: .ply)"},
		{"  recon_bin, trim_bin", "Tool executables"},
		{"  skip_existing", "Skip files whose output exists (default: false)"},
		{"  fail_on_error", "Exit 1 if any file failed (default: false)"},
		{"  mesh_stats", "Summarize density and meshes (default: true)"},
		{"  ledger", "SQLite run ledger path (default: off)"},
		{"  log_file", "Append logs to file"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}
