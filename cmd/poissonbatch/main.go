// Command poissonbatch is the CLI entrypoint for batch screened Poisson
// surface reconstruction.
//
// It parses flags and the optional config file, then either runs system
// diagnostics (--check), reports on the inputs (--analyze), lists past runs
// (--history), or reconstructs and trims every point cloud in the input
// directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/backmassage/poissonbatch/internal/check"
	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/display"
	"github.com/backmassage/poissonbatch/internal/ledger"
	"github.com/backmassage/poissonbatch/internal/logging"
	"github.com/backmassage/poissonbatch/internal/pipeline"
	"github.com/backmassage/poissonbatch/internal/poisson"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one invocation and returns the process exit code.
func run(args []string) int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr via fmt.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, args, version); err != nil {
		if errors.Is(err, config.ErrExitEarly) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "poissonbatch: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "poissonbatch: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "poissonbatch: %v\n", err)
		return 1
	}
	defer log.Close()

	// Phase 2: Logger available; all output goes through log from here on.
	display.PrintBanner()
	log.Info("=== poissonbatch v%s (%s) ===", version, commit)
	if cfg.ConfigFile != "" {
		log.Info("Config: %s", cfg.ConfigFile)
	} else {
		log.Warn("No config file given, using defaults")
	}

	if cfg.CheckOnly {
		if !check.RunCheck(&cfg, log) {
			return 1
		}
		return 0
	}

	// Phase 3: Signal handling. Cancelling the context kills the running
	// tool and stops the batch before the next file.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Received interrupt, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.AnalyzeOnly {
		pipeline.Analyze(ctx, &cfg, log)
		return 0
	}
	if cfg.HistoryOnly {
		return showHistory(ctx, &cfg, log)
	}

	if err := checkPaths(&cfg); err != nil {
		log.Error("%v", err)
		return 1
	}

	log.Info("In:  %s", cfg.InputDir)
	log.Info("Out: %s", cfg.OutputDir)
	log.Blank()

	// Phase 4: Optional run ledger.
	var rec pipeline.Recorder
	var led *ledger.Ledger
	if cfg.LedgerPath != "" {
		led, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			log.Error("%v", err)
			return 1
		}
		defer led.Close()

		if failures, err := led.LastFailures(ctx); err != nil {
			log.Warn("Cannot read ledger history: %v", err)
		} else if len(failures) > 0 {
			log.Info("Ledger: %d file(s) failed on their last run", len(failures))
			for _, f := range failures {
				log.Debug(cfg.Verbose, "  %s (%s): %s", f.Name, f.Stage, f.Err)
			}
		}

		id, err := led.StartRun(ctx, &cfg)
		if err != nil {
			log.Error("%v", err)
			return 1
		}
		log.Debug(cfg.Verbose, "Ledger run %s", id)
		rec = led
	}

	// Phase 5: Run pipeline (discover → plan → reconstruct → trim).
	tools := poisson.NewExecutor(cfg.ReconBin, cfg.TrimBin, cfg.Verbose)
	stats := pipeline.Run(ctx, &cfg, log, tools, rec)

	if led != nil {
		if err := led.FinishRun(context.WithoutCancel(ctx), stats); err != nil {
			log.Warn("Ledger write failed: %v", err)
		}
	}

	if cfg.FailOnError && stats.HasFailures() {
		return 1
	}
	return 0
}

// checkPaths rejects an output directory that resolves to the input
// directory. Outputs reuse the input filenames, so the tools would overwrite
// the clouds being read. An empty output directory is the working directory.
func checkPaths(cfg *config.Config) error {
	if cfg.InputDir == "" {
		return nil
	}
	return cfg.ValidatePaths(absPath(cfg.InputDir), absPath(cfg.OutputDir))
}

// absPath returns the absolute, symlink-resolved form of path. Paths that
// don't exist yet are only made absolute.
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
