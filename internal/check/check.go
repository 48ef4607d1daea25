// Package check provides system diagnostics (--check mode): whether the
// reconstruction and trimming tools can be found and whether the configured
// directories are usable.
package check

import (
	"os"
	"path/filepath"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/poisson"
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// RunCheck runs the --check flow and reports whether a batch run could
// proceed. Every check runs even after a failure.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := checkTool(log, "Reconstruction tool", cfg.ReconBin, true)
	ok = checkTool(log, "Trimming tool", cfg.TrimBin, cfg.Options.TrimEnabled()) && ok
	ok = checkInputDir(cfg, log) && ok
	ok = checkOutputDir(cfg, log) && ok

	if ok {
		log.Success("All checks passed")
	} else {
		log.Error("Some checks failed")
	}
	return ok
}

// checkTool locates bin. A missing tool that is not required is a warning.
func checkTool(log Logger, label, bin string, required bool) bool {
	path, err := poisson.Locate(bin)
	switch {
	case err == nil:
		log.Success("%s: %s", label, path)
		return true
	case required:
		log.Error("%s: %v", label, err)
		return false
	default:
		log.Warn("%s: %v (not needed, trimming is off)", label, err)
		return true
	}
}

func checkInputDir(cfg *config.Config, log Logger) bool {
	if cfg.InputDir == "" {
		log.Warn("Input directory: not set (nothing to process)")
		return true
	}
	st, err := os.Stat(cfg.InputDir)
	if err != nil {
		log.Warn("Input directory: %v (nothing to process)", err)
		return true
	}
	if !st.IsDir() {
		log.Error("Input directory: %s is not a directory", cfg.InputDir)
		return false
	}
	matches, err := filepath.Glob(filepath.Join(cfg.InputDir, "*"))
	if err != nil {
		log.Error("Input directory: %v", err)
		return false
	}
	log.Success("Input directory: %s (%d entries)", cfg.InputDir, len(matches))
	return true
}

// checkOutputDir verifies the output directory exists and is writable, or
// that its nearest existing ancestor is.
func checkOutputDir(cfg *config.Config, log Logger) bool {
	if cfg.OutputDir == "" {
		log.Warn("Output directory: not set")
		return true
	}
	dir := cfg.OutputDir
	for {
		st, err := os.Stat(dir)
		if err == nil {
			if !st.IsDir() {
				log.Error("Output directory: %s is not a directory", dir)
				return false
			}
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			log.Error("Output directory: no existing ancestor of %s", cfg.OutputDir)
			return false
		}
		dir = parent
	}

	f, err := os.CreateTemp(dir, ".poissonbatch-check-*")
	if err != nil {
		log.Error("Output directory: %s is not writable: %v", dir, err)
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)

	if dir != cfg.OutputDir {
		log.Success("Output directory: %s (will be created under %s)", cfg.OutputDir, dir)
	} else {
		log.Success("Output directory: %s", cfg.OutputDir)
	}
	return true
}
