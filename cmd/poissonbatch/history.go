package main

import (
	"context"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/display"
	"github.com/backmassage/poissonbatch/internal/ledger"
	"github.com/backmassage/poissonbatch/internal/logging"
)

// historyRuns is how many runs --history lists.
const historyRuns = 10

// showHistory prints the most recent ledger runs, newest first, with the
// files that failed in each.
func showHistory(ctx context.Context, cfg *config.Config, log *logging.Logger) int {
	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	defer led.Close()

	runs, err := led.Runs(ctx, historyRuns)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	if len(runs) == 0 {
		log.Info("No runs recorded in %s", cfg.LedgerPath)
		return 0
	}

	for _, r := range runs {
		took := "unfinished"
		if !r.FinishedAt.IsZero() {
			took = display.FormatDuration(r.FinishedAt.Sub(r.StartedAt))
		}
		mode := ""
		if r.DryRun {
			mode = " [dry run]"
		}
		log.Info("%s %s: %d file(s), %d ok, %d skipped, %d failed (%s)%s",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.ID,
			r.Total, r.Succeeded, r.Skipped, r.Failed, took, mode)
		log.Debug(cfg.Verbose, "  %s -> %s, depth %d, trim %g", r.InputDir, r.OutputDir, r.Options.Depth, r.Options.Trim)
		if r.Failed == 0 {
			continue
		}

		results, err := led.FileResults(ctx, r.ID)
		if err != nil {
			log.Warn("  Cannot read file results: %v", err)
			continue
		}
		for _, fr := range results {
			if !fr.OK {
				log.Warn("  %s failed at %s: %s", fr.Name, fr.Stage, fr.Err)
			}
		}
	}
	return 0
}
