package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/poissonbatch/internal/config"
	"github.com/backmassage/poissonbatch/internal/display"
	"github.com/backmassage/poissonbatch/internal/logging"
	"github.com/backmassage/poissonbatch/internal/probe"
	"github.com/backmassage/poissonbatch/internal/term"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/stat"
)

// maxNameWidth caps the File column of the analysis table.
const maxNameWidth = 50

// cloudRow holds the probed per-file data for the analysis table.
type cloudRow struct {
	Name    string
	Format  string
	Points  int
	Normals bool
	Colors  bool
	Size    int64
}

// Analyze discovers input point clouds, reads each header, and prints a
// table of point counts and attributes with statistical outlier
// highlighting. No tools are run.
func Analyze(ctx context.Context, cfg *config.Config, log *logging.Logger) {
	analyze(ctx, cfg, log, os.Stdout)
}

func analyze(ctx context.Context, cfg *config.Config, log *logging.Logger, w io.Writer) {
	files, err := Discover(cfg.InputDir, cfg.Extension)
	if err != nil {
		log.Error("File discovery failed: %v", err)
		return
	}
	if len(files) == 0 {
		log.Warn("No %s files found in %s", cfg.Extension, displayDir(cfg.InputDir))
		return
	}

	log.Info("Analyzing %d files in %s", len(files), cfg.InputDir)
	log.Blank()

	var rows []cloudRow
	var points []float64
	for _, path := range files {
		if ctx.Err() != nil {
			log.Warn("Interrupted")
			return
		}
		info, err := probe.Probe(path)
		if err != nil {
			log.Warn("Skip (unreadable header): %s: %v", filepath.Base(path), err)
			continue
		}
		rows = append(rows, cloudRow{
			Name:    filepath.Base(path),
			Format:  info.Format,
			Points:  info.Vertices,
			Normals: info.HasNormals,
			Colors:  info.HasColors,
			Size:    info.Size,
		})
		if info.Vertices > 0 {
			points = append(points, float64(info.Vertices))
		}
	}

	if len(rows) == 0 {
		log.Warn("No files could be probed")
		return
	}

	bounds := computeStats(points)
	printAnalysisTable(w, rows, bounds)
	printAnalysisSummary(log, rows, bounds)
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printAnalysisTable(w io.Writer, rows []cloudRow, bounds iqrBounds) {
	nameW := len("File")
	ptsW := len("Points")
	for _, r := range rows {
		nameW = max(nameW, len(r.Name))
		ptsW = max(ptsW, len(display.FormatCount(r.Points)))
	}
	nameW = essentials.MinInt(nameW, maxNameWidth)

	header := fmt.Sprintf("  %-*s  %*s  %-7s  %-6s  %-20s  %10s",
		nameW, "File", ptsW, "Points", "Normals", "Colors", "Format", "Size")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header)-2))

	for _, r := range rows {
		name := r.Name
		if len(name) > nameW {
			name = name[:nameW-1] + "…"
		}
		class := bounds.classify(float64(r.Points))

		// Pad before coloring so escape bytes don't count toward width.
		ptsCell := colorPad(fmt.Sprintf("%*s", ptsW, display.FormatCount(r.Points)), class)
		normals := fmt.Sprintf("%-7s", yesNo(r.Normals))
		if !r.Normals {
			normals = term.Paint(term.Yellow, normals)
		}

		fmt.Fprintf(w, "  %-*s  %s  %s  %-6s  %-20s  %10s  %s\n",
			nameW, name, ptsCell, normals, yesNo(r.Colors), r.Format,
			display.FormatBytes(r.Size), formatFlag(class))
	}
	fmt.Fprintln(w)
}

func printAnalysisSummary(log *logging.Logger, rows []cloudRow, bounds iqrBounds) {
	var outliers, extremes, unoriented int
	for _, r := range rows {
		switch bounds.classify(float64(r.Points)) {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
		if !r.Normals {
			unoriented++
		}
	}

	log.Info("Analyzed %d files", len(rows))
	if bounds.valid {
		log.Info("  Point count IQR: %.0f – %.0f (outlier < %.0f or > %.0f)",
			bounds.q1, bounds.q3, bounds.outlierLo, bounds.outlierHi)
	}
	if unoriented > 0 {
		log.Warn("  %d file(s) without normals", unoriented)
	}
	if outliers > 0 {
		log.Outlier("  %d outlier(s) flagged [*]", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme outlier(s) flagged [!]", extremes)
	}
	if outliers == 0 && extremes == 0 {
		log.Success("  No outliers detected")
	}
}

func formatFlag(class string) string {
	switch class {
	case "extreme":
		return term.Paint(term.Red, "[!]")
	case "outlier":
		return term.Paint(term.Orange, "[*]")
	}
	return ""
}

func colorPad(padded, class string) string {
	switch class {
	case "extreme":
		return term.Paint(term.Red, padded)
	case "outlier":
		return term.Paint(term.Orange, padded)
	}
	return padded
}
