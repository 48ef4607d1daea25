package probe

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DensityStats describes the per-vertex density estimates of a reconstructed
// mesh relative to a trim threshold.
type DensityStats struct {
	Count     int
	Min       float64
	Max       float64
	Mean      float64
	P05       float64
	P50       float64
	P95       float64
	Trim      float64
	BelowTrim int
}

// NewDensityStats computes summary statistics over values. values is not
// modified.
func NewDensityStats(values []float64, trim float64) DensityStats {
	d := DensityStats{Count: len(values), Trim: trim}
	if len(values) == 0 {
		return d
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	d.Min = floats.Min(sorted)
	d.Max = floats.Max(sorted)
	d.Mean = stat.Mean(sorted, nil)
	d.P05 = stat.Quantile(0.05, stat.Empirical, sorted, nil)
	d.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	d.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	d.BelowTrim = sort.SearchFloat64s(sorted, trim)
	return d
}

// TrimmedFraction is the share of vertices whose density is below the trim
// threshold.
func (d DensityStats) TrimmedFraction() float64 {
	if d.Count == 0 {
		return 0
	}
	return float64(d.BelowTrim) / float64(d.Count)
}

func (d DensityStats) String() string {
	if d.Count == 0 {
		return "no density values"
	}
	return fmt.Sprintf("density min %.2f p5 %.2f median %.2f p95 %.2f max %.2f, %d/%d below trim %.2f",
		d.Min, d.P05, d.P50, d.P95, d.Max, d.BelowTrim, d.Count, d.Trim)
}
