package models

import (
	"math"
	"strconv"
)

// ScoreRow is one computed score in the report table handed to the
// plotting/reporting layer.
type ScoreRow struct {
	// Metric names the computed quantity, e.g. "percent_replicating"
	// or "percent_matching"
	Metric string

	// BatchPath is the batch the score was computed over
	BatchPath string

	// Plates lists the plates that contributed, joined with "|"
	Plates string

	// Value is the score in [0, 1]
	Value float64

	// RightThreshold and LeftThreshold are the null-distribution
	// percentile thresholds that produced the score; NaN when the
	// comparison mode did not use that tail
	RightThreshold float64
	LeftThreshold  float64
}

// Header returns the CSV header for a score table.
func Header() []string {
	return []string{"metric", "batch", "plates", "value", "right_threshold", "left_threshold"}
}

// Record renders the row for CSV output; NaN thresholds become empty
// cells.
func (r ScoreRow) Record() []string {
	return []string{
		r.Metric,
		r.BatchPath,
		r.Plates,
		formatFloat(r.Value),
		formatFloat(r.RightThreshold),
		formatFloat(r.LeftThreshold),
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
