// Package scoring turns an observed correlation distribution and a
// resampled null distribution into a percent replicating / percent
// matching score by percentile thresholding.
package scoring

import (
	"fmt"
	"math"
	"sort"
)

// Mode selects which tail(s) of the null distribution define the
// threshold.
type Mode string

const (
	// ModeRight scores the fraction of observed values above the
	// null's 95th percentile.
	ModeRight Mode = "right"

	// ModeLeft scores the fraction of observed values below the
	// null's 5th percentile.
	ModeLeft Mode = "left"

	// ModeBoth sums both fractions; used for cross-modality
	// matching, where strong negative correlation also indicates a
	// relationship.
	ModeBoth Mode = "both"
)

// Score is a computed percent score together with the threshold(s)
// that produced it, kept for reporting and auditability. A threshold
// that did not apply to the mode is NaN.
type Score struct {
	Value          float64
	RightThreshold float64
	LeftThreshold  float64
}

// PercentScore compares an observed correlation distribution against a
// null distribution. NaN entries are ignored when computing percentile
// thresholds, and a NaN observation never counts as beyond a threshold
// but remains in the denominator, so undefined replicate statistics
// (singleton groups) drag the score down rather than being dropped.
func PercentScore(null, observed []float64, mode Mode) (Score, error) {
	s := Score{
		Value:          0,
		RightThreshold: math.NaN(),
		LeftThreshold:  math.NaN(),
	}
	switch mode {
	case ModeRight:
		s.RightThreshold = nanPercentile(null, 95)
		s.Value = fractionBeyond(observed, s.RightThreshold, false)
	case ModeLeft:
		s.LeftThreshold = nanPercentile(null, 5)
		s.Value = fractionBeyond(observed, s.LeftThreshold, true)
	case ModeBoth:
		s.RightThreshold = nanPercentile(null, 95)
		s.LeftThreshold = nanPercentile(null, 5)
		s.Value = fractionBeyond(observed, s.RightThreshold, false) +
			fractionBeyond(observed, s.LeftThreshold, true)
	default:
		return Score{}, fmt.Errorf("scoring: unknown mode %q", mode)
	}
	return s, nil
}

// fractionBeyond returns the fraction of vals strictly beyond the
// threshold, below it when left is set. The denominator is the full
// length of vals.
func fractionBeyond(vals []float64, threshold float64, left bool) float64 {
	if len(vals) == 0 {
		return 0
	}
	count := 0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if (left && v < threshold) || (!left && v > threshold) {
			count++
		}
	}
	return float64(count) / float64(len(vals))
}

// nanPercentile computes the p-th percentile (0–100) of the finite
// values in vals, linearly interpolating between order statistics. An
// input with no finite values yields NaN.
func nanPercentile(vals []float64, p float64) float64 {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	if len(finite) == 1 {
		return finite[0]
	}
	h := p / 100 * float64(len(finite)-1)
	lo := int(math.Floor(h))
	if lo >= len(finite)-1 {
		return finite[len(finite)-1]
	}
	frac := h - float64(lo)
	return finite[lo]*(1-frac) + finite[lo+1]*frac
}
