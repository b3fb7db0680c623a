// Package correlation computes the replicate-similarity statistics at
// the heart of percent replicating and percent matching: median
// pairwise Pearson correlation within replicate groups, the analogous
// cross-modality statistic, and resampled null distributions for both.
//
// Undefined correlations (singleton groups, zero-variance profiles)
// surface as NaN; downstream aggregation is expected to use the
// NaN-aware percentile and median helpers rather than rely on
// propagation.
package correlation

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"profilescore/pkg/profile"
)

// maxAttemptsPerSample bounds the rejection-sampling loop of the null
// samplers: after nSamples*maxAttemptsPerSample draws the sampler gives
// up instead of spinning forever on a near-unsatisfiable identity
// constraint.
const maxAttemptsPerSample = 1000

// BetweenReplicates computes one statistic per replicate group: rows
// are grouped by the given metadata key and each group of two or more
// rows yields the median of its off-diagonal pairwise Pearson
// correlations. Singleton groups yield NaN. Statistics are returned in
// sorted group-key order.
func BetweenReplicates(t *profile.Table, groupKey string) ([]float64, error) {
	keys, groups, err := t.GroupRows(groupKey)
	if err != nil {
		return nil, err
	}
	features := t.FeatureMatrix()
	if features == nil {
		return nil, fmt.Errorf("correlation: table has no feature columns")
	}

	out := make([]float64, 0, len(keys))
	for _, key := range keys {
		rows := groups[key]
		if len(rows) < 2 {
			out = append(out, math.NaN())
			continue
		}
		out = append(out, medianPairwise(features, rows))
	}
	return out, nil
}

// NullDistribution builds a null distribution of nSamples statistics by
// repeatedly drawing nReplicates rows uniformly with replacement and
// keeping only draws whose rows carry nReplicates distinct values of
// identityKey, so no accidental true-replicate pair enters the null.
// Each accepted draw contributes its median off-diagonal pairwise
// correlation.
//
// The table must hold at least nReplicates distinct identity values or
// the rejection condition is unsatisfiable; this is validated up front.
// The random source is explicit so callers can make sampling
// reproducible.
func NullDistribution(t *profile.Table, rng *rand.Rand, nSamples, nReplicates int, identityKey string) ([]float64, error) {
	if rng == nil {
		return nil, fmt.Errorf("correlation: nil random source")
	}
	if nReplicates < 2 {
		return nil, fmt.Errorf("correlation: need at least 2 pseudo-replicates, got %d", nReplicates)
	}
	ids, ok := t.Meta(identityKey)
	if !ok {
		return nil, fmt.Errorf("correlation: no metadata column %q", identityKey)
	}
	distinct := make(map[string]bool)
	for _, id := range ids {
		distinct[id] = true
	}
	if len(distinct) < nReplicates {
		return nil, fmt.Errorf("correlation: %d distinct %s values, cannot draw %d distinct pseudo-replicates",
			len(distinct), identityKey, nReplicates)
	}
	features := t.FeatureMatrix()
	if features == nil {
		return nil, fmt.Errorf("correlation: table has no feature columns")
	}

	n := t.NumRows()
	out := make([]float64, 0, nSamples)
	draw := make([]int, nReplicates)
	seen := make(map[string]bool, nReplicates)
	for attempts := 0; len(out) < nSamples; attempts++ {
		if attempts >= nSamples*maxAttemptsPerSample {
			return nil, fmt.Errorf("correlation: gave up after %d draws with %d accepted; too few wells with distinct %s values",
				attempts, len(out), identityKey)
		}
		for i := range draw {
			draw[i] = rng.Intn(n)
		}
		clear(seen)
		for _, r := range draw {
			seen[ids[r]] = true
		}
		if len(seen) != nReplicates {
			continue
		}
		out = append(out, medianPairwise(features, draw))
	}
	return out, nil
}

// medianPairwise is the replicate-correlation statistic for a set of
// rows: the NaN-aware median of the Pearson correlations of every
// unordered row pair. Self-correlations (the diagonal) are excluded.
func medianPairwise(features *mat.Dense, rows []int) float64 {
	vals := make([]float64, 0, len(rows)*(len(rows)-1)/2)
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			vals = append(vals, stat.Correlation(
				features.RawRowView(rows[i]),
				features.RawRowView(rows[j]),
				nil,
			))
		}
	}
	return nanMedian(vals)
}
