package correlation

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"profilescore/pkg/profile"
)

// BetweenModalities computes the matching statistics between two
// measurement modalities that share a perturbation identity. The two
// tables are inner-joined on their common columns and split back by the
// modality tag; for every value of commonKey present in both
// modalities, and for every perturbation pair (one perturbation per
// modality, identified by pertKey), the statistic is the NaN-aware
// median of the full cross-correlation block between the two feature
// sets. The blocks compare different samples, so no diagonal is
// excluded.
//
// Group values are visited in sorted order and perturbations in first-
// appearance order, so the output is deterministic.
func BetweenModalities(t1, t2 *profile.Table, label1, label2, commonKey, pertKey string) ([]float64, error) {
	m1, m2, common, err := alignModalities(t1, t2, label1, label2, commonKey)
	if err != nil {
		return nil, err
	}

	var out []float64
	for _, group := range common {
		stats, err := crossGroupStats(m1, m2, group, commonKey, pertKey)
		if err != nil {
			return nil, err
		}
		out = append(out, stats...)
	}
	return out, nil
}

// NullBetweenModalities builds the cross-modality null distribution: on
// each of nSamples iterations, two distinct commonKey values are drawn
// at random, one selecting the first modality's rows and one the
// second's, and the same per-perturbation-pair statistics are computed
// across the mismatched groups.
//
// The iteration count, not the number of emitted statistics, is bounded
// by nSamples: a draw contributes one statistic per perturbation pair
// found, so the returned length is data-dependent.
func NullBetweenModalities(t1, t2 *profile.Table, label1, label2, commonKey, pertKey string, nSamples int, rng *rand.Rand) ([]float64, error) {
	if rng == nil {
		return nil, fmt.Errorf("correlation: nil random source")
	}
	m1, m2, common, err := alignModalities(t1, t2, label1, label2, commonKey)
	if err != nil {
		return nil, err
	}
	if len(common) < 2 {
		return nil, fmt.Errorf("correlation: %d shared %s values, need at least 2 for a mismatched draw",
			len(common), commonKey)
	}

	var out []float64
	for count := 0; count < nSamples; count++ {
		i := rng.Intn(len(common))
		j := rng.Intn(len(common) - 1)
		if j >= i {
			j++
		}
		stats, err := crossGroupStats2(m1, m2, common[i], common[j], commonKey, pertKey)
		if err != nil {
			return nil, err
		}
		out = append(out, stats...)
	}
	return out, nil
}

// alignModalities inner-joins the two tables so both modalities share a
// feature set, splits the result by the modality tag, and returns the
// sorted intersection of commonKey values.
func alignModalities(t1, t2 *profile.Table, label1, label2, commonKey string) (m1, m2 *profile.Table, common []string, err error) {
	for _, t := range []*profile.Table{t1, t2} {
		if _, ok := t.Meta(commonKey); !ok {
			return nil, nil, nil, fmt.Errorf("correlation: no metadata column %q", commonKey)
		}
		if _, ok := t.Meta(profile.ColModality); !ok {
			return nil, nil, nil, fmt.Errorf("correlation: no metadata column %q", profile.ColModality)
		}
	}

	in2 := make(map[string]bool)
	for _, v := range t2.UniqueMeta(commonKey) {
		in2[v] = true
	}
	for _, v := range t1.UniqueMeta(commonKey) {
		if in2[v] {
			common = append(common, v)
		}
	}
	sort.Strings(common)

	merged, err := profile.ConcatInner(t1, t2)
	if err != nil {
		return nil, nil, nil, err
	}
	m1 = merged.FilterMeta(profile.ColModality, func(v string) bool { return v == label1 })
	m2 = merged.FilterMeta(profile.ColModality, func(v string) bool { return v == label2 })
	return m1, m2, common, nil
}

// crossGroupStats computes the per-perturbation-pair statistics between
// the rows of both modalities belonging to one commonKey group.
func crossGroupStats(m1, m2 *profile.Table, group, commonKey, pertKey string) ([]float64, error) {
	return crossGroupStats2(m1, m2, group, group, commonKey, pertKey)
}

// crossGroupStats2 is crossGroupStats with independent group selections
// per modality, as needed by the null sampler.
func crossGroupStats2(m1, m2 *profile.Table, group1, group2, commonKey, pertKey string) ([]float64, error) {
	g1 := m1.FilterMeta(commonKey, func(v string) bool { return v == group1 })
	g2 := m2.FilterMeta(commonKey, func(v string) bool { return v == group2 })

	var out []float64
	for _, p1 := range g1.UniqueMeta(pertKey) {
		s1 := g1.FilterMeta(pertKey, func(v string) bool { return v == p1 })
		f1 := s1.FeatureMatrix()
		if f1 == nil {
			return nil, fmt.Errorf("correlation: table has no feature columns")
		}
		for _, p2 := range g2.UniqueMeta(pertKey) {
			s2 := g2.FilterMeta(pertKey, func(v string) bool { return v == p2 })
			f2 := s2.FeatureMatrix()
			if f2 == nil {
				return nil, fmt.Errorf("correlation: table has no feature columns")
			}
			out = append(out, medianCross(f1, f2))
		}
	}
	return out, nil
}

// medianCross is the matching statistic for two feature blocks: the
// NaN-aware median of the Pearson correlations of every row pair drawn
// one from each block.
func medianCross(a, b *mat.Dense) float64 {
	ra, _ := a.Dims()
	rb, _ := b.Dims()
	vals := make([]float64, 0, ra*rb)
	for i := 0; i < ra; i++ {
		for j := 0; j < rb; j++ {
			vals = append(vals, stat.Correlation(a.RawRowView(i), b.RawRowView(j), nil))
		}
	}
	return nanMedian(vals)
}
