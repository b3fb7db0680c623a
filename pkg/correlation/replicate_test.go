package correlation

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"profilescore/pkg/profile"
)

// tableWithGroups builds a table whose rows are assigned the given
// identity values, with the given feature vectors.
func tableWithGroups(t *testing.T, ids []string, features [][]float64) *profile.Table {
	t.Helper()
	tbl := profile.NewTable()
	if err := tbl.AddMeta(profile.ColBroadSample, ids); err != nil {
		t.Fatalf("AddMeta failed: %v", err)
	}
	nFeat := len(features[0])
	for j := 0; j < nFeat; j++ {
		col := make([]float64, len(features))
		for i := range features {
			col[i] = features[i][j]
		}
		if err := tbl.AddFeature("f"+strconv.Itoa(j), col); err != nil {
			t.Fatalf("AddFeature failed: %v", err)
		}
	}
	return tbl
}

func TestBetweenReplicates(t *testing.T) {
	// Group "a" is a singleton, group "b" holds three identical
	// (non-constant) profiles, group "c" holds two anticorrelated
	// profiles.
	v := []float64{1, 2, 3, 4}
	w := []float64{4, 3, 2, 1}
	tbl := tableWithGroups(t,
		[]string{"a", "b", "b", "b", "c", "c"},
		[][]float64{v, v, v, v, v, w},
	)

	got, err := BetweenReplicates(tbl, profile.ColBroadSample)
	if err != nil {
		t.Fatalf("BetweenReplicates failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d statistics, want 3", len(got))
	}
	// Sorted group order: a, b, c.
	if !math.IsNaN(got[0]) {
		t.Errorf("singleton group statistic = %v, want NaN", got[0])
	}
	if math.Abs(got[1]-1) > 1e-12 {
		t.Errorf("identical-replicate statistic = %v, want 1.0", got[1])
	}
	if math.Abs(got[2]-(-1)) > 1e-12 {
		t.Errorf("anticorrelated statistic = %v, want -1.0", got[2])
	}
}

func TestBetweenReplicatesMissingKey(t *testing.T) {
	tbl := tableWithGroups(t, []string{"a"}, [][]float64{{1, 2}})
	if _, err := BetweenReplicates(tbl, "Metadata_nope"); err == nil {
		t.Error("expected error for missing group key")
	}
}

func TestNullDistributionAllDistinct(t *testing.T) {
	// Every row has a distinct identity, so every draw is accepted on
	// the first attempt and the output length is exactly nSamples.
	rng := rand.New(rand.NewSource(42))
	n := 10
	ids := make([]string, n)
	features := make([][]float64, n)
	for i := range ids {
		ids[i] = "cmpd" + strconv.Itoa(i)
		features[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}
	tbl := tableWithGroups(t, ids, features)

	got, err := NullDistribution(tbl, rng, 50, 3, profile.ColBroadSample)
	if err != nil {
		t.Fatalf("NullDistribution failed: %v", err)
	}
	if len(got) != 50 {
		t.Errorf("null length = %d, want 50", len(got))
	}
	for i, v := range got {
		if v < -1-1e-9 || v > 1+1e-9 {
			t.Errorf("null[%d] = %v outside [-1, 1]", i, v)
		}
	}
}

func TestNullDistributionInsufficientIdentities(t *testing.T) {
	tbl := tableWithGroups(t,
		[]string{"a", "a", "b", "b"},
		[][]float64{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {4, 5, 6}},
	)
	rng := rand.New(rand.NewSource(1))
	if _, err := NullDistribution(tbl, rng, 10, 3, profile.ColBroadSample); err == nil {
		t.Error("expected error when distinct identities < replicate count")
	}
}

func TestNullDistributionReproducible(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	features := [][]float64{
		{1, 5, 2, 8}, {3, 1, 9, 2}, {7, 7, 1, 4}, {2, 9, 3, 3}, {5, 2, 6, 1},
	}
	tbl := tableWithGroups(t, ids, features)

	a, err := NullDistribution(tbl, rand.New(rand.NewSource(7)), 20, 2, profile.ColBroadSample)
	if err != nil {
		t.Fatalf("NullDistribution failed: %v", err)
	}
	b, err := NullDistribution(tbl, rand.New(rand.NewSource(7)), 20, 2, profile.ColBroadSample)
	if err != nil {
		t.Fatalf("NullDistribution failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestNanMedian(t *testing.T) {
	cases := []struct {
		name string
		in   []float64
		want float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"ignores NaN", []float64{1, math.NaN(), 3}, 2},
		{"ignores Inf", []float64{1, math.Inf(1), 3}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := nanMedian(tc.in); got != tc.want {
				t.Errorf("nanMedian(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
	if got := nanMedian([]float64{math.NaN()}); !math.IsNaN(got) {
		t.Errorf("nanMedian of all-NaN = %v, want NaN", got)
	}
}
