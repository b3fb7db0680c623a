package sphering

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"

	"profilescore/pkg/profile"
)

// randomMatrix builds a deterministic r×c matrix of standard normal
// values.
func randomMatrix(r, c int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func TestFitTransformRecentersReference(t *testing.T) {
	ref := randomMatrix(20, 5, 1)

	z := New()
	if err := z.Fit(ref); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	out, err := z.Transform(ref)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	r, c := out.Dims()
	if r != 20 || c != 5 {
		t.Fatalf("output is %dx%d, want 20x5", r, c)
	}
	// Whitening recenters: transforming the fitting reference itself
	// yields feature-wise means of ~0.
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += out.At(i, j)
		}
		if mean := sum / float64(r); math.Abs(mean) > 1e-8 {
			t.Errorf("column %d mean = %g, want ~0", j, mean)
		}
	}
}

func TestTransformBeforeFit(t *testing.T) {
	z := New()
	if _, err := z.Transform(randomMatrix(3, 4, 2)); !errors.Is(err, ErrNotFitted) {
		t.Errorf("err = %v, want ErrNotFitted", err)
	}
}

func TestTransformDimensionMismatch(t *testing.T) {
	z := New()
	if err := z.Fit(randomMatrix(10, 4, 3)); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := z.Transform(randomMatrix(3, 5, 4)); err == nil {
		t.Error("expected error for mismatched feature count")
	}
}

func TestTransformSingleRow(t *testing.T) {
	z := New()
	if err := z.Fit(randomMatrix(10, 4, 5)); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	out, err := z.Transform(randomMatrix(1, 4, 6))
	if err != nil {
		t.Fatalf("Transform of single row failed: %v", err)
	}
	if r, c := out.Dims(); r != 1 || c != 4 {
		t.Errorf("output is %dx%d, want 1x4", r, c)
	}
}

func TestFitTooFewRows(t *testing.T) {
	z := New()
	if err := z.Fit(randomMatrix(1, 4, 7)); err == nil {
		t.Error("expected error fitting on a single row")
	}
}

func TestFitZeroVarianceFeature(t *testing.T) {
	// A constant feature produces undefined correlations, which the
	// fit replaces with 0; the transform must stay finite.
	ref := randomMatrix(12, 3, 8)
	for i := 0; i < 12; i++ {
		ref.Set(i, 1, 7.5)
	}

	z := New()
	if err := z.Fit(ref); err != nil {
		t.Fatalf("Fit failed on zero-variance feature: %v", err)
	}
	out, err := z.Transform(ref)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	r, c := out.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := out.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite output at (%d,%d): %v", i, j, v)
			}
		}
	}
}

func TestElbowIndex(t *testing.T) {
	// Convex decreasing curve with a sharp knee at index 1.
	y := []float64{100, 10, 1, 0.5, 0.4, 0.3}
	if got := elbowIndex(y); got != 1 {
		t.Errorf("elbowIndex = %d, want 1", got)
	}

	// Degenerate curves fall back to the last index.
	if got := elbowIndex([]float64{5, 5, 5, 5}); got != 3 {
		t.Errorf("elbowIndex of flat curve = %d, want 3", got)
	}
	if got := elbowIndex([]float64{2, 1}); got != 1 {
		t.Errorf("elbowIndex of 2-point curve = %d, want 1", got)
	}
}

// buildPlate creates a plate table with nNegcon control wells and
// nTreated treated wells over nFeatures features.
func buildPlate(t *testing.T, nNegcon, nTreated, nFeatures int, seed int64) *profile.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	n := nNegcon + nTreated

	ctrl := make([]string, n)
	sample := make([]string, n)
	for i := 0; i < n; i++ {
		if i < nNegcon {
			ctrl[i] = profile.NegconValue
		} else {
			ctrl[i] = "trt"
			sample[i] = "cmpd"
		}
	}

	tbl := profile.NewTable()
	if err := tbl.AddMeta(profile.ColControlType, ctrl); err != nil {
		t.Fatalf("AddMeta failed: %v", err)
	}
	if err := tbl.AddMeta(profile.ColBroadSample, sample); err != nil {
		t.Fatalf("AddMeta failed: %v", err)
	}
	for j := 0; j < nFeatures; j++ {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = rng.NormFloat64()
		}
		if err := tbl.AddFeature("f"+string(rune('a'+j)), vals); err != nil {
			t.Fatalf("AddFeature failed: %v", err)
		}
	}
	return tbl
}

func TestSpherePlatePreservesShape(t *testing.T) {
	plate := buildPlate(t, 8, 4, 5, 11)

	got, err := SpherePlate(plate)
	if err != nil {
		t.Fatalf("SpherePlate failed: %v", err)
	}

	// Round trip: row count, row order and column set all match the
	// input; only feature values change.
	if got.NumRows() != plate.NumRows() {
		t.Errorf("rows = %d, want %d", got.NumRows(), plate.NumRows())
	}
	if !reflect.DeepEqual(got.Columns(), plate.Columns()) {
		t.Errorf("columns = %v, want %v", got.Columns(), plate.Columns())
	}
	ctrlIn, _ := plate.Meta(profile.ColControlType)
	ctrlOut, _ := got.Meta(profile.ColControlType)
	if !reflect.DeepEqual(ctrlIn, ctrlOut) {
		t.Errorf("metadata changed: %v vs %v", ctrlOut, ctrlIn)
	}
}

func TestSpherePlateNoControls(t *testing.T) {
	plate := buildPlate(t, 0, 6, 4, 12)
	if _, err := SpherePlate(plate); err == nil {
		t.Error("expected error for plate without negative controls")
	}
}
