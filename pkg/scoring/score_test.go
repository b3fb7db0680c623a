package scoring

import (
	"math"
	"testing"
)

func TestPercentScoreRightConstantNull(t *testing.T) {
	const c = 0.3
	null := make([]float64, 100)
	for i := range null {
		null[i] = c
	}
	observed := []float64{c + 1}

	got, err := PercentScore(null, observed, ModeRight)
	if err != nil {
		t.Fatalf("PercentScore failed: %v", err)
	}
	if got.Value != 1.0 {
		t.Errorf("score = %v, want 1.0", got.Value)
	}
	if math.Abs(got.RightThreshold-c) > 1e-12 {
		t.Errorf("threshold = %v, want %v", got.RightThreshold, c)
	}
	if !math.IsNaN(got.LeftThreshold) {
		t.Errorf("left threshold = %v, want NaN for right mode", got.LeftThreshold)
	}
}

func TestPercentScoreBothEqualsLeftPlusRight(t *testing.T) {
	null := []float64{-0.5, -0.2, -0.1, 0, 0.05, 0.1, 0.2, 0.3, 0.4, 0.6}
	observed := []float64{-0.9, -0.4, 0.0, 0.5, 0.7, 0.9}

	right, err := PercentScore(null, observed, ModeRight)
	if err != nil {
		t.Fatalf("right mode failed: %v", err)
	}
	left, err := PercentScore(null, observed, ModeLeft)
	if err != nil {
		t.Fatalf("left mode failed: %v", err)
	}
	both, err := PercentScore(null, observed, ModeBoth)
	if err != nil {
		t.Fatalf("both mode failed: %v", err)
	}

	if want := right.Value + left.Value; math.Abs(both.Value-want) > 1e-12 {
		t.Errorf("both score = %v, want right+left = %v", both.Value, want)
	}
	if both.RightThreshold != right.RightThreshold {
		t.Errorf("both right threshold = %v, want %v", both.RightThreshold, right.RightThreshold)
	}
	if both.LeftThreshold != left.LeftThreshold {
		t.Errorf("both left threshold = %v, want %v", both.LeftThreshold, left.LeftThreshold)
	}
}

func TestPercentScoreIgnoresNaN(t *testing.T) {
	// NaNs in the null are excluded from the percentile; NaNs in the
	// observed distribution never pass a threshold but stay in the
	// denominator.
	null := []float64{math.NaN(), 0.1, 0.1, 0.1, math.NaN()}
	observed := []float64{0.9, math.NaN()}

	got, err := PercentScore(null, observed, ModeRight)
	if err != nil {
		t.Fatalf("PercentScore failed: %v", err)
	}
	if math.Abs(got.RightThreshold-0.1) > 1e-12 {
		t.Errorf("threshold = %v, want 0.1", got.RightThreshold)
	}
	if got.Value != 0.5 {
		t.Errorf("score = %v, want 0.5", got.Value)
	}
}

func TestPercentScoreUnknownMode(t *testing.T) {
	if _, err := PercentScore([]float64{0}, []float64{0}, Mode("sideways")); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestPercentScoreEmptyObserved(t *testing.T) {
	got, err := PercentScore([]float64{0.1, 0.2}, nil, ModeRight)
	if err != nil {
		t.Fatalf("PercentScore failed: %v", err)
	}
	if got.Value != 0 {
		t.Errorf("score = %v, want 0 for empty observed distribution", got.Value)
	}
}

func TestNanPercentileInterpolation(t *testing.T) {
	vals := []float64{0, 1, 2, 3, 4}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 0},
		{50, 2},
		{95, 3.8},
		{100, 4},
	}
	for _, tc := range cases {
		if got := nanPercentile(vals, tc.p); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("nanPercentile(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := nanPercentile(nil, 95); !math.IsNaN(got) {
		t.Errorf("nanPercentile of empty input = %v, want NaN", got)
	}
}
