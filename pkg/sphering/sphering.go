// Package sphering implements ZCA-correlation whitening for profile
// feature matrices. The transform is fit on a reference population
// (negative-control wells) and removes correlated technical variance
// from every well on the plate.
//
// Unlike ordinary ZCA, which whitens in the covariance eigenbasis, this
// variant whitens in the correlation eigenbasis and scales back by the
// per-feature standard deviation, which behaves better when feature
// scales differ widely. Small singular values of the correlation matrix
// are floored at an elbow-derived regularization value so they cannot
// blow up the whitening matrix.
package sphering

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNotFitted is returned by Transform when Fit has not been called.
var ErrNotFitted = errors.New("sphering: transformer is not fitted")

// varianceFloor guards the inverse square root against zero-variance
// features.
const varianceFloor = 1e-3

// ZCACorr is a ZCA-correlation whitening transformer. The zero value is
// unfit; Fit computes the mean vector and whitening matrix, Transform
// applies them. Refitting overwrites the state.
type ZCACorr struct {
	mean   []float64
	sphere *mat.Dense
	dim    int
}

// New returns an unfit transformer.
func New() *ZCACorr {
	return &ZCACorr{}
}

// Fit computes the mean and whitening matrix from a reference feature
// matrix with one row per sample. At least two rows are required.
func (z *ZCACorr) Fit(x mat.Matrix) error {
	r, c := x.Dims()
	if r < 2 {
		return fmt.Errorf("sphering: need at least 2 reference rows, got %d", r)
	}
	if c < 1 {
		return fmt.Errorf("sphering: reference matrix has no feature columns")
	}

	// Column means and sample variances (divisor n-1, the diagonal
	// of the sample covariance).
	mean := make([]float64, c)
	variance := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean[j] = stat.Mean(col, nil)
		variance[j] = stat.Variance(col, nil)
	}

	// Pearson correlation matrix of the features. Zero-variance
	// features produce non-finite entries; they are replaced by 0 so
	// the decomposition stays well-defined.
	sym := mat.NewSymDense(c, nil)
	stat.CorrelationMatrix(sym, x, nil)
	corr := mat.NewDense(c, c, nil)
	for i := 0; i < c; i++ {
		for j := 0; j < c; j++ {
			v := sym.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			corr.Set(i, j, v)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(corr, mat.SVDFull); !ok {
		return fmt.Errorf("sphering: SVD of correlation matrix failed")
	}
	var g mat.Dense
	svd.UTo(&g)
	sv := svd.Values(nil)

	reg := estimateRegularization(sv)

	// diag(1/sqrt(clip T)) and diag(1/sqrt(clip V)).
	tInv := mat.NewDiagDense(c, nil)
	vInv := mat.NewDiagDense(c, nil)
	for i := 0; i < c; i++ {
		tInv.SetDiag(i, 1/math.Sqrt(math.Max(sv[i], reg)))
		vInv.SetDiag(i, 1/math.Sqrt(math.Max(variance[i], varianceFloor)))
	}

	// sphere = G · tInv · Gᵗ · vInv
	var gt, gtg, sphere mat.Dense
	gt.Mul(&g, tInv)
	gtg.Mul(&gt, g.T())
	sphere.Mul(&gtg, vInv)

	z.mean = mean
	z.sphere = &sphere
	z.dim = c
	return nil
}

// Transform whitens a feature matrix with the fitted state, returning
// (x − mean)·sphereᵗ with the same shape as the input. The column count
// must match the fitted dimensionality.
func (z *ZCACorr) Transform(x mat.Matrix) (*mat.Dense, error) {
	if z.sphere == nil {
		return nil, ErrNotFitted
	}
	r, c := x.Dims()
	if c != z.dim {
		return nil, fmt.Errorf("sphering: matrix has %d features, transformer was fit with %d", c, z.dim)
	}
	centered := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			centered.Set(i, j, x.At(i, j)-z.mean[j])
		}
	}
	out := mat.NewDense(r, c, nil)
	out.Mul(centered, z.sphere.T())
	return out, nil
}

// estimateRegularization picks the clip floor for the singular values:
// the value at the elbow of the decreasing singular-value curve,
// divided by 10.
func estimateRegularization(sv []float64) float64 {
	return sv[elbowIndex(sv)] / 10
}

// elbowIndex locates the elbow of a convex, decreasing curve as the
// point of maximum distance below the chord from the first to the last
// value. Degenerate curves (short or flat) yield the last index.
func elbowIndex(y []float64) int {
	n := len(y)
	if n < 3 {
		return n - 1
	}
	ymax, ymin := y[0], y[0]
	for _, v := range y {
		ymax = math.Max(ymax, v)
		ymin = math.Min(ymin, v)
	}
	if ymax == ymin {
		return n - 1
	}

	best, bestDist := n-1, 0.0
	for i := 0; i < n; i++ {
		xn := float64(i) / float64(n-1)
		yn := (y[i] - ymin) / (ymax - ymin)
		// Distance below the descending diagonal.
		d := (1 - xn) - yn
		if d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
