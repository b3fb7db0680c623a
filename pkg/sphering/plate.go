package sphering

import (
	"fmt"

	"profilescore/pkg/profile"
)

// SpherePlate whitens a plate's feature values against its own
// negative-control wells: a fresh transformer is fit on the negcon
// subset and applied to every well, controls and treated alike. The
// returned table has the same row count, row order and column set as
// the input; only feature values change.
func SpherePlate(t *profile.Table) (*profile.Table, error) {
	negcon := t.FilterMeta(profile.ColControlType, func(v string) bool {
		return v == profile.NegconValue
	})
	if negcon.NumRows() == 0 {
		return nil, fmt.Errorf("sphering: plate has no %q control wells to fit on", profile.NegconValue)
	}

	ref := negcon.FeatureMatrix()
	if ref == nil {
		return nil, fmt.Errorf("sphering: plate has no feature columns")
	}

	z := New()
	if err := z.Fit(ref); err != nil {
		return nil, err
	}
	sphered, err := z.Transform(t.FeatureMatrix())
	if err != nil {
		return nil, err
	}
	return t.WithFeatureMatrix(sphered)
}
