// Package analysis orchestrates the percent replicating and percent
// matching pipelines over batches of plates: load plate tables, apply
// ZCA-correlation sphering at the configured granularity, drop control
// and empty wells, run the correlation engines against a resampled
// null, and score the result.
package analysis

import (
	"fmt"
	"math/rand"

	"profilescore/pkg/correlation"
	"profilescore/pkg/profile"
	"profilescore/pkg/scoring"
	"profilescore/pkg/sphering"
)

// SphereMode selects the granularity at which the whitening transform
// is fit and applied.
type SphereMode string

const (
	// SphereNone skips sphering entirely.
	SphereNone SphereMode = "none"

	// SpherePlate fits a fresh transform per plate, on that plate's
	// negative controls.
	SpherePlate SphereMode = "plate"

	// SphereBatch fits one transform on the concatenated batch.
	SphereBatch SphereMode = "batch"
)

// moaNullReplicates is the pseudo-replicate count for the MOA null:
// the JUMP-MOA source plates carry at least 4 copies of each
// perturbation per plate.
const moaNullReplicates = 4

// Params holds the batch-independent analysis configuration.
type Params struct {
	// Suffix selects the preprocessing variant of the per-plate
	// files; empty means profile.DefaultSuffix.
	Suffix string

	// Sphere is the whitening granularity; empty means SphereNone.
	Sphere SphereMode

	// NSamples is the null distribution size (or, for the
	// cross-modality null, the number of sampling iterations).
	// Zero means 10000.
	NSamples int

	// Seed initializes the sampling random source, making null
	// distributions reproducible.
	Seed int64

	// How is the comparison mode for the replicating metrics; empty
	// means scoring.ModeRight. Matching always scores both tails.
	How scoring.Mode

	// Verbose enables progress output.
	Verbose bool
}

// ModalityBatch identifies one side of a percent-matching comparison:
// a batch of plates measured with one modality.
type ModalityBatch struct {
	BatchPath string
	Plates    []string

	// Modality is the measurement technology label, e.g.
	// "Compounds", "CRISPR" or "ORF".
	Modality string
}

// Analyzer runs the scoring pipelines. Each Analyzer owns its random
// source; two analyzers with the same seed produce identical null
// distributions.
type Analyzer struct {
	params Params
	rng    *rand.Rand
}

// NewAnalyzer creates an analyzer, filling zero-valued parameters with
// their defaults.
func NewAnalyzer(params Params) *Analyzer {
	if params.Suffix == "" {
		params.Suffix = profile.DefaultSuffix
	}
	if params.Sphere == "" {
		params.Sphere = SphereNone
	}
	if params.NSamples == 0 {
		params.NSamples = 10000
	}
	if params.How == "" {
		params.How = scoring.ModeRight
	}
	return &Analyzer{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}
}

// PercentReplicatingMOA scores a single JUMP-MOA plate. MOA plates
// carry at least 4 copies of each perturbation, so percent replicating
// is computed per plate: sphere against the plate's own negative
// controls, drop control and empty wells, correlate replicate groups
// keyed by perturbation name, and compare against a 4-pseudo-replicate
// null.
func (a *Analyzer) PercentReplicatingMOA(batchPath, plate string) (scoring.Score, error) {
	a.logf("Loading plate %s...", plate)
	t, err := profile.LoadPlate(batchPath, plate, a.params.Suffix)
	if err != nil {
		return scoring.Score{}, err
	}

	a.logf("Sphering plate %s against negative controls...", plate)
	t, err = sphering.SpherePlate(t)
	if err != nil {
		return scoring.Score{}, fmt.Errorf("analysis: plate %s: %w", plate, err)
	}

	t = t.RemoveNegconEmptyWells()

	return a.replicatingScore(t, profile.ColPertName, moaNullReplicates)
}

// PercentReplicatingTarget scores a group of replicate JUMP-Target
// plates. Most Target perturbations appear only once or twice per
// plate, so the replicate groups span plates: every plate is loaded,
// optionally sphered per plate, and inner-joined (feature selection is
// per plate, so only the common feature columns survive); sphering may
// instead be applied once to the concatenated batch. The null draws
// one pseudo-replicate per plate.
func (a *Analyzer) PercentReplicatingTarget(batchPath string, plates []string) (scoring.Score, error) {
	if len(plates) == 0 {
		return scoring.Score{}, fmt.Errorf("analysis: no plates given")
	}
	t, err := a.loadBatch(batchPath, plates)
	if err != nil {
		return scoring.Score{}, err
	}

	t = t.RemoveNegconEmptyWells()

	return a.replicatingScore(t, profile.ColBroadSample, len(plates))
}

// PercentMatchingTarget scores the agreement between two measurement
// modalities sharing target annotations. Each side's plates are loaded
// and sphered like a Target batch; compound batches have their target
// column renamed to the shared gene key; rows are tagged with the
// modality label. The observed distribution correlates matching
// targets across modalities, the null correlates mismatched targets,
// and both tails count toward the score.
func (a *Analyzer) PercentMatchingTarget(side1, side2 ModalityBatch) (scoring.Score, error) {
	t1, err := a.loadModality(side1)
	if err != nil {
		return scoring.Score{}, err
	}
	t2, err := a.loadModality(side2)
	if err != nil {
		return scoring.Score{}, err
	}

	a.logf("Correlating %s against %s...", side1.Modality, side2.Modality)
	observed, err := correlation.BetweenModalities(t1, t2,
		side1.Modality, side2.Modality, profile.ColGenes, profile.ColBroadSample)
	if err != nil {
		return scoring.Score{}, err
	}

	a.logf("Sampling cross-modality null (%d iterations)...", a.params.NSamples)
	null, err := correlation.NullBetweenModalities(t1, t2,
		side1.Modality, side2.Modality, profile.ColGenes, profile.ColBroadSample,
		a.params.NSamples, a.rng)
	if err != nil {
		return scoring.Score{}, err
	}

	return scoring.PercentScore(null, observed, scoring.ModeBoth)
}

// replicatingScore runs the shared tail of the percent-replicating
// pipelines: observed replicate correlations, null distribution,
// right-tail percent score.
func (a *Analyzer) replicatingScore(t *profile.Table, groupKey string, nReplicates int) (scoring.Score, error) {
	a.logf("Correlating replicates grouped by %s...", groupKey)
	observed, err := correlation.BetweenReplicates(t, groupKey)
	if err != nil {
		return scoring.Score{}, err
	}

	a.logf("Sampling null distribution (%d samples of %d wells)...", a.params.NSamples, nReplicates)
	null, err := correlation.NullDistribution(t, a.rng, a.params.NSamples, nReplicates, groupKey)
	if err != nil {
		return scoring.Score{}, err
	}

	return scoring.PercentScore(null, observed, a.params.How)
}

// loadBatch loads a plate list, sphering per plate or per batch as
// configured, and inner-joins the plates into one table.
func (a *Analyzer) loadBatch(batchPath string, plates []string) (*profile.Table, error) {
	tables := make([]*profile.Table, 0, len(plates))
	for _, plate := range plates {
		a.logf("Loading plate %s...", plate)
		t, err := profile.LoadPlate(batchPath, plate, a.params.Suffix)
		if err != nil {
			return nil, err
		}
		if a.params.Sphere == SpherePlate {
			a.logf("Sphering plate %s...", plate)
			if t, err = sphering.SpherePlate(t); err != nil {
				return nil, fmt.Errorf("analysis: plate %s: %w", plate, err)
			}
		}
		tables = append(tables, t)
	}

	t, err := profile.ConcatInner(tables...)
	if err != nil {
		return nil, err
	}
	if len(t.FeatureColumns()) == 0 {
		return nil, fmt.Errorf("analysis: no feature columns shared by all %d plates", len(plates))
	}

	if a.params.Sphere == SphereBatch {
		a.logf("Sphering concatenated batch...")
		if t, err = sphering.SpherePlate(t); err != nil {
			return nil, fmt.Errorf("analysis: batch %s: %w", batchPath, err)
		}
	}
	return t, nil
}

// loadModality prepares one side of a matching comparison.
func (a *Analyzer) loadModality(side ModalityBatch) (*profile.Table, error) {
	if len(side.Plates) == 0 {
		return nil, fmt.Errorf("analysis: no plates given for modality %s", side.Modality)
	}
	t, err := a.loadBatch(side.BatchPath, side.Plates)
	if err != nil {
		return nil, err
	}
	// Compound plates annotate the gene under Metadata_target; the
	// genetic modalities already use the shared key.
	if _, ok := t.Meta(profile.ColTarget); ok {
		if _, hasGenes := t.Meta(profile.ColGenes); !hasGenes {
			if err := t.RenameColumn(profile.ColTarget, profile.ColGenes); err != nil {
				return nil, err
			}
		}
	}
	if err := t.SetConstantMeta(profile.ColModality, side.Modality); err != nil {
		return nil, err
	}
	return t.RemoveNegconEmptyWells(), nil
}

func (a *Analyzer) logf(format string, args ...interface{}) {
	if a.params.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}
