// Package profile provides the tabular data model for morphological
// profiles: one row per well, with columns partitioned by naming
// convention into metadata (identifying/annotation) columns and numeric
// feature columns.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// MetadataPrefix marks a column as metadata. Every other column is a
// measured feature.
const MetadataPrefix = "Metadata_"

// Reserved metadata column names used by the analysis pipelines.
const (
	// ColControlType flags control wells; NegconValue is the
	// negative-control sentinel used as the sphering reference.
	ColControlType = "Metadata_control_type"
	NegconValue    = "negcon"

	// ColBroadSample is the perturbation identifier.
	ColBroadSample = "Metadata_broad_sample"

	// ColPertName is the perturbation name used for grouping on
	// MOA source plates.
	ColPertName = "Metadata_pert_iname"

	// ColModality tags rows with the measurement modality in
	// cross-modality comparisons.
	ColModality = "Metadata_modality"

	// ColGenes is the common key shared across modalities (target
	// gene); ColTarget is its name on compound batches before the
	// rename.
	ColGenes  = "Metadata_genes"
	ColTarget = "Metadata_target"
)

// IsMetadataColumn reports whether a column name follows the metadata
// naming convention.
func IsMetadataColumn(name string) bool {
	return strings.HasPrefix(name, MetadataPrefix)
}

// Table is a row-per-sample profile table. Metadata columns hold string
// values, feature columns hold float64 measurements. Column order is
// preserved from construction so that a transformed table can be
// compared or written back column-for-column.
type Table struct {
	order []string
	meta  map[string][]string
	feats map[string][]float64
	rows  int
}

// NewTable returns an empty table. Columns are added with AddMeta and
// AddFeature; the first column added fixes the row count.
func NewTable() *Table {
	return &Table{
		meta:  make(map[string][]string),
		feats: make(map[string][]float64),
		rows:  -1,
	}
}

func (t *Table) checkLen(name string, n int) error {
	if t.rows < 0 {
		t.rows = n
		return nil
	}
	if n != t.rows {
		return fmt.Errorf("profile: column %q has %d values, table has %d rows", name, n, t.rows)
	}
	return nil
}

// AddMeta adds a metadata column. The name must carry the metadata
// prefix and the value count must match the table's row count.
func (t *Table) AddMeta(name string, values []string) error {
	if !IsMetadataColumn(name) {
		return fmt.Errorf("profile: %q is not a metadata column name", name)
	}
	if _, dup := t.meta[name]; dup {
		return fmt.Errorf("profile: duplicate column %q", name)
	}
	if err := t.checkLen(name, len(values)); err != nil {
		return err
	}
	t.order = append(t.order, name)
	t.meta[name] = values
	return nil
}

// AddFeature adds a feature column.
func (t *Table) AddFeature(name string, values []float64) error {
	if IsMetadataColumn(name) {
		return fmt.Errorf("profile: %q is a metadata column name", name)
	}
	if _, dup := t.feats[name]; dup {
		return fmt.Errorf("profile: duplicate column %q", name)
	}
	if err := t.checkLen(name, len(values)); err != nil {
		return err
	}
	t.order = append(t.order, name)
	t.feats[name] = values
	return nil
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	if t.rows < 0 {
		return 0
	}
	return t.rows
}

// Columns returns all column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// MetadataColumns returns the metadata column names in table order.
func (t *Table) MetadataColumns() []string {
	var out []string
	for _, name := range t.order {
		if IsMetadataColumn(name) {
			out = append(out, name)
		}
	}
	return out
}

// FeatureColumns returns the feature column names in table order.
func (t *Table) FeatureColumns() []string {
	var out []string
	for _, name := range t.order {
		if !IsMetadataColumn(name) {
			out = append(out, name)
		}
	}
	return out
}

// Meta returns the values of a metadata column.
func (t *Table) Meta(name string) ([]string, bool) {
	v, ok := t.meta[name]
	return v, ok
}

// Feature returns the values of a feature column.
func (t *Table) Feature(name string) ([]float64, bool) {
	v, ok := t.feats[name]
	return v, ok
}

// FeatureMatrix assembles the feature columns into a rows×features
// dense matrix in table column order. A table with zero feature columns
// yields a nil matrix.
func (t *Table) FeatureMatrix() *mat.Dense {
	cols := t.FeatureColumns()
	if len(cols) == 0 || t.NumRows() == 0 {
		return nil
	}
	m := mat.NewDense(t.NumRows(), len(cols), nil)
	for j, name := range cols {
		vals := t.feats[name]
		for i := range vals {
			m.Set(i, j, vals[i])
		}
	}
	return m
}

// WithFeatureMatrix returns a copy of the table with its feature values
// replaced by the given matrix. Metadata columns, column order and row
// count are unchanged; the matrix shape must match the table's feature
// block.
func (t *Table) WithFeatureMatrix(m mat.Matrix) (*Table, error) {
	cols := t.FeatureColumns()
	r, c := m.Dims()
	if r != t.NumRows() || c != len(cols) {
		return nil, fmt.Errorf("profile: feature matrix is %dx%d, table needs %dx%d",
			r, c, t.NumRows(), len(cols))
	}
	out := NewTable()
	for _, name := range t.order {
		if IsMetadataColumn(name) {
			vals := make([]string, t.rows)
			copy(vals, t.meta[name])
			if err := out.AddMeta(name, vals); err != nil {
				return nil, err
			}
			continue
		}
		j := indexOf(cols, name)
		vals := make([]float64, r)
		for i := 0; i < r; i++ {
			vals[i] = m.At(i, j)
		}
		if err := out.AddFeature(name, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Select returns a new table containing the given rows, in the given
// order. Row indices may repeat.
func (t *Table) Select(rows []int) *Table {
	out := NewTable()
	for _, name := range t.order {
		if IsMetadataColumn(name) {
			src := t.meta[name]
			vals := make([]string, len(rows))
			for i, r := range rows {
				vals[i] = src[r]
			}
			out.AddMeta(name, vals)
			continue
		}
		src := t.feats[name]
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = src[r]
		}
		out.AddFeature(name, vals)
	}
	if len(rows) == 0 {
		// Preserve the schema even when no row matched.
		out.rows = 0
	}
	return out
}

// FilterMeta returns the rows whose value in the named metadata column
// satisfies keep. A missing column matches no rows.
func (t *Table) FilterMeta(name string, keep func(string) bool) *Table {
	vals, ok := t.meta[name]
	if !ok {
		return t.Select(nil)
	}
	var rows []int
	for i, v := range vals {
		if keep(v) {
			rows = append(rows, i)
		}
	}
	return t.Select(rows)
}

// RemoveNegconEmptyWells drops negative-control wells and wells without
// a perturbation identifier; neither participates in scoring.
func (t *Table) RemoveNegconEmptyWells() *Table {
	ctrl, hasCtrl := t.meta[ColControlType]
	sample, hasSample := t.meta[ColBroadSample]
	var rows []int
	for i := 0; i < t.NumRows(); i++ {
		if hasCtrl && ctrl[i] == NegconValue {
			continue
		}
		if hasSample && strings.TrimSpace(sample[i]) == "" {
			continue
		}
		rows = append(rows, i)
	}
	return t.Select(rows)
}

// RenameColumn renames a column in place, keeping its position and
// classification. Renaming across the metadata/feature boundary is an
// error.
func (t *Table) RenameColumn(from, to string) error {
	if IsMetadataColumn(from) != IsMetadataColumn(to) {
		return fmt.Errorf("profile: cannot rename %q to %q across the metadata boundary", from, to)
	}
	if _, dup := t.meta[to]; dup {
		return fmt.Errorf("profile: column %q already exists", to)
	}
	if _, dup := t.feats[to]; dup {
		return fmt.Errorf("profile: column %q already exists", to)
	}
	for i, name := range t.order {
		if name != from {
			continue
		}
		t.order[i] = to
		if IsMetadataColumn(from) {
			t.meta[to] = t.meta[from]
			delete(t.meta, from)
		} else {
			t.feats[to] = t.feats[from]
			delete(t.feats, from)
		}
		return nil
	}
	return fmt.Errorf("profile: no column %q", from)
}

// SetConstantMeta sets every row of a metadata column to the same
// value, creating the column if needed.
func (t *Table) SetConstantMeta(name, value string) error {
	if !IsMetadataColumn(name) {
		return fmt.Errorf("profile: %q is not a metadata column name", name)
	}
	if _, ok := t.meta[name]; !ok {
		vals := make([]string, t.NumRows())
		for i := range vals {
			vals[i] = value
		}
		return t.AddMeta(name, vals)
	}
	vals := t.meta[name]
	for i := range vals {
		vals[i] = value
	}
	return nil
}

// UniqueMeta returns the distinct values of a metadata column in order
// of first appearance.
func (t *Table) UniqueMeta(name string) []string {
	vals, ok := t.meta[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(vals))
	var out []string
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// GroupRows groups row indices by their value in the named metadata
// column and returns the group keys sorted for deterministic iteration.
func (t *Table) GroupRows(name string) (keys []string, groups map[string][]int, err error) {
	vals, ok := t.meta[name]
	if !ok {
		return nil, nil, fmt.Errorf("profile: no metadata column %q", name)
	}
	groups = make(map[string][]int)
	for i, v := range vals {
		if _, seen := groups[v]; !seen {
			keys = append(keys, v)
		}
		groups[v] = append(groups[v], i)
	}
	sort.Strings(keys)
	return keys, groups, nil
}

// ConcatInner concatenates tables row-wise, keeping only the columns
// present in every input (an inner join on the column set). Column
// order follows the first table; a column must be consistently metadata
// or feature across inputs.
func ConcatInner(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("profile: nothing to concatenate")
	}
	common := tables[0].Columns()
	for _, t := range tables[1:] {
		have := make(map[string]bool, len(t.order))
		for _, name := range t.order {
			have[name] = true
		}
		var kept []string
		for _, name := range common {
			if have[name] {
				kept = append(kept, name)
			}
		}
		common = kept
	}

	total := 0
	for _, t := range tables {
		total += t.NumRows()
	}

	out := NewTable()
	for _, name := range common {
		if IsMetadataColumn(name) {
			vals := make([]string, 0, total)
			for _, t := range tables {
				vals = append(vals, t.meta[name]...)
			}
			if err := out.AddMeta(name, vals); err != nil {
				return nil, err
			}
			continue
		}
		vals := make([]float64, 0, total)
		for _, t := range tables {
			col, ok := t.feats[name]
			if !ok {
				return nil, fmt.Errorf("profile: column %q is metadata in one table and feature in another", name)
			}
			vals = append(vals, col...)
		}
		if err := out.AddFeature(name, vals); err != nil {
			return nil, err
		}
	}
	if len(common) == 0 {
		out.rows = 0
	}
	return out, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
