package profile

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSuffix selects the normalized, feature-selected,
// negative-control-excluded preprocessing variant of a plate file.
const DefaultSuffix = "_normalized_feature_select_negcon.csv.gz"

// ReadCSV parses a profile table from CSV. The first record is the
// header; columns are classified by the metadata naming convention.
// Feature cells that are empty or unparseable load as NaN.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("profile: reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("profile: csv has no header row")
	}
	header := records[0]
	body := records[1:]

	t := NewTable()
	for j, name := range header {
		if IsMetadataColumn(name) {
			vals := make([]string, len(body))
			for i, rec := range body {
				vals[i] = rec[j]
			}
			if err := t.AddMeta(name, vals); err != nil {
				return nil, err
			}
			continue
		}
		vals := make([]float64, len(body))
		for i, rec := range body {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				v = math.NaN()
			}
			vals[i] = v
		}
		if err := t.AddFeature(name, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV writes the table as CSV in column order. NaN feature values
// are written as empty cells so a round trip preserves them.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("profile: writing csv header: %w", err)
	}
	rec := make([]string, len(t.order))
	for i := 0; i < t.NumRows(); i++ {
		for j, name := range t.order {
			if IsMetadataColumn(name) {
				rec[j] = t.meta[name][i]
				continue
			}
			v := t.feats[name][i]
			if math.IsNaN(v) {
				rec[j] = ""
			} else {
				rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("profile: writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadPlate reads the profile table for one plate from
// batchPath/plate/plate+suffix. Files ending in .gz are decompressed
// transparently.
func LoadPlate(batchPath, plate, suffix string) (*Table, error) {
	path := filepath.Join(batchPath, plate, plate+suffix)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("profile: opening plate %s: %w", plate, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("profile: decompressing plate %s: %w", plate, err)
		}
		defer gz.Close()
		r = gz
	}

	t, err := ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("profile: plate %s: %w", plate, err)
	}
	return t, nil
}
