package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"riskstrat/internal/domain/patient"
	"riskstrat/pkg/errors"
)

// Identity columns recognized alongside the feature columns
const (
	ColumnID       = "DESYNPUF_ID"
	ColumnEmail    = "EMAIL"
	ColumnIDLegacy = "ID"
)

// currencyColumns may carry "$1,234.50" style values
var currencyColumns = map[string]bool{
	patient.FeatureOutpatientCost:  true,
	patient.FeatureEDCost:          true,
	patient.FeatureTotalClaimsCost: true,
}

// Table is a parsed CSV with a header row
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadCSV parses a CSV stream. Column names are case-sensitive.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "csv has no header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}

	t := &Table{Header: header, index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.Header[i] = name
		if _, dup := t.index[name]; dup {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "duplicate column %q", name)
		}
		t.index[name] = i
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read csv row %d", len(t.Rows)+1)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Has reports whether a column exists
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns a trimmed cell value, or "" when the row is short
func (t *Table) Cell(row int, name string) (string, bool) {
	j, ok := t.index[name]
	if !ok {
		return "", false
	}
	if j >= len(t.Rows[row]) {
		return "", true
	}
	return strings.TrimSpace(t.Rows[row][j]), true
}

// Records converts rows into raw patient records. Feature cells are kept as
// text for the preprocessor, except currency columns which are normalized.
func (t *Table) Records() []*patient.Record {
	idCol := ColumnID
	if !t.Has(idCol) {
		idCol = ColumnIDLegacy
	}
	features := patient.RawFeatures()

	out := make([]*patient.Record, len(t.Rows))
	for i := range t.Rows {
		id, _ := t.Cell(i, idCol)
		if id == "" {
			id = strconv.Itoa(i)
		}
		rec := patient.NewRecord(id)
		rec.Email, _ = t.Cell(i, ColumnEmail)
		for _, name := range features {
			raw, ok := t.Cell(i, name)
			if !ok {
				continue
			}
			if currencyColumns[name] {
				if v, ok := ParseCurrency(raw); ok {
					rec.Set(name, v)
					continue
				}
			}
			rec.Set(name, raw)
		}
		out[i] = rec
	}
	return out
}

// Labeled converts rows into labeled training records. Every horizon label
// column must be present; individual blank, non-numeric or non-finite labels
// become nil.
func (t *Table) Labeled() ([]patient.LabeledRecord, error) {
	var missing []string
	for _, col := range patient.TargetColumns() {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(errors.ErrMissingLabels, "label columns absent: %s", strings.Join(missing, ", "))
	}

	recs := t.Records()
	out := make([]patient.LabeledRecord, len(recs))
	for i, rec := range recs {
		labels := make(map[patient.Horizon]*float64, len(patient.Horizons))
		for _, h := range patient.Horizons {
			raw, _ := t.Cell(i, h.Target())
			if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
				labels[h] = &v
			} else {
				labels[h] = nil
			}
		}
		out[i] = patient.LabeledRecord{Record: rec, Labels: labels}
	}
	return out, nil
}

// ParseCurrency parses plain or "$1,234.56" style amounts
func ParseCurrency(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if neg {
		d = d.Neg()
	}
	return d.InexactFloat64(), true
}

// LoadLabeledFile reads a training CSV from disk
func LoadLabeledFile(path string) ([]patient.LabeledRecord, error) {
	t, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return t.Labeled()
}

// LoadRecordsFile reads a scoring CSV from disk
func LoadRecordsFile(path string) ([]*patient.Record, error) {
	t, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return t.Records(), nil
}

func readFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}
