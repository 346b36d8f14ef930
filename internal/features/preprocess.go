package features

import (
	"fmt"
	"sort"
	"strings"

	"riskstrat/internal/domain/patient"
	"riskstrat/pkg/errors"
)

// Mode selects how non-numeric free text in a numeric field is handled
type Mode string

const (
	// ModeStrict rejects the record with a validation error
	ModeStrict Mode = "strict"
	// ModeLenient treats the value as a placeholder and imputes it
	ModeLenient Mode = "lenient"
)

// ParseMode validates a configured mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStrict:
		return ModeStrict, nil
	case ModeLenient:
		return ModeLenient, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidInput, "unknown preprocessing mode %q", s)
}

// Defaults holds the value used for a raw field that is absent from a record.
// Fields not listed default to zero.
type Defaults map[string]float64

// Get returns the default for a field
func (d Defaults) Get(name string) float64 {
	return d[name]
}

// TrainingDefaults substitutes zero for every absent field
var TrainingDefaults = Defaults{}

// InferenceDefaults keeps a new patient with missing vitals from looking like
// a zero-health outlier
var InferenceDefaults = Defaults{
	patient.FeatureBMI:         25.0,
	patient.FeatureBPSystolic:  120.0,
	patient.FeatureGlucose:     100.0,
	patient.FeatureHbA1c:       5.5,
	patient.FeatureCholesterol: 200.0,
	patient.FeatureRxAdherence: 0.8,
	patient.FeaturePartA:       12,
	patient.FeaturePartB:       12,
	patient.FeaturePartD:       12,
}

// Preprocessor turns raw patient records into complete feature sets
type Preprocessor struct {
	mode     Mode
	defaults Defaults
}

// NewPreprocessor creates a preprocessor. A nil defaults table means TrainingDefaults.
func NewPreprocessor(mode Mode, defaults Defaults) *Preprocessor {
	if mode == "" {
		mode = ModeLenient
	}
	if defaults == nil {
		defaults = TrainingDefaults
	}
	return &Preprocessor{mode: mode, defaults: defaults}
}

// Mode returns the configured validation mode
func (p *Preprocessor) Mode() Mode {
	return p.mode
}

// Preprocess builds the feature set of a single record.
// Absent fields take the default table (or a trend derived from history),
// placeholders become 0, and free text or out-of-domain values fail in strict
// mode. Lenient mode clamps bounded fields and binarizes condition flags.
func (p *Preprocessor) Preprocess(rec *patient.Record) (*patient.Features, error) {
	if rec == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nil record")
	}

	f := &patient.Features{}
	for _, name := range patient.RawFeatures() {
		raw, present := rec.Get(name)
		if !present {
			f.SetValue(name, p.absentValue(rec, name))
			continue
		}

		v, kind := coerce(raw)
		switch kind {
		case kindInvalid:
			if p.mode == ModeStrict {
				return nil, errors.NewValidationError(name, "not coercible to a number", raw)
			}
			v = 0
		case kindMissing:
			v = 0
		default:
			var err error
			if v, err = p.checkRange(name, v); err != nil {
				return nil, err
			}
		}
		f.SetValue(name, v)
	}

	derive(f)
	return f, nil
}

func (p *Preprocessor) absentValue(rec *patient.Record, name string) float64 {
	if v, ok := trendFromHistory(rec, name); ok {
		return v
	}
	return p.defaults.Get(name)
}

// Failure records a batch row that could not be preprocessed
type Failure struct {
	Row int
	ID  string
	Err error
}

// BatchResult holds preprocessed rows and the rows that were rejected.
// Rows[i] is the source index of Features[i].
type BatchResult struct {
	Features []*patient.Features
	Rows     []int
	Failures []Failure
	// Imputed counts cells filled with the column median, per feature
	Imputed map[string]int
}

// Vectors returns the canonical feature vectors of all accepted rows
func (b *BatchResult) Vectors() []patient.FeatureVector {
	out := make([]patient.FeatureVector, len(b.Features))
	for i, f := range b.Features {
		out[i] = f.ToFeatureVector()
	}
	return out
}

type cell struct {
	value float64
	kind  valueKind
}

// PreprocessBatch builds feature sets for a table of records. Cells that are
// absent or hold placeholders are imputed with the column median over parsed
// values; a column with no parsed values falls back to history trends or the
// default table. In strict mode a row with free text or an out-of-domain value
// is reported in Failures and the rest of the batch continues.
func (p *Preprocessor) PreprocessBatch(recs []*patient.Record) *BatchResult {
	names := patient.RawFeatures()
	result := &BatchResult{Imputed: make(map[string]int)}

	cells := make([][]cell, len(recs))
	accepted := make([]bool, len(recs))

	for i, rec := range recs {
		if rec == nil {
			result.Failures = append(result.Failures, Failure{Row: i, Err: errors.Wrap(errors.ErrInvalidInput, "nil record")})
			continue
		}
		row := make([]cell, len(names))
		ok := true
		for j, name := range names {
			raw, present := rec.Get(name)
			if !present {
				row[j] = cell{kind: kindMissing}
				continue
			}
			v, kind := coerce(raw)
			if kind == kindInvalid {
				if p.mode == ModeStrict {
					result.Failures = append(result.Failures, Failure{
						Row: i,
						ID:  rec.ID,
						Err: &errors.ValidationError{Field: name, Message: "not coercible to a number", Value: raw, Row: i},
					})
					ok = false
					break
				}
				kind = kindMissing
			}
			if kind == kindNumber {
				var err error
				if v, err = p.checkRange(name, v); err != nil {
					if ve, isVE := err.(*errors.ValidationError); isVE {
						ve.Row = i
					}
					result.Failures = append(result.Failures, Failure{Row: i, ID: rec.ID, Err: err})
					ok = false
					break
				}
			}
			row[j] = cell{value: v, kind: kind}
		}
		if ok {
			cells[i] = row
			accepted[i] = true
		}
	}

	medians := make([]float64, len(names))
	hasMedian := make([]bool, len(names))
	for j := range names {
		col := make([]float64, 0, len(recs))
		for i := range recs {
			if accepted[i] && cells[i][j].kind == kindNumber {
				col = append(col, cells[i][j].value)
			}
		}
		if len(col) > 0 {
			medians[j] = median(col)
			hasMedian[j] = true
		}
	}

	for i, rec := range recs {
		if !accepted[i] {
			continue
		}
		f := &patient.Features{}
		for j, name := range names {
			c := cells[i][j]
			switch {
			case c.kind == kindNumber:
				f.SetValue(name, c.value)
			case hasMedian[j]:
				f.SetValue(name, medians[j])
				result.Imputed[name]++
			default:
				f.SetValue(name, p.absentValue(rec, name))
			}
		}
		derive(f)
		result.Features = append(result.Features, f)
		result.Rows = append(result.Rows, i)
	}

	return result
}

// derive computes CLAIMS_FLAG and the comorbidity features in place
func derive(f *patient.Features) {
	f.ClaimsFlag = 0
	if f.TotalClaimsCost > 0 {
		f.ClaimsFlag = 1
	}
	count, weighted := ScoreComorbidity(f.Conditions())
	f.ComorCount = float64(count)
	f.ComorWeightedScore = weighted
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Describe summarizes a batch result for logs
func (b *BatchResult) Describe() string {
	return fmt.Sprintf("%d accepted, %d rejected, %d columns imputed", len(b.Features), len(b.Failures), len(b.Imputed))
}
