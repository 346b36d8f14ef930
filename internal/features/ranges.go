package features

import (
	"fmt"

	"riskstrat/internal/domain/patient"
	"riskstrat/pkg/errors"
)

// valueRange is the accepted domain of a bounded raw field
type valueRange struct {
	min, max float64
	binary   bool
}

var fieldRanges = func() map[string]valueRange {
	r := map[string]valueRange{
		patient.FeatureRxAdherence: {min: 0, max: 1},
		patient.FeaturePartA:       {min: 0, max: 12},
		patient.FeaturePartB:       {min: 0, max: 12},
		patient.FeaturePartD:       {min: 0, max: 12},
		patient.FeatureHMO:         {min: 0, max: 12},
	}
	for _, name := range patient.ChronicConditions {
		r[name] = valueRange{min: 0, max: 1, binary: true}
	}
	return r
}()

// checkRange validates a parsed value against its field domain. Strict mode
// rejects out-of-domain values; lenient mode binarizes flags and clamps the rest.
func (p *Preprocessor) checkRange(name string, v float64) (float64, error) {
	rng, ok := fieldRanges[name]
	if !ok {
		return v, nil
	}
	if rng.binary {
		if v == 0 || v == 1 {
			return v, nil
		}
		if p.mode == ModeStrict {
			return 0, errors.NewValidationError(name, "condition flag must be 0 or 1", v)
		}
		return binarize(v), nil
	}
	if v >= rng.min && v <= rng.max {
		return v, nil
	}
	if p.mode == ModeStrict {
		return 0, errors.NewValidationError(name, fmt.Sprintf("outside [%g, %g]", rng.min, rng.max), v)
	}
	return clamp(v, rng.min, rng.max), nil
}

// binarize maps any positive value to 1 and everything else to 0
func binarize(v float64) float64 {
	if v > 0 {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
