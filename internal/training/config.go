package training

import (
	"strings"

	"riskstrat/internal/features"
	"riskstrat/internal/ml"
	"riskstrat/pkg/errors"
)

// Preset names a search budget
type Preset string

const (
	PresetQuick    Preset = "quick"
	PresetFast     Preset = "fast"
	PresetAdvanced Preset = "advanced"
)

// Budget bounds the hyperparameter search
type Budget struct {
	Iterations int      // grid points sampled per family and horizon
	Folds      int      // cross-validation folds
	Families   []string // estimator families to try
}

var presets = map[Preset]Budget{
	PresetQuick: {
		Iterations: 2,
		Folds:      3,
		Families:   []string{ml.KindGradientBoosting, ml.KindRandomForest},
	},
	PresetFast: {
		Iterations: 8,
		Folds:      3,
		Families:   []string{ml.KindGradientBoosting, ml.KindRandomForest, ml.KindExtraTrees},
	},
	PresetAdvanced: {
		Iterations: 25,
		Folds:      5,
		Families:   []string{ml.KindGradientBoosting, ml.KindRandomForest, ml.KindExtraTrees, ml.KindRidge, ml.KindOLS},
	},
}

// ParsePreset validates a preset name
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[p]; !ok {
		return "", errors.Wrapf(errors.ErrInvalidInput, "unknown training preset %q", s)
	}
	return p, nil
}

// BudgetFor returns a copy of a preset's budget
func BudgetFor(p Preset) (Budget, error) {
	b, ok := presets[p]
	if !ok {
		return Budget{}, errors.Wrapf(errors.ErrInvalidInput, "unknown training preset %q", p)
	}
	b.Families = append([]string(nil), b.Families...)
	return b, nil
}

// Config controls a training run
type Config struct {
	Preset Preset
	// Budget overrides the preset when Iterations is set
	Budget       Budget
	Holdout      float64
	Seed         int64
	TieTolerance float64
	Mode         features.Mode
}

// DefaultConfig returns the quick preset with a 20% holdout and seed 42
func DefaultConfig() Config {
	return Config{
		Preset:       PresetQuick,
		Holdout:      0.2,
		Seed:         42,
		TieTolerance: 1e-3,
		Mode:         features.ModeLenient,
	}
}

// budget resolves the effective search budget
func (c Config) budget() (Budget, error) {
	b := c.Budget
	if b.Iterations <= 0 {
		preset := c.Preset
		if preset == "" {
			preset = PresetQuick
		}
		var err error
		if b, err = BudgetFor(preset); err != nil {
			return Budget{}, err
		}
	}
	if b.Folds < 2 {
		b.Folds = 2
	}
	if len(b.Families) == 0 {
		return Budget{}, errors.Wrap(errors.ErrInvalidInput, "no estimator families configured")
	}
	known := ml.Families()
	for _, name := range b.Families {
		if _, ok := known[name]; !ok {
			return Budget{}, errors.Wrapf(errors.ErrInvalidInput, "unknown estimator family %q", name)
		}
	}
	return b, nil
}

// Validate checks configuration values
func (c Config) Validate() error {
	if c.Holdout <= 0 || c.Holdout >= 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "holdout must be in (0,1), got %g", c.Holdout)
	}
	if c.TieTolerance < 0 {
		return errors.Wrap(errors.ErrInvalidInput, "tie tolerance must be non-negative")
	}
	_, err := c.budget()
	return err
}
