package attribution

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/ml"
	"riskstrat/internal/model"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// Direction says which way a feature pushed the score
type Direction string

const (
	Increases Direction = "increases"
	Decreases Direction = "decreases"
)

// Target is the horizon explanations are computed for
const Target = patient.Horizon30

// Contribution is one feature's signed share of a prediction
type Contribution struct {
	Feature   string    `json:"feature"`
	Value     float64   `json:"value"`
	Direction Direction `json:"direction"`
}

// Explanation decomposes a single RISK_30D prediction. When Err is set the
// explanation is unavailable and Contributions is empty.
type Explanation struct {
	Horizon       patient.Horizon `json:"horizon"`
	Bias          float64         `json:"bias"`
	Contributions []Contribution  `json:"contributions"`
	Err           error           `json:"-"`
}

// Available reports whether the explanation was computed
func (e Explanation) Available() bool {
	return e.Err == nil && len(e.Contributions) > 0
}

// Ranked returns contributions ordered by magnitude, largest first.
// Equal magnitudes keep feature order.
func (e Explanation) Ranked() []Contribution {
	out := append([]Contribution(nil), e.Contributions...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out
}

// Top returns the names of the n strongest features
func (e Explanation) Top(n int) []string {
	ranked := e.Ranked()
	if n > len(ranked) {
		n = len(ranked)
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = ranked[i].Feature
	}
	return names
}

// Describe renders the n strongest features, e.g.
// "AGE (increases risk by 2.10) | BMI (decreases risk by 0.40)"
func (e Explanation) Describe(n int) string {
	if !e.Available() {
		return "attribution unavailable"
	}
	ranked := e.Ranked()
	if n > len(ranked) {
		n = len(ranked)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		c := ranked[i]
		parts[i] = fmt.Sprintf("%s (%s risk by %.2f)", c.Feature, c.Direction, math.Abs(c.Value))
	}
	return strings.Join(parts, " | ")
}

// GlobalImportance is the mean absolute contribution per feature over a sample
type GlobalImportance struct {
	Ranked  []model.Importance `json:"ranked"`
	Samples int                `json:"samples"`
	Err     error              `json:"-"`
}

// Explainer computes per-feature attributions for a model set
type Explainer struct {
	log *logger.Logger
}

// NewExplainer creates an explainer
func NewExplainer() *Explainer {
	return &Explainer{log: logger.Get().Component("attribution")}
}

// Explain attributes the RISK_30D prediction for one vector. Failures of any
// kind, including panics inside the model, are reported through Err.
func (x *Explainer) Explain(set *model.Set, v patient.FeatureVector) (exp Explanation) {
	exp.Horizon = Target
	defer func() {
		if r := recover(); r != nil {
			exp = Explanation{Horizon: Target, Err: errors.Wrapf(errors.ErrAttributionUnavailable, "panic: %v", r)}
		}
		if exp.Err != nil {
			x.log.Debugw("Attribution unavailable", "error", exp.Err)
		}
	}()

	if set == nil {
		exp.Err = errors.Wrap(errors.ErrAttributionUnavailable, "no model set")
		return exp
	}
	bias, contrib, err := decompose(set, v)
	if err != nil {
		exp.Err = errors.Wrapf(errors.ErrAttributionUnavailable, "%v", err)
		return exp
	}

	names := set.FeatureNames()
	exp.Bias = bias
	exp.Contributions = make([]Contribution, len(names))
	for i, name := range names {
		dir := Increases
		if contrib[i] < 0 {
			dir = Decreases
		}
		exp.Contributions[i] = Contribution{Feature: name, Value: contrib[i], Direction: dir}
	}
	return exp
}

// Global averages absolute contributions over many vectors and ranks features
func (x *Explainer) Global(set *model.Set, vectors []patient.FeatureVector) GlobalImportance {
	if len(vectors) == 0 {
		return GlobalImportance{Err: errors.Wrap(errors.ErrAttributionUnavailable, "empty sample")}
	}
	var sums []float64
	for i, v := range vectors {
		exp := x.Explain(set, v)
		if exp.Err != nil {
			return GlobalImportance{Err: errors.Wrapf(exp.Err, "sample row %d", i)}
		}
		if sums == nil {
			sums = make([]float64, len(exp.Contributions))
		}
		for j, c := range exp.Contributions {
			sums[j] += math.Abs(c.Value)
		}
	}

	names := set.FeatureNames()
	ranked := make([]model.Importance, len(names))
	for j, name := range names {
		ranked[j] = model.Importance{Feature: name, Value: sums[j] / float64(len(vectors))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })
	return GlobalImportance{Ranked: ranked, Samples: len(vectors)}
}

// decompose selects the RISK_30D regressor by horizon key and asks it for an
// additive decomposition over scaled inputs
func decompose(set *model.Set, v patient.FeatureVector) (float64, []float64, error) {
	if !set.Attributable() {
		return 0, nil, errors.Newf("model set %s does not support attribution", set.Version())
	}
	scaled, err := set.Scale(v)
	if err != nil {
		return 0, nil, err
	}
	reg, ok := set.Regressor(Target)
	if !ok {
		return 0, nil, errors.Newf("no %s regressor", Target.Target())
	}
	c, ok := reg.(ml.Contributor)
	if !ok {
		return 0, nil, errors.Newf("%s regressor is not decomposable", reg.Kind())
	}
	bias, contrib := c.Contributions(scaled)
	if len(contrib) != len(scaled) {
		return 0, nil, &errors.ShapeError{Expected: len(scaled), Got: len(contrib), Position: -1}
	}
	for _, val := range contrib {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, nil, errors.New("non-finite contribution")
		}
	}
	return bias, contrib, nil
}
