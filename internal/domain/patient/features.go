package patient

import "math"

// Canonical feature names as they appear in datasets (case-sensitive)
const (
	FeatureAge                = "AGE"
	FeatureGender             = "GENDER"
	FeatureRenalDisease       = "RENAL_DISEASE"
	FeaturePartA              = "PARTA"
	FeaturePartB              = "PARTB"
	FeatureHMO                = "HMO"
	FeaturePartD              = "PARTD"
	FeatureAlzheimer          = "ALZHEIMER"
	FeatureHeartFailure       = "HEARTFAILURE"
	FeatureCancer             = "CANCER"
	FeaturePulmonary          = "PULMONARY"
	FeatureOsteoporosis       = "OSTEOPOROSIS"
	FeatureRheumatoid         = "RHEUMATOID"
	FeatureStroke             = "STROKE"
	FeatureBMI                = "BMI"
	FeatureBPSystolic         = "BP_S"
	FeatureGlucose            = "GLUCOSE"
	FeatureHbA1c              = "HbA1c"
	FeatureCholesterol        = "CHOLESTEROL"
	FeatureRxAdherence        = "RX_ADH"
	FeatureBPTrend            = "BP_trend"
	FeatureHbA1cTrend         = "HbA1c_trend"
	FeatureOutpatientCost     = "OUTPATIENT_COST"
	FeatureEDCost             = "ED_COST"
	FeatureTotalClaimsCost    = "TOTAL_CLAIMS_COST"
	FeatureComorWeightedScore = "COMOR_WEIGHTED_SCORE"
	FeatureInpatientAdm       = "IN_ADM"
	FeatureEDVisits           = "ED_VISITS"
	FeatureClaimsFlag         = "CLAIMS_FLAG"

	// Auxiliary fields: carried on Features but not part of the model vector
	FeatureOutVisits  = "OUT_VISITS"
	FeatureComorCount = "COMOR_COUNT"
)

// FeatureNames is the canonical 29-feature order consumed by every model.
// Reordering this list invalidates all persisted model sets.
var FeatureNames = []string{
	FeatureAge, FeatureGender, FeatureRenalDisease,
	FeaturePartA, FeaturePartB, FeatureHMO, FeaturePartD,
	FeatureAlzheimer, FeatureHeartFailure, FeatureCancer, FeaturePulmonary,
	FeatureOsteoporosis, FeatureRheumatoid, FeatureStroke,
	FeatureBMI, FeatureBPSystolic, FeatureGlucose, FeatureHbA1c, FeatureCholesterol,
	FeatureRxAdherence, FeatureBPTrend, FeatureHbA1cTrend,
	FeatureOutpatientCost, FeatureEDCost, FeatureTotalClaimsCost,
	FeatureComorWeightedScore, FeatureInpatientAdm, FeatureEDVisits, FeatureClaimsFlag,
}

// ChronicConditions lists the boolean condition flags scored for comorbidity
var ChronicConditions = []string{
	FeatureAlzheimer, FeatureHeartFailure, FeatureCancer, FeaturePulmonary,
	FeatureOsteoporosis, FeatureRheumatoid, FeatureStroke, FeatureRenalDisease,
}

// DerivedFeatures are computed by preprocessing and never read from raw input
var DerivedFeatures = []string{FeatureClaimsFlag, FeatureComorCount, FeatureComorWeightedScore}

// RawFeatures are the fields read from a raw record: the canonical list minus
// derived features, plus OUT_VISITS.
func RawFeatures() []string {
	raw := make([]string, 0, len(FeatureNames))
	for _, name := range FeatureNames {
		if !IsDerived(name) {
			raw = append(raw, name)
		}
	}
	return append(raw, FeatureOutVisits)
}

// IsDerived reports whether the feature is computed during preprocessing
func IsDerived(name string) bool {
	for _, d := range DerivedFeatures {
		if d == name {
			return true
		}
	}
	return false
}

// Features is the fully populated, typed feature set of one patient
type Features struct {
	// Demographics
	Age    float64 `json:"AGE"`
	Gender float64 `json:"GENDER"`

	// Insurance coverage months
	PartA float64 `json:"PARTA"`
	PartB float64 `json:"PARTB"`
	HMO   float64 `json:"HMO"`
	PartD float64 `json:"PARTD"`

	// Chronic condition flags
	Alzheimer    float64 `json:"ALZHEIMER"`
	HeartFailure float64 `json:"HEARTFAILURE"`
	Cancer       float64 `json:"CANCER"`
	Pulmonary    float64 `json:"PULMONARY"`
	Osteoporosis float64 `json:"OSTEOPOROSIS"`
	Rheumatoid   float64 `json:"RHEUMATOID"`
	Stroke       float64 `json:"STROKE"`
	RenalDisease float64 `json:"RENAL_DISEASE"`

	// Vitals and labs
	BMI         float64 `json:"BMI"`
	BPSystolic  float64 `json:"BP_S"`
	Glucose     float64 `json:"GLUCOSE"`
	HbA1c       float64 `json:"HbA1c"`
	Cholesterol float64 `json:"CHOLESTEROL"`
	RxAdherence float64 `json:"RX_ADH"`

	// Trends
	BPTrend    float64 `json:"BP_trend"`
	HbA1cTrend float64 `json:"HbA1c_trend"`

	// Costs
	OutpatientCost  float64 `json:"OUTPATIENT_COST"`
	EDCost          float64 `json:"ED_COST"`
	TotalClaimsCost float64 `json:"TOTAL_CLAIMS_COST"`

	// Utilization
	InpatientAdm float64 `json:"IN_ADM"`
	OutVisits    float64 `json:"OUT_VISITS"`
	EDVisits     float64 `json:"ED_VISITS"`

	// Derived
	ClaimsFlag         float64 `json:"CLAIMS_FLAG"`
	ComorCount         float64 `json:"COMOR_COUNT"`
	ComorWeightedScore float64 `json:"COMOR_WEIGHTED_SCORE"`
}

// fields maps every named feature to its storage slot
func (f *Features) fields() map[string]*float64 {
	return map[string]*float64{
		FeatureAge: &f.Age, FeatureGender: &f.Gender,
		FeaturePartA: &f.PartA, FeaturePartB: &f.PartB, FeatureHMO: &f.HMO, FeaturePartD: &f.PartD,
		FeatureAlzheimer: &f.Alzheimer, FeatureHeartFailure: &f.HeartFailure, FeatureCancer: &f.Cancer,
		FeaturePulmonary: &f.Pulmonary, FeatureOsteoporosis: &f.Osteoporosis, FeatureRheumatoid: &f.Rheumatoid,
		FeatureStroke: &f.Stroke, FeatureRenalDisease: &f.RenalDisease,
		FeatureBMI: &f.BMI, FeatureBPSystolic: &f.BPSystolic, FeatureGlucose: &f.Glucose,
		FeatureHbA1c: &f.HbA1c, FeatureCholesterol: &f.Cholesterol, FeatureRxAdherence: &f.RxAdherence,
		FeatureBPTrend: &f.BPTrend, FeatureHbA1cTrend: &f.HbA1cTrend,
		FeatureOutpatientCost: &f.OutpatientCost, FeatureEDCost: &f.EDCost, FeatureTotalClaimsCost: &f.TotalClaimsCost,
		FeatureInpatientAdm: &f.InpatientAdm, FeatureOutVisits: &f.OutVisits, FeatureEDVisits: &f.EDVisits,
		FeatureClaimsFlag: &f.ClaimsFlag, FeatureComorCount: &f.ComorCount, FeatureComorWeightedScore: &f.ComorWeightedScore,
	}
}

// Value returns a feature by canonical name
func (f *Features) Value(name string) (float64, bool) {
	p, ok := f.fields()[name]
	if !ok {
		return 0, false
	}
	return *p, true
}

// SetValue stores a feature by canonical name; unknown names are rejected
func (f *Features) SetValue(name string, v float64) bool {
	p, ok := f.fields()[name]
	if !ok {
		return false
	}
	*p = v
	return true
}

// Conditions returns the chronic condition flags keyed by name
func (f *Features) Conditions() map[string]float64 {
	flags := make(map[string]float64, len(ChronicConditions))
	for _, c := range ChronicConditions {
		flags[c], _ = f.Value(c)
	}
	return flags
}

// ToFeatureVector converts Features to the canonical model input.
// Order must match FeatureNames.
func (f *Features) ToFeatureVector() FeatureVector {
	values := make([]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		values[i], _ = f.Value(name)
	}
	names := make([]string, len(FeatureNames))
	copy(names, FeatureNames)
	return FeatureVector{Names: names, Values: values}
}

// FeatureVector is an ordered, named numeric vector
type FeatureVector struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Len returns the number of features
func (v FeatureVector) Len() int {
	return len(v.Values)
}

// Get returns a value by feature name
func (v FeatureVector) Get(name string) (float64, bool) {
	for i, n := range v.Names {
		if n == name && i < len(v.Values) {
			return v.Values[i], true
		}
	}
	return 0, false
}

// Finite reports whether all values are finite numbers
func (v FeatureVector) Finite() bool {
	for _, x := range v.Values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
