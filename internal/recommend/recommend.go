package recommend

import (
	"strings"

	"riskstrat/internal/domain/patient"
)

const (
	// MaxItems caps how many recommendations are returned
	MaxItems = 3
	// Separator joins recommendations into one line
	Separator = " | "
	// Fallback is returned when no rule applies
	Fallback = "Continue preventive care routine"
)

// Thresholds for vitals-driven rules
const (
	GeriatricAge        = 75
	WellnessAge         = 65
	DiabeticGlucose     = 126
	HypertensiveSystole = 140
	ObeseBMI            = 30
	LowAdherence        = 0.5
)

type rule struct {
	text  string
	match func(f *patient.Features, factors map[string]bool) bool
}

var rules = []rule{
	{"Schedule comprehensive geriatric assessment", func(f *patient.Features, _ map[string]bool) bool {
		return f.Age >= GeriatricAge
	}},
	{"Annual wellness visit recommended", func(f *patient.Features, _ map[string]bool) bool {
		return f.Age >= WellnessAge && f.Age < GeriatricAge
	}},
	{"Cardiology consultation for heart failure management", func(f *patient.Features, _ map[string]bool) bool {
		return f.HeartFailure > 0
	}},
	{"Neurology follow-up for stroke history", func(f *patient.Features, _ map[string]bool) bool {
		return f.Stroke > 0
	}},
	{"Cognitive assessment and caregiver support planning", func(f *patient.Features, _ map[string]bool) bool {
		return f.Alzheimer > 0
	}},
	{"Oncology care coordination", func(f *patient.Features, _ map[string]bool) bool {
		return f.Cancer > 0
	}},
	{"Nephrology referral for kidney function monitoring", func(f *patient.Features, _ map[string]bool) bool {
		return f.RenalDisease > 0
	}},
	{"Endocrinology consultation for diabetes management", func(f *patient.Features, factors map[string]bool) bool {
		return f.Glucose >= DiabeticGlucose || factors[patient.FeatureGlucose]
	}},
	{"Blood pressure management and home monitoring", func(f *patient.Features, factors map[string]bool) bool {
		return f.BPSystolic >= HypertensiveSystole || factors[patient.FeatureBPSystolic]
	}},
	{"Nutrition consultation for weight management", func(f *patient.Features, factors map[string]bool) bool {
		return f.BMI >= ObeseBMI || factors[patient.FeatureBMI]
	}},
	{"Medication adherence review with pharmacist", func(f *patient.Features, factors map[string]bool) bool {
		return f.RxAdherence < LowAdherence || factors[patient.FeatureRxAdherence]
	}},
}

// labelItems are appended after the clinical rules
func labelItems(label patient.RiskLabel) []string {
	switch label {
	case patient.LabelVeryHigh, patient.LabelHigh:
		return []string{"Immediate care coordination recommended", "Enhanced monitoring and follow-up scheduling"}
	case patient.LabelModerate:
		return []string{"Regular monitoring recommended"}
	}
	return []string{Fallback}
}

// Items returns up to MaxItems recommendations in rule order.
// riskFactors are feature names, typically the prediction's top features.
func Items(f *patient.Features, riskFactors []string, label patient.RiskLabel) []string {
	if f == nil {
		f = &patient.Features{RxAdherence: 1}
	}
	factors := make(map[string]bool, len(riskFactors))
	for _, name := range riskFactors {
		factors[strings.TrimSpace(name)] = true
	}

	items := make([]string, 0, MaxItems)
	for _, r := range rules {
		if len(items) == MaxItems {
			return items
		}
		if r.match(f, factors) {
			items = append(items, r.text)
		}
	}
	for _, text := range labelItems(label) {
		if len(items) == MaxItems {
			break
		}
		items = append(items, text)
	}
	if len(items) == 0 {
		return []string{Fallback}
	}
	return items
}

// Generate renders recommendations as a single " | " separated line
func Generate(f *patient.Features, riskFactors []string, label patient.RiskLabel) string {
	return strings.Join(Items(f, riskFactors, label), Separator)
}
