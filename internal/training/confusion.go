package training

import (
	"fmt"
	"strings"

	"riskstrat/internal/domain/patient"
)

// ConfusionMatrix counts actual vs predicted risk tiers.
// Counts[actual][predicted] indexes patient.Labels.
type ConfusionMatrix struct {
	Labels []patient.RiskLabel `json:"labels"`
	Counts [][]int             `json:"counts"`
}

// NewConfusionMatrix tiers actual and predicted scores and counts agreement
func NewConfusionMatrix(actual, predicted []float64) *ConfusionMatrix {
	n := len(patient.Labels)
	cm := &ConfusionMatrix{Labels: append([]patient.RiskLabel(nil), patient.Labels...), Counts: make([][]int, n)}
	for i := range cm.Counts {
		cm.Counts[i] = make([]int, n)
	}
	for i := range actual {
		a := patient.LabelFor(actual[i]).Rank()
		p := patient.LabelFor(predicted[i]).Rank()
		cm.Counts[a][p]++
	}
	return cm
}

// Total returns the number of counted rows
func (cm *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range cm.Counts {
		for _, c := range row {
			total += c
		}
	}
	return total
}

// Accuracy is the share of rows whose predicted tier matches the actual tier
func (cm *ConfusionMatrix) Accuracy() float64 {
	total := cm.Total()
	if total == 0 {
		return 0
	}
	hits := 0
	for i := range cm.Counts {
		hits += cm.Counts[i][i]
	}
	return float64(hits) / float64(total)
}

// String renders the matrix as an aligned table, rows are actual tiers
func (cm *ConfusionMatrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s", "")
	for _, l := range cm.Labels {
		fmt.Fprintf(&b, "%10s", l)
	}
	b.WriteString("\n")
	for i, l := range cm.Labels {
		fmt.Fprintf(&b, "%-10s", l)
		for _, c := range cm.Counts[i] {
			fmt.Fprintf(&b, "%10d", c)
		}
		b.WriteString("\n")
	}
	return b.String()
}
