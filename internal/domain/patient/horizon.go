package patient

import "fmt"

// Horizon is a prediction window in days
type Horizon int

const (
	Horizon30 Horizon = 30
	Horizon60 Horizon = 60
	Horizon90 Horizon = 90
)

// Horizons lists all horizons in canonical order. Horizon30 is the anchor
// horizon used for labels and attribution.
var Horizons = []Horizon{Horizon30, Horizon60, Horizon90}

// Target returns the dataset label column for the horizon (e.g. RISK_30D)
func (h Horizon) Target() string {
	return fmt.Sprintf("RISK_%dD", int(h))
}

// Valid checks if the horizon is one of the supported windows
func (h Horizon) Valid() bool {
	switch h {
	case Horizon30, Horizon60, Horizon90:
		return true
	}
	return false
}

// String returns string representation
func (h Horizon) String() string {
	return fmt.Sprintf("%dd", int(h))
}

// TargetColumns returns the label column names in horizon order
func TargetColumns() []string {
	cols := make([]string, len(Horizons))
	for i, h := range Horizons {
		cols[i] = h.Target()
	}
	return cols
}
