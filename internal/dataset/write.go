package dataset

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"

	"riskstrat/internal/domain/patient"
	"riskstrat/pkg/errors"
)

// ScoreColumns are appended to every scored output row
var ScoreColumns = []string{
	"RISK_30D", "RISK_60D", "RISK_90D", "RISK_LABEL", "TOP_3_FEATURES", "AI_RECOMMENDATIONS", "ERROR",
}

// ScoredRow is one output line of a batch scoring run.
// Prediction is nil when Err is set.
type ScoredRow struct {
	ID         string
	Email      string
	Prediction *patient.Prediction
	Err        error
}

// WriteScores writes scored rows as CSV with risks rounded to two decimals
func WriteScores(w io.Writer, rows []ScoredRow) error {
	cw := csv.NewWriter(w)
	header := append([]string{ColumnID, ColumnEmail}, ScoreColumns...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}

	for _, r := range rows {
		line := []string{r.ID, r.Email}
		if r.Err != nil || r.Prediction == nil {
			msg := "not scored"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			line = append(line, "", "", "", "", "", "", msg)
		} else {
			p := r.Prediction
			line = append(line,
				round(p.Risk30D),
				round(p.Risk60D),
				round(p.Risk90D),
				p.Label.String(),
				p.TopFeaturesString(),
				p.Recommendations,
				"",
			)
		}
		if err := cw.Write(line); err != nil {
			return errors.Wrapf(err, "write row %s", r.ID)
		}
	}
	cw.Flush()
	return cw.Error()
}

func round(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}
