package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"riskstrat/internal/adapters/config"
	"riskstrat/internal/bootstrap"
	"riskstrat/internal/dataset"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/model"
	"riskstrat/internal/recommend"
	"riskstrat/internal/scoring"
	"riskstrat/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	data := fs.String("data", "", "patient CSV to score")
	out := fs.String("out", "", "output CSV, stdout when empty")
	modelPath := fs.String("model", cfg.Scoring.ModelPath, "model artifact, newest in -models when empty")
	models := fs.String("models", cfg.Training.ArtifactDir, "artifact directory")
	mode := fs.String("mode", cfg.Scoring.Mode, "free-text handling: strict or lenient")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		return 1
	}
	defer logger.Sync()
	log := logger.Get().Component("score")

	if *data == "" {
		fmt.Fprintln(os.Stderr, "usage: score -data patients.csv [-out scored.csv] [-model artifact]")
		return 2
	}

	m, err := features.ParseMode(*mode)
	if err != nil {
		log.Errorw("Invalid mode", "error", err)
		return 1
	}
	scfg := cfg.Scoring
	scfg.ModelPath = *modelPath
	scorer, err := bootstrap.LoadScorer(scfg, model.NewFileStore(*models), m)
	if err != nil {
		log.Errorw("Failed to load model", "error", err)
		return 1
	}
	defer scorer.Set().Close()

	recs, err := dataset.LoadRecordsFile(*data)
	if err != nil {
		log.Errorw("Failed to load patients", "path", *data, "error", err)
		return 1
	}

	rows, failed := score(scorer, recs)
	for _, r := range rows {
		if r.Err != nil {
			log.Warnw("Row not scored", "id", r.ID, "error", r.Err)
		}
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Errorw("Failed to create output", "path", *out, "error", err)
			return 1
		}
		defer f.Close()
		w = f
	}
	if err := dataset.WriteScores(w, rows); err != nil {
		log.Errorw("Failed to write scores", "error", err)
		return 1
	}

	log.Infow("Scoring complete",
		"model_version", scorer.Set().Version(),
		"scored", humanize.Comma(int64(len(rows)-failed)),
		"failed", humanize.Comma(int64(failed)),
	)
	return 0
}

// score runs the table through the scorer and attaches recommendations
func score(scorer *scoring.Scorer, recs []*patient.Record) ([]dataset.ScoredRow, int) {
	items := scorer.ScoreRecords(recs)
	rows := make([]dataset.ScoredRow, len(items))
	failed := 0
	for i, item := range items {
		row := dataset.ScoredRow{ID: item.ID, Prediction: item.Prediction, Err: item.Err}
		if recs[i] != nil {
			row.Email = recs[i].Email
		}
		if item.Err != nil {
			failed++
		} else {
			p := item.Prediction
			p.Recommendations = recommend.Generate(item.Features, p.TopFeatures, p.Label)
		}
		rows[i] = row
	}
	return rows, failed
}
