package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	chclient "riskstrat/internal/adapters/clickhouse"
	"riskstrat/internal/adapters/config"
	pgclient "riskstrat/internal/adapters/postgres"
	"riskstrat/internal/dataset"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/metrics"
	"riskstrat/internal/model"
	chrepo "riskstrat/internal/repository/clickhouse"
	pgrepo "riskstrat/internal/repository/postgres"
	"riskstrat/internal/training"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run trains and saves a model set. Exit codes: 0 success, 1 failure, 2 usage.
func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	data := fs.String("data", "", "labeled CSV with RISK_30D, RISK_60D, RISK_90D columns")
	preset := fs.String("preset", cfg.Training.Preset, "search preset: quick, fast or advanced")
	out := fs.String("out", cfg.Training.ArtifactDir, "artifact directory")
	mode := fs.String("mode", cfg.Training.Mode, "free-text handling: strict or lenient")
	seed := fs.Int64("seed", cfg.Training.Seed, "random seed")
	activate := fs.Bool("activate", true, "mark the new model active in the registry")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		return 1
	}
	defer logger.Sync()
	log := logger.Get().Component("train")
	metrics.Init()

	if *data == "" {
		fmt.Fprintln(os.Stderr, "usage: train -data path.csv [-preset quick|fast|advanced] [-out dir]")
		return 2
	}

	tcfg, err := trainingConfig(cfg.Training, *preset, *mode, *seed)
	if err != nil {
		log.Errorw("Invalid training configuration", "error", err)
		return 1
	}

	rows, err := dataset.LoadLabeledFile(*data)
	if err != nil {
		log.Errorw("Failed to load dataset", "path", *data, "error", err)
		return 1
	}
	log.Infow("Dataset loaded", "rows", len(rows), "path", *data)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trainer, err := training.NewTrainer(tcfg)
	if err != nil {
		log.Errorw("Failed to create trainer", "error", err)
		return 1
	}
	res, err := trainer.Train(ctx, rows)
	if err != nil {
		log.Errorw("Training failed", "error", err)
		return 1
	}

	store := model.NewFileStore(*out)
	path, err := store.Save(res.Set)
	if err != nil {
		log.Errorw("Failed to save model", "error", err)
		return 1
	}

	publish(ctx, cfg, res, tcfg.Preset, path, *activate, log)
	printSummary(res, path)
	return 0
}

func trainingConfig(tc config.TrainingConfig, preset, mode string, seed int64) (training.Config, error) {
	cfg := training.DefaultConfig()
	p, err := training.ParsePreset(preset)
	if err != nil {
		return cfg, err
	}
	m, err := features.ParseMode(mode)
	if err != nil {
		return cfg, err
	}
	cfg.Preset = p
	cfg.Mode = m
	cfg.Seed = seed
	cfg.Holdout = tc.Holdout
	cfg.TieTolerance = tc.TieTolerance

	if tc.Iterations > 0 {
		budget, err := training.BudgetFor(p)
		if err != nil {
			return cfg, err
		}
		budget.Iterations = tc.Iterations
		if tc.Folds > 0 {
			budget.Folds = tc.Folds
		}
		if len(tc.Families) > 0 {
			budget.Families = tc.Families
		}
		cfg.Budget = budget
	}
	return cfg, cfg.Validate()
}

// publish registers the artifact and logs the run when the stores are configured.
// Failures here never fail the run: the artifact is already on disk.
func publish(ctx context.Context, cfg *config.Config, res *training.Result, preset training.Preset, path string, activate bool, log *logger.Logger) {
	if cfg.Postgres.Enabled() {
		pg, err := pgclient.NewClient(ctx, cfg.Postgres)
		if err != nil {
			log.Warnw("Postgres unavailable, model not registered", "error", err)
		} else {
			defer pg.Close()
			meta := res.Set.Meta()
			meta.Path = path
			if err := pgrepo.Migrate(ctx, pg.DB()); err != nil {
				log.Warnw("Failed to migrate Postgres", "error", err)
			} else if err := pgrepo.NewModelRegistry(pg.DB()).Register(ctx, meta, activate); err != nil {
				log.Warnw("Failed to register model", "error", err)
			}
		}
	}

	if cfg.ClickHouse.Enabled() {
		ch, err := chclient.NewClient(ctx, cfg.ClickHouse)
		if err != nil {
			log.Warnw("ClickHouse unavailable, run not logged", "error", err)
			return
		}
		defer ch.Close()
		if err := chrepo.Migrate(ctx, ch.Conn()); err != nil {
			log.Warnw("Failed to migrate ClickHouse", "error", err)
			return
		}
		var runs training.RunLog = chrepo.NewTrainingRunRepository(ch.Conn())
		if err := runs.RecordRun(ctx, res.Record(preset, time.Now())); err != nil {
			log.Warnw("Failed to record training run", "error", err)
		}
	}
}

func printSummary(res *training.Result, path string) {
	var size string
	if st, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}

	fmt.Printf("Model %s saved to %s (%s)\n", res.Set.Version(), path, size)
	fmt.Printf("Rows: %s total, %s train, %s test, %s dropped (missing labels), %s rejected\n",
		humanize.Comma(int64(res.TotalRows)), humanize.Comma(int64(res.TrainRows)),
		humanize.Comma(int64(res.TestRows)), humanize.Comma(int64(res.DroppedRows)),
		humanize.Comma(int64(len(res.RejectedRows))))
	fmt.Printf("Champion: %s (trained in %s)\n", res.Champion, res.Duration.Round(time.Millisecond))

	fmt.Println("\nCandidates:")
	cands := append([]training.Candidate(nil), res.Candidates...)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].MeanTestR2 > cands[j].MeanTestR2 })
	for _, c := range cands {
		if c.Err != nil {
			fmt.Printf("  %-18s failed: %v\n", c.Family, c.Err)
			continue
		}
		fmt.Printf("  %-18s test R² %.4f  cv %.4f\n", c.Family, c.MeanTestR2, c.MeanCV)
	}

	fmt.Println("\nHoldout metrics:")
	for _, h := range patient.Horizons {
		sc := res.Metrics[h]
		fmt.Printf("  %-9s R² %.4f  MAE %.3f  MSE %.3f\n", h.Target(), sc.R2, sc.MAE, sc.MSE)
	}

	fmt.Printf("\nTop features (%s):\n", res.ImportanceSource)
	for i, imp := range res.Importances {
		if i == 10 {
			break
		}
		fmt.Printf("  %2d. %-22s %.4f\n", i+1, imp.Feature, imp.Value)
	}

	if res.Confusion != nil {
		fmt.Printf("\nRisk tier accuracy (30D): %.1f%%\n%s\n", res.Confusion.Accuracy()*100, res.Confusion.String())
	}
	if res.MissingLabels != nil && errors.Is(res.MissingLabels, errors.ErrMissingLabels) {
		fmt.Println("warning:", strings.TrimSpace(res.MissingLabels.Error()))
	}
}
