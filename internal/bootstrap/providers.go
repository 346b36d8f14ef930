package bootstrap

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	chclient "riskstrat/internal/adapters/clickhouse"
	"riskstrat/internal/adapters/config"
	errnoop "riskstrat/internal/adapters/errors/noop"
	"riskstrat/internal/adapters/errors/sentry"
	"riskstrat/internal/adapters/kafka"
	pgclient "riskstrat/internal/adapters/postgres"
	redisclient "riskstrat/internal/adapters/redis"
	"riskstrat/internal/api"
	"riskstrat/internal/api/health"
	"riskstrat/internal/consumers"
	"riskstrat/internal/domain/patient"
	"riskstrat/internal/features"
	"riskstrat/internal/metrics"
	"riskstrat/internal/model"
	chrepo "riskstrat/internal/repository/clickhouse"
	pgrepo "riskstrat/internal/repository/postgres"
	redisrepo "riskstrat/internal/repository/redis"
	riskservice "riskstrat/internal/services/risk"
	"riskstrat/internal/workers"
	"riskstrat/pkg/clickhouse"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// Version is stamped by the build
var Version = "dev"

const connectTimeout = 15 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger and error tracking
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	c.Log = logger.Get().Component("bootstrap")

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
	c.Log.Infow("Configuration loaded", "env", cfg.App.Env, "version", Version)
}

// ========================================
// Phase 2: Infrastructure
// ========================================

// MustInitInfrastructure connects the enabled storage backends and migrates them
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	var err error
	if c.Config.Postgres.Enabled() {
		if c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres); err != nil {
			c.Log.Fatalw("Failed to connect to Postgres", "error", err)
		}
		if err := pgrepo.Migrate(ctx, c.PG.DB()); err != nil {
			c.Log.Fatalw("Failed to migrate Postgres", "error", err)
		}
	}
	if c.Config.ClickHouse.Enabled() {
		if c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse); err != nil {
			c.Log.Fatalw("Failed to connect to ClickHouse", "error", err)
		}
		if err := chrepo.Migrate(ctx, c.CH.Conn()); err != nil {
			c.Log.Fatalw("Failed to migrate ClickHouse", "error", err)
		}
	}
	if c.Config.Redis.Enabled() {
		if c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis); err != nil {
			c.Log.Fatalw("Failed to connect to Redis", "error", err)
		}
	}

	var (
		db    *sqlx.DB
		conn  driver.Conn
		cache *goredis.Client
	)
	if c.PG != nil {
		db = c.PG.DB()
	}
	if c.CH != nil {
		conn = c.CH.Conn()
	}
	if c.Redis != nil {
		cache = c.Redis.Client()
	}
	metrics.RegisterCustomCollector(metrics.NewCustomCollector(logger.Get().Component("metrics"), db, conn, cache))
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories creates repositories over the connected backends
func (c *Container) MustInitRepositories() {
	c.Repos = &Repositories{}
	if c.PG != nil {
		c.Repos.Predictions = pgrepo.NewPredictionRepository(c.PG.DB())
		c.Repos.Registry = pgrepo.NewModelRegistry(c.PG.DB())
	}
	if c.CH != nil {
		c.Repos.History = chrepo.NewHistoryRepository(c.CH.Conn())
		c.Repos.TrainingRuns = chrepo.NewTrainingRunRepository(c.CH.Conn())
	}
	if c.Redis != nil {
		c.Repos.Cache = redisrepo.NewPredictionCache(c.Redis.Client(), c.Config.Scoring.CacheTTL)
	}
	c.Models = model.NewFileStore(c.Config.Training.ArtifactDir)
}

// ========================================
// Phase 4: Adapters
// ========================================

// MustInitAdapters creates the Kafka producer and intake consumer
func (c *Container) MustInitAdapters() {
	c.Adapters = &Adapters{}
	if !c.Config.Kafka.Enabled() {
		c.Log.Info("Kafka disabled, prediction events are not published")
		return
	}
	c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{Brokers: c.Config.Kafka.Brokers})
	c.Adapters.IntakeConsumer = kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: c.Config.Kafka.Brokers,
		GroupID: c.Config.Kafka.GroupID,
		Topic:   c.Config.Kafka.IntakeTopic,
	})
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices loads the initial model and builds the risk service.
// A missing model is not fatal: the reload worker picks up the first artifact.
func (c *Container) MustInitServices() {
	mode, err := features.ParseMode(c.Config.Scoring.Mode)
	if err != nil {
		c.Log.Fatalw("Invalid scoring mode", "error", err)
	}

	scorer, err := LoadScorer(c.Config.Scoring, c.Models, mode)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		c.Log.Warnw("No model artifact found, service starts not ready", "dir", c.Models.Dir())
	case err != nil:
		c.Log.Fatalw("Failed to load model", "error", err)
	}

	deps := riskservice.Deps{
		Tracker:         c.ErrorTracker,
		Topic:           c.Config.Kafka.PredictionsTopic,
		SimilarPatients: c.Config.Scoring.SimilarPatients,
	}
	// typed nils must not leak into the interfaces
	if c.Repos.Predictions != nil {
		deps.Predictions = c.Repos.Predictions
	}
	if c.Repos.Cache != nil {
		deps.Cache = c.Repos.Cache
	}
	if c.Adapters.KafkaProducer != nil {
		deps.Publisher = c.Adapters.KafkaProducer
	}
	if c.Repos.History != nil {
		c.Background = &Background{HistoryWriter: clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[*patient.Prediction]{
			FlushFunc: c.Repos.History.Append,
			TableName: "prediction_history",
		})}
		deps.History = c.Background.HistoryWriter
	}

	c.Risk = riskservice.NewService(scorer, deps)
}

// ========================================
// Phase 6: Background processing
// ========================================

// MustInitBackground creates the intake consumer and worker scheduler
func (c *Container) MustInitBackground() {
	if c.Background == nil {
		c.Background = &Background{}
	}

	if c.Adapters.IntakeConsumer != nil {
		c.Background.Intake = consumers.NewIntakeConsumer(
			c.Adapters.IntakeConsumer, c.Risk, c.Config.Scoring.MaxRPS, c.Config.Scoring.Burst,
		)
	}

	mode, _ := features.ParseMode(c.Config.Scoring.Mode)
	var registry model.Registry
	if c.Repos.Registry != nil {
		registry = c.Repos.Registry
	}
	var invalidator workers.CacheInvalidator
	if c.Repos.Cache != nil {
		invalidator = c.Repos.Cache
	}

	c.Background.Scheduler = workers.NewScheduler(c.Config.HTTP.ShutdownTimeout)
	// an explicitly configured model is pinned and never reloaded
	reload := c.Config.Scoring.ModelPath == "" && !c.Config.Scoring.UsesONNX()
	c.Background.Scheduler.RegisterWorker(workers.NewModelReloadWorker(
		c.Models, c.Risk, mode, registry, invalidator, c.Config.Workers.ModelReloadInterval, reload,
	))
}

// ========================================
// Phase 7: Application
// ========================================

// MustInitApplication creates health checks and the HTTP server
func (c *Container) MustInitApplication() {
	deps := map[string]health.Pinger{}
	if c.PG != nil {
		deps["postgres"] = c.PG
	}
	if c.CH != nil {
		deps["clickhouse"] = c.CH
	}
	if c.Redis != nil {
		deps["redis"] = c.Redis
	}
	c.Health = health.New(c.Config.App.Name, Version, c.Risk, deps)

	c.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:        c.Config.HTTP.Addr(),
		ServiceName: c.Config.App.Name,
		Version:     Version,
	}, c.Health, c.Risk)
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.Provider != "sentry" {
		return errnoop.New()
	}
	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, Version)
	if err != nil {
		log.Warnw("Failed to init Sentry, falling back to no-op tracker", "error", err)
		return errnoop.New()
	}
	log.Info("Sentry error tracking enabled")
	return tracker
}
