package bootstrap

import (
	"context"
	"sync"

	chclient "riskstrat/internal/adapters/clickhouse"
	"riskstrat/internal/adapters/config"
	"riskstrat/internal/adapters/kafka"
	pgclient "riskstrat/internal/adapters/postgres"
	redisclient "riskstrat/internal/adapters/redis"
	"riskstrat/internal/api"
	"riskstrat/internal/api/health"
	"riskstrat/internal/consumers"
	"riskstrat/internal/domain/patient"
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

// Container holds the service's dependencies in initialization order.
// Storage and messaging are optional; a disabled backend leaves its fields nil.
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos      *Repositories
	Adapters   *Adapters
	Models     *model.FileStore
	Risk       *riskservice.Service
	Background *Background

	HTTPServer *api.Server
	Health     *health.Handler

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups storage adapters for the patient domain
type Repositories struct {
	Predictions  *pgrepo.PredictionRepository
	Registry     *pgrepo.ModelRegistry
	History      *chrepo.HistoryRepository
	TrainingRuns *chrepo.TrainingRunRepository
	Cache        *redisrepo.PredictionCache
}

// Adapters groups messaging adapters
type Adapters struct {
	KafkaProducer  *kafka.Producer
	IntakeConsumer *kafka.Consumer
}

// Background groups long-running components
type Background struct {
	HistoryWriter *clickhouse.BatchWriter[*patient.Prediction]
	Intake        *consumers.IntakeConsumer
	Scheduler     *workers.Scheduler
}

// NewContainer creates an empty container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())
	return &Container{
		Lifecycle: NewLifecycle(),
		WG:        &sync.WaitGroup{},
		Context:   ctx,
		Cancel:    cancel,
	}
}

// MustInit runs every initialization phase, panicking on fatal errors
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start launches background processing and the HTTP server
func (c *Container) Start() error {
	if c.Background.HistoryWriter != nil {
		c.Background.HistoryWriter.Start(c.Context)
	}

	if err := c.Background.Scheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start worker scheduler")
	}

	if c.Background.Intake != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := c.Background.Intake.Start(c.Context); err != nil {
				c.Log.Errorw("Intake consumer stopped", "error", err)
			}
		}()
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.HTTPServer.Start(); err != nil {
			c.Log.Errorw("HTTP server failed", "error", err)
			c.Cancel()
		}
	}()

	c.Log.Infow("Service started",
		"model_version", c.Risk.ModelVersion(),
		"postgres", c.PG != nil,
		"clickhouse", c.CH != nil,
		"redis", c.Redis != nil,
		"kafka", c.Adapters.KafkaProducer != nil,
	)
	return nil
}

// Shutdown stops every component in dependency order
func (c *Container) Shutdown() {
	c.Cancel()
	c.Lifecycle.Shutdown(c)
}
