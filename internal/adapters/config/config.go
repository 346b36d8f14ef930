package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"riskstrat/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Training      TrainingConfig
	Scoring       ScoringConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"riskstrat"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Storage sections are optional: a backend without a host is disabled

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"riskstrat"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"riskstrat"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) Enabled() bool {
	return c.Host != ""
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"riskstrat"`
}

func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers          []string `envconfig:"KAFKA_BROKERS"`
	GroupID          string   `envconfig:"KAFKA_GROUP_ID" default:"riskstrat"`
	IntakeTopic      string   `envconfig:"KAFKA_INTAKE_TOPIC" default:"patients.intake"`
	PredictionsTopic string   `envconfig:"KAFKA_PREDICTIONS_TOPIC" default:"patients.predictions"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// TrainingConfig drives cmd/train; flags override these values
type TrainingConfig struct {
	Preset       string   `envconfig:"TRAINING_PRESET" default:"quick"`
	Iterations   int      `envconfig:"TRAINING_ITERATIONS" default:"0"` // 0 keeps the preset budget
	Folds        int      `envconfig:"TRAINING_FOLDS" default:"0"`
	Families     []string `envconfig:"TRAINING_FAMILIES"`
	Holdout      float64  `envconfig:"TRAINING_HOLDOUT" default:"0.2"`
	Seed         int64    `envconfig:"TRAINING_SEED" default:"42"`
	TieTolerance float64  `envconfig:"TRAINING_TIE_TOLERANCE" default:"0.001"`
	Mode         string   `envconfig:"TRAINING_MODE" default:"lenient"`
	ArtifactDir  string   `envconfig:"MODEL_ARTIFACT_DIR" default:"models"`
}

type ScoringConfig struct {
	Mode            string        `envconfig:"SCORING_MODE" default:"lenient"`
	ModelPath       string        `envconfig:"SCORING_MODEL_PATH"` // empty loads the latest artifact
	ONNXLibrary     string        `envconfig:"ONNX_LIBRARY_PATH"`
	ONNXModel30D    string        `envconfig:"ONNX_MODEL_30D"`
	ONNXModel60D    string        `envconfig:"ONNX_MODEL_60D"`
	ONNXModel90D    string        `envconfig:"ONNX_MODEL_90D"`
	CacheTTL        time.Duration `envconfig:"SCORING_CACHE_TTL" default:"1h"`
	MaxRPS          float64       `envconfig:"SCORING_MAX_RPS" default:"50"`
	Burst           int           `envconfig:"SCORING_BURST" default:"10"`
	SimilarPatients int           `envconfig:"SCORING_SIMILAR_PATIENTS" default:"5"`
}

// UsesONNX reports whether externally trained models are configured
func (c ScoringConfig) UsesONNX() bool {
	return c.ONNXModel30D != "" && c.ONNXModel60D != "" && c.ONNXModel90D != ""
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	ModelReloadInterval time.Duration `envconfig:"WORKER_MODEL_RELOAD_INTERVAL" default:"5m"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
