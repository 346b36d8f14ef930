package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"riskstrat/pkg/logger"
)

// CustomCollector collects gauges straight from the storage backends.
// Any backend may be nil when it is not configured.
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	// Descriptors
	predictionsByLabel *prometheus.Desc
	modelSets          *prometheus.Desc
	historyRows        *prometheus.Desc
	cachedPredictions  *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		predictionsByLabel: prometheus.NewDesc(
			"riskstrat_stored_predictions_24h",
			"Predictions stored in the last 24h by risk label",
			[]string{"label"}, nil,
		),
		modelSets: prometheus.NewDesc(
			"riskstrat_model_sets",
			"Registered model sets",
			nil, nil,
		),
		historyRows: prometheus.NewDesc(
			"riskstrat_history_rows_24h",
			"Prediction history rows appended in the last 24h",
			nil, nil,
		),
		cachedPredictions: prometheus.NewDesc(
			"riskstrat_cached_predictions",
			"Keys in the prediction cache",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.predictionsByLabel
	ch <- c.modelSets
	ch <- c.historyRows
	ch <- c.cachedPredictions
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectPredictionStats(ctx, ch)
		c.collectModelSets(ctx, ch)
	}
	if c.clickhouse != nil {
		c.collectHistoryRows(ctx, ch)
	}
	if c.redis != nil {
		c.collectCacheSize(ctx, ch)
	}
}

func (c *CustomCollector) collectPredictionStats(ctx context.Context, ch chan<- prometheus.Metric) {
	type labelStat struct {
		Label string `db:"risk_label"`
		Count int    `db:"count"`
	}

	var stats []labelStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT risk_label, COUNT(*) as count
		FROM predictions
		WHERE created_at > NOW() - INTERVAL '24 hours'
		GROUP BY risk_label
	`)
	if err != nil {
		c.log.Errorw("Failed to collect prediction stats", "error", err)
		return
	}

	for _, stat := range stats {
		ch <- prometheus.MustNewConstMetric(
			c.predictionsByLabel,
			prometheus.GaugeValue,
			float64(stat.Count),
			stat.Label,
		)
	}
}

func (c *CustomCollector) collectModelSets(ctx context.Context, ch chan<- prometheus.Metric) {
	var count int
	if err := c.postgres.GetContext(ctx, &count, "SELECT COUNT(*) FROM model_sets"); err != nil {
		c.log.Errorw("Failed to collect model set count", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.modelSets, prometheus.GaugeValue, float64(count))
}

func (c *CustomCollector) collectHistoryRows(ctx context.Context, ch chan<- prometheus.Metric) {
	var count uint64
	row := c.clickhouse.QueryRow(ctx, `
		SELECT count()
		FROM prediction_history
		WHERE created_at > now() - INTERVAL 24 HOUR
	`)
	if err := row.Scan(&count); err != nil {
		c.log.Errorw("Failed to collect history rows", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.historyRows, prometheus.GaugeValue, float64(count))
}

func (c *CustomCollector) collectCacheSize(ctx context.Context, ch chan<- prometheus.Metric) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, "prediction:*", 500).Result()
		if err != nil {
			c.log.Errorw("Failed to scan prediction cache", "error", err)
			return
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	ch <- prometheus.MustNewConstMetric(c.cachedPredictions, prometheus.GaugeValue, float64(total))
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
