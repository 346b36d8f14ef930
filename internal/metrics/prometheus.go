package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scoring metrics
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstrat_predictions_total",
			Help: "Total number of scored patients",
		},
		[]string{"label", "status"}, // status: success|error
	)

	ScoringLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskstrat_scoring_latency_seconds",
			Help:    "Single-patient scoring latency in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		},
		[]string{"model_version"},
	)

	AttributionUnavailable = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "riskstrat_attribution_unavailable_total",
			Help: "Predictions that fell back to the default top features",
		},
	)

	PreprocessFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstrat_preprocess_failures_total",
			Help: "Records rejected by the feature preprocessor",
		},
		[]string{"reason"}, // reason: validation|other
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstrat_prediction_cache_lookups_total",
			Help: "Prediction cache lookups",
		},
		[]string{"result"}, // result: hit|miss|error
	)

	// Training metrics
	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstrat_training_runs_total",
			Help: "Total number of training runs",
		},
		[]string{"preset", "status"},
	)

	TrainingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskstrat_training_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"preset"},
	)

	CandidateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstrat_training_candidates_total",
			Help: "Estimator family outcomes during training",
		},
		[]string{"family", "status"}, // status: fitted|failed
	)

	ChampionR2 = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskstrat_champion_r2",
			Help: "Held-out R² of the current champion per horizon",
		},
		[]string{"horizon"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstrat_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskstrat_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"database", "operation"},
	)

	// Messaging metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskstrat_kafka_messages_total",
			Help: "Total Kafka messages processed",
		},
		[]string{"topic", "status"}, // status: success|failed
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(register)
}

func register() {
	// Scoring metrics
	prometheus.MustRegister(Predictions)
	prometheus.MustRegister(ScoringLatency)
	prometheus.MustRegister(AttributionUnavailable)
	prometheus.MustRegister(PreprocessFailures)
	prometheus.MustRegister(CacheLookups)

	// Training metrics
	prometheus.MustRegister(TrainingRuns)
	prometheus.MustRegister(TrainingDuration)
	prometheus.MustRegister(CandidateOutcomes)
	prometheus.MustRegister(ChampionR2)

	// Database metrics
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	// Messaging metrics
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordPrediction records one scoring call
func RecordPrediction(modelVersion, label string, latency time.Duration, attributed bool, err error) {
	Predictions.WithLabelValues(label, status(err)).Inc()
	if err != nil {
		return
	}
	ScoringLatency.WithLabelValues(modelVersion).Observe(latency.Seconds())
	if !attributed {
		AttributionUnavailable.Inc()
	}
}

// RecordPreprocessFailure counts a rejected record
func RecordPreprocessFailure(validation bool) {
	reason := "other"
	if validation {
		reason = "validation"
	}
	PreprocessFailures.WithLabelValues(reason).Inc()
}

// RecordCacheLookup records a prediction cache lookup
func RecordCacheLookup(hit bool, err error) {
	switch {
	case err != nil:
		CacheLookups.WithLabelValues("error").Inc()
	case hit:
		CacheLookups.WithLabelValues("hit").Inc()
	default:
		CacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordTrainingRun records a finished training run
func RecordTrainingRun(preset string, duration time.Duration, err error) {
	TrainingRuns.WithLabelValues(preset, status(err)).Inc()
	TrainingDuration.WithLabelValues(preset).Observe(duration.Seconds())
}

// RecordCandidate records whether an estimator family fitted
func RecordCandidate(family string, err error) {
	outcome := "fitted"
	if err != nil {
		outcome = "failed"
	}
	CandidateOutcomes.WithLabelValues(family, outcome).Inc()
}

// RecordChampion publishes the champion's held-out R² for a horizon
func RecordChampion(horizon string, r2 float64) {
	ChampionR2.WithLabelValues(horizon).Set(r2)
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(database, operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a consumed or published message
func RecordKafkaMessage(topic string, err error) {
	s := "success"
	if err != nil {
		s = "failed"
	}
	KafkaMessages.WithLabelValues(topic, s).Inc()
}
