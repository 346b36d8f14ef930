package workers

import (
	"context"
	"sync"
	"time"

	"riskstrat/pkg/logger"
)

// Worker is a periodic background task. Run performs one iteration and the
// scheduler calls it again every Interval.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	Interval() time.Duration
	Enabled() bool
}

// Health is a point-in-time snapshot of a worker's run history
type Health struct {
	LastRun     time.Time
	LastError   error
	Runs        int64
	Failures    int64
	AvgDuration time.Duration
	Enabled     bool
}

// BaseWorker carries the name, schedule and run history shared by workers
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu        sync.RWMutex
	enabled   bool
	lastRun   time.Time
	lastError error
	runs      int64
	failures  int64
	total     time.Duration
}

// NewBaseWorker creates a base worker
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().Component("worker").With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Log() *logger.Logger     { return w.log }

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.enabled = enabled
	w.mu.Unlock()
	w.log.Infow("Worker toggled", "enabled", enabled)
}

// Health returns the run history
func (w *BaseWorker) Health() Health {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var avg time.Duration
	if w.runs > 0 {
		avg = w.total / time.Duration(w.runs)
	}
	return Health{
		LastRun:     w.lastRun,
		LastError:   w.lastError,
		Runs:        w.runs,
		Failures:    w.failures,
		AvgDuration: avg,
		Enabled:     w.enabled,
	}
}

// Observe records the outcome of one iteration
func (w *BaseWorker) Observe(err error, took time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRun = time.Now()
	w.runs++
	w.total += took
	w.lastError = err
	if err != nil {
		w.failures++
	}
}

type observer interface {
	Observe(err error, took time.Duration)
}
