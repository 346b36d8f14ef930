package bootstrap

import (
	"context"
	"sync"
	"time"

	"riskstrat/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{shutdownTimeout: 60 * time.Second}
}

// Shutdown stops components in order:
// 1. HTTP server, so no new assessments arrive
// 2. workers
// 3. intake consumer, closed before waiting so ReadMessage unblocks
// 4. history writer, flushing buffered rows
// 5. Kafka producer
// 6. error tracker flush
// 7. databases last
func (l *Lifecycle) Shutdown(c *Container) {
	log := c.Log
	ctx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()

	log.Info("[1/7] Stopping HTTP server...")
	if c.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(ctx, c.Config.HTTP.ShutdownTimeout)
		if err := c.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	log.Info("[2/7] Stopping background workers...")
	if c.Background != nil && c.Background.Scheduler != nil && c.Background.Scheduler.IsRunning() {
		if err := c.Background.Scheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		}
	}

	log.Info("[3/7] Closing intake consumer...")
	if c.Adapters != nil && c.Adapters.IntakeConsumer != nil {
		if err := c.Adapters.IntakeConsumer.Close(); err != nil {
			log.Errorw("Intake consumer close failed", "error", err)
		}
	}
	l.waitForGoroutines(c.WG, 30*time.Second, log)

	log.Info("[4/7] Flushing prediction history...")
	if c.Background != nil && c.Background.HistoryWriter != nil {
		if err := c.Background.HistoryWriter.Stop(ctx); err != nil {
			log.Errorw("History writer flush failed", "error", err)
		}
	}

	log.Info("[5/7] Closing Kafka producer...")
	if c.Adapters != nil && c.Adapters.KafkaProducer != nil {
		if err := c.Adapters.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		}
	}

	log.Info("[6/7] Flushing error tracker...")
	if c.ErrorTracker != nil {
		flushCtx, flushCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.ErrorTracker.Flush(flushCtx); err != nil {
			log.Warnw("Error tracker flush failed", "error", err)
		}
		flushCancel()
	}

	log.Info("[7/7] Closing databases...")
	l.closeDatabases(c, log)

	if c.Risk != nil {
		if sc := c.Risk.Scorer(); sc != nil {
			sc.Set().Close()
		}
	}
	_ = logger.Sync()
}

func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warnw("Timed out waiting for goroutines", "timeout", timeout)
	}
}

func (l *Lifecycle) closeDatabases(c *Container, log *logger.Logger) {
	closers := map[string]interface{ Close() error }{}
	if c.PG != nil {
		closers["postgres"] = c.PG
	}
	if c.CH != nil {
		closers["clickhouse"] = c.CH
	}
	if c.Redis != nil {
		closers["redis"] = c.Redis
	}
	for name, cl := range closers {
		if err := cl.Close(); err != nil {
			log.Errorw("Failed to close database", "db", name, "error", err)
		}
	}
}
