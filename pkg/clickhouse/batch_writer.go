package clickhouse

import (
	"context"
	"sync"
	"time"

	"riskstrat/pkg/logger"
)

// FlushFunc writes one batch; it owns the slice it receives
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// BatchWriter buffers rows and flushes them when the buffer is full or the
// oldest row exceeds MaxAge. Single-row inserts are slow in ClickHouse.
type BatchWriter[T any] struct {
	flush  FlushFunc[T]
	buffer []T
	mu     sync.Mutex
	log    *logger.Logger

	maxBatchSize int
	maxAge       time.Duration

	lastFlush time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
}

// BatchWriterConfig contains configuration for BatchWriter
type BatchWriterConfig[T any] struct {
	FlushFunc    FlushFunc[T]
	TableName    string
	MaxBatchSize int           // default 500
	MaxAge       time.Duration // default 5s
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter[T any](cfg BatchWriterConfig[T]) *BatchWriter[T] {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}
	return &BatchWriter[T]{
		flush:        cfg.FlushFunc,
		buffer:       make([]T, 0, cfg.MaxBatchSize),
		maxBatchSize: cfg.MaxBatchSize,
		maxAge:       cfg.MaxAge,
		lastFlush:    time.Now(),
		stopCh:       make(chan struct{}),
		log:          logger.Get().Component("batch_writer").With("table", cfg.TableName),
	}
}

// Start begins the background flush loop
func (bw *BatchWriter[T]) Start(ctx context.Context) {
	bw.mu.Lock()
	if bw.running {
		bw.mu.Unlock()
		return
	}
	bw.running = true
	bw.mu.Unlock()

	bw.wg.Add(1)
	go bw.loop(ctx)
}

// Add buffers rows, flushing synchronously once the buffer is full
func (bw *BatchWriter[T]) Add(ctx context.Context, rows ...T) error {
	bw.mu.Lock()
	bw.buffer = append(bw.buffer, rows...)
	full := len(bw.buffer) >= bw.maxBatchSize
	bw.mu.Unlock()

	if full {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush writes all buffered rows. On failure the rows are dropped and the
// error returned; history is best effort.
func (bw *BatchWriter[T]) Flush(ctx context.Context) error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	batch := bw.buffer
	bw.buffer = make([]T, 0, bw.maxBatchSize)
	bw.lastFlush = time.Now()
	bw.mu.Unlock()

	start := time.Now()
	if err := bw.flush(ctx, batch); err != nil {
		bw.log.Errorw("Flush failed", "rows", len(batch), "error", err, "took", time.Since(start))
		return err
	}
	bw.log.Debugw("Flushed", "rows", len(batch), "took", time.Since(start))
	return nil
}

func (bw *BatchWriter[T]) loop(ctx context.Context) {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.maxAge)
	defer ticker.Stop()

	final := func() {
		if err := bw.Flush(context.Background()); err != nil {
			bw.log.Errorw("Final flush failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			final()
			return
		case <-bw.stopCh:
			final()
			return
		case <-ticker.C:
			if err := bw.Flush(ctx); err != nil {
				bw.log.Warnw("Periodic flush failed", "error", err)
			}
		}
	}
}

// Stop flushes remaining rows and waits for the loop to exit
func (bw *BatchWriter[T]) Stop(ctx context.Context) error {
	bw.mu.Lock()
	if !bw.running {
		bw.mu.Unlock()
		return bw.Flush(ctx)
	}
	bw.running = false
	bw.mu.Unlock()

	close(bw.stopCh)

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bw.log.Warn("BatchWriter stop timed out")
		return ctx.Err()
	}
}

// BufferSize returns the number of rows waiting for a flush
func (bw *BatchWriter[T]) BufferSize() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}
