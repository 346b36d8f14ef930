package workers

import (
	"context"
	"sync"
	"time"

	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// DefaultStopTimeout bounds how long Stop waits for in-flight iterations
const DefaultStopTimeout = 30 * time.Second

// Scheduler runs registered workers on their own tickers
type Scheduler struct {
	workers     []Worker
	stopTimeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool
}

// NewScheduler creates a scheduler. A non-positive timeout uses DefaultStopTimeout.
func NewScheduler(stopTimeout time.Duration) *Scheduler {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Scheduler{
		stopTimeout: stopTimeout,
		log:         logger.Get().Component("scheduler"),
	}
}

// RegisterWorker adds a worker. Registration after Start is ignored.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}
	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start launches every enabled worker
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, w := range s.workers {
		if !w.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", w.Name())
			continue
		}
		s.wg.Add(1)
		go s.loop(w)
	}
	s.log.Infow("Worker scheduler started", "workers", len(s.workers))
	return nil
}

// Stop cancels all workers and waits up to the stop timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.log.Info("All workers stopped")
	case <-time.After(s.stopTimeout):
		err = errors.Wrapf(errors.ErrInternal, "worker shutdown timed out after %s", s.stopTimeout)
		s.log.Warnw("Worker shutdown timed out", "timeout", s.stopTimeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return err
}

func (s *Scheduler) loop(w Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	s.execute(w)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.execute(w)
		}
	}
}

// execute runs one iteration; panics are recovered and counted as failures
func (s *Scheduler) execute(w Worker) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("worker panicked: %v", r)
			s.log.Errorw("Worker panicked", "worker", w.Name(), "panic", r)
		}
		if o, ok := w.(observer); ok {
			o.Observe(err, time.Since(start))
		}
	}()

	err = w.Run(s.ctx)
	if err != nil {
		s.log.Errorw("Worker iteration failed", "worker", w.Name(), "error", err, "duration", time.Since(start))
		return
	}
	s.log.Debugw("Worker iteration completed", "worker", w.Name(), "duration", time.Since(start))
}

// Workers returns the registered workers
func (s *Scheduler) Workers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

// IsRunning reports whether Start has been called without a matching Stop
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
