package consumers

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"riskstrat/internal/domain/patient"
	riskservice "riskstrat/internal/services/risk"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
	"riskstrat/pkg/reconnect"
)

// MessageReader is the read side of a Kafka consumer
type MessageReader interface {
	ReadMessageWithShutdownCheck(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Assessor scores one intake record
type Assessor interface {
	Assess(ctx context.Context, rec *patient.Record) (*riskservice.Assessment, error)
}

// IntakeStats counts processed intake messages
type IntakeStats struct {
	Received uint64
	Scored   uint64
	Invalid  uint64
	Failed   uint64
}

// IntakeConsumer scores raw patient records arriving on the intake topic
type IntakeConsumer struct {
	reader   MessageReader
	assessor Assessor
	limiter  *rate.Limiter
	backoff  *reconnect.Backoff
	timeout  time.Duration
	log      *logger.Logger

	received, scored, invalid, failed atomic.Uint64
}

// NewIntakeConsumer creates the consumer. maxRPS <= 0 disables throttling.
func NewIntakeConsumer(reader MessageReader, assessor Assessor, maxRPS float64, burst int) *IntakeConsumer {
	limit := rate.Inf
	if maxRPS > 0 {
		limit = rate.Limit(maxRPS)
	}
	if burst < 1 {
		burst = 1
	}
	return &IntakeConsumer{
		reader:   reader,
		assessor: assessor,
		limiter:  rate.NewLimiter(limit, burst),
		backoff:  reconnect.NewBackoff(reconnect.Config{}),
		timeout:  10 * time.Second,
		log:      logger.Get().Component("intake_consumer"),
	}
}

// Start consumes until ctx is cancelled
func (c *IntakeConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting intake consumer")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Errorw("Failed to close intake reader", "error", err)
		}
		s := c.Stats()
		c.log.Infow("Intake consumer stopped", "received", s.Received, "scored", s.Scored, "invalid", s.Invalid, "failed", s.Failed)
	}()

	for {
		msg, err := c.reader.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warnw("Failed to read intake message", "error", err, "failures", c.backoff.Failures()+1)
			if c.backoff.Wait(ctx) != nil {
				return nil
			}
			continue
		}
		c.backoff.Success()

		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}

		// finish the current message even if shutdown starts mid-way
		processCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		if err := c.handle(processCtx, msg); err != nil {
			c.log.Warnw("Failed to handle intake message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
		cancel()

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *IntakeConsumer) handle(ctx context.Context, msg kafkago.Message) error {
	c.received.Add(1)

	var rec patient.Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		c.invalid.Add(1)
		return errors.Wrap(errors.ErrInvalidInput, "decode intake record")
	}
	if rec.ID == "" {
		rec.ID = string(msg.Key)
	}

	out, err := c.assessor.Assess(ctx, &rec)
	if err != nil {
		if errors.Is(err, errors.ErrDataValidation) || errors.Is(err, errors.ErrInvalidInput) {
			c.invalid.Add(1)
		} else {
			c.failed.Add(1)
		}
		return err
	}

	c.scored.Add(1)
	c.log.Debugw("Intake record scored", "label", out.Prediction.Label, "cached", out.Cached)
	return nil
}

// Stats returns a snapshot of the counters
func (c *IntakeConsumer) Stats() IntakeStats {
	return IntakeStats{
		Received: c.received.Load(),
		Scored:   c.scored.Load(),
		Invalid:  c.invalid.Load(),
		Failed:   c.failed.Load(),
	}
}
