package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"riskstrat/internal/metrics"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

// Producer publishes JSON events, one writer per topic
type Producer struct {
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	brokers []string
	log     *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers []string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{
		writers: make(map[string]*kafka.Writer),
		brokers: cfg.Brokers,
		log:     logger.Get().Component("kafka_producer"),
	}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same patient, same partition
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

// Publish marshals event as JSON and writes it under key
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal event for %s", topic)
	}

	err = p.writer(topic).WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data})
	metrics.RecordKafkaMessage(topic, err)
	if err != nil {
		p.log.Errorw("Failed to publish", "topic", topic, "error", err)
		return errors.Wrapf(err, "publish to %s", topic)
	}

	p.log.Debugw("Published", "topic", topic, "bytes", len(data))
	return nil
}

// PublishBatch sends pre-built messages to a topic
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer(topic).WriteMessages(ctx, messages...); err != nil {
		metrics.RecordKafkaMessage(topic, err)
		return errors.Wrapf(err, "publish batch to %s", topic)
	}
	for range messages {
		metrics.RecordKafkaMessage(topic, nil)
	}
	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs.Add(errors.Wrapf(err, "close writer for %s", topic))
		}
	}
	return errs.ToError()
}
