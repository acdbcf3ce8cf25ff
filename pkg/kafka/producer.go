package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
)

const schemaVersion = "1.0"

// Writer is the part of kafka.Writer the producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes warehouse change events
type Producer struct {
	writer Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

func NewProducerWithWriter(writer Writer, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close flushes pending messages and closes the writer
func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) Topic() string {
	return p.topic
}

// EntityEvent describes one change to a warehouse row. Rows with the same
// kind and id hash to the same partition.
type EntityEvent struct {
	EventType  string          `json:"event_type"` // upserted, linked, merged, deleted, detached
	RunID      string          `json:"run_id"`
	EntityID   string          `json:"entity_id"`
	EntityType string          `json:"entity_type"`
	Source     string          `json:"source,omitempty"`
	SourceKey  string          `json:"source_key,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *EntityEvent) key() []byte {
	return []byte(e.EntityType + ":" + e.EntityID)
}

// PublishEntityEvents publishes multiple entity events in a batch
func (p *Producer) PublishEntityEvents(ctx context.Context, events []*EntityEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishEntityEvents", attribute.Int("batch_size", len(events)))
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		messages[i] = kafka.Message{
			Topic: p.topic,
			Key:   event.key(),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "run_id", Value: []byte(event.RunID)},
				{Key: "entity_type", Value: []byte(event.EntityType)},
				{Key: "schema_version", Value: []byte(schemaVersion)},
			},
		}
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		tracing.RecordError(span, err)
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish entity events batch")
		return err
	}

	for range events {
		metrics.RecordKafkaPublish(p.topic, "success")
	}
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published entity events batch")

	return nil
}

// RunEvent is published once per run with the run report.
type RunEvent struct {
	EventType string         `json:"event_type"`
	RunID     string         `json:"run_id"`
	Success   bool           `json:"success"`
	Documents map[string]any `json:"documents"`
	Timestamp time.Time      `json:"timestamp"`
}

func (p *Producer) PublishRunEvent(ctx context.Context, event *RunEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRunEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte("run:" + event.RunID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "run_id", Value: []byte(event.RunID)},
			{Key: "schema_version", Value: []byte(schemaVersion)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		tracing.RecordError(span, err)
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish run event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success")
	return nil
}
