package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic receives import events when no topic is configured.
const DefaultTopic = "hermes.pages"

// KafkaConfig holds configuration for the Kafka publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	// MaxRetries bounds publish attempts after the first (default: 5).
	MaxRetries uint64

	// InitialBackoff is the delay before the first retry (default: 200ms).
	InitialBackoff time.Duration
}

// KafkaPublisher publishes events to Redpanda/Kafka.
type KafkaPublisher struct {
	client *kgo.Client
	cfg    KafkaConfig
	logger hclog.Logger
}

// NewKafkaPublisher creates a new publisher.
func NewKafkaPublisher(cfg KafkaConfig, logger hclog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),

		// Wait for all in-sync replicas to acknowledge.
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.GzipCompression()),

		kgo.RequestRetries(3),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &KafkaPublisher{
		client: client,
		cfg:    cfg,
		logger: logger.Named("kafka-publisher"),
	}, nil
}

// Publish implements Bus. Produce failures are retried with exponential
// backoff until the retry budget or the context runs out.
func (p *KafkaPublisher) Publish(ctx context.Context, event *PagesCreated) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.cfg.Topic,
		Key:   []byte(event.PartitionKey()),
		Value: value,
	}

	attempt := 0
	operation := func() error {
		attempt++
		// ProduceSync mutates the record; send a fresh copy each attempt.
		r := &kgo.Record{Topic: record.Topic, Key: record.Key, Value: record.Value}
		if err := p.client.ProduceSync(ctx, r).FirstErr(); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			p.logger.Warn("publish failed, retrying",
				"event_id", event.ID,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, p.backoff(ctx)); err != nil {
		return fmt.Errorf("failed to publish event %s after %d attempts: %w", event.ID, attempt, err)
	}

	p.logger.Debug("published event",
		"event_id", event.ID,
		"type", event.Type,
		"topic", p.cfg.Topic,
		"pages", len(event.PageIDs),
	)
	return nil
}

func (p *KafkaPublisher) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.cfg.MaxRetries), ctx)
}

// Close flushes and closes the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
