package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"rescue/internal/platform/config"
)

type kafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink writes each event as a JSON record to one topic.
type KafkaSink struct {
	client kafkaProducer
	topic  string
}

// NewKafkaSink connects to the configured brokers and makes sure the topic
// exists. It returns nil when no brokers are configured.
func NewKafkaSink(ctx context.Context, cfg config.Kafka) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := EnsureTopic(ctx, kadm.NewClient(cl), cfg); err != nil {
		cl.Close()
		return nil, err
	}
	return &KafkaSink{client: cl, topic: cfg.Topic}, nil
}

// EnsureTopic creates the notification topic, tolerating one that already
// exists.
func EnsureTopic(ctx context.Context, adm *kadm.Client, cfg config.Kafka) error {
	resp, err := adm.CreateTopics(ctx, cfg.Partitions, cfg.Replication, nil, cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	rec := &kgo.Record{Topic: s.topic, Key: []byte(e.Title), Value: payload}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", s.topic, err)
	}
	return nil
}

// Close flushes and releases the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
