package dispatch

import (
	"context"
	"fmt"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/pkg/kafka"
)

// KafkaSink publishes alert events to a Kafka topic, keyed by symbol so one
// symbol's episode stays in partition order.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaSink creates a sink over an existing producer.
func NewKafkaSink(producer *kafka.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Deliver(ctx context.Context, ev *models.AlertEvent) error {
	if err := s.producer.Publish(ctx, s.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
