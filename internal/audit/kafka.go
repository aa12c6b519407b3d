package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaEmitter publishes audit events to a Kafka topic as JSON records keyed
// by donor id, so one donor's history lands in one partition.
type KafkaEmitter struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaEmitter connects a producer to the given brokers.
func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) (*KafkaEmitter, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaEmitter{client: client, topic: topic, logger: logger}, nil
}

// Emit produces asynchronously; audit must not block or fail match commits.
func (e *KafkaEmitter) Emit(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.ErrorContext(ctx, "marshal audit event", "action", string(event.Action), "error", err)
		return
	}
	record := &kgo.Record{
		Topic: e.topic,
		Key:   []byte(event.DonorID),
		Value: payload,
	}
	e.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			e.logger.Error("produce audit event", "action", string(event.Action), "error", err)
		}
	})
}

// Close flushes pending records and releases the producer.
func (e *KafkaEmitter) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.client.Flush(ctx)
	e.client.Close()
}
