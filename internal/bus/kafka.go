package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaSink publishes outputs to a Kafka topic.
type KafkaSink struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafkaSink creates a producer for topic.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaSink{writer: w, logger: logger}
}

// Publish writes out as one message keyed by the result ID.
func (s *KafkaSink) Publish(ctx context.Context, out Output) error {
	msg, err := serializeToMessage(out)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, msg)
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// serializeToMessage marshals an Output into a Kafka message.
func serializeToMessage(out Output) (kafkago.Message, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize output: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(out.Result.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(out.Result.Status)},
			{Key: "processed_at", Value: []byte(out.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
