package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/cheildo/parity-league-backend/internal/protocol"
)

// KafkaConfig holds the broker and topic settings for the league event feed.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaSink publishes league events to a Kafka topic, keyed by league id so
// one league's events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink initializes the underlying Kafka writer.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					slog.Error("Kafka async write failed", "error", err)
				}
			},
		},
	}
}

func (s *KafkaSink) Publish(ctx context.Context, msg *protocol.Message) {
	value, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal league event", "message_type", msg.MessageType, "error", err)
		return
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.LeagueID),
		Value: value,
	})
	if err != nil {
		slog.Error("Failed to publish league event", "message_type", msg.MessageType, "error", err)
	} else {
		slog.Info("Published league event", "message_type", msg.MessageType, "league_id", msg.LeagueID)
	}
}

// Close flushes pending async writes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
