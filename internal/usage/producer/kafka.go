package producer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"researchllm/backend/internal/usage/domain"
)

// Event is the wire shape of a usage record on the Kafka topic. The worker
// and any downstream consumers decode this.
type Event struct {
	UserID     string  `json:"user_id"`
	ModelUsed  string  `json:"model_used"`
	Provider   string  `json:"provider"`
	TokensUsed int64   `json:"tokens_used"`
	Cost       float64 `json:"cost"`
	QueryType  string  `json:"query_type"`
	CreatedAt  string  `json:"created_at"` // RFC3339Nano
}

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes usage events to the given topic.
// Returns nil (not an error) when brokers or topic are unset, so wiring can be optional.
// Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// Emit serializes the record as JSON and writes it to the Kafka topic, keyed
// by user id. Uses the caller's context with a short timeout so slow Kafka
// does not block indefinitely.
func (p *KafkaProducer) Emit(ctx context.Context, rec *domain.Record) error {
	if p == nil || p.writer == nil || rec == nil {
		return nil
	}
	payload, err := json.Marshal(Event{
		UserID:     rec.UserID,
		ModelUsed:  rec.ModelUsed,
		Provider:   rec.Provider,
		TokensUsed: rec.TokensUsed,
		Cost:       rec.Cost,
		QueryType:  rec.QueryType,
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(rec.UserID),
		Value: payload,
	})
	if err != nil {
		log.Printf("usage: kafka emit failed: %v", err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
