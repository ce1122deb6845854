// Package producer publishes usage events to Kafka.
package producer

import (
	"context"

	"researchllm/backend/internal/usage/domain"
)

// Producer publishes usage records. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single usage record. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, rec *domain.Record) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
