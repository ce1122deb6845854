// Package usage records and aggregates per-query LLM usage.
package usage

import (
	"context"

	"researchllm/backend/internal/usage/domain"
)

// Emitter exports a usage record to a side channel (e.g. Kafka, OTel Logs).
// Best-effort; callers log and ignore errors.
type Emitter interface {
	Emit(ctx context.Context, rec *domain.Record) error
}
