package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"researchllm/backend/internal/usage"
	usagedomain "researchllm/backend/internal/usage/domain"
)

// eventLogger is the slice of otellog.Logger the emitter needs; tests supply a capture.
type eventLogger interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewUsageEmitter returns an Emitter that sends usage records as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewUsageEmitter(provider *sdklog.LoggerProvider) usage.Emitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("researchllm.usage")}
}

// NewUsageEmitterWithLogger returns an Emitter over the given logger directly.
func NewUsageEmitterWithLogger(logger eventLogger) usage.Emitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *usagedomain.Record) error { return nil }

type otelEmitter struct {
	logger eventLogger
}

// Emit converts the usage record to an OTel log record and emits it. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, rec *usagedomain.Record) error {
	if rec == nil {
		return nil
	}
	out := otellog.Record{}
	out.SetBody(otellog.StringValue("llm query"))
	if !rec.CreatedAt.IsZero() {
		out.SetTimestamp(rec.CreatedAt)
	} else {
		out.SetTimestamp(time.Now().UTC())
	}
	if rec.UserID != "" {
		out.AddAttributes(otellog.String("user_id", rec.UserID))
	}
	if rec.ModelUsed != "" {
		out.AddAttributes(otellog.String("model_used", rec.ModelUsed))
	}
	if rec.Provider != "" {
		out.AddAttributes(otellog.String("provider", rec.Provider))
	}
	if rec.QueryType != "" {
		out.AddAttributes(otellog.String("query_type", rec.QueryType))
	}
	out.AddAttributes(
		otellog.Int64("tokens_used", rec.TokensUsed),
		otellog.Float64("cost", rec.Cost),
	)
	e.logger.Emit(ctx, out)
	return nil
}
