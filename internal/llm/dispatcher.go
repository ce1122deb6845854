package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	usagedomain "researchllm/backend/internal/usage/domain"
)

// ErrEmptyPrompt is returned by Dispatch when the prompt is blank.
var ErrEmptyPrompt = errors.New("prompt is required")

// Request defaults, applied by Dispatch when the field is unset.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// costPerToken is the flat simulated rate charged per token.
const costPerToken = 0.0001

// Request is one LLM query.
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Response is the completion returned to the caller. Latency is seconds.
type Response struct {
	Text       string
	Provider   string
	ModelUsed  string
	TokensUsed int64
	Cost       float64
	Latency    float64
}

// UsageRecorder receives the accounting record for each processed query.
type UsageRecorder interface {
	RecordAsync(ctx context.Context, rec *usagedomain.Record)
}

// Dispatcher processes LLM queries. There is no real upstream yet; it
// synthesizes a completion with deterministic token and cost figures.
type Dispatcher struct {
	recorder UsageRecorder
}

// NewDispatcher returns a Dispatcher that reports usage to recorder.
// recorder may be nil; queries then go unaccounted.
func NewDispatcher(recorder UsageRecorder) *Dispatcher {
	return &Dispatcher{recorder: recorder}
}

// Dispatch processes the query for userID. An empty prompt is a processing
// failure and is not recorded. On success the usage record is handed off
// best-effort; recording failures never affect the returned response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, userID string) (*Response, error) {
	start := time.Now()
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	tokens := int64(len(strings.Fields(prompt))) * 2
	cost := float64(tokens) * costPerToken
	resp := &Response{
		Text:       "Processed query: " + prompt,
		Provider:   "mock",
		ModelUsed:  model,
		TokensUsed: tokens,
		Cost:       cost,
		Latency:    time.Since(start).Seconds(),
	}

	if d.recorder != nil {
		d.recorder.RecordAsync(ctx, &usagedomain.Record{
			UserID:     userID,
			ModelUsed:  model,
			Provider:   resp.Provider,
			TokensUsed: tokens,
			Cost:       cost,
			QueryType:  "completion",
		})
	}
	return resp, nil
}
