package usage

import (
	"context"
	"log"
	"time"

	"researchllm/backend/internal/usage/domain"
)

// recordTimeout is the max time allowed for a single async record. Used by RecordAsync and by DrainDuration.
const recordTimeout = 5 * time.Second

// DrainDuration is how long to wait after the HTTP server stops accepting
// requests before shutting down, so in-flight async usage writes have time to
// complete. Must be >= recordTimeout.
const DrainDuration = recordTimeout

// Store is the insert-only slice of the repository the recorder needs.
type Store interface {
	Insert(ctx context.Context, rec *domain.Record) error
}

// Recorder persists usage records without blocking or failing the caller.
// The store write is the source of truth; emitters are optional side channels.
type Recorder struct {
	store    Store
	emitters []Emitter
}

// NewRecorder returns a Recorder writing to store and exporting through the
// given emitters. Nil emitters are skipped.
func NewRecorder(store Store, emitters ...Emitter) *Recorder {
	kept := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return &Recorder{store: store, emitters: kept}
}

// RecordAsync runs the store insert in a goroutine with a short timeout so the
// caller is not blocked. Use from request handlers for fire-and-forget
// accounting; failures are logged and swallowed.
//
// rec may be nil; RecordAsync returns immediately without starting a goroutine.
// The goroutine uses context.Background() with recordTimeout so request
// cancellation does not abort an in-flight write.
func (r *Recorder) RecordAsync(ctx context.Context, rec *domain.Record) {
	if r == nil || rec == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.QueryType == "" {
		rec.QueryType = "completion"
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if r.store != nil {
			if err := r.store.Insert(writeCtx, rec); err != nil {
				log.Printf("usage: async insert failed: %v", err)
			}
		}
		for _, e := range r.emitters {
			if err := e.Emit(writeCtx, rec); err != nil {
				log.Printf("usage: emit failed: %v", err)
			}
		}
	}()
}
