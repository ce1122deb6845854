// Package llm holds the provider registry and the query dispatcher.
package llm

import (
	"errors"
	"sort"
	"sync"
)

// ErrProviderNameRequired is returned by Register for a config without a name.
var ErrProviderNameRequired = errors.New("provider name is required")

// defaultModels is the catalog advertised when no provider is registered and active.
var defaultModels = []string{"gpt-3.5-turbo", "gpt-4", "claude-2"}

// ProviderConfig describes one upstream LLM provider. Lower Priority sorts first.
type ProviderConfig struct {
	Name     string
	APIKey   string
	Models   []string
	IsActive bool
	Priority int
}

// Registry is the in-memory provider catalog. Process-lifetime only; nothing
// is persisted. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderConfig
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]ProviderConfig{}}
}

// Register adds or replaces the provider keyed by name. Last write wins.
func (r *Registry) Register(cfg ProviderConfig) (ProviderConfig, error) {
	if cfg.Name == "" {
		return ProviderConfig{}, ErrProviderNameRequired
	}
	if cfg.Priority == 0 {
		cfg.Priority = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[cfg.Name] = cfg
	return cfg, nil
}

// List returns every registered provider sorted by priority, then name, so
// repeated calls produce the same order.
func (r *Registry) List() []ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderConfig, 0, len(r.providers))
	for _, cfg := range r.providers {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ActiveModels returns the union of models across active providers in
// priority order, deduplicated. With no active providers it falls back to the
// default catalog.
func (r *Registry) ActiveModels() []string {
	seen := map[string]struct{}{}
	var models []string
	for _, cfg := range r.List() {
		if !cfg.IsActive {
			continue
		}
		for _, m := range cfg.Models {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return append([]string(nil), defaultModels...)
	}
	return models
}
