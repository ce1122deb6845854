package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"researchllm/backend/internal/llm"
)

type queryRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Stream      bool    `json:"stream"`
}

type llmResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Response   string  `json:"response"`
	Provider   string  `json:"provider"`
	Cost       float64 `json:"cost"`
	Latency    float64 `json:"latency"`
	TokensUsed int64   `json:"tokens_used"`
	ModelUsed  string  `json:"model_used"`
}

type providerConfig struct {
	Name     string   `json:"name"`
	APIKey   string   `json:"api_key"`
	Models   []string `json:"models"`
	IsActive bool     `json:"is_active"`
	Priority int      `json:"priority"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	resp, err := h.dispatcher.Dispatch(r.Context(), llm.Request{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}, userFrom(r.Context()).ID)
	if err != nil {
		if errors.Is(err, llm.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("httpapi: query dispatch: %v", err)
		writeError(w, http.StatusInternalServerError, "Query processing failed")
		return
	}

	writeJSON(w, http.StatusOK, llmResponse{
		Success:    true,
		Message:    "Query processed successfully",
		Response:   resp.Text,
		Provider:   resp.Provider,
		Cost:       resp.Cost,
		Latency:    resp.Latency,
		TokensUsed: resp.TokensUsed,
		ModelUsed:  resp.ModelUsed,
	})
}

// handleModels returns a bare array; clients bind it to a select directly.
func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.registry.ActiveModels())
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := h.registry.List()
		out := make([]providerConfig, 0, len(list))
		for _, cfg := range list {
			out = append(out, providerToResponse(cfg))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req providerConfig
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		cfg, err := h.registry.Register(llm.ProviderConfig{
			Name:     req.Name,
			APIKey:   req.APIKey,
			Models:   req.Models,
			IsActive: req.IsActive,
			Priority: req.Priority,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, providerToResponse(cfg))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func providerToResponse(cfg llm.ProviderConfig) providerConfig {
	return providerConfig{
		Name:     cfg.Name,
		APIKey:   cfg.APIKey,
		Models:   cfg.Models,
		IsActive: cfg.IsActive,
		Priority: cfg.Priority,
	}
}

func (h *Handler) handleMyUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}
	if days < 1 {
		days = 1
	}
	stats := h.stats.StatsForUser(r.Context(), userFrom(r.Context()).ID, days)
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "Usage statistics retrieved",
		Data: map[string]interface{}{
			"total_queries":   stats.TotalQueries,
			"total_tokens":    stats.TotalTokens,
			"total_cost":      stats.TotalCost,
			"queries_today":   stats.QueriesToday,
			"most_used_model": stats.MostUsedModel,
			"usage_by_model":  stats.UsageByModel,
			"period_days":     stats.PeriodDays,
		},
	})
}

func (h *Handler) handleGlobalUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats := h.stats.GlobalStats(r.Context())
	popular := make([]map[string]interface{}, 0, len(stats.PopularModels))
	for _, m := range stats.PopularModels {
		popular = append(popular, map[string]interface{}{"model": m.Model, "count": m.Count})
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "Global usage statistics retrieved",
		Data: map[string]interface{}{
			"total_users":    stats.TotalUsers,
			"total_queries":  stats.TotalQueries,
			"total_tokens":   stats.TotalTokens,
			"total_cost":     stats.TotalCost,
			"popular_models": popular,
		},
	})
}

func (h *Handler) handleLLMHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "LLM service is healthy",
		Data: map[string]interface{}{
			"status":    "operational",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
