package usage

import (
	"context"
	"log"
	"sort"
	"time"

	"researchllm/backend/internal/usage/domain"
)

// ListStore is the read slice of the repository the aggregator needs.
type ListStore interface {
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*domain.Record, error)
	ListAll(ctx context.Context) ([]*domain.Record, error)
}

// Aggregator folds usage records into per-user and global statistics.
// Store failures degrade to zero stats; the stats endpoints never error
// because of the usage store.
type Aggregator struct {
	store ListStore
}

// NewAggregator returns an Aggregator reading from store.
func NewAggregator(store ListStore) *Aggregator {
	return &Aggregator{store: store}
}

// StatsForUser summarizes the user's usage over the trailing windowDays.
// QueriesToday comes from a separate query bounded at midnight UTC, so it is
// a calendar-day count rather than a trailing-24h one. On store failure the
// error is logged and zero stats are returned.
func (a *Aggregator) StatsForUser(ctx context.Context, userID string, windowDays int) *domain.UserStats {
	if windowDays < 1 {
		windowDays = 1
	}
	stats := &domain.UserStats{
		MostUsedModel: "None",
		UsageByModel:  map[string]int64{},
		PeriodDays:    windowDays,
	}
	now := time.Now().UTC()
	recs, err := a.store.ListByUserSince(ctx, userID, now.AddDate(0, 0, -windowDays))
	if err != nil {
		log.Printf("usage: stats query for %s failed: %v", userID, err)
		return stats
	}

	counts := map[string]int64{}
	var order []string
	for _, rec := range recs {
		stats.TotalQueries++
		stats.TotalTokens += rec.TokensUsed
		stats.TotalCost += rec.Cost
		if _, seen := counts[rec.ModelUsed]; !seen {
			order = append(order, rec.ModelUsed)
		}
		counts[rec.ModelUsed]++
	}
	stats.UsageByModel = counts
	// Mode of the window's models; ties go to the model seen first.
	var best int64
	for _, model := range order {
		if counts[model] > best {
			best = counts[model]
			stats.MostUsedModel = model
		}
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := a.store.ListByUserSince(ctx, userID, startOfDay)
	if err != nil {
		log.Printf("usage: today query for %s failed: %v", userID, err)
		return &domain.UserStats{
			MostUsedModel: "None",
			UsageByModel:  map[string]int64{},
			PeriodDays:    windowDays,
		}
	}
	stats.QueriesToday = int64(len(today))
	return stats
}

// GlobalStats summarizes usage across every user for all time. On store
// failure the error is logged and zero stats are returned.
func (a *Aggregator) GlobalStats(ctx context.Context) *domain.GlobalStats {
	stats := &domain.GlobalStats{PopularModels: []domain.ModelCount{}}
	recs, err := a.store.ListAll(ctx)
	if err != nil {
		log.Printf("usage: global stats query failed: %v", err)
		return stats
	}

	users := map[string]struct{}{}
	counts := map[string]int64{}
	for _, rec := range recs {
		stats.TotalQueries++
		stats.TotalTokens += rec.TokensUsed
		stats.TotalCost += rec.Cost
		users[rec.UserID] = struct{}{}
		counts[rec.ModelUsed]++
	}
	stats.TotalUsers = int64(len(users))

	for model, n := range counts {
		stats.PopularModels = append(stats.PopularModels, domain.ModelCount{Model: model, Count: n})
	}
	sort.Slice(stats.PopularModels, func(i, j int) bool {
		a, b := stats.PopularModels[i], stats.PopularModels[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Model < b.Model
	})
	return stats
}
