package domain

import "time"

// Record is one LLM query's usage accounting row. Append-only; the store
// assigns ID.
type Record struct {
	ID         int64
	UserID     string
	ModelUsed  string
	Provider   string
	TokensUsed int64
	Cost       float64
	QueryType  string
	CreatedAt  time.Time
}

// UserStats summarizes one user's usage over a trailing window.
// QueriesToday counts the current UTC calendar day, independent of the window.
type UserStats struct {
	TotalQueries  int64
	TotalTokens   int64
	TotalCost     float64
	QueriesToday  int64
	MostUsedModel string
	UsageByModel  map[string]int64
	PeriodDays    int
}

// ModelCount pairs a model name with its query count.
type ModelCount struct {
	Model string
	Count int64
}

// GlobalStats summarizes usage across all users for all time.
type GlobalStats struct {
	TotalQueries  int64
	TotalUsers    int64
	TotalTokens   int64
	TotalCost     float64
	PopularModels []ModelCount
}
