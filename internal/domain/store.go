package domain

import "time"

// Store handles the local cache (BoltDB + memory).
type Store interface {
	// === Queries ===
	GetQuery(id string) (Query, bool)
	SaveQuery(q Query) error
	RecentQueries(limit int) []Query

	// === Results ===
	GetResults(queryID string) ([]Result, bool)
	SaveResults(queryID string, results []Result, completedAt time.Time) error

	// === Invalidation ===
	InvalidateQuery(queryID string)
	InvalidateAll()

	Close() error
}
