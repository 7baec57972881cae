package domain

import "context"

// Aggregator is the backend that relays a query to many agents.
type Aggregator interface {
	// Submit sends a new query and returns its record
	Submit(ctx context.Context, text string) (Query, error)

	// Status returns the overall and per-agent status of a query
	Status(ctx context.Context, queryID string) (QueryStatus, error)

	// AgentResults returns the results one agent produced
	AgentResults(ctx context.Context, messageID string) ([]Result, error)
}
