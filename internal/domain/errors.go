package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrQueryNotFound indicates the aggregator has no record of the query
	ErrQueryNotFound = errors.New("query not found")

	// ErrAggregatorOffline indicates the aggregator is unreachable
	ErrAggregatorOffline = errors.New("aggregator is unreachable")

	// ErrInvalidQuery indicates the query text was rejected before submission
	ErrInvalidQuery = errors.New("invalid query")
)
