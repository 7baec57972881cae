package engine

import "github.com/google/uuid"

// FreshnessState says whether newly arrived results may be shown yet.
type FreshnessState int

const (
	// FreshnessInitializing is the state before the first snapshot arrives
	FreshnessInitializing FreshnessState = iota
	// FreshnessPolling means agents are still returning
	FreshnessPolling
	// FreshnessAwaitingRefresh means newer results are queued behind an
	// explicit refresh
	FreshnessAwaitingRefresh
	// FreshnessSynced means the visible list is current
	FreshnessSynced
	// FreshnessError means the aggregator reported a failure
	FreshnessError
)

// String returns the display name for the state
func (s FreshnessState) String() string {
	switch s {
	case FreshnessInitializing:
		return "initializing"
	case FreshnessPolling:
		return "polling"
	case FreshnessAwaitingRefresh:
		return "awaiting refresh"
	case FreshnessSynced:
		return "synced"
	case FreshnessError:
		return "error"
	default:
		return "unknown"
	}
}

// CanRefresh reports whether a refresh request may merge in this state.
func (s FreshnessState) CanRefresh() bool {
	return s == FreshnessPolling || s == FreshnessAwaitingRefresh
}

// Session is the progress and freshness state of one query. It is a
// value; the engine replaces it rather than sharing it.
type Session struct {
	ID                      string
	QueryID                 string
	FirstCompletionObserved bool
	LastDisplayedPercentage int
	Freshness               FreshnessState
}

// NewSession starts a session for queryID with a fresh identifier.
func NewSession(queryID string) Session {
	return Session{
		ID:        uuid.NewString(),
		QueryID:   queryID,
		Freshness: FreshnessInitializing,
	}
}

// Reset returns a new session for the same query.
func (s Session) Reset() Session {
	return NewSession(s.QueryID)
}
