package domain

// RunStatus is the overall state reported for a query or an agent.
type RunStatus int

const (
	StatusRunning RunStatus = iota
	StatusSuccess
	StatusError
)

// String returns the display name for the status
func (s RunStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseRunStatus maps aggregator status strings onto RunStatus.
// Unknown values are treated as still running.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "Done", "done", "Completed", "completed", "success":
		return StatusSuccess
	case "Error", "error", "Failed", "failed":
		return StatusError
	default:
		return StatusRunning
	}
}

// PollSnapshot is what one poll cycle observed. Produced by the poller,
// read-only to everything else.
type PollSnapshot struct {
	SessionID          string    // Session the poll was made for
	ReturnedAgentCount int       // Agents that have returned
	TotalAgentCount    int       // Agents working on the query (>= 1)
	Status             RunStatus // Overall query status
	IsFetchingStatus   bool      // Poller will keep asking for status
	IsFetchingResults  bool      // Some returned agent's results are still outstanding
	HasFreshResults    bool      // The candidate set changed since the last cycle

	// StatusIndeterminate is set when this cycle's status request failed
	// and the counts are carried over from the previous cycle.
	StatusIndeterminate bool
}

// AllAgentsDone reports whether every known agent has returned
func (s PollSnapshot) AllAgentsDone() bool {
	return s.ReturnedAgentCount >= s.TotalAgentCount
}

// Settled reports whether the current polling round is complete: all
// agents returned, an explicit success, or no outstanding fetch activity.
func (s PollSnapshot) Settled() bool {
	return s.AllAgentsDone() ||
		s.Status == StatusSuccess ||
		(!s.HasFreshResults && !s.IsFetchingStatus && !s.IsFetchingResults)
}

// Normalize clamps counts into their valid ranges.
func (s PollSnapshot) Normalize() PollSnapshot {
	if s.TotalAgentCount < 1 {
		s.TotalAgentCount = 1
	}
	if s.ReturnedAgentCount < 0 {
		s.ReturnedAgentCount = 0
	}
	return s
}
