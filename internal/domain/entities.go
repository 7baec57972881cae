package domain

import (
	"fmt"
	"strings"
	"time"
)

// Result is one answer returned by one or more agents for a query.
// Only ID is meaningful to the sync engine; the rest is display data.
type Result struct {
	ID          string   `json:"id"`          // Stable identifier (answer node CURIE)
	Name        string   `json:"name"`        // Display name
	Category    string   `json:"category"`    // e.g. "ChemicalEntity", "Gene"
	Description string   `json:"description"` // Free-text summary
	Score       float64  `json:"score"`       // Normalized score in [0,1]
	Agents      []string `json:"agents"`      // Agents that returned this answer
	Evidence    int      `json:"evidence"`    // Supporting edge/publication count
}

// AgentCount returns how many agents contributed this result
func (r Result) AgentCount() int {
	return len(r.Agents)
}

// HasAgent reports whether the named agent contributed this result
func (r Result) HasAgent(agent string) bool {
	for _, a := range r.Agents {
		if strings.EqualFold(a, agent) {
			return true
		}
	}
	return false
}

// FormattedScore returns the score as a percentage string
func (r Result) FormattedScore() string {
	return fmt.Sprintf("%.0f%%", r.Score*100)
}

// Query is a submitted question and its aggregator-side identifier.
type Query struct {
	ID          string    `json:"id"`           // Aggregator message ID
	Text        string    `json:"text"`         // What the user asked
	SubmittedAt time.Time `json:"submitted_at"` // When it was submitted
	CompletedAt time.Time `json:"completed_at"` // Zero until a terminal status was seen
	Status      RunStatus `json:"status"`       // Last known overall status
}

// IsComplete returns true once the aggregator reported a terminal status
func (q Query) IsComplete() bool {
	return q.Status != StatusRunning
}

// AgentStatus is the state of one agent working on a query.
type AgentStatus struct {
	Agent     string    // Agent name, e.g. "ara-aragorn"
	MessageID string    // Where this agent's results live
	Status    RunStatus // Running until the agent returns
	Count     int       // Results the agent reported
}

// Returned reports whether the agent is no longer working
func (a AgentStatus) Returned() bool {
	return a.Status != StatusRunning
}

// QueryStatus is the aggregator's view of a query at one instant.
type QueryStatus struct {
	QueryID string
	Status  RunStatus
	Agents  []AgentStatus
}

// ReturnedCount counts agents that finished (successfully or not)
func (s QueryStatus) ReturnedCount() int {
	n := 0
	for _, a := range s.Agents {
		if a.Returned() {
			n++
		}
	}
	return n
}
