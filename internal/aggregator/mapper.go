package aggregator

import (
	"strings"

	"github.com/mmcdole/arsview/internal/domain"
)

// ignoredAgents are children of a query that do not answer it themselves.
var ignoredAgents = map[string]bool{
	"ars-default-agent": true,
	"ars-workspace":     true,
}

// MapStatus converts a trace into a domain.QueryStatus
func MapStatus(t TraceResponse) domain.QueryStatus {
	st := domain.QueryStatus{
		QueryID: t.Message,
		Status:  domain.ParseRunStatus(t.Status),
	}
	for _, c := range t.Children {
		agent := strings.TrimSpace(c.Actor.Agent)
		if agent == "" || ignoredAgents[agent] {
			continue
		}
		st.Agents = append(st.Agents, domain.AgentStatus{
			Agent:     agent,
			MessageID: c.Message,
			Status:    domain.ParseRunStatus(c.Status),
			Count:     c.ResultCount,
		})
	}
	return st
}

// MapResults converts an agent message into domain results, attributing
// each to the agent. Answers without an ID are dropped.
func MapResults(m MessageResponse, agent string) []domain.Result {
	if agent == "" {
		agent = m.Agent
	}
	results := make([]domain.Result, 0, len(m.Results))
	for _, a := range m.Results {
		if a.ID == "" {
			continue
		}
		name := a.Name
		if name == "" {
			name = a.ID
		}
		r := domain.Result{
			ID:          a.ID,
			Name:        name,
			Category:    a.Category,
			Description: a.Description,
			Score:       clampScore(a.Score),
			Evidence:    a.Evidence,
		}
		if agent != "" {
			r.Agents = []string{agent}
		}
		results = append(results, r)
	}
	return results
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
