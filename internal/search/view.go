package search

import (
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/arsview/internal/domain"
)

// SortField represents a field to sort results by
type SortField int

const (
	SortScore SortField = iota
	SortName
	SortEvidence
	SortAgents
)

// String returns the display name for the sort field
func (f SortField) String() string {
	switch f {
	case SortScore:
		return "Score"
	case SortName:
		return "Name"
	case SortEvidence:
		return "Evidence"
	case SortAgents:
		return "Agents"
	default:
		return "Unknown"
	}
}

// ParseSortField maps a config value onto a SortField, defaulting to score
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return SortName
	case "evidence":
		return SortEvidence
	case "agents":
		return SortAgents
	default:
		return SortScore
	}
}

// SortOptions returns the sort fields in cycling order
func SortOptions() []SortField {
	return []SortField{SortScore, SortName, SortEvidence, SortAgents}
}

// SortDirection represents sort direction
type SortDirection int

const (
	SortAsc SortDirection = iota
	SortDesc
)

// DefaultDirection returns the default sort direction for a field
func DefaultDirection(field SortField) SortDirection {
	if field == SortName {
		return SortAsc // A-Z
	}
	return SortDesc // best first
}

// View is the user's active sort and filter. It is a value; change it by
// building a new one.
type View struct {
	Field     SortField
	Direction SortDirection
	Query     string // Free-text filter on name and category
	Agent     string // Only results this agent contributed ("" = any)
}

// DefaultView sorts by field in its default direction with no filter
func DefaultView(field SortField) View {
	return View{Field: field, Direction: DefaultDirection(field)}
}

// NextField returns the view sorted by the next field in SortOptions
func (v View) NextField() View {
	opts := SortOptions()
	next := opts[0]
	for i, f := range opts {
		if f == v.Field {
			next = opts[(i+1)%len(opts)]
			break
		}
	}
	v.Field = next
	v.Direction = DefaultDirection(next)
	return v
}

// Flip returns the view with the sort direction reversed
func (v View) Flip() View {
	if v.Direction == SortAsc {
		v.Direction = SortDesc
	} else {
		v.Direction = SortAsc
	}
	return v
}

// Label describes the view for the status bar, e.g. "Score ↓"
func (v View) Label() string {
	arrow := "↓"
	if v.Direction == SortAsc {
		arrow = "↑"
	}
	return v.Field.String() + " " + arrow
}

// Less reports whether a sorts before b
func (v View) Less(a, b domain.Result) bool {
	var cmp int
	switch v.Field {
	case SortName:
		cmp = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortEvidence:
		cmp = compareInt(a.Evidence, b.Evidence)
	case SortAgents:
		cmp = compareInt(a.AgentCount(), b.AgentCount())
	default:
		cmp = compareFloat(a.Score, b.Score)
	}
	if v.Direction == SortDesc {
		return cmp > 0
	}
	return cmp < 0
}

// Keep reports whether r passes the filter. Every query word must match
// the name or category, in any order, tolerating gaps ("imat" matches
// "imatinib", "kinase abl" matches "ABL1 kinase").
func (v View) Keep(r domain.Result) bool {
	if v.Agent != "" && !r.HasAgent(v.Agent) {
		return false
	}
	for _, word := range strings.Fields(v.Query) {
		if !lfuzzy.MatchNormalizedFold(word, r.Name) && !lfuzzy.MatchNormalizedFold(word, r.Category) {
			return false
		}
	}
	return true
}

// Highlight returns the positions in name that match query, for
// rendering. It returns nil when query is empty or does not match.
func Highlight(query, name string) []int {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	matches := fuzzy.Find(strings.ToLower(query), []string{strings.ToLower(name)})
	if len(matches) == 0 {
		return nil
	}
	return matches[0].MatchedIndexes
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
