package domain

import (
	"slices"
	"sort"
)

// ResultSet is an unordered set of results keyed by ID. The zero value is
// an empty set. A ResultSet is never mutated after construction; build a
// new one instead.
type ResultSet struct {
	byID map[string]Result
}

// NewResultSet builds a set from results. A later result with the same ID
// replaces an earlier one.
func NewResultSet(results ...Result) ResultSet {
	byID := make(map[string]Result, len(results))
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		byID[r.ID] = r
	}
	return ResultSet{byID: byID}
}

// Len returns the number of results in the set
func (s ResultSet) Len() int {
	return len(s.byID)
}

// Get returns the result with the given ID
func (s ResultSet) Get(id string) (Result, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Items returns the results ordered by ID.
func (s ResultSet) Items() []Result {
	items := make([]Result, 0, len(s.byID))
	for _, r := range s.byID {
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// Equal reports whether both sets hold the same results.
func (s ResultSet) Equal(other ResultSet) bool {
	if len(s.byID) != len(other.byID) {
		return false
	}
	for id, a := range s.byID {
		b, ok := other.byID[id]
		if !ok || !sameResult(a, b) {
			return false
		}
	}
	return true
}

func sameResult(a, b Result) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Category == b.Category &&
		a.Description == b.Description &&
		a.Score == b.Score &&
		a.Evidence == b.Evidence &&
		slices.Equal(a.Agents, b.Agents)
}
