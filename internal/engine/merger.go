package engine

import (
	"sort"

	"github.com/mmcdole/arsview/internal/domain"
)

// Ranker supplies the active sort order and filter predicate.
type Ranker interface {
	// Less reports whether a sorts before b
	Less(a, b domain.Result) bool
	// Keep reports whether r passes the active filter
	Keep(r domain.Result) bool
}

// byScore is the ranker used until one is set: highest score first, no filter.
type byScore struct{}

func (byScore) Less(a, b domain.Result) bool { return a.Score > b.Score }
func (byScore) Keep(domain.Result) bool      { return true }

// Merge produces the visible list for delta: filtered by ranker.Keep and
// sorted by ranker.Less with ties broken by ID. The same inputs always give
// the same output.
func Merge(delta domain.ResultSet, ranker Ranker) []domain.Result {
	if ranker == nil {
		ranker = byScore{}
	}

	items := delta.Items()
	visible := make([]domain.Result, 0, len(items))
	for _, r := range items {
		if ranker.Keep(r) {
			visible = append(visible, r)
		}
	}

	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		if ranker.Less(a, b) {
			return true
		}
		if ranker.Less(b, a) {
			return false
		}
		return a.ID < b.ID
	})
	return visible
}
