package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmcdole/arsview/internal/domain"
)

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "tyrosine kinase", 20, "tyrosine kinase"},
		{"wraps", "inhibits the BCR-ABL fusion protein", 12, "inhibits the\nBCR-ABL\nfusion\nprotein"},
		{"long word stays whole", "hydroxycarbamide", 5, "hydroxycarbamide"},
		{"collapses spaces", "a   b", 10, "a b"},
		{"no width", "a b", 0, "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wordWrap(tt.text, tt.width))
		})
	}
}

func TestInspector_View(t *testing.T) {
	i := NewInspector()
	i.SetSize(50, 20)

	assert.Contains(t, i.View(), "No result selected")

	i.SetResult(domain.Result{
		ID:          "CHEBI:45783",
		Name:        "Imatinib",
		Category:    "ChemicalEntity",
		Description: "A tyrosine kinase inhibitor.",
		Score:       0.9,
		Agents:      []string{"ara-arax", "ara-aragorn"},
		Evidence:    12,
	})

	view := i.View()
	for _, want := range []string{"Imatinib", "CHEBI:45783", "ChemicalEntity", "Agents (2)", "ara-aragorn", "90%", "12 supporting evidence"} {
		assert.Contains(t, view, want)
	}

	r, ok := i.Result()
	assert.True(t, ok)
	assert.Equal(t, "CHEBI:45783", r.ID)

	i.Clear()
	_, ok = i.Result()
	assert.False(t, ok)
}

func TestInspector_ScrollsLongBody(t *testing.T) {
	agents := make([]string, 40)
	for n := range agents {
		agents[n] = "agent-" + strings.Repeat("x", n%5)
	}

	i := NewInspector()
	i.SetSize(40, 16)
	i.SetResult(domain.Result{ID: "x", Name: "x", Agents: agents})

	assert.Contains(t, i.View(), "↓ more")
	assert.NotContains(t, i.View(), "↑ more")

	i.ScrollBy(5)
	assert.Contains(t, i.View(), "↑ more")

	i.ScrollBy(-100)
	assert.NotContains(t, i.View(), "↑ more")
}
