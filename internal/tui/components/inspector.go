package components

import (
	"fmt"
	"strings"

	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/tui/styles"
)

// Layout constants for inspector
const (
	InspectorBorderHeight     = 2
	InspectorScrollIndicators = 2
)

// inspectorContent holds the three-zone layout content
type inspectorContent struct {
	header string // fixed top
	body   string // scrollable middle
	footer string // fixed bottom
}

// Inspector displays the details of one result
type Inspector struct {
	result     *domain.Result
	width      int
	height     int
	offset     int // scroll offset
	maxVisible int // max visible lines
}

// NewInspector creates a new inspector component
func NewInspector() Inspector {
	return Inspector{}
}

// SetResult sets the result to display
func (i *Inspector) SetResult(r domain.Result) {
	i.result = &r
	i.offset = 0
}

// Clear removes the displayed result
func (i *Inspector) Clear() {
	i.result = nil
	i.offset = 0
}

// Result returns the displayed result, if any
func (i Inspector) Result() (domain.Result, bool) {
	if i.result == nil {
		return domain.Result{}, false
	}
	return *i.result, true
}

// SetSize updates the component dimensions
func (i *Inspector) SetSize(width, height int) {
	i.width = width
	i.height = height
	// Reserve border, scroll indicators, title and the blank line under it
	i.maxVisible = max(1, height-InspectorBorderHeight-InspectorScrollIndicators-2)
}

// ScrollBy moves the body by delta lines
func (i *Inspector) ScrollBy(delta int) {
	i.offset = max(0, i.offset+delta)
}

// View renders the component
func (i Inspector) View() string {
	style := styles.InspectorBorder

	// Border takes 2 chars (1 each side), leave 1 char safety margin
	contentWidth := max(10, i.width-3)
	content := i.render(contentWidth)

	titleLine := styles.AccentStyle.Render(styles.Truncate("Result", contentWidth))

	headerLines := splitLines(content.header)
	footerLines := splitLines(content.footer)
	bodyLines := splitLines(content.body)

	availableForBody := max(1, i.maxVisible-len(headerLines)-len(footerLines))

	// Clamp body scroll offset
	maxOffset := max(0, len(bodyLines)-availableForBody)
	offset := min(i.offset, maxOffset)

	end := min(offset+availableForBody, len(bodyLines))
	visibleBody := bodyLines[offset:end]

	up := " "
	if offset > 0 {
		up = styles.DimStyle.Render("↑ more")
	}
	down := " "
	if end < len(bodyLines) {
		down = styles.DimStyle.Render("↓ more")
	}

	parts := []string{titleLine, ""}
	if content.header != "" {
		parts = append(parts, content.header)
	}
	parts = append(parts, up)
	if len(visibleBody) > 0 {
		parts = append(parts, strings.Join(visibleBody, "\n"))
	}
	for j := len(visibleBody); j < availableForBody; j++ {
		parts = append(parts, "")
	}
	parts = append(parts, down)
	if content.footer != "" {
		parts = append(parts, content.footer)
	}

	frameW, frameH := style.GetFrameSize()
	return style.
		Width(max(0, i.width-frameW)).
		Height(max(0, i.height-frameH)).
		Render(strings.Join(parts, "\n"))
}

func (i Inspector) render(width int) inspectorContent {
	if i.result == nil {
		return inspectorContent{body: styles.DimStyle.Render("No result selected")}
	}
	r := *i.result

	var header strings.Builder
	header.WriteString(styles.TitleStyle.Render(styles.Truncate(r.Name, width)))
	header.WriteString("\n")
	header.WriteString(styles.DimStyle.Render(styles.Truncate(r.ID, width)))
	if r.Category != "" {
		header.WriteString("\n")
		header.WriteString(styles.CategoryStyle.Render(r.Category))
	}

	var body strings.Builder
	if r.Description != "" {
		body.WriteString(styles.SubtitleStyle.Render(wordWrap(r.Description, width)))
		body.WriteString("\n\n")
	}
	body.WriteString(styles.HelpKeyStyle.Render(fmt.Sprintf("Agents (%d)", r.AgentCount())))
	for _, a := range r.Agents {
		body.WriteString("\n  ")
		body.WriteString(styles.Truncate(a, width-2))
	}

	barWidth := max(1, min(20, width-6))
	footer := fmt.Sprintf("%s %s\n%s",
		styles.RenderProgressBar(int(r.Score*100), barWidth, false, false),
		r.FormattedScore(),
		styles.DimStyle.Render(fmt.Sprintf("%d supporting evidence", r.Evidence)),
	)

	return inspectorContent{
		header: header.String(),
		body:   body.String(),
		footer: footer,
	}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// wordWrap wraps text to the specified width
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	lineLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := len([]rune(word))

		if lineLen > 0 && lineLen+wordLen+1 > width {
			result.WriteString("\n")
			lineLen = 0
		}
		if lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}
