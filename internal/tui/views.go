package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/engine"
	"github.com/mmcdole/arsview/internal/search"
	"github.com/mmcdole/arsview/internal/tui/styles"
)

// Column widths for the result list
const (
	rankWidth     = 5
	categoryWidth = 18
	scoreWidth    = 6
	agentsWidth   = 10
	evidenceWidth = 6
)

// DescribeProgress summarizes the session in words, without styling
func DescribeProgress(v engine.View, snap domain.PollSnapshot) string {
	switch v.Freshness {
	case engine.FreshnessInitializing:
		return "starting"
	case engine.FreshnessPolling:
		if snap.StatusIndeterminate {
			return fmt.Sprintf("waiting for aggregator (%d/%d agents)", snap.ReturnedAgentCount, snap.TotalAgentCount)
		}
		return fmt.Sprintf("polling %d/%d agents", snap.ReturnedAgentCount, snap.TotalAgentCount)
	case engine.FreshnessAwaitingRefresh:
		return fmt.Sprintf("%d new results, press r to refresh", v.Pending)
	case engine.FreshnessSynced:
		if snap.Status == domain.StatusRunning {
			return fmt.Sprintf("synced, polling %d/%d agents", snap.ReturnedAgentCount, snap.TotalAgentCount)
		}
		return "complete"
	case engine.FreshnessError:
		return "query failed"
	}
	return ""
}

func (m Model) renderHeader(v engine.View) string {
	title := m.Query.Text
	if title == "" {
		title = m.Query.ID
	}
	if title == "" {
		title = "no query"
	}

	line1 := styles.TitleStyle.Render("arsview") + "  " +
		styles.SubtitleStyle.Render(styles.Truncate(title, max(10, m.Width-12)))

	label := DescribeProgress(v, m.LastSnap)
	var labelStyle lipgloss.Style
	switch v.Freshness {
	case engine.FreshnessAwaitingRefresh:
		labelStyle = styles.PendingStyle
	case engine.FreshnessError:
		labelStyle = styles.ErrorStyle
	case engine.FreshnessSynced:
		labelStyle = styles.SuccessStyle
	default:
		labelStyle = styles.DimStyle
	}

	pct := fmt.Sprintf(" %3d%% ", v.Progress.Percentage)
	barWidth := max(10, m.Width-lipgloss.Width(pct)-lipgloss.Width(label)-4)
	bar := styles.RenderProgressBar(v.Progress.Percentage, barWidth, v.Progress.Pulsing, m.Phase)
	line2 := bar + styles.AccentStyle.Render(pct) + labelStyle.Render(label)

	return styles.HeaderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, line1, line2))
}

func (m Model) renderList(v engine.View) string {
	h := m.listHeight()

	if len(v.Results) == 0 {
		msg := "no results yet"
		switch {
		case v.Total > 0:
			msg = "no results match the filter"
		case v.Freshness == engine.FreshnessSynced && m.LastSnap.Status != domain.StatusRunning:
			msg = "no results"
		}
		return styles.ListStyle.Height(h).Render(styles.DimStyle.Render(msg))
	}

	nameWidth := max(10, m.Width-rankWidth-categoryWidth-agentsWidth-evidenceWidth-4)
	if m.ShowScores {
		nameWidth -= scoreWidth
	}

	end := min(len(v.Results), m.Offset+h)
	rows := make([]string, 0, h)
	for i := m.Offset; i < end; i++ {
		rows = append(rows, m.renderRow(i, v.Results[i], nameWidth))
	}
	return styles.ListStyle.Height(h).Render(strings.Join(rows, "\n"))
}

func (m Model) renderRow(i int, r domain.Result, nameWidth int) string {
	base := styles.NormalItemStyle
	if i == m.Cursor {
		base = styles.SelectedItemStyle
	}

	name := styles.Truncate(r.Name, nameWidth)
	rendered := styles.RenderHighlighted(name, search.Highlight(m.Ranking.Query, name), base)
	if pad := nameWidth - lipgloss.Width(name); pad > 0 {
		rendered += base.Render(strings.Repeat(" ", pad))
	}

	parts := []string{
		base.Render(styles.Pad(fmt.Sprintf("%d.", i+1), rankWidth)),
		rendered,
		styles.CategoryStyle.Inherit(base).Render(styles.Pad(styles.Truncate(r.Category, categoryWidth-1), categoryWidth)),
	}
	if m.ShowScores {
		parts = append(parts, base.Render(styles.Pad(r.FormattedScore(), scoreWidth)))
	}
	parts = append(parts,
		base.Render(styles.Pad(fmt.Sprintf("%d agents", r.AgentCount()), agentsWidth)),
		base.Render(styles.Pad(fmt.Sprintf("%d ev", r.Evidence), evidenceWidth)),
	)
	return strings.Join(parts, "")
}

func (m Model) renderStatusBar(v engine.View) string {
	var left string
	switch {
	case m.State == StateFiltering:
		left = styles.FilterPromptStyle.Render("/") + m.FilterInput.View()
	case m.State == StateNewQuery:
		left = styles.FilterPromptStyle.Render("query: ") + m.QueryInput.View()
	case m.StatusMsg != "":
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = m.StatusMsg
		}
	default:
		left = fmt.Sprintf("%d of %d results · %s", len(v.Results), v.Total, m.Ranking.Label())
		if m.Ranking.Query != "" {
			left += " · filter: " + m.Ranking.Query
		}
	}

	var help []string
	for _, b := range m.Keys.ShortHelp() {
		h := b.Help()
		help = append(help, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	right := strings.Join(help, "  ")

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return styles.StatusBarStyle.Width(m.Width).Render(left)
	}
	return styles.StatusBarStyle.Width(m.Width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var cols []string
	for _, group := range m.Keys.FullHelp() {
		var lines []string
		for _, b := range group {
			h := b.Help()
			lines = append(lines, styles.HelpKeyStyle.Render(styles.Pad(h.Key, 8))+styles.HelpDescStyle.Render(h.Desc))
		}
		cols = append(cols, strings.Join(lines, "\n"))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, cols[0], "    ", cols[1])
	return styles.ListStyle.Render(body + "\n\n" + styles.DimStyle.Render("press any key to return"))
}
