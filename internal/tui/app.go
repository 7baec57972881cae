package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/arsview/internal/adapter"
	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/engine"
	"github.com/mmcdole/arsview/internal/search"
	"github.com/mmcdole/arsview/internal/service"
	"github.com/mmcdole/arsview/internal/tui/components"
	"github.com/mmcdole/arsview/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateFiltering
	StateNewQuery
	StateInspecting
	StateHelp
)

const (
	// Header (two lines plus margin) and status bar
	ChromeHeight = 4

	statusTimeout = 3 * time.Second
)

// Options configures the initial presentation
type Options struct {
	View       search.View
	ShowScores bool
	Launcher   *adapter.Launcher // Opens result links; nil disables them
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Services
	QuerySvc *service.QueryService
	Engine   *engine.Engine
	Launcher *adapter.Launcher
	Keys     KeyMap

	// Data
	Query    domain.Query
	Ranking  search.View
	LastSnap domain.PollSnapshot // Most recent poll cycle, for agent counts
	Phase    bool                // Pulse phase for the progress bar

	// Inputs
	FilterInput textinput.Model
	QueryInput  textinput.Model
	Inspector   components.Inspector

	// List position
	Cursor int
	Offset int

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg   string
	StatusIsErr bool
	ShowScores  bool

	initCmd     tea.Cmd
	sessionID   string
	cancelWatch context.CancelFunc
}

// NewModel creates a new application model. Without WithSubmit or WithOpen
// it starts by asking for a query.
func NewModel(svc *service.QueryService, eng *engine.Engine, opts Options) Model {
	filter := textinput.New()
	filter.Prompt = ""
	filter.Placeholder = "filter results..."
	filter.CharLimit = 80
	filter.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	filter.PlaceholderStyle = styles.DimStyle

	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "what drugs may treat chronic myeloid leukemia?"
	input.CharLimit = 500
	input.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	input.PlaceholderStyle = styles.DimStyle
	input.Focus()

	eng.SetRanker(opts.View)

	return Model{
		State:       StateNewQuery,
		QuerySvc:    svc,
		Engine:      eng,
		Launcher:    opts.Launcher,
		Keys:        DefaultKeyMap(),
		Ranking:     opts.View,
		FilterInput: filter,
		QueryInput:  input,
		Inspector:   components.NewInspector(),
		ShowScores:  opts.ShowScores,
	}
}

// WithSubmit makes the model submit text as a new query on start
func (m Model) WithSubmit(text string) Model {
	m.initCmd = SubmitQueryCmd(m.QuerySvc, text)
	m.State = StateBrowsing
	m.QueryInput.Blur()
	m.StatusMsg = "submitting query..."
	return m
}

// WithOpen makes the model open an existing query on start
func (m Model) WithOpen(id string) Model {
	m.initCmd = OpenQueryCmd(m.QuerySvc, id)
	m.State = StateBrowsing
	m.QueryInput.Blur()
	m.StatusMsg = "opening query..."
	return m
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{WaitForPulseCmd(m.Engine.Pulses())}
	if m.initCmd != nil {
		cmds = append(cmds, m.initCmd)
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.FilterInput.Width = max(10, msg.Width/3)
		m.QueryInput.Width = max(10, msg.Width-12)
		m.Inspector.SetSize(msg.Width, m.listHeight())
		m.clampCursor(len(m.Engine.View().Results))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case QueryReadyMsg:
		return m.startSession(msg)

	case PollUpdateMsg:
		return m.handlePollUpdate(msg)

	case PulseMsg:
		m.Phase = msg.Phase
		return m, WaitForPulseCmd(m.Engine.Pulses())

	case ResultsRememberedMsg:
		return m, nil

	case ErrMsg:
		m.StatusMsg = msg.Error()
		m.StatusIsErr = true
		return m, ClearStatusCmd(2 * statusTimeout)

	case StatusMsg:
		m.StatusMsg = msg.Message
		m.StatusIsErr = msg.IsError
		return m, ClearStatusCmd(statusTimeout)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

// startSession begins a fresh engine session for a query and starts
// watching it. Any previous watch is cancelled.
func (m Model) startSession(msg QueryReadyMsg) (tea.Model, tea.Cmd) {
	m.stopWatch()

	m.Query = msg.Query
	m.sessionID = m.Engine.Begin(msg.Query.ID)
	m.LastSnap = domain.PollSnapshot{}
	m.Cursor, m.Offset = 0, 0
	m.State = StateBrowsing
	m.StatusMsg = ""
	m.StatusIsErr = false

	if len(msg.Cached) > 0 {
		cached := domain.NewResultSet(msg.Cached...)
		m.Engine.Apply(domain.PollSnapshot{
			SessionID:        m.sessionID,
			TotalAgentCount:  1,
			Status:           domain.StatusRunning,
			IsFetchingStatus: true,
		}, &cached)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelWatch = cancel

	return m, WatchCmd(ctx, m.QuerySvc, m.sessionID, msg.Query.ID)
}

func (m Model) handlePollUpdate(msg PollUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Done {
		return m, nil
	}
	if msg.SessionID != m.sessionID {
		// Drain a superseded watch until its channel closes
		return m, msg.NextCmd
	}

	u := msg.Update
	m.Engine.Apply(u.Snapshot, u.Candidate)
	m.LastSnap = u.Snapshot

	cmds := []tea.Cmd{msg.NextCmd}
	if u.Err != nil {
		m.StatusMsg = "query failed: " + u.Err.Error()
		m.StatusIsErr = true
	}

	v := m.Engine.View()
	if u.Snapshot.Status != domain.StatusRunning && v.Freshness == engine.FreshnessSynced {
		cmds = append(cmds, RememberResultsCmd(m.QuerySvc, m.Query.ID, m.Engine.Merged()))
	}
	m.clampCursor(len(v.Results))

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return m, tea.Quit
	}

	switch m.State {
	case StateFiltering:
		return m.handleFilterKey(msg)
	case StateNewQuery:
		return m.handleNewQueryKey(msg)
	case StateInspecting:
		return m.handleInspectorKey(msg)
	case StateHelp:
		m.State = StateBrowsing
		return m, nil
	}

	count := len(m.Engine.View().Results)

	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, m.Keys.Up):
		m.moveCursor(-1, count)
	case key.Matches(msg, m.Keys.Down):
		m.moveCursor(1, count)
	case key.Matches(msg, m.Keys.PageUp):
		m.moveCursor(-m.listHeight(), count)
	case key.Matches(msg, m.Keys.PageDown):
		m.moveCursor(m.listHeight(), count)
	case key.Matches(msg, m.Keys.Home):
		m.moveCursor(-count, count)
	case key.Matches(msg, m.Keys.End):
		m.moveCursor(count, count)

	case key.Matches(msg, m.Keys.Enter):
		results := m.Engine.View().Results
		if m.Cursor < len(results) {
			m.Inspector.SetResult(results[m.Cursor])
			m.State = StateInspecting
		}

	case key.Matches(msg, m.Keys.Open):
		results := m.Engine.View().Results
		if m.Cursor < len(results) {
			return m, m.openLink(results[m.Cursor])
		}

	case key.Matches(msg, m.Keys.Refresh):
		return m.refresh()

	case key.Matches(msg, m.Keys.Sort):
		m.Ranking = m.Ranking.NextField()
		return m.applyView("sort: " + m.Ranking.Label())

	case key.Matches(msg, m.Keys.Flip):
		m.Ranking = m.Ranking.Flip()
		return m.applyView("sort: " + m.Ranking.Label())

	case key.Matches(msg, m.Keys.Filter):
		m.State = StateFiltering
		m.FilterInput.SetValue(m.Ranking.Query)
		m.FilterInput.CursorEnd()
		return m, m.FilterInput.Focus()

	case key.Matches(msg, m.Keys.Escape):
		if m.Ranking.Query != "" {
			m.Ranking.Query = ""
			return m.applyView("filter cleared")
		}

	case key.Matches(msg, m.Keys.NewQuery):
		m.State = StateNewQuery
		m.QueryInput.SetValue("")
		return m, m.QueryInput.Focus()
	}

	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Escape):
		m.FilterInput.Blur()
		m.FilterInput.SetValue("")
		m.State = StateBrowsing
		m.Ranking.Query = ""
		return m.applyView("")

	case key.Matches(msg, m.Keys.Enter):
		m.FilterInput.Blur()
		m.State = StateBrowsing
		return m, nil
	}

	var cmd tea.Cmd
	m.FilterInput, cmd = m.FilterInput.Update(msg)
	if q := m.FilterInput.Value(); q != m.Ranking.Query {
		m.Ranking.Query = q
		m.Engine.SetRanker(m.Ranking)
		m.Cursor, m.Offset = 0, 0
	}
	return m, cmd
}

func (m Model) handleInspectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Escape), key.Matches(msg, m.Keys.Enter), key.Matches(msg, m.Keys.Quit):
		m.Inspector.Clear()
		m.State = StateBrowsing
	case key.Matches(msg, m.Keys.Open):
		if r, ok := m.Inspector.Result(); ok {
			return m, m.openLink(r)
		}
	case key.Matches(msg, m.Keys.Up):
		m.Inspector.ScrollBy(-1)
	case key.Matches(msg, m.Keys.Down):
		m.Inspector.ScrollBy(1)
	case key.Matches(msg, m.Keys.PageUp):
		m.Inspector.ScrollBy(-m.listHeight())
	case key.Matches(msg, m.Keys.PageDown):
		m.Inspector.ScrollBy(m.listHeight())
	}
	return m, nil
}

func (m Model) handleNewQueryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Escape):
		m.QueryInput.Blur()
		m.State = StateBrowsing
		return m, nil

	case key.Matches(msg, m.Keys.Enter):
		text := strings.TrimSpace(m.QueryInput.Value())
		if text == "" {
			return m, nil
		}
		m.QueryInput.Blur()
		m.State = StateBrowsing
		m.StatusMsg = "submitting query..."
		m.StatusIsErr = false
		return m, SubmitQueryCmd(m.QuerySvc, text)
	}

	var cmd tea.Cmd
	m.QueryInput, cmd = m.QueryInput.Update(msg)
	return m, cmd
}

// refresh merges queued results into the visible list
func (m Model) refresh() (tea.Model, tea.Cmd) {
	before := m.Engine.View()
	if !before.Live || !before.Freshness.CanRefresh() {
		return m, func() tea.Msg { return StatusMsg{Message: "nothing to refresh"} }
	}

	results := m.Engine.RequestRefresh()
	m.clampCursor(len(results))

	status := func() tea.Msg {
		return StatusMsg{Message: fmt.Sprintf("refreshed: %d results", len(results))}
	}
	if m.LastSnap.Status == domain.StatusRunning {
		return m, status
	}
	return m, tea.Batch(status, RememberResultsCmd(m.QuerySvc, m.Query.ID, m.Engine.Merged()))
}

func (m Model) openLink(r domain.Result) tea.Cmd {
	if m.Launcher == nil {
		return func() tea.Msg { return StatusMsg{Message: "links are not configured", IsError: true} }
	}
	return OpenLinkCmd(m.Launcher, r)
}

// applyView pushes the current sort and filter into the engine
func (m Model) applyView(status string) (tea.Model, tea.Cmd) {
	m.Engine.SetRanker(m.Ranking)
	m.Cursor, m.Offset = 0, 0
	if status == "" {
		return m, nil
	}
	return m, func() tea.Msg { return StatusMsg{Message: status} }
}

func (m *Model) moveCursor(delta, count int) {
	m.Cursor += delta
	m.clampCursor(count)
}

// clampCursor keeps the cursor on the list and the list scrolled to it
func (m *Model) clampCursor(count int) {
	if count == 0 {
		m.Cursor, m.Offset = 0, 0
		return
	}
	m.Cursor = max(0, min(m.Cursor, count-1))

	h := m.listHeight()
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+h {
		m.Offset = m.Cursor - h + 1
	}
	m.Offset = max(0, min(m.Offset, count-1))
}

func (m Model) listHeight() int {
	return max(1, m.Height-ChromeHeight)
}

func (m *Model) stopWatch() {
	if m.cancelWatch != nil {
		m.cancelWatch()
		m.cancelWatch = nil
	}
}

// shutdown stops polling and the pulse clock
func (m *Model) shutdown() {
	m.stopWatch()
	m.Engine.End()
}

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	v := m.Engine.View()

	if m.State == StateHelp {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(v),
			m.renderHelp(),
		)
	}

	if m.State == StateInspecting {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(v),
			m.Inspector.View(),
			m.renderStatusBar(v),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(v),
		m.renderList(v),
		m.renderStatusBar(v),
	)
}
