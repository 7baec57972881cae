package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/arsview/internal/adapter"
	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/poller"
	"github.com/mmcdole/arsview/internal/service"
)

// Command factories for async operations

// SubmitQueryCmd submits a new query
func SubmitQueryCmd(svc *service.QueryService, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		q, err := svc.Submit(ctx, text)
		if err != nil {
			return ErrMsg{Err: err, Context: "submitting query"}
		}
		return QueryReadyMsg{Query: q}
	}
}

// OpenQueryCmd opens a previously submitted query
func OpenQueryCmd(svc *service.QueryService, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		q, cached, err := svc.Open(ctx, id)
		if err != nil {
			return ErrMsg{Err: err, Context: "opening query"}
		}
		return QueryReadyMsg{Query: q, Cached: cached}
	}
}

// WatchCmd starts polling queryID and delivers the first update. Each
// PollUpdateMsg carries the command that reads the next one.
func WatchCmd(ctx context.Context, svc *service.QueryService, sessionID, queryID string) tea.Cmd {
	return func() tea.Msg {
		updates := svc.Watch(ctx, sessionID, queryID)
		return readUpdate(sessionID, updates)
	}
}

// readUpdate reads one update from the channel and attaches the
// continuation that reads the next
func readUpdate(sessionID string, updates <-chan poller.Update) tea.Msg {
	u, ok := <-updates
	if !ok {
		return PollUpdateMsg{SessionID: sessionID, Done: true}
	}
	return PollUpdateMsg{
		SessionID: sessionID,
		Update:    u,
		NextCmd:   listenForUpdatesCmd(sessionID, updates),
	}
}

// listenForUpdatesCmd returns a command that reads the next poll update
func listenForUpdatesCmd(sessionID string, updates <-chan poller.Update) tea.Cmd {
	return func() tea.Msg {
		return readUpdate(sessionID, updates)
	}
}

// WaitForPulseCmd waits for the next pulse clock phase change
func WaitForPulseCmd(pulses <-chan bool) tea.Cmd {
	return func() tea.Msg {
		return PulseMsg{Phase: <-pulses}
	}
}

// RememberResultsCmd caches the merged list for a query
func RememberResultsCmd(svc *service.QueryService, queryID string, results []domain.Result) tea.Cmd {
	return func() tea.Msg {
		if err := svc.Remember(queryID, results); err != nil {
			return ErrMsg{Err: err, Context: "caching results"}
		}
		return ResultsRememberedMsg{QueryID: queryID, Count: len(results)}
	}
}

// OpenLinkCmd opens the page for a result in the browser
func OpenLinkCmd(launcher *adapter.Launcher, r domain.Result) tea.Cmd {
	return func() tea.Msg {
		link, err := launcher.OpenResult(r.ID)
		if err != nil {
			return ErrMsg{Err: err, Context: "opening " + r.Name}
		}
		return StatusMsg{Message: "opened " + link}
	}
}

// ClearStatusCmd clears the status message after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
