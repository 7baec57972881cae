package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/poller"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// QueryReadyMsg signals that a query was submitted or opened and can be watched
type QueryReadyMsg struct {
	Query  domain.Query
	Cached []domain.Result // Results remembered from an earlier visit
}

// PollUpdateMsg carries one poll cycle for a session
type PollUpdateMsg struct {
	SessionID string
	Update    poller.Update
	Done      bool    // The poller's channel is closed
	NextCmd   tea.Cmd // Continuation reading the next update
}

// PulseMsg is a pulse clock phase change
type PulseMsg struct {
	Phase bool
}

// ResultsRememberedMsg signals that the merged list was cached
type ResultsRememberedMsg struct {
	QueryID string
	Count   int
}

// ClearStatusMsg clears the status bar message
type ClearStatusMsg struct{}

// StatusMsg sets a temporary status message
type StatusMsg struct {
	Message string
	IsError bool
}
