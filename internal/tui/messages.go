package tui

import (
	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/watchstate"
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

// StateChangedMsg is sent when the engine reports a change
type StateChangedMsg struct {
	Change watchstate.Change
}

// PlaybackStartedMsg signals that the browser was launched
type PlaybackStartedMsg struct {
	Item     domain.ContentRef
	Progress domain.Progress
	URL      string
}

// SyncedMsg signals that a manual sync finished
type SyncedMsg struct{}
