package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/player"
	"github.com/mmcdole/watchparty/internal/watchstate"
)

// Command factories for async operations

// WaitForChangeCmd blocks until the engine publishes a change.
// It must be re-issued after each StateChangedMsg.
func WaitForChangeCmd(ch <-chan watchstate.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		change, ok := <-ch
		if !ok {
			return nil
		}
		return StateChangedMsg{Change: change}
	}
}

// PlayCmd opens the embed URL for item at progress
func PlayCmd(launcher Launcher, source string, item domain.ContentRef, progress domain.Progress) tea.Cmd {
	return func() tea.Msg {
		url, err := player.EmbedURL(source, item, progress)
		if err != nil {
			return ErrMsg{Err: err, Context: "building player url"}
		}
		if err := launcher.Launch(url); err != nil {
			return ErrMsg{Err: err, Context: "launching player"}
		}
		return PlaybackStartedMsg{Item: item, Progress: progress, URL: url}
	}
}

// SyncCmd pulls and pushes the watch state immediately
func SyncCmd(state WatchState) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := state.Sync(ctx); err != nil {
			return ErrMsg{Err: err, Context: "syncing"}
		}
		return SyncedMsg{}
	}
}
