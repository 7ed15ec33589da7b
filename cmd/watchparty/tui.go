package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mmcdole/watchparty/internal/tui"
	"github.com/mmcdole/watchparty/internal/watchstate"
)

// runTUI opens the home screen until the user quits
func runTUI(cmd *cobra.Command, a *app) error {
	changes := make(chan watchstate.Change, 32)
	a.engine.Subscribe(changes)

	model := tui.NewModel(tui.Options{
		State:    a.engine,
		Launcher: a.launcher,
		Changes:  changes,
		Source:   a.cfg.Player.Source,
		Logger:   a.logger,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)

	a.logger.Info("starting TUI")
	if _, err := p.Run(); err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
