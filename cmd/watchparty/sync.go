package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/watchstate"
)

func newSyncCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge with your account now and push the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := c.app.engine.Sync(cmd.Context())
			switch {
			case errors.Is(err, watchstate.ErrNoRemote):
				return errors.New("no remote store configured: set remote.backend in config")
			case errors.Is(err, domain.ErrNotAuthenticated):
				return errors.New("not signed in: run 'watchparty login' first")
			case err != nil:
				return fmt.Errorf("sync failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d watchlist items and %d history entries\n",
				len(c.app.engine.Watchlist()), len(c.app.engine.History()))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skips wiring: version needs no config or store.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "watchparty %s\n", Version)
			return err
		},
	}
}
