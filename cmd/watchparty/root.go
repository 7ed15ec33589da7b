package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/watchparty/internal/adapter"
)

// closeTimeout bounds the final remote flush on exit
const closeTimeout = 10 * time.Second

// cli carries flag values and the lazily wired app between commands
type cli struct {
	configDir string
	app       *app
}

// run executes one command line and releases everything it opened
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	if c.app != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		err = errors.Join(err, c.app.Close(closeCtx))
	}
	return err
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "watchparty",
		Short:         "Track what you watch and keep it in sync across devices",
		Long:          "watchparty keeps a watchlist and watch history on this device and mirrors them to your account when you are signed in. Run without a command to open the terminal UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.wire(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, c.app)
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configDir, "config", "", "config directory (default "+adapter.DefaultConfigPath()+")")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newSignupCmd(c),
		newPasswdCmd(c),
		newResetPasswordCmd(c),
		newProfileCmd(c),
		newWatchlistCmd(c),
		newHistoryCmd(c),
		newFindCmd(c),
		newPlayCmd(c),
		newSyncCmd(c),
	)

	return rootCmd
}

// wire loads config and builds the app once per invocation
func (c *cli) wire(ctx context.Context) error {
	if c.app != nil {
		return nil
	}

	var paths []string
	if c.configDir != "" {
		paths = append(paths, c.configDir)
	}
	cfg, err := adapter.LoadConfig(paths...)
	if err != nil {
		return err
	}

	a, err := wireApp(ctx, cfg)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}
