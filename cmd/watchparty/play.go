package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/player"
	"github.com/mmcdole/watchparty/internal/search"
)

func newFindCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Fuzzy-search your watchlist and history by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := search.Entries(c.app.engine.Watchlist(), c.app.engine.History())
			results := search.Find(args[0], entries)
			if asJSON {
				items := make([]domain.ContentRef, len(results))
				for i, r := range results {
					items[i] = r.Item
				}
				return writeJSON(cmd.OutOrStdout(), items)
			}

			lines := make([]string, 0, len(results))
			for _, r := range results {
				var progress *domain.Progress
				if r.Record != nil {
					progress = &domain.Progress{Season: r.Record.LastSeason, Episode: r.Record.LastEpisode}
				}
				lines = append(lines, itemLine(r.Item, r.InWatchlist, progress))
			}
			return writeLines(cmd.OutOrStdout(), fmt.Sprintf("Matches for %q (%d)", args[0], len(results)), lines, "No matches.")
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func newPlayCmd(c *cli) *cobra.Command {
	var (
		flags           itemFlags
		season, episode int
		source          string
		printOnly       bool
	)

	cmd := &cobra.Command{
		Use:   "play <id>",
		Short: "Open a title in the browser and record it as watched",
		Long:  "play opens the embed player for a title. Shows resume at the saved season and episode unless --season or --episode is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := flags.resolve(c.app.engine, args[0])
			if err != nil {
				return err
			}
			if source == "" {
				source = c.app.cfg.Player.Source
			}

			progress := c.app.engine.Progress(item.ID)
			if season > 0 {
				progress.Season = season
				if episode == 0 {
					progress.Episode = 1
				}
			}
			if episode > 0 {
				progress.Episode = episode
			}

			url, err := player.EmbedURL(source, item, progress)
			if err != nil {
				return err
			}
			c.app.engine.RecordProgress(item, &progress)

			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			}
			if err := c.app.launcher.Launch(url); err != nil {
				return fmt.Errorf("launch player: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Playing %s\n", describeRecord(domain.HistoryRecord{
				ContentRef:  item,
				LastSeason:  progress.Season,
				LastEpisode: progress.Episode,
			}))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&season, "season", 0, "season to play (default: saved season)")
	cmd.Flags().IntVar(&episode, "episode", 0, "episode to play (default: saved episode)")
	cmd.Flags().StringVar(&source, "source", "", "embed source (default from config)")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the player URL instead of opening it")

	return cmd
}
