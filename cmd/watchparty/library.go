package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/watchstate"
)

// itemFlags describe a title that is not yet in the local state
type itemFlags struct {
	mediaType string
	title     string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mediaType, "type", "", "media type for new titles: movie or tv")
	cmd.Flags().StringVar(&f.title, "title", "", "display title for new titles")
}

// resolve returns the stored ref for id, or builds one from the flags
func (f *itemFlags) resolve(engine *watchstate.Engine, id string) (domain.ContentRef, error) {
	cid := domain.ContentID(id)
	for _, item := range engine.Watchlist() {
		if item.ID == cid {
			return item, nil
		}
	}
	if rec, ok := engine.Lookup(cid); ok {
		return rec.ContentRef, nil
	}

	ref := domain.ContentRef{ID: cid}
	switch domain.MediaType(f.mediaType) {
	case domain.MediaTypeMovie:
		ref.MediaType = domain.MediaTypeMovie
		ref.Title = f.title
	case domain.MediaTypeTV:
		ref.MediaType = domain.MediaTypeTV
		ref.Name = f.title
	case "":
		return domain.ContentRef{}, fmt.Errorf("title %s is not in your watchlist or history: pass --type movie|tv", id)
	default:
		return domain.ContentRef{}, fmt.Errorf("unknown --type %q: want movie or tv", f.mediaType)
	}
	return ref, nil
}

func newWatchlistCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "List or change My Watchlist",
	}
	cmd.AddCommand(newWatchlistListCmd(c), newWatchlistToggleCmd(c))
	return cmd
}

func newWatchlistListCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show saved titles in the order added",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items := c.app.engine.Watchlist()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}

			lines := make([]string, 0, len(items))
			for _, item := range items {
				var progress *domain.Progress
				if _, ok := c.app.engine.Lookup(item.ID); ok {
					p := c.app.engine.Progress(item.ID)
					progress = &p
				}
				lines = append(lines, itemLine(item, true, progress))
			}
			return writeLines(cmd.OutOrStdout(), fmt.Sprintf("My Watchlist (%d)", len(items)), lines, "Nothing saved yet.")
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func newWatchlistToggleCmd(c *cli) *cobra.Command {
	var flags itemFlags

	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Add a title to My Watchlist, or remove it if already there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := flags.resolve(c.app.engine, args[0])
			if err != nil {
				return err
			}

			c.app.engine.ToggleWatchlist(item)
			if c.app.engine.InWatchlist(item.ID) {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to My Watchlist\n", item.DisplayTitle())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from My Watchlist\n", item.DisplayTitle())
			}
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

func newHistoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or update Continue Watching",
	}
	cmd.AddCommand(newHistoryListCmd(c), newHistoryRecordCmd(c))
	return cmd
}

func newHistoryListCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show watch history, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history := c.app.engine.History()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), history)
			}

			now := time.Now()
			lines := make([]string, 0, len(history))
			for _, rec := range history {
				lines = append(lines, recordLine(rec, c.app.engine.InWatchlist(rec.ID), now))
			}
			return writeLines(cmd.OutOrStdout(), fmt.Sprintf("Continue Watching (%d)", len(history)), lines, "Nothing watched yet.")
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func newHistoryRecordCmd(c *cli) *cobra.Command {
	var (
		flags           itemFlags
		season, episode int
	)

	cmd := &cobra.Command{
		Use:   "record <id>",
		Short: "Record that a title was watched, optionally at a season and episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := flags.resolve(c.app.engine, args[0])
			if err != nil {
				return err
			}

			// Unset flags keep the saved position.
			p := c.app.engine.Progress(item.ID)
			if cmd.Flags().Changed("season") {
				p.Season = season
			}
			if cmd.Flags().Changed("episode") {
				p.Episode = episode
			}

			rec := c.app.engine.RecordProgress(item, &p)
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s\n", describeRecord(rec))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&season, "season", 0, "season number")
	cmd.Flags().IntVar(&episode, "episode", 0, "episode number")

	return cmd
}

func describeRecord(rec domain.HistoryRecord) string {
	if rec.Kind() == domain.MediaTypeTV {
		return fmt.Sprintf("%s S%dE%d", rec.DisplayTitle(), rec.LastSeason, rec.LastEpisode)
	}
	return rec.DisplayTitle()
}
