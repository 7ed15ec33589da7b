package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/tui/styles"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeLines(w io.Writer, title string, lines []string, empty string) error {
	out := []string{styles.TitleStyle.Render(title)}
	if len(lines) == 0 {
		out = append(out, styles.DimStyle.Render(empty))
	} else {
		out = append(out, lines...)
	}
	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, out...))
	return err
}

// itemLine renders one title as "★ Dark  tv  S2E3  #70523"
func itemLine(item domain.ContentRef, onList bool, progress *domain.Progress) string {
	marker := styles.OffListChar
	if onList {
		marker = styles.AccentStyle.Render(styles.OnListChar)
	}

	line := fmt.Sprintf("%s %s  %s", marker, item.DisplayTitle(), styles.DimStyle.Render(string(item.Kind())))
	if progress != nil && item.Kind() == domain.MediaTypeTV {
		line += fmt.Sprintf("  S%dE%d", progress.Season, progress.Episode)
	}
	return line + styles.DimStyle.Render("  #"+string(item.ID))
}

func recordLine(rec domain.HistoryRecord, onList bool, now time.Time) string {
	p := domain.Progress{Season: rec.LastSeason, Episode: rec.LastEpisode}
	return itemLine(rec.ContentRef, onList, &p) + styles.DimStyle.Render("  "+ago(now, rec.LastUpdated))
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
