package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/tui/styles"
)

const (
	minRowWidth   = 30
	minRowVisible = 3
)

// View renders the current state
func (m Model) View() string {
	width := max(m.Width, minRowWidth+4)

	var b strings.Builder
	b.WriteString(m.renderHeader(width))
	b.WriteString("\n")

	for r := Row(0); r < rowCount; r++ {
		b.WriteString(m.renderRow(r, width))
		b.WriteString("\n")
	}

	if m.Filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader(width int) string {
	left := styles.TitleStyle.Render("WatchParty")

	who := "not signed in"
	if s := m.state.Session(); s.IsAuthenticated() {
		who = sessionLabel(s)
	}
	right := styles.SubtitleStyle.Render(who + " · " + m.Source)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// rowVisible is how many items each row can show at the current height
func (m Model) rowVisible() int {
	if m.Height == 0 {
		return 8
	}
	// header, filter, status, help and two bordered titles
	avail := (m.Height - 10) / int(rowCount)
	return max(avail, minRowVisible)
}

func (m Model) renderRow(r Row, width int) string {
	items := m.rows[r]
	inner := width - 4
	active := r == m.Active

	title := fmt.Sprintf("%s (%d)", r, len(items))
	if active {
		title = styles.AccentStyle.Bold(true).Render(title)
	} else {
		title = styles.DimStyle.Render(title)
	}

	lines := []string{title}
	if len(items) == 0 {
		lines = append(lines, styles.DimStyle.Render(emptyText(r, m.filter.Value() != "")))
	}

	start, end := window(len(items), m.cursor[r], m.rowVisible())
	for i := start; i < end; i++ {
		lines = append(lines, m.renderItem(items[i], active && i == m.cursor[r], inner))
	}

	border := styles.InactiveBorder
	if active {
		border = styles.ActiveBorder
	}
	return border.Width(inner).Render(strings.Join(lines, "\n"))
}

func (m Model) renderItem(it rowItem, selected bool, width int) string {
	marker := styles.OffListChar
	var markerColor *lipgloss.Color
	if m.state.InWatchlist(it.Ref.ID) {
		marker = styles.OnListChar
		markerColor = &styles.Accent
	}

	detail := "Movie"
	if it.Ref.Kind() == domain.MediaTypeTV {
		p := m.state.Progress(it.Ref.ID)
		detail = fmt.Sprintf("S%d · E%d", p.Season, p.Episode)
	}

	titleWidth := width - lipgloss.Width(detail) - 6
	title := styles.Truncate(it.Ref.DisplayTitle(), titleWidth)
	pad := titleWidth - lipgloss.Width(title)

	parts := []styles.RowPart{
		{Text: marker + " ", Foreground: markerColor},
		{Text: title + strings.Repeat(" ", max(pad, 0)) + " "},
		{Text: detail, Foreground: &styles.DimGray},
	}
	return styles.RenderListRow(parts, selected, width)
}

func (m Model) renderStatus() string {
	if m.StatusMsg == "" {
		return ""
	}
	if m.StatusIsErr {
		return styles.ErrorStyle.Render(m.StatusMsg)
	}
	return styles.SuccessStyle.Render(m.StatusMsg)
}

func emptyText(r Row, filtered bool) string {
	switch {
	case filtered:
		return "No matches"
	case r == RowWatchlist:
		return "Nothing saved yet. Press w on a title to add it."
	default:
		return "Nothing watched yet."
	}
}

// window returns the [start, end) slice of n items that keeps cursor visible
func window(n, cursor, visible int) (int, int) {
	if n <= visible {
		return 0, n
	}
	start := cursor - visible/2
	if start < 0 {
		start = 0
	}
	if start+visible > n {
		start = n - visible
	}
	return start, start + visible
}
