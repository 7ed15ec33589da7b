package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the application
type KeyMap struct {
	// Navigation
	Up      key.Binding
	Down    key.Binding
	NextRow key.Binding
	PrevRow key.Binding

	// Actions
	Play            key.Binding
	ToggleWatchlist key.Binding
	NextEpisode     key.Binding
	PrevEpisode     key.Binding
	NextSeason      key.Binding
	PrevSeason      key.Binding
	CycleSource     key.Binding
	Sync            key.Binding
	Filter          key.Binding
	Escape          key.Binding
	Help            key.Binding
	Quit            key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		NextRow: key.NewBinding(
			key.WithKeys("tab", "l", "right"),
			key.WithHelp("tab", "next row"),
		),
		PrevRow: key.NewBinding(
			key.WithKeys("shift+tab", "h", "left"),
			key.WithHelp("S-tab", "previous row"),
		),
		Play: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "play"),
		),
		ToggleWatchlist: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "toggle watchlist"),
		),
		NextEpisode: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next episode"),
		),
		PrevEpisode: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous episode"),
		),
		NextSeason: key.NewBinding(
			key.WithKeys("}"),
			key.WithHelp("}", "next season"),
		),
		PrevSeason: key.NewBinding(
			key.WithKeys("{"),
			key.WithHelp("{", "previous season"),
		),
		CycleSource: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "switch server"),
		),
		Sync: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sync now"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear filter"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.ToggleWatchlist, k.NextEpisode, k.Filter, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped for the help overlay
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextRow, k.PrevRow},
		{k.Play, k.ToggleWatchlist, k.CycleSource, k.Sync},
		{k.NextEpisode, k.PrevEpisode, k.NextSeason, k.PrevSeason},
		{k.Filter, k.Escape, k.Help, k.Quit},
	}
}
