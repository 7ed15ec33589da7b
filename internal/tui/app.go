// Package tui is the terminal home screen: Continue Watching and My Watchlist.
package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/player"
	"github.com/mmcdole/watchparty/internal/watchstate"
)

// WatchState is the engine surface the TUI drives.
// Defined here because the TUI is the consumer.
type WatchState interface {
	Watchlist() []domain.ContentRef
	History() []domain.HistoryRecord
	InWatchlist(id domain.ContentID) bool
	Progress(id domain.ContentID) domain.Progress
	Session() domain.Session
	ToggleWatchlist(item domain.ContentRef) []domain.ContentRef
	RecordProgress(item domain.ContentRef, progress *domain.Progress) domain.HistoryRecord
	Sync(ctx context.Context) error
}

// Launcher opens a URL for playback
type Launcher interface {
	Launch(url string) error
}

// Row identifies a home screen row
type Row int

const (
	RowContinue Row = iota
	RowWatchlist
	rowCount
)

func (r Row) String() string {
	if r == RowWatchlist {
		return "My Watchlist"
	}
	return "Continue Watching"
}

// Options wires the model to the rest of the app
type Options struct {
	State    WatchState
	Launcher Launcher
	Changes  <-chan watchstate.Change // from Engine.Subscribe; may be nil
	Source   string                   // embed source id
	Logger   *slog.Logger
}

// Model is the main Bubble Tea model for the application
type Model struct {
	state    WatchState
	launcher Launcher
	changes  <-chan watchstate.Change
	logger   *slog.Logger

	keys   KeyMap
	help   help.Model
	filter textinput.Model

	// Data
	history   []domain.HistoryRecord
	watchlist []domain.ContentRef
	rows      [rowCount][]rowItem // filtered projections of the data

	// UI state
	Active      Row
	cursor      [rowCount]int
	Source      string
	Filtering   bool
	StatusMsg   string
	StatusIsErr bool
	ShowHelp    bool

	// Dimensions
	Width  int
	Height int
}

// NewModel creates the home screen model
func NewModel(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	source := opts.Source
	if _, ok := player.LookupSource(source); !ok {
		source = player.DefaultSource
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter titles"
	ti.CharLimit = 64

	m := Model{
		state:    opts.State,
		launcher: opts.Launcher,
		changes:  opts.Changes,
		logger:   logger,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		filter:   ti,
		Source:   source,
	}
	m.reload()
	return m
}

// Init starts listening for engine changes
func (m Model) Init() tea.Cmd {
	return WaitForChangeCmd(m.changes)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		m.filter.Width = max(msg.Width-6, 10)
		return m, nil

	case tea.KeyMsg:
		if m.Filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKeyMsg(msg)

	case StateChangedMsg:
		m.reload()
		switch msg.Change.Kind {
		case watchstate.ChangeMerge:
			m.setStatus("Synced from your account", false)
		case watchstate.ChangeSession:
			if msg.Change.Session.IsAuthenticated() {
				m.setStatus("Signed in as "+sessionLabel(msg.Change.Session), false)
			} else {
				m.setStatus("Signed out", false)
			}
		}
		return m, WaitForChangeCmd(m.changes)

	case PlaybackStartedMsg:
		m.setStatus("Playing "+describe(msg.Item, msg.Progress), false)
		return m, nil

	case SyncedMsg:
		m.reload()
		m.setStatus("Synced", false)
		return m, nil

	case ErrMsg:
		m.logger.Error("tui action failed", "error", msg.Err, "context", msg.Context)
		m.setStatus(msg.Error(), true)
		return m, nil
	}

	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.Filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case tea.KeyEnter:
		m.Filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	m.cursor = [rowCount]int{}
	return m, cmd
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor[m.Active] > 0 {
			m.cursor[m.Active]--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor[m.Active] < len(m.rows[m.Active])-1 {
			m.cursor[m.Active]++
		}
		return m, nil

	case key.Matches(msg, m.keys.NextRow):
		m.Active = (m.Active + 1) % rowCount
		return m, nil

	case key.Matches(msg, m.keys.PrevRow):
		m.Active = (m.Active + rowCount - 1) % rowCount
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.Filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Escape):
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil

	case key.Matches(msg, m.keys.CycleSource):
		m.Source = nextSource(m.Source)
		m.setStatus("Server: "+m.Source, false)
		return m, nil

	case key.Matches(msg, m.keys.Sync):
		if !m.state.Session().IsAuthenticated() {
			m.setStatus("Sign in with 'watchparty login' to sync", true)
			return m, nil
		}
		m.setStatus("Syncing...", false)
		return m, SyncCmd(m.state)

	case key.Matches(msg, m.keys.ToggleWatchlist):
		return m.toggleSelected()

	case key.Matches(msg, m.keys.Play):
		return m.playSelected()

	case key.Matches(msg, m.keys.NextEpisode):
		return m.stepSelected(0, 1)
	case key.Matches(msg, m.keys.PrevEpisode):
		return m.stepSelected(0, -1)
	case key.Matches(msg, m.keys.NextSeason):
		return m.stepSelected(1, 0)
	case key.Matches(msg, m.keys.PrevSeason):
		return m.stepSelected(-1, 0)
	}
	return m, nil
}

// Selected returns the highlighted item in the active row
func (m Model) Selected() (domain.ContentRef, bool) {
	items := m.rows[m.Active]
	i := m.cursor[m.Active]
	if i < 0 || i >= len(items) {
		return domain.ContentRef{}, false
	}
	return items[i].Ref, true
}

func (m Model) toggleSelected() (tea.Model, tea.Cmd) {
	item, ok := m.Selected()
	if !ok {
		return m, nil
	}
	m.state.ToggleWatchlist(item)
	if m.state.InWatchlist(item.ID) {
		m.setStatus("Added "+item.DisplayTitle()+" to My Watchlist", false)
	} else {
		m.setStatus("Removed "+item.DisplayTitle()+" from My Watchlist", false)
	}
	m.reload()
	return m, nil
}

func (m Model) playSelected() (tea.Model, tea.Cmd) {
	item, ok := m.Selected()
	if !ok {
		return m, nil
	}
	progress := m.state.Progress(item.ID)
	m.state.RecordProgress(item, &progress)
	m.reload()
	m.follow(item.ID)
	return m, PlayCmd(m.launcher, m.Source, item, progress)
}

// stepSelected moves the selected show's saved position. A season step
// starts that season at episode 1.
func (m Model) stepSelected(seasonDelta, episodeDelta int) (tea.Model, tea.Cmd) {
	item, ok := m.Selected()
	if !ok {
		return m, nil
	}
	if item.Kind() != domain.MediaTypeTV {
		m.setStatus("Episodes only apply to shows", true)
		return m, nil
	}

	p := m.state.Progress(item.ID)
	if seasonDelta != 0 {
		p.Season = max(p.Season+seasonDelta, 1)
		p.Episode = 1
	} else {
		p.Episode = max(p.Episode+episodeDelta, 1)
	}

	rec := m.state.RecordProgress(item, &p)
	m.reload()
	m.follow(item.ID)
	m.setStatus(describe(item, domain.Progress{Season: rec.LastSeason, Episode: rec.LastEpisode}), false)
	return m, nil
}

// follow keeps the cursor on id after the rows were rebuilt
func (m *Model) follow(id domain.ContentID) {
	for i, it := range m.rows[m.Active] {
		if it.Ref.ID == id {
			m.cursor[m.Active] = i
			return
		}
	}
}

func (m *Model) reload() {
	m.history = m.state.History()
	m.watchlist = m.state.Watchlist()
	m.applyFilter()
}

func (m *Model) applyFilter() {
	query := m.filter.Value()
	m.rows[RowContinue] = filterItems(query, historyItems(m.history))
	m.rows[RowWatchlist] = filterItems(query, watchlistItems(m.watchlist))
	for r := range m.rows {
		if m.cursor[r] >= len(m.rows[r]) {
			m.cursor[r] = max(len(m.rows[r])-1, 0)
		}
	}
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.StatusMsg = msg
	m.StatusIsErr = isErr
}

func nextSource(current string) string {
	for i, s := range player.Sources {
		if s.ID == current {
			return player.Sources[(i+1)%len(player.Sources)].ID
		}
	}
	return player.DefaultSource
}

func describe(item domain.ContentRef, p domain.Progress) string {
	if item.Kind() == domain.MediaTypeTV {
		return fmt.Sprintf("%s S%dE%d", item.DisplayTitle(), p.Season, p.Episode)
	}
	return item.DisplayTitle()
}

func sessionLabel(s domain.Session) string {
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}
