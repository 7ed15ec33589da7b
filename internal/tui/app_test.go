package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/watchparty/internal/domain"
	"github.com/mmcdole/watchparty/internal/watchstate"
)

// fakeState is an in-memory WatchState
type fakeState struct {
	watchlist []domain.ContentRef
	history   []domain.HistoryRecord
	session   domain.Session
	syncErr   error
	synced    int
}

func (f *fakeState) Watchlist() []domain.ContentRef { return f.watchlist }
func (f *fakeState) History() []domain.HistoryRecord { return f.history }
func (f *fakeState) Session() domain.Session { return f.session }
func (f *fakeState) Sync(context.Context) error {
	f.synced++
	return f.syncErr
}

func (f *fakeState) InWatchlist(id domain.ContentID) bool {
	for _, it := range f.watchlist {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeState) Progress(id domain.ContentID) domain.Progress {
	for _, r := range f.history {
		if r.ID == id {
			return domain.Progress{Season: r.LastSeason, Episode: r.LastEpisode}
		}
	}
	return domain.Progress{Season: 1, Episode: 1}
}

func (f *fakeState) ToggleWatchlist(item domain.ContentRef) []domain.ContentRef {
	for i, it := range f.watchlist {
		if it.ID == item.ID {
			f.watchlist = append(f.watchlist[:i:i], f.watchlist[i+1:]...)
			return f.watchlist
		}
	}
	f.watchlist = append([]domain.ContentRef{item}, f.watchlist...)
	return f.watchlist
}

func (f *fakeState) RecordProgress(item domain.ContentRef, p *domain.Progress) domain.HistoryRecord {
	rec := domain.HistoryRecord{ContentRef: item, LastSeason: 1, LastEpisode: 1, LastUpdated: time.Now()}
	if p != nil {
		rec.LastSeason, rec.LastEpisode = p.Season, p.Episode
	}
	out := []domain.HistoryRecord{rec}
	for _, r := range f.history {
		if r.ID != item.ID {
			out = append(out, r)
		}
	}
	f.history = out
	return rec
}

type fakeLauncher struct {
	urls []string
	err  error
}

func (l *fakeLauncher) Launch(url string) error {
	l.urls = append(l.urls, url)
	return l.err
}

func movie(id, title string) domain.ContentRef {
	return domain.ContentRef{ID: domain.ContentID(id), MediaType: domain.MediaTypeMovie, Title: title}
}

func show(id, name string) domain.ContentRef {
	return domain.ContentRef{ID: domain.ContentID(id), MediaType: domain.MediaTypeTV, Name: name}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func newTestModel(state *fakeState, launcher *fakeLauncher) Model {
	return NewModel(Options{State: state, Launcher: launcher, Source: "vidsrc.xyz"})
}

func TestNewModel_BuildsRows(t *testing.T) {
	state := &fakeState{
		watchlist: []domain.ContentRef{movie("1", "Heat")},
		history:   []domain.HistoryRecord{{ContentRef: show("2", "Dark"), LastSeason: 2, LastEpisode: 3}},
	}
	m := newTestModel(state, &fakeLauncher{})

	require.Len(t, m.rows[RowContinue], 1)
	require.Len(t, m.rows[RowWatchlist], 1)
	assert.Equal(t, RowContinue, m.Active)

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, domain.ContentID("2"), sel.ID)
}

func TestNewModel_UnknownSourceFallsBack(t *testing.T) {
	m := NewModel(Options{State: &fakeState{}, Source: "nope"})
	assert.Equal(t, "vidsrc.xyz", m.Source)
}

func TestUpdate_Navigation(t *testing.T) {
	state := &fakeState{watchlist: []domain.ContentRef{movie("1", "Heat"), movie("2", "Alien")}}
	m := newTestModel(state, &fakeLauncher{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, RowWatchlist, m.Active)

	m, _ = update(t, m, runes("j"))
	sel, _ := m.Selected()
	assert.Equal(t, domain.ContentID("2"), sel.ID)

	// stays on the last item
	m, _ = update(t, m, runes("j"))
	sel, _ = m.Selected()
	assert.Equal(t, domain.ContentID("2"), sel.ID)

	m, _ = update(t, m, runes("k"))
	sel, _ = m.Selected()
	assert.Equal(t, domain.ContentID("1"), sel.ID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, RowContinue, m.Active)
	_, ok := m.Selected()
	assert.False(t, ok)
}

func TestUpdate_ToggleWatchlist(t *testing.T) {
	state := &fakeState{history: []domain.HistoryRecord{{ContentRef: movie("1", "Heat"), LastSeason: 1, LastEpisode: 1}}}
	m := newTestModel(state, &fakeLauncher{})

	m, _ = update(t, m, runes("w"))
	assert.True(t, state.InWatchlist("1"))
	assert.Len(t, m.rows[RowWatchlist], 1)
	assert.Contains(t, m.StatusMsg, "Added Heat")

	m, _ = update(t, m, runes("w"))
	assert.False(t, state.InWatchlist("1"))
	assert.Empty(t, m.rows[RowWatchlist])
	assert.Contains(t, m.StatusMsg, "Removed Heat")
}

func TestUpdate_PlayRecordsAndLaunches(t *testing.T) {
	state := &fakeState{watchlist: []domain.ContentRef{show("66732", "Stranger Things")}}
	launcher := &fakeLauncher{}
	m := newTestModel(state, launcher)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Len(t, state.history, 1)
	assert.Equal(t, 1, state.history[0].LastSeason)

	msg := cmd()
	started, ok := msg.(PlaybackStartedMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, domain.ContentID("66732"), started.Item.ID)
	require.Len(t, launcher.urls, 1)
	assert.Contains(t, launcher.urls[0], "66732")

	m, _ = update(t, m, msg)
	assert.Equal(t, "Playing Stranger Things S1E1", m.StatusMsg)
}

func TestUpdate_PlayLaunchError(t *testing.T) {
	state := &fakeState{history: []domain.HistoryRecord{{ContentRef: movie("1", "Heat"), LastSeason: 1, LastEpisode: 1}}}
	m := newTestModel(state, &fakeLauncher{err: errors.New("no browser")})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()
	require.IsType(t, ErrMsg{}, msg)

	m, _ = update(t, m, msg)
	assert.True(t, m.StatusIsErr)
	assert.Contains(t, m.StatusMsg, "no browser")
}

func TestUpdate_EpisodeStepping(t *testing.T) {
	state := &fakeState{history: []domain.HistoryRecord{
		{ContentRef: movie("1", "Heat"), LastSeason: 1, LastEpisode: 1},
		{ContentRef: show("2", "Dark"), LastSeason: 2, LastEpisode: 5},
	}}
	m := newTestModel(state, &fakeLauncher{})
	m, _ = update(t, m, runes("j"))

	m, _ = update(t, m, runes("]"))
	assert.Equal(t, domain.Progress{Season: 2, Episode: 6}, state.Progress("2"))
	// the show moved to the front and the cursor followed it
	sel, _ := m.Selected()
	assert.Equal(t, domain.ContentID("2"), sel.ID)
	assert.Equal(t, "Dark S2E6", m.StatusMsg)

	m, _ = update(t, m, runes("}"))
	assert.Equal(t, domain.Progress{Season: 3, Episode: 1}, state.Progress("2"))

	m, _ = update(t, m, runes("["))
	assert.Equal(t, domain.Progress{Season: 3, Episode: 1}, state.Progress("2"))

	_, _ = update(t, m, runes("{"))
	assert.Equal(t, domain.Progress{Season: 2, Episode: 1}, state.Progress("2"))
}

func TestUpdate_EpisodeSteppingIgnoresMovies(t *testing.T) {
	state := &fakeState{history: []domain.HistoryRecord{{ContentRef: movie("1", "Heat"), LastSeason: 1, LastEpisode: 1}}}
	m := newTestModel(state, &fakeLauncher{})

	m, _ = update(t, m, runes("]"))
	assert.True(t, m.StatusIsErr)
	assert.Equal(t, 1, state.history[0].LastEpisode)
}

func TestUpdate_Filter(t *testing.T) {
	state := &fakeState{watchlist: []domain.ContentRef{
		movie("1", "Heat"), show("2", "Dark"), movie("3", "The Dark Knight"),
	}}
	m := newTestModel(state, &fakeLauncher{})

	m, _ = update(t, m, runes("/"))
	require.True(t, m.Filtering)
	for _, r := range "dark" {
		m, _ = update(t, m, runes(string(r)))
	}
	require.Len(t, m.rows[RowWatchlist], 2)
	assert.Equal(t, "Dark", m.rows[RowWatchlist][0].Ref.DisplayTitle())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Filtering)
	assert.Len(t, m.rows[RowWatchlist], 2)
	assert.Contains(t, m.View(), "dark")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.rows[RowWatchlist], 3)
}

func TestUpdate_CycleSource(t *testing.T) {
	m := newTestModel(&fakeState{}, &fakeLauncher{})

	seen := map[string]bool{m.Source: true}
	for i := 0; i < 5; i++ {
		m, _ = update(t, m, runes("v"))
		seen[m.Source] = true
	}
	assert.Len(t, seen, 3)
}

func TestUpdate_SyncRequiresSignIn(t *testing.T) {
	state := &fakeState{}
	m := newTestModel(state, &fakeLauncher{})

	m, cmd := update(t, m, runes("s"))
	assert.Nil(t, cmd)
	assert.True(t, m.StatusIsErr)

	state.session = domain.Session{UserID: "u1", Email: "ada@example.com"}
	m, cmd = update(t, m, runes("s"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.IsType(t, SyncedMsg{}, msg)
	assert.Equal(t, 1, state.synced)

	m, _ = update(t, m, msg)
	assert.Equal(t, "Synced", m.StatusMsg)
}

func TestUpdate_StateChangedReloadsAndRelistens(t *testing.T) {
	state := &fakeState{}
	changes := make(chan watchstate.Change, 1)
	m := NewModel(Options{State: state, Changes: changes})

	state.watchlist = []domain.ContentRef{movie("1", "Heat")}
	m, cmd := update(t, m, StateChangedMsg{Change: watchstate.Change{Kind: watchstate.ChangeMerge}})
	assert.Len(t, m.rows[RowWatchlist], 1)
	assert.Equal(t, "Synced from your account", m.StatusMsg)
	require.NotNil(t, cmd)

	changes <- watchstate.Change{Kind: watchstate.ChangeSession, Session: domain.Anonymous()}
	msg := cmd()
	assert.Equal(t, StateChangedMsg{Change: watchstate.Change{Kind: watchstate.ChangeSession, Session: domain.Anonymous()}}, msg)

	m, _ = update(t, m, msg)
	assert.Equal(t, "Signed out", m.StatusMsg)
}

func TestWaitForChangeCmd(t *testing.T) {
	assert.Nil(t, WaitForChangeCmd(nil))

	ch := make(chan watchstate.Change)
	close(ch)
	assert.Nil(t, WaitForChangeCmd(ch)())
}

func TestView(t *testing.T) {
	state := &fakeState{
		watchlist: []domain.ContentRef{show("2", "Dark")},
		history:   []domain.HistoryRecord{{ContentRef: show("2", "Dark"), LastSeason: 2, LastEpisode: 3}},
		session:   domain.Session{UserID: "u1", Email: "ada@example.com"},
	}
	m := newTestModel(state, &fakeLauncher{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	out := m.View()
	assert.Contains(t, out, "Continue Watching (1)")
	assert.Contains(t, out, "My Watchlist (1)")
	assert.Contains(t, out, "S2 · E3")
	assert.Contains(t, out, "ada@example.com")
	assert.True(t, strings.Contains(out, "★"))
}

func TestView_Empty(t *testing.T) {
	out := newTestModel(&fakeState{}, &fakeLauncher{}).View()
	assert.Contains(t, out, "Nothing watched yet.")
	assert.Contains(t, out, "not signed in")
}

func TestWindow(t *testing.T) {
	s, e := window(3, 0, 5)
	assert.Equal(t, [2]int{0, 3}, [2]int{s, e})

	s, e = window(20, 10, 5)
	assert.Equal(t, [2]int{8, 13}, [2]int{s, e})

	s, e = window(20, 19, 5)
	assert.Equal(t, [2]int{15, 20}, [2]int{s, e})
}
