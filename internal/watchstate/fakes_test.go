package watchstate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/watchparty/internal/domain"
)

// memLocal is an in-memory LocalStore
type memLocal struct {
	mu        sync.Mutex
	watchlist []domain.ContentRef
	history   []domain.HistoryRecord
	hasData   bool
	saves     int
	saveErr   error
}

func (m *memLocal) GetWatchlist() ([]domain.ContentRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchlist, m.hasData
}

func (m *memLocal) GetHistory() ([]domain.HistoryRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history, m.hasData
}

func (m *memLocal) SaveSnapshot(snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.watchlist = snap.Watchlist
	m.history = snap.History
	m.hasData = true
	return nil
}

func (m *memLocal) snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Snapshot{Watchlist: m.watchlist, History: m.history}
}

type remoteUpdate struct {
	userID string
	snap   domain.Snapshot
}

// fakeRemote is an in-memory RemoteStore. Setting gate makes FetchUserData
// signal on started and block until gate is closed.
type fakeRemote struct {
	mu        sync.Mutex
	data      map[string]*domain.RemoteSnapshot
	fetchErr  error
	updateErr error
	fetches   []string
	updates   []remoteUpdate

	gate    chan struct{}
	started chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string]*domain.RemoteSnapshot)}
}

func (f *fakeRemote) FetchUserData(ctx context.Context, userID string) (*domain.RemoteSnapshot, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, userID)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snap, ok := f.data[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeRemote) UpdateUserData(_ context.Context, userID string, snap domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, remoteUpdate{userID: userID, snap: snap})
	return nil
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

func (f *fakeRemote) updateList() []remoteUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remoteUpdate, len(f.updates))
	copy(out, f.updates)
	return out
}

// manualScheduler fires tasks only when the test advances its clock
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	s       *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{s: s, at: s.now + d, f: f}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves time forward and runs every task that came due, in order
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTask
	for _, t := range s.tasks {
		if !t.stopped && !t.fired && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Armed counts tasks that are neither stopped nor fired
func (s *manualScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fakeSessions is a SessionSource the test drives by calling Deliver
type fakeSessions struct {
	mu      sync.Mutex
	current domain.Session
	subs    map[int]func(domain.Session)
	nextID  int
	err     error
}

func (f *fakeSessions) Current(context.Context) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.err
}

func (f *fakeSessions) Subscribe(fn func(domain.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(domain.Session))
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeSessions) Deliver(s domain.Session) {
	f.mu.Lock()
	f.current = s
	subs := make([]func(domain.Session), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

func (f *fakeSessions) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func ref(id string) domain.ContentRef {
	return domain.ContentRef{ID: domain.ContentID(id), MediaType: domain.MediaTypeMovie, Title: "Title " + id}
}

func show(id string) domain.ContentRef {
	return domain.ContentRef{ID: domain.ContentID(id), MediaType: domain.MediaTypeTV, Name: "Show " + id}
}

func ids[T Keyed](items []T) []domain.ContentID {
	out := make([]domain.ContentID, len(items))
	for i, item := range items {
		out[i] = item.Key()
	}
	return out
}
