// Package watchstate owns the watchlist and watch history, keeps them on disk,
// and mirrors them to the signed-in account's remote store.
//
// All mutation goes through Engine: ToggleWatchlist, RecordProgress, and the
// merge that runs when a session signs in. Each mutation is saved locally
// before the call returns and re-arms a single debounced remote write.
package watchstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/watchparty/internal/domain"
)

// DefaultRemoteTimeout bounds each fetch or update against the remote store
const DefaultRemoteTimeout = 15 * time.Second

// ErrNoRemote is returned by Sync when no remote store is configured
var ErrNoRemote = errors.New("no remote store configured")

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	Local  domain.LocalStore
	Remote domain.RemoteStore // nil keeps everything device-local

	Scheduler     Scheduler
	Clock         Clock
	Debounce      time.Duration
	HistoryLimit  int
	RemoteTimeout time.Duration

	// FlushOnClose pushes a pending remote write during Close and on
	// sign-out instead of dropping it.
	FlushOnClose bool

	Logger *slog.Logger
}

// ChangeKind says which part of the state changed
type ChangeKind int

const (
	ChangeWatchlist ChangeKind = iota
	ChangeHistory
	ChangeMerge
	ChangeSession
)

// Change is delivered to subscribers after each mutation
type Change struct {
	Kind    ChangeKind
	Session domain.Session
}

// Engine is the single owner of the watch state
type Engine struct {
	local         domain.LocalStore
	remote        domain.RemoteStore
	clock         Clock
	historyLimit  int
	remoteTimeout time.Duration
	flushOnClose  bool
	persister     *Persister
	logger        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	watchlist   []domain.ContentRef
	history     []domain.HistoryRecord
	session     domain.Session
	generation  uint64 // bumped on every identity change
	observers   []chan<- Change
	unsubscribe func()
	closed      bool
}

// New loads the local state and returns a ready engine.
// A missing or unreadable local collection starts empty.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	timeout := opts.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		local:         opts.Local,
		remote:        opts.Remote,
		clock:         clock,
		historyLimit:  limit,
		remoteTimeout: timeout,
		flushOnClose:  opts.FlushOnClose,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		watchlist:     []domain.ContentRef{},
		history:       []domain.HistoryRecord{},
	}

	if opts.Local != nil {
		if wl, ok := opts.Local.GetWatchlist(); ok && wl != nil {
			e.watchlist = wl
		}
		if hist, ok := opts.Local.GetHistory(); ok && hist != nil {
			e.history = capHistory(hist, limit)
		}
	}
	logger.Debug("loaded local watch state", "watchlist", len(e.watchlist), "history", len(e.history))

	e.persister = NewPersister(opts.Local, opts.Scheduler, opts.Debounce, e.flushPending, logger)
	return e
}

// === Read-only views ===

// Watchlist returns a copy of the watchlist in display order
func (e *Engine) Watchlist() []domain.ContentRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSlice(e.watchlist)
}

// History returns a copy of the history, most recent first
func (e *Engine) History() []domain.HistoryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSlice(e.history)
}

// Snapshot returns copies of both collections
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Session returns the identity the engine is currently syncing for
func (e *Engine) Session() domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// InWatchlist reports watchlist membership for id
func (e *Engine) InWatchlist(id domain.ContentID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return indexOf(e.watchlist, id) >= 0
}

// Progress returns the saved season/episode for id, or 1/1 if never watched
func (e *Engine) Progress(id domain.ContentID) domain.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := indexOf(e.history, id); i >= 0 {
		return domain.Progress{Season: e.history[i].LastSeason, Episode: e.history[i].LastEpisode}
	}
	return domain.Progress{Season: 1, Episode: 1}
}

// Lookup returns the history record for id
func (e *Engine) Lookup(id domain.ContentID) (domain.HistoryRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := indexOf(e.history, id); i >= 0 {
		return e.history[i], true
	}
	return domain.HistoryRecord{}, false
}

// Subscribe registers ch for change notifications. Sends never block;
// a full channel misses the notification.
func (e *Engine) Subscribe(ch chan<- Change) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, ch)
}

// === Mutations ===

// ToggleWatchlist adds item if absent, removes it if present, and returns the new list
func (e *Engine) ToggleWatchlist(item domain.ContentRef) []domain.ContentRef {
	e.mu.Lock()
	e.watchlist = Toggle(e.watchlist, item)
	added := indexOf(e.watchlist, item.ID) >= 0
	e.persistLocked()
	e.notifyLocked(Change{Kind: ChangeWatchlist, Session: e.session})
	out := cloneSlice(e.watchlist)
	e.mu.Unlock()

	e.logger.Debug("toggled watchlist", "id", item.ID, "added", added, "count", len(out))
	return out
}

// RecordProgress stamps item as just watched at the given season/episode and
// moves it to the front of the history.
func (e *Engine) RecordProgress(item domain.ContentRef, progress *domain.Progress) domain.HistoryRecord {
	rec := NewRecord(item, progress, e.clock.Now())

	e.mu.Lock()
	e.history = Upsert(e.history, rec, e.historyLimit)
	e.persistLocked()
	e.notifyLocked(Change{Kind: ChangeHistory, Session: e.session})
	count := len(e.history)
	e.mu.Unlock()

	e.logger.Debug("recorded progress", "id", rec.ID, "season", rec.LastSeason, "episode", rec.LastEpisode, "count", count)
	return rec
}

// === Remote sync ===

// Sync pulls the remote snapshot into local state and pushes the result
// immediately, skipping the debounce.
func (e *Engine) Sync(ctx context.Context) error {
	if e.remote == nil {
		return ErrNoRemote
	}

	e.mu.Lock()
	sess, gen := e.session, e.generation
	e.mu.Unlock()

	if !sess.IsAuthenticated() {
		return domain.ErrNotAuthenticated
	}
	if err := e.mergeRemote(ctx, sess.UserID, gen); err != nil {
		return err
	}

	e.persister.Cancel()
	return e.flushRemote(ctx)
}

// Close stops following the session and cancels the pending remote write.
// With FlushOnClose set, a pending write is sent before returning.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	var err error
	if e.persister.Cancel() {
		if e.flushOnClose {
			err = e.flushRemote(ctx)
		} else {
			e.logger.Warn("dropping pending remote write on close")
		}
	}
	e.cancel()
	return err
}

// flushPending is the debounce timer callback
func (e *Engine) flushPending() {
	_ = e.flushRemote(e.ctx)
}

// flushRemote sends the current snapshot for the current session.
// Anonymous sessions skip the write.
func (e *Engine) flushRemote(ctx context.Context) error {
	e.mu.Lock()
	sess := e.session
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if e.remote == nil {
		return nil
	}
	if !sess.IsAuthenticated() {
		e.logger.Debug("skipping remote write for anonymous session")
		return nil
	}
	return e.push(ctx, sess.UserID, snap)
}

func (e *Engine) push(ctx context.Context, userID string, snap domain.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	if err := e.remote.UpdateUserData(ctx, userID, snap); err != nil {
		e.logger.Warn("remote write failed, keeping local state", "error", err, "userID", userID)
		return err
	}
	e.logger.Debug("remote write complete", "userID", userID, "watchlist", len(snap.Watchlist), "history", len(snap.History))
	return nil
}

// mergeRemote fetches the user's snapshot and folds unknown entries into
// local state. The result is dropped if the session changed while the
// fetch was in flight.
func (e *Engine) mergeRemote(ctx context.Context, userID string, gen uint64) error {
	if e.remote == nil {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	remote, err := e.remote.FetchUserData(fetchCtx, userID)
	cancel()

	if errors.Is(err, domain.ErrNotFound) {
		e.logger.Debug("no remote watch state yet", "userID", userID)
		return nil
	}
	if err != nil {
		e.logger.Warn("remote fetch failed, keeping local state", "error", err, "userID", userID)
		return err
	}
	if remote == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		e.logger.Info("discarding remote watch state from a previous session", "userID", userID)
		return nil
	}

	watchlist := Merge(e.watchlist, remote.Watchlist)
	history := capHistory(Merge(e.history, remote.History), e.historyLimit)
	addedWatchlist := len(watchlist) - len(e.watchlist)
	addedHistory := len(history) - len(e.history)
	if addedWatchlist == 0 && addedHistory == 0 {
		return nil
	}

	e.watchlist = watchlist
	e.history = history
	e.persistLocked()
	e.notifyLocked(Change{Kind: ChangeMerge, Session: e.session})

	e.logger.Info("merged remote watch state", "userID", userID, "watchlistAdded", addedWatchlist, "historyAdded", addedHistory)
	return nil
}

// === Internals ===

func (e *Engine) persistLocked() {
	e.persister.Persist(e.snapshotLocked())
}

func (e *Engine) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		Watchlist: cloneSlice(e.watchlist),
		History:   cloneSlice(e.history),
	}
}

func (e *Engine) notifyLocked(c Change) {
	for _, ch := range e.observers {
		select {
		case ch <- c:
		default:
		}
	}
}

func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
