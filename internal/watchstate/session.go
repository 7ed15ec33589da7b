package watchstate

import (
	"context"

	"github.com/mmcdole/watchparty/internal/domain"
)

// Attach reads the current identity from src, applies it, and follows
// every later transition until Close.
func (e *Engine) Attach(ctx context.Context, src domain.SessionSource) {
	sess, err := src.Current(ctx)
	if err != nil {
		e.logger.Warn("failed to read current session, continuing anonymous", "error", err)
		sess = domain.Anonymous()
	}
	e.HandleSession(ctx, sess)

	unsubscribe := src.Subscribe(func(next domain.Session) {
		e.HandleSession(e.ctx, next)
	})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		unsubscribe()
		return
	}
	e.unsubscribe = unsubscribe
	e.mu.Unlock()
}

// HandleSession applies an identity transition. Re-delivering the current
// identity does nothing. Moving to an authenticated user fetches that
// user's remote snapshot and merges it into local state.
func (e *Engine) HandleSession(ctx context.Context, next domain.Session) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	prev := e.session
	if prev.UserID == next.UserID {
		e.session = next
		e.mu.Unlock()
		return
	}

	// A write still pending for the outgoing user goes to that user.
	var handoff *domain.Snapshot
	if prev.IsAuthenticated() && e.flushOnClose && e.persister.Cancel() {
		snap := e.snapshotLocked()
		handoff = &snap
	}

	e.session = next
	e.generation++
	gen := e.generation
	e.persistLocked()
	e.notifyLocked(Change{Kind: ChangeSession, Session: next})
	e.mu.Unlock()

	if handoff != nil && e.remote != nil {
		_ = e.push(ctx, prev.UserID, *handoff)
	}

	if !next.IsAuthenticated() {
		e.logger.Info("session ended", "previousUserID", prev.UserID)
		return
	}
	e.logger.Info("session started", "userID", next.UserID)
	_ = e.mergeRemote(ctx, next.UserID, gen)
}
