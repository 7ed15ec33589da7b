package domain

import (
	"context"
)

// RemoteStore provides the per-account copy of the watch state
type RemoteStore interface {
	// FetchUserData returns the stored snapshot for a user.
	// Returns ErrNotFound when the user has no row yet.
	FetchUserData(ctx context.Context, userID string) (*RemoteSnapshot, error)

	// UpdateUserData overwrites the stored snapshot (last write wins)
	UpdateUserData(ctx context.Context, userID string, snap Snapshot) error
}

// ProfileRepository reads and edits account profiles
type ProfileRepository interface {
	FetchProfile(ctx context.Context, userID string) (*Profile, error)

	// UpdateProfile writes the non-empty fields of update and stamps updated_at
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error
}

// SessionSource reports the current identity and delivers later transitions
type SessionSource interface {
	// Current returns the identity known right now
	Current(ctx context.Context) (Session, error)

	// Subscribe registers fn for every subsequent identity delivery.
	// The returned function removes the subscription.
	Subscribe(fn func(Session)) (unsubscribe func())
}
