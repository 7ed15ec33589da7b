package domain

import "errors"

// Sentinel errors for watch state operations
var (
	// ErrNotFound indicates the remote store has no row for the user
	ErrNotFound = errors.New("user data not found")

	// ErrRemoteUnavailable indicates the remote store is unreachable
	ErrRemoteUnavailable = errors.New("remote store is unreachable")

	// ErrUnauthorized indicates the access token was rejected
	ErrUnauthorized = errors.New("access token is invalid")

	// ErrNotAuthenticated indicates an operation needs a signed-in session
	ErrNotAuthenticated = errors.New("not signed in")
)
