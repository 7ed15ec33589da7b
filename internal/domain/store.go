package domain

// LocalStore handles on-device persistence of the watch state.
// Reads report ok=false for a missing or unreadable key; callers treat that
// as an empty collection.
type LocalStore interface {
	GetWatchlist() ([]ContentRef, bool)
	GetHistory() ([]HistoryRecord, bool)

	// SaveSnapshot overwrites both collections
	SaveSnapshot(snap Snapshot) error
}

// SessionStore persists the signed-in credentials across restarts.
type SessionStore interface {
	GetCredentials() (*Credentials, bool)
	SaveCredentials(creds *Credentials) error
	ClearCredentials() error
}
