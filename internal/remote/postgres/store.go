// Package postgres keeps account watch state in a self-hosted Postgres
// user_data table with jsonb columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmcdole/watchparty/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_data (
	id          TEXT PRIMARY KEY,
	watchlist   JSONB NOT NULL DEFAULT '[]'::jsonb,
	history     JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// dbtx is the subset of pgxpool.Pool the store uses
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements domain.RemoteStore and domain.ProfileRepository over Postgres
type Store struct {
	db     dbtx
	logger *slog.Logger
}

// New wraps an open pool
func New(db dbtx, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Connect opens a pool for databaseURL and waits for the server to answer
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// FetchUserData reads the watch state row for userID
func (s *Store) FetchUserData(ctx context.Context, userID string) (*domain.RemoteSnapshot, error) {
	var watchlistRaw, historyRaw []byte
	err := s.db.QueryRow(ctx,
		`SELECT watchlist, history FROM user_data WHERE id = $1`,
		userID,
	).Scan(&watchlistRaw, &historyRaw)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: query user_data id=%s: %v", domain.ErrRemoteUnavailable, userID, err)
	}

	return decodeSnapshot(watchlistRaw, historyRaw)
}

// UpdateUserData upserts the watch state row for userID
func (s *Store) UpdateUserData(ctx context.Context, userID string, snap domain.Snapshot) error {
	watchlist, history, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO user_data (id, watchlist, history, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET watchlist = EXCLUDED.watchlist,
		     history = EXCLUDED.history,
		     updated_at = EXCLUDED.updated_at`,
		userID, watchlist, history, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert user_data id=%s: %v", domain.ErrRemoteUnavailable, userID, err)
	}

	s.logger.Debug("saved user data", "userID", userID, "rows", tag.RowsAffected())
	return nil
}

// FetchProfile reads the profile row for userID
func (s *Store) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := s.db.QueryRow(ctx,
		`SELECT id, display_name, avatar_url, updated_at FROM profiles WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.DisplayName, &p.AvatarURL, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query profile id=%s: %w", userID, err)
	}
	return p, nil
}

// UpdateProfile upserts the profile row for userID, keeping stored values
// for fields left empty in update
func (s *Store) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO profiles (id, display_name, avatar_url, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), profiles.display_name),
		     avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), profiles.avatar_url),
		     updated_at = EXCLUDED.updated_at`,
		userID, update.DisplayName, update.AvatarURL, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert profile id=%s: %v", domain.ErrRemoteUnavailable, userID, err)
	}

	s.logger.Debug("saved profile", "userID", userID)
	return nil
}

// decodeSnapshot turns the jsonb columns into a snapshot. NULL columns stay nil.
func decodeSnapshot(watchlistRaw, historyRaw []byte) (*domain.RemoteSnapshot, error) {
	snap := &domain.RemoteSnapshot{}
	if len(watchlistRaw) > 0 {
		if err := json.Unmarshal(watchlistRaw, &snap.Watchlist); err != nil {
			return nil, fmt.Errorf("decode watchlist: %w", err)
		}
	}
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &snap.History); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
	}
	return snap, nil
}

func encodeSnapshot(snap domain.Snapshot) (watchlist, history []byte, err error) {
	wl := snap.Watchlist
	if wl == nil {
		wl = []domain.ContentRef{}
	}
	hist := snap.History
	if hist == nil {
		hist = []domain.HistoryRecord{}
	}

	if watchlist, err = json.Marshal(wl); err != nil {
		return nil, nil, fmt.Errorf("encode watchlist: %w", err)
	}
	if history, err = json.Marshal(hist); err != nil {
		return nil, nil, fmt.Errorf("encode history: %w", err)
	}
	return watchlist, history, nil
}
