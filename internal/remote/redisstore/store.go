// Package redisstore keeps account watch state as one JSON document per user in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mmcdole/watchparty/internal/domain"
)

// Store implements domain.RemoteStore over a Redis client
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// New wraps an existing client
func New(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

// Dial parses a redis:// URL, connects, and pings
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return client, nil
}

func buildKey(userID string) string {
	return fmt.Sprintf("watchparty:user_data:%s", userID)
}

// FetchUserData reads the user's document
func (s *Store) FetchUserData(ctx context.Context, userID string) (*domain.RemoteSnapshot, error) {
	key := buildKey(userID)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrRemoteUnavailable, key, err)
	}

	var snap domain.RemoteSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user data %s: %w", key, err)
	}
	return &snap, nil
}

// UpdateUserData overwrites the user's document. It never expires.
func (s *Store) UpdateUserData(ctx context.Context, userID string, snap domain.Snapshot) error {
	if snap.Watchlist == nil {
		snap.Watchlist = []domain.ContentRef{}
	}
	if snap.History == nil {
		snap.History = []domain.HistoryRecord{}
	}

	key := buildKey(userID)
	val, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal user data: %w", err)
	}
	if err := s.client.Set(ctx, key, val, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", domain.ErrRemoteUnavailable, key, err)
	}

	s.logger.Debug("saved user data", "key", key, "bytes", len(val))
	return nil
}
