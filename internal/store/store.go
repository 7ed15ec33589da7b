package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mmcdole/watchparty/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketWatchState = []byte("watchstate")
	bucketSession    = []byte("session")
)

// Keys inside the watchstate bucket. They match the browser's localStorage keys
// so exported state can be moved between the two.
const (
	KeyWatchlist = "watchparty_watchlist"
	KeyHistory   = "watchparty_history"

	keyCredentials = "current"
)

// Store implements domain.LocalStore and domain.SessionStore using BoltDB.
type Store struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory copy of every value written or read
	cache map[string][]byte
}

// New opens (or creates) watchparty.db under dir. An empty dir gives a
// memory-only store that forgets everything on exit.
func New(dir string) (*Store, error) {
	if dir == "" {
		return &Store{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "watchparty.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketWatchState, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: make(map[string][]byte)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

// get decodes the value at key into dest. A missing key or undecodable value
// reports false.
func (s *Store) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

// put writes several already-encoded values to one bucket in a single transaction
func (s *Store) put(bucket []byte, values map[string][]byte) error {
	s.mu.Lock()
	for key, data := range values {
		s.cache[string(bucket)+":"+key] = data
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		for key, data := range values {
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.put(bucket, map[string][]byte{key: data})
}

func (s *Store) delete(bucket []byte, key string) error {
	s.mu.Lock()
	delete(s.cache, string(bucket)+":"+key)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// === Watch state ===

func (s *Store) GetWatchlist() ([]domain.ContentRef, bool) {
	var items []domain.ContentRef
	ok := s.get(bucketWatchState, KeyWatchlist, &items)
	return items, ok
}

func (s *Store) GetHistory() ([]domain.HistoryRecord, bool) {
	var records []domain.HistoryRecord
	ok := s.get(bucketWatchState, KeyHistory, &records)
	return records, ok
}

// SaveSnapshot writes both collections atomically
func (s *Store) SaveSnapshot(snap domain.Snapshot) error {
	watchlist := snap.Watchlist
	if watchlist == nil {
		watchlist = []domain.ContentRef{}
	}
	history := snap.History
	if history == nil {
		history = []domain.HistoryRecord{}
	}

	wl, err := json.Marshal(watchlist)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	return s.put(bucketWatchState, map[string][]byte{
		KeyWatchlist: wl,
		KeyHistory:   hist,
	})
}

// === Session ===

func (s *Store) GetCredentials() (*domain.Credentials, bool) {
	var creds domain.Credentials
	if !s.get(bucketSession, keyCredentials, &creds) || creds.UserID == "" {
		return nil, false
	}
	return &creds, true
}

func (s *Store) SaveCredentials(creds *domain.Credentials) error {
	return s.set(bucketSession, keyCredentials, creds)
}

func (s *Store) ClearCredentials() error {
	return s.delete(bucketSession, keyCredentials)
}

// Clear wipes the watch state and the saved session
func (s *Store) Clear() error {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketWatchState, bucketSession} {
			b := tx.Bucket(bucket)
			if b == nil {
				continue
			}
			var keys [][]byte
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				keys = append(keys, append([]byte(nil), k...))
			}
			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// putRaw stores bytes as-is; tests use it to plant corrupt values
func (s *Store) putRaw(key string, data []byte) error {
	return s.put(bucketWatchState, map[string][]byte{key: data})
}
