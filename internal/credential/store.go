package credential

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// AccessTokenKey is the key the dashboard stores its session token under.
const AccessTokenKey = "access_token"

// ErrEmptyKey is returned when a store is asked for an empty key.
var ErrEmptyKey = errors.New("credential key is empty")

// Store is a string key/value source for credentials.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// WritableStore is a Store that can also persist values.
type WritableStore interface {
	Store
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// AccessToken reads the access token from store.
// Store failures are logged and reported as an absent token, so a broken
// store behaves like a logged-out session.
func AccessToken(ctx context.Context, store Store, logger *slog.Logger) (string, bool) {
	if store == nil {
		return "", false
	}
	if logger == nil {
		logger = slog.Default()
	}

	token, ok, err := store.Get(ctx, AccessTokenKey)
	if err != nil {
		logger.Warn("read access token failed", "error", err)
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a MemoryStore seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements WritableStore.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete implements WritableStore.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
