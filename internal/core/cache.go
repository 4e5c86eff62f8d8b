// Package core defines the ports of the page generator (repositories, LLM, CMS, cache)
// and the small pieces of logic that live directly on top of them.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CacheRepository defines the interface for caching operations.
// The core defines the interface and the data layer provides the implementation.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DeleteIfValue atomically deletes key only while it still holds value.
	DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// ErrLockHeld is returned when another owner holds the lock.
var ErrLockHeld = errors.New("lock is held by another owner")

// KeyedLockOptions bundles dependencies for NewKeyedLock.
type KeyedLockOptions struct {
	Cache  CacheRepository
	Prefix string
	TTL    time.Duration
}

// KeyedLock is a best-effort distributed lock built on CacheRepository.
// It serializes operations per key (one publish per locality at a time).
type KeyedLock struct {
	cache  CacheRepository
	prefix string
	ttl    time.Duration
}

// NewKeyedLock creates a KeyedLock. TTL defaults to ten minutes.
func NewKeyedLock(opts KeyedLockOptions) *KeyedLock {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &KeyedLock{cache: opts.Cache, prefix: opts.Prefix, ttl: ttl}
}

// Acquire takes the lock for id and returns a release func.
// It returns ErrLockHeld when the key is already taken.
func (l *KeyedLock) Acquire(ctx context.Context, id string) (func(context.Context) error, error) {
	key := l.prefix + id
	token := []byte(uuid.NewString())

	ok, err := l.cache.SetIfNotExists(ctx, key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if _, err := l.cache.DeleteIfValue(ctx, key, token); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}
