package cache

import (
	"context"
	"sync"
	"time"
)

// FillFunc fetches a fresh value when the cache misses.
type FillFunc func(ctx context.Context) ([]byte, error)

// Loader serializes cache fills per key so an expired entry triggers exactly
// one upstream fetch per expiry window; concurrent callers wait and then read
// the freshly stored value.
type Loader struct {
	cache Cache

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLoader wraps a cache with fill coordination.
func NewLoader(cache Cache) *Loader {
	return &Loader{cache: cache, locks: make(map[string]*keyLock)}
}

// GetOrFill returns the cached value for key, invoking fill on a miss and
// storing the result with the given TTL.
func (l *Loader) GetOrFill(ctx context.Context, key string, ttl time.Duration, fill FillFunc) ([]byte, error) {
	if value, ok, err := l.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return value, nil
	}

	lock := l.acquire(key)
	defer l.release(key, lock)

	lock.mu.Lock()
	defer lock.mu.Unlock()

	// Another caller may have filled the entry while we waited.
	if value, ok, err := l.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return value, nil
	}

	value, err := fill(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.cache.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}
	return value, nil
}

// Invalidate drops the cached entry for key.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}

func (l *Loader) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &keyLock{}
		l.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (l *Loader) release(key string, lock *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}
