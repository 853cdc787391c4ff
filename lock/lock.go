// Package lock serializes operations that touch the same key.
package lock

import (
	"context"
	"sync"
)

// Locker runs fn while holding an exclusive lock on key. The context passed
// to fn is cancelled if the lock is lost before fn returns; writes made under
// the lock must check it before they commit.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Different keys never block each other.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

func (km *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	entry := km.acquireRef(key)
	defer km.releaseRef(key, entry)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.sem }()

	return fn(ctx)
}

func (km *KeyedMutex) acquireRef(key string) *keyedEntry {
	km.mu.Lock()
	defer km.mu.Unlock()

	entry, ok := km.entries[key]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		km.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (km *KeyedMutex) releaseRef(key string, entry *keyedEntry) {
	km.mu.Lock()
	defer km.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(km.entries, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (km *KeyedMutex) Len() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.entries)
}
