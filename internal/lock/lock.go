// Package lock provides non-blocking per-key locks so at most one analysis
// runs per (project, user) at a time.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld indicates another holder owns the key.
var ErrHeld = errors.New("lock held")

// Release frees an acquired key. It is safe to call more than once.
type Release func()

// Locker acquires keys without waiting.
type Locker interface {
	// TryAcquire returns ErrHeld immediately when key is taken.
	TryAcquire(ctx context.Context, key string) (Release, error)
}

// Keyed is an in-process Locker.
type Keyed struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyed returns an empty in-process locker.
func NewKeyed() *Keyed {
	return &Keyed{held: make(map[string]struct{})}
}

// TryAcquire implements Locker.
func (k *Keyed) TryAcquire(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[key]; ok {
		return nil, ErrHeld
	}
	k.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently held.
func (k *Keyed) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}
