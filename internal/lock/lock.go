// Package lock serialises mutating list operations per scope.
//
// The ordering engine assumes one writer per scope. A Locker makes that
// assumption hold across goroutines (Mutex) or processes (Redis). Keys are
// scope keys from ir.ScopeKey, so two records in the same partition always
// contend for the same lock.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotHeld is returned by a release when the lock had already expired
// or was taken over by another holder.
var ErrNotHeld = errors.New("lock not held")

// Release gives a lock back.
type Release func(ctx context.Context) error

// Locker acquires exclusive locks by key. Lock blocks until the lock is
// acquired or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
}

// Noop never blocks. It is the default: the single-writer assumption is
// left to the caller.
type Noop struct{}

// Lock returns immediately.
func (Noop) Lock(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// Mutex is an in-process Locker with one mutex per key. Entries are
// reference counted and dropped once nobody holds or waits for them.
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewMutex returns an empty keyed mutex.
func NewMutex() *Mutex {
	return &Mutex{locks: make(map[string]*entry)}
}

// Lock acquires key, waiting until it is free or ctx is done.
func (m *Mutex) Lock(ctx context.Context, key string) (Release, error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		err := ErrNotHeld
		once.Do(func() {
			<-e.ch
			m.unref(key, e)
			err = nil
		})
		return err
	}, nil
}

func (m *Mutex) unref(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// size reports how many keys are tracked. Used by tests.
func (m *Mutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
