package locking

import (
	"context"
	"sync"
	"time"

	"github.com/wms/backend/internal/domain/shared"
)

// KeyedMutex serializes writers per key inside one process. Each key gets a
// channel-based lock so waiting can race against the context and the wait
// timeout instead of blocking forever.
type KeyedMutex struct {
	mu          sync.Mutex
	slots       map[string]*slot
	waitTimeout time.Duration
}

type slot struct {
	ch   chan struct{} // holds one token when the key is free
	refs int
}

// NewKeyedMutex creates a keyed mutex with the given wait timeout
func NewKeyedMutex(waitTimeout time.Duration) *KeyedMutex {
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &KeyedMutex{
		slots:       make(map[string]*slot),
		waitTimeout: waitTimeout,
	}
}

// Acquire takes the lock for the key, waiting up to the configured timeout.
// The returned release function must be called exactly once.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		s.ch <- struct{}{}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	timer := time.NewTimer(m.waitTimeout)
	defer timer.Stop()

	select {
	case <-s.ch:
		var once sync.Once
		return func() {
			once.Do(func() {
				s.ch <- struct{}{}
				m.put(key, s)
			})
		}, nil
	case <-timer.C:
		m.put(key, s)
		return nil, shared.ErrLockTimeout
	case <-ctx.Done():
		m.put(key, s)
		return nil, ctx.Err()
	}
}

// put drops one reference and frees the slot when nobody holds or waits on it
func (m *KeyedMutex) put(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}
