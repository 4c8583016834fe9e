// README: Session store contract and the in-memory implementation.
package session

import (
	"context"
	"sync"
	"time"
)

// Store keeps at most one Session per browser client.
type Store interface {
	// Get returns a copy of the client's session, or nil when idle.
	Get(ctx context.Context, clientID string) (*Session, error)
	// Replace stores s wholesale, discarding whatever was there.
	Replace(ctx context.Context, clientID string, s *Session) error
	// Delete discards the client's session. Deleting an idle client is not an error.
	Delete(ctx context.Context, clientID string) error
	// Update applies fn to the current session atomically. fn receives nil when idle;
	// returning an error aborts the write.
	Update(ctx context.Context, clientID string, fn func(s *Session) error) error
}

type memoryEntry struct {
	session   *Session
	touchedAt time.Time
}

// MemoryStore holds sessions in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore returns a store that forgets sessions idle for longer than ttl.
// A zero ttl keeps sessions until reset.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.touchedAt) > m.ttl
}

func (m *MemoryStore) Get(_ context.Context, clientID string) (*Session, error) {
	m.mu.RLock()
	e, ok := m.data[clientID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	now := m.now()
	if m.expired(e, now) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Replace may have refreshed it.
		if cur, ok := m.data[clientID]; ok && m.expired(cur, now) {
			delete(m.data, clientID)
		}
		m.mu.Unlock()
		return nil, nil
	}
	return e.session.clone(), nil
}

// Replace also sweeps expired sessions of other clients, so abandoned
// browsers are reclaimed without a background timer.
func (m *MemoryStore) Replace(_ context.Context, clientID string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	m.data[clientID] = memoryEntry{session: s.clone(), touchedAt: now}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, clientID)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, clientID string, fn func(s *Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var cur *Session
	if e, ok := m.data[clientID]; ok && !m.expired(e, now) {
		cur = e.session.clone()
	}
	if err := fn(cur); err != nil {
		return err
	}
	if cur == nil {
		return nil
	}
	m.data[clientID] = memoryEntry{session: cur, touchedAt: now}
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryStore) sweepLocked(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	n := 0
	for id, e := range m.data {
		if m.expired(e, now) {
			delete(m.data, id)
			n++
		}
	}
	return n
}
