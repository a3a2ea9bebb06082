package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a process-local map. Values are copied on
// the way in and out so callers always work on their own copy.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL expires sessions idle for longer than ttl. Zero disables expiry.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *MemoryStore) {
		m.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		sessions: map[string]*Session{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the session for chatID.
func (m *MemoryStore) Get(_ context.Context, chatID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(chatID).Clone(), nil
}

// Ensure returns the session for chatID, creating it when absent.
func (m *MemoryStore) Ensure(_ context.Context, chatID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.lookup(chatID)
	if s == nil {
		s = New()
		s.UpdatedAt = m.now()
		m.sessions[chatID] = s
	}
	return s.Clone(), nil
}

// Set stores a copy of s.
func (m *MemoryStore) Set(_ context.Context, chatID string, s *Session) error {
	cp := s.Clone()
	if cp == nil {
		cp = New()
	}
	cp.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[chatID] = cp
	m.mu.Unlock()
	return nil
}

// Clear removes the session for chatID.
func (m *MemoryStore) Clear(_ context.Context, chatID string) error {
	m.mu.Lock()
	delete(m.sessions, chatID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) lookup(chatID string) *Session {
	s, ok := m.sessions[chatID]
	if !ok {
		return nil
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, chatID)
		return nil
	}
	return s
}
