package users

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// SessionStore persists server side sessions for the session auth strategy.
// Implementations must treat the payload as opaque, the package encodes and
// decodes SessionObject values itself.
type SessionStore interface {
	// Save stores the session under sid for the given lifetime.
	Save(ctx context.Context, sid string, session *SessionObject, ttl time.Duration) error

	// Get loads the session stored under sid. A missing or expired session
	// returns ErrUnableToFindSession.
	Get(ctx context.Context, sid string) (*SessionObject, error)

	// Renew extends the lifetime of an existing session. A missing or
	// expired session returns ErrUnableToFindSession.
	Renew(ctx context.Context, sid string, ttl time.Duration) error

	// Delete removes the session stored under sid. Deleting a missing
	// session is not an error.
	Delete(ctx context.Context, sid string) error

	// DeleteAllForUser removes every session belonging to the given user,
	// e.g. when an account is deactivated.
	DeleteAllForUser(ctx context.Context, userID string) error
}

type memorySessionEntry struct {
	payload   []byte
	userID    string
	expiresAt time.Time
}

// MemorySessionStore is an in process SessionStore meant for tests and single
// node deployments. Sessions are JSON encoded so data round trips the same
// way it does through external stores.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySessionEntry
	byUser   map[string]map[string]struct{}
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySessionEntry),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (m *MemorySessionStore) Save(ctx context.Context, sid string, session *SessionObject, ttl time.Duration) error {
	if session == nil {
		return ErrUnableToParseData
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return ErrUnableToDecodeSession
	}

	entry := memorySessionEntry{
		payload: payload,
		userID:  session.UserID,
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sid] = entry

	if session.UserID != "" {
		if m.byUser[session.UserID] == nil {
			m.byUser[session.UserID] = make(map[string]struct{})
		}
		m.byUser[session.UserID][sid] = struct{}{}
	}

	return nil
}

func (m *MemorySessionStore) Get(ctx context.Context, sid string) (*SessionObject, error) {
	m.mu.RLock()
	entry, ok := m.sessions[sid]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrUnableToFindSession
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		m.evict(sid, entry.userID)
		m.mu.Unlock()
		return nil, ErrUnableToFindSession
	}

	session := &SessionObject{}
	if err := json.Unmarshal(entry.payload, session); err != nil {
		return nil, ErrUnableToDecodeSession
	}

	return session, nil
}

func (m *MemorySessionStore) Renew(ctx context.Context, sid string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sid]
	if !ok {
		return ErrUnableToFindSession
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.evict(sid, entry.userID)
		return ErrUnableToFindSession
	}

	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	m.sessions[sid] = entry

	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sid]
	if !ok {
		return nil
	}

	m.evict(sid, entry.userID)
	return nil
}

func (m *MemorySessionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for sid := range m.byUser[userID] {
		delete(m.sessions, sid)
	}
	delete(m.byUser, userID)

	return nil
}

// Len reports the number of stored sessions, expired entries included until
// their next read.
func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// evict must be called with the write lock held.
func (m *MemorySessionStore) evict(sid, userID string) {
	delete(m.sessions, sid)
	if userID == "" {
		return
	}

	if sids, ok := m.byUser[userID]; ok {
		delete(sids, sid)
		if len(sids) == 0 {
			delete(m.byUser, userID)
		}
	}
}
