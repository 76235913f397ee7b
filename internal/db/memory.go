package db

import (
	"context"
	"sync"
	"time"

	"ayurgenix/pkg"
)

// sweepInterval bounds how often CreateSession scans for expired sessions.
const sweepInterval = time.Minute

type memSession struct {
	session  pkg.Session
	messages []pkg.Message
	nextID   int64
	active   time.Time
}

// MemoryStore keeps sessions in process memory.  Everything is lost on
// restart.  Sessions idle for longer than TTL are dropped; a zero TTL keeps
// them for the life of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*memSession
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore that expires sessions after
// ttl of inactivity.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memSession), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) expired(s *memSession, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.active) > m.ttl
}

// lookup returns a live session.  Callers hold m.mu.
func (m *MemoryStore) lookup(sessionID string) (*memSession, bool) {
	s, ok := m.sessions[sessionID]
	if !ok || m.expired(s, m.now()) {
		return nil, false
	}
	return s, true
}

// sweep drops expired sessions.  Callers hold m.mu for writing.
func (m *MemoryStore) sweep(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
		}
	}
}

// Len reports how many sessions are held, expired ones included until the
// next sweep.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) CreateSession(_ context.Context, messageCap int) (*pkg.Session, error) {
	now := m.now()
	s := &memSession{
		session: pkg.Session{
			ID:         newSessionID(),
			CreatedAt:  now,
			MessageCap: messageCap,
		},
		active: now,
	}
	m.mu.Lock()
	m.sweep(now)
	m.sessions[s.session.ID] = s
	m.mu.Unlock()
	sess := s.session
	return &sess, nil
}

func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*pkg.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess := s.session
	return &sess, nil
}

func (m *MemoryStore) update(sessionID string, fn func(s *memSession) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if err := fn(s); err != nil {
		return err
	}
	s.active = m.now()
	return nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, sessionID string, p pkg.Profile) error {
	return m.update(sessionID, func(s *memSession) error {
		s.session.Profile = p
		s.session.ProfileSaved = true
		s.session.GreetingSent = false
		s.messages = nil
		return nil
	})
}

func (m *MemoryStore) ResetConversation(_ context.Context, sessionID string) error {
	return m.update(sessionID, func(s *memSession) error {
		s.session.GreetingSent = false
		s.messages = nil
		return nil
	})
}

func (m *MemoryStore) MarkGreeted(_ context.Context, sessionID string) error {
	return m.update(sessionID, func(s *memSession) error {
		s.session.GreetingSent = true
		return nil
	})
}

func (m *MemoryStore) CreateMessage(_ context.Context, sessionID string, role pkg.MessageRole, content string) (*pkg.Message, error) {
	var msg pkg.Message
	err := m.update(sessionID, func(s *memSession) error {
		msg = m.appendMessage(s, role, content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *MemoryStore) CreateUserMessage(_ context.Context, sessionID string, content string) (*pkg.Message, error) {
	var msg pkg.Message
	err := m.update(sessionID, func(s *memSession) error {
		if limit := s.session.MessageCap; limit > 0 && countUserTurns(s.messages) >= limit {
			return ErrMessageCapReached
		}
		msg = m.appendMessage(s, pkg.RoleUser, content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *MemoryStore) appendMessage(s *memSession, role pkg.MessageRole, content string) pkg.Message {
	s.nextID++
	msg := pkg.Message{
		ID:        s.nextID,
		SessionID: s.session.ID,
		Role:      role,
		Content:   content,
		CreatedAt: m.now(),
	}
	s.messages = append(s.messages, msg)
	s.session.LastMessageAt = msg.CreatedAt
	return msg
}

func (m *MemoryStore) GetTranscript(_ context.Context, sessionID string) ([]pkg.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.lookup(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]pkg.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (m *MemoryStore) CountUserMessages(_ context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.lookup(sessionID)
	if !ok {
		return 0, ErrSessionNotFound
	}
	return countUserTurns(s.messages), nil
}

func (m *MemoryStore) Close() error { return nil }
