package db

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ayurgenix/pkg"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or malformed
	// session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMessageCapReached is returned by CreateUserMessage once the
	// conversation holds the session's cap of user turns.
	ErrMessageCapReached = errors.New("message cap reached")
)

// Store keeps per-user consultation state: the saved profile, the greeting
// flag and the ordered conversation.  Implementations are safe for
// concurrent use.
type Store interface {
	CreateSession(ctx context.Context, messageCap int) (*pkg.Session, error)
	GetSession(ctx context.Context, sessionID string) (*pkg.Session, error)
	// SaveProfile stores the profile, marks it saved and starts a fresh
	// conversation.
	SaveProfile(ctx context.Context, sessionID string, p pkg.Profile) error
	// ResetConversation drops all messages and clears the greeting flag.
	ResetConversation(ctx context.Context, sessionID string) error
	MarkGreeted(ctx context.Context, sessionID string) error
	CreateMessage(ctx context.Context, sessionID string, role pkg.MessageRole, content string) (*pkg.Message, error)
	// CreateUserMessage appends a user turn unless the conversation already
	// holds MessageCap of them.  The check and the insert are atomic.
	CreateUserMessage(ctx context.Context, sessionID string, content string) (*pkg.Message, error)
	// GetTranscript returns messages ordered by creation.
	GetTranscript(ctx context.Context, sessionID string) ([]pkg.Message, error)
	CountUserMessages(ctx context.Context, sessionID string) (int, error)
	Close() error
}

func countUserTurns(messages []pkg.Message) int {
	n := 0
	for _, m := range messages {
		if m.Role == pkg.RoleUser {
			n++
		}
	}
	return n
}

// newSessionID returns a fresh UUID v4 string.
func newSessionID() string { return uuid.NewString() }

// validID rejects IDs that are not UUIDs before they reach a backend.
func validID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return ErrSessionNotFound
	}
	return nil
}
