package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ayurgenix/pkg"
)

// Repository stores sessions and messages in PostgreSQL.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// Close closes the DB.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// CreateSession inserts a new session with an empty profile.
func (r *Repository) CreateSession(ctx context.Context, messageCap int) (*pkg.Session, error) {
	s := pkg.Session{ID: newSessionID(), MessageCap: messageCap}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO sessions (id, message_cap)
         VALUES ($1, $2)
         RETURNING created_at`,
		s.ID, messageCap,
	).Scan(&s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &s, nil
}

// GetSession loads a session and the time of its latest message.
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*pkg.Session, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	var (
		s       pkg.Session
		profile []byte
		last    sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT s.id, s.created_at, s.message_cap, s.profile, s.profile_saved, s.greeting_sent,
                (SELECT MAX(m.created_at) FROM messages m WHERE m.session_id = s.id)
         FROM sessions s
         WHERE s.id = $1`,
		sessionID,
	).Scan(&s.ID, &s.CreatedAt, &s.MessageCap, &profile, &s.ProfileSaved, &s.GreetingSent, &last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal(profile, &s.Profile); err != nil {
		return nil, fmt.Errorf("decode profile of session %s: %w", sessionID, err)
	}
	if last.Valid {
		s.LastMessageAt = last.Time
	}
	return &s, nil
}

// SaveProfile stores the profile and drops the previous conversation in one
// transaction.
func (r *Repository) SaveProfile(ctx context.Context, sessionID string, p pkg.Profile) error {
	if err := validID(sessionID); err != nil {
		return err
	}
	profile, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions
             SET profile = $1, profile_saved = TRUE, greeting_sent = FALSE
             WHERE id = $2`,
			profile, sessionID,
		)
		if err := affected(res, err); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
		return err
	})
}

// ResetConversation deletes the messages of a session and clears its
// greeting flag.
func (r *Repository) ResetConversation(ctx context.Context, sessionID string) error {
	if err := validID(sessionID); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sessions SET greeting_sent = FALSE WHERE id = $1`, sessionID)
		if err := affected(res, err); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
		return err
	})
}

// MarkGreeted records that the greeting was sent.
func (r *Repository) MarkGreeted(ctx context.Context, sessionID string) error {
	if err := validID(sessionID); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE sessions SET greeting_sent = TRUE WHERE id = $1`, sessionID)
	return affected(res, err)
}

// CreateMessage stores a new message for the given session.
func (r *Repository) CreateMessage(ctx context.Context, sessionID string, role pkg.MessageRole, content string) (*pkg.Message, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	m := pkg.Message{SessionID: sessionID}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO messages (session_id, role, content)
         SELECT id, $2, $3 FROM sessions WHERE id = $1
         RETURNING id, role, content, created_at`,
		sessionID, role, content,
	).Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &m, nil
}

// CreateUserMessage inserts a user turn unless the cap is reached.  The
// session row is locked so concurrent turns of one session serialize.
func (r *Repository) CreateUserMessage(ctx context.Context, sessionID string, content string) (*pkg.Message, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	m := pkg.Message{SessionID: sessionID}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var limit int
		err := tx.QueryRowContext(ctx,
			`SELECT message_cap FROM sessions WHERE id = $1 FOR UPDATE`, sessionID,
		).Scan(&limit)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if limit > 0 {
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM messages WHERE session_id = $1 AND role = 'user'`, sessionID,
			).Scan(&count); err != nil {
				return err
			}
			if count >= limit {
				return ErrMessageCapReached
			}
		}
		return tx.QueryRowContext(ctx,
			`INSERT INTO messages (session_id, role, content)
             VALUES ($1, $2, $3)
             RETURNING id, role, content, created_at`,
			sessionID, pkg.RoleUser, content,
		).Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrMessageCapReached) {
			return nil, err
		}
		return nil, fmt.Errorf("create user message: %w", err)
	}
	return &m, nil
}

// GetTranscript returns the messages of a session ordered by creation.
func (r *Repository) GetTranscript(ctx context.Context, sessionID string) ([]pkg.Message, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at
         FROM messages
         WHERE session_id = $1
         ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var transcript []pkg.Message
	for rows.Next() {
		var m pkg.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		transcript = append(transcript, m)
	}
	return transcript, rows.Err()
}

// CountUserMessages counts user turns for message-cap enforcement.
func (r *Repository) CountUserMessages(ctx context.Context, sessionID string) (int, error) {
	if err := validID(sessionID); err != nil {
		return 0, err
	}
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = $1 AND role = 'user'`,
		sessionID,
	).Scan(&count)
	return count, err
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error { return r.DB.Close() }

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
