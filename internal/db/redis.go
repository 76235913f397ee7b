package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ayurgenix/pkg"
)

// RedisStore keeps each session as a hash plus a list of JSON encoded
// messages.  Both keys expire together after TTL of inactivity.
type RedisStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// OpenRedis connects using a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("opened redis session store", "address", opts.Addr, "db", opts.DB)
	return NewRedisStore(client, ttl), nil
}

// NewRedisStore wraps an existing client.  A zero ttl keeps sessions for a
// day.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{Client: client, Prefix: "ayurgenix:session:", TTL: ttl}
}

func (r *RedisStore) sessionKey(id string) string  { return r.Prefix + id }
func (r *RedisStore) messagesKey(id string) string { return r.Prefix + id + ":messages" }

// touch refreshes both keys' expiry inside a pipeline.
func (r *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, id string) {
	pipe.Expire(ctx, r.sessionKey(id), r.TTL)
	pipe.Expire(ctx, r.messagesKey(id), r.TTL)
}

func (r *RedisStore) exists(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	n, err := r.Client.Exists(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) CreateSession(ctx context.Context, messageCap int) (*pkg.Session, error) {
	s := pkg.Session{ID: newSessionID(), CreatedAt: time.Now().UTC(), MessageCap: messageCap}
	profile, _ := json.Marshal(s.Profile)
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.sessionKey(s.ID),
			"created_at", s.CreatedAt.Format(time.RFC3339Nano),
			"message_cap", messageCap,
			"profile", string(profile),
			"profile_saved", "0",
			"greeting_sent", "0",
		)
		pipe.Expire(ctx, r.sessionKey(s.ID), r.TTL)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) GetSession(ctx context.Context, sessionID string) (*pkg.Session, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	fields, err := r.Client.HGetAll(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	s := pkg.Session{
		ID:           sessionID,
		ProfileSaved: fields["profile_saved"] == "1",
		GreetingSent: fields["greeting_sent"] == "1",
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	s.MessageCap, _ = strconv.Atoi(fields["message_cap"])
	if v := fields["last_message_at"]; v != "" {
		s.LastMessageAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	if err := json.Unmarshal([]byte(fields["profile"]), &s.Profile); err != nil {
		return nil, fmt.Errorf("decode profile of session %s: %w", sessionID, err)
	}
	return &s, nil
}

func (r *RedisStore) SaveProfile(ctx context.Context, sessionID string, p pkg.Profile) error {
	if err := r.exists(ctx, sessionID); err != nil {
		return err
	}
	profile, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.sessionKey(sessionID), "profile", string(profile), "profile_saved", "1", "greeting_sent", "0")
		pipe.Del(ctx, r.messagesKey(sessionID))
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	return err
}

func (r *RedisStore) ResetConversation(ctx context.Context, sessionID string) error {
	if err := r.exists(ctx, sessionID); err != nil {
		return err
	}
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.sessionKey(sessionID), "greeting_sent", "0")
		pipe.Del(ctx, r.messagesKey(sessionID))
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	return err
}

func (r *RedisStore) MarkGreeted(ctx context.Context, sessionID string) error {
	if err := r.exists(ctx, sessionID); err != nil {
		return err
	}
	return r.Client.HSet(ctx, r.sessionKey(sessionID), "greeting_sent", "1").Err()
}

// redisMessage is the list element.  A message's ID is its 1-based position
// in the list, so it is not stored.
type redisMessage struct {
	Role      pkg.MessageRole `json:"role"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
}

// maxWatchRetries bounds optimistic retries of CreateUserMessage.
const maxWatchRetries = 5

// txPipeliner is satisfied by both *redis.Client and *redis.Tx.
type txPipeliner interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

func (r *RedisStore) CreateMessage(ctx context.Context, sessionID string, role pkg.MessageRole, content string) (*pkg.Message, error) {
	if err := r.exists(ctx, sessionID); err != nil {
		return nil, err
	}
	return r.push(ctx, r.Client, sessionID, role, content)
}

// CreateUserMessage watches both session keys, so a concurrent turn or reset
// aborts the transaction and the cap is checked again.
func (r *RedisStore) CreateUserMessage(ctx context.Context, sessionID string, content string) (*pkg.Message, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	var msg *pkg.Message
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, r.sessionKey(sessionID), "message_cap").Result()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if limit, _ := strconv.Atoi(raw); limit > 0 {
			items, err := tx.LRange(ctx, r.messagesKey(sessionID), 0, -1).Result()
			if err != nil {
				return err
			}
			transcript, err := decodeMessages(sessionID, items)
			if err != nil {
				return err
			}
			if countUserTurns(transcript) >= limit {
				return ErrMessageCapReached
			}
		}
		msg, err = r.push(ctx, tx, sessionID, pkg.RoleUser, content)
		return err
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := r.Client.Watch(ctx, txf, r.sessionKey(sessionID), r.messagesKey(sessionID))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return msg, nil
	}
	return nil, fmt.Errorf("create user message: %w", redis.TxFailedErr)
}

// push appends one message and refreshes the session expiry in a single
// MULTI block.
func (r *RedisStore) push(ctx context.Context, c txPipeliner, sessionID string, role pkg.MessageRole, content string) (*pkg.Message, error) {
	m := pkg.Message{SessionID: sessionID, Role: role, Content: content, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(redisMessage{Role: role, Content: content, CreatedAt: m.CreatedAt})
	if err != nil {
		return nil, err
	}
	var length *redis.IntCmd
	_, err = c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		length = pipe.RPush(ctx, r.messagesKey(sessionID), string(data))
		pipe.HSet(ctx, r.sessionKey(sessionID), "last_message_at", m.CreatedAt.Format(time.RFC3339Nano))
		r.touch(ctx, pipe, sessionID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	m.ID = length.Val()
	return &m, nil
}

func (r *RedisStore) GetTranscript(ctx context.Context, sessionID string) ([]pkg.Message, error) {
	if err := r.exists(ctx, sessionID); err != nil {
		return nil, err
	}
	items, err := r.Client.LRange(ctx, r.messagesKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return decodeMessages(sessionID, items)
}

func decodeMessages(sessionID string, items []string) ([]pkg.Message, error) {
	transcript := make([]pkg.Message, 0, len(items))
	for i, item := range items {
		var rm redisMessage
		if err := json.Unmarshal([]byte(item), &rm); err != nil {
			return nil, fmt.Errorf("decode message of session %s: %w", sessionID, err)
		}
		transcript = append(transcript, pkg.Message{
			ID:        int64(i + 1),
			SessionID: sessionID,
			Role:      rm.Role,
			Content:   rm.Content,
			CreatedAt: rm.CreatedAt,
		})
	}
	return transcript, nil
}

func (r *RedisStore) CountUserMessages(ctx context.Context, sessionID string) (int, error) {
	transcript, err := r.GetTranscript(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return countUserTurns(transcript), nil
}

func (r *RedisStore) Close() error { return r.Client.Close() }
