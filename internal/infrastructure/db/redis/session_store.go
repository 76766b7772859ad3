package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskhive/task-system/internal/core/domain"
)

// SessionStore holds authenticated identities in Redis for the lifetime of a
// client session. Key format: session:<sid>. It implements
// ports.SessionStore.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a SessionStore wrapping the given Redis client.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Create persists user under a fresh random session id with the given TTL.
func (s *SessionStore) Create(ctx context.Context, user *domain.SessionUser, ttl time.Duration) (string, error) {
	sid, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sid), payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sid, nil
}

// Get loads the session, mapping an absent or expired key to
// domain.ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, sid string) (*domain.SessionUser, error) {
	payload, err := s.client.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var user domain.SessionUser
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &user, nil
}

// Touch extends the session's expiry (sliding TTL).
func (s *SessionStore) Touch(ctx context.Context, sid string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.key(sid), ttl).Err()
}

// Delete destroys the session. Deleting an absent key is not an error.
func (s *SessionStore) Delete(ctx context.Context, sid string) error {
	return s.client.Del(ctx, s.key(sid)).Err()
}

func (s *SessionStore) key(sid string) string {
	return "session:" + sid
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
