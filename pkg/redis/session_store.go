package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record of an issued guest token.
type Session struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new session store with the given Redis client
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(userID string) string {
	return fmt.Sprintf("session:%s", userID)
}

// StoreSession saves the session until its expiry.
func (s *SessionStore) StoreSession(ctx context.Context, session *Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session for %s already expired", session.UserID)
	}

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.UserID), sessionJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// GetSession retrieves the user's session from Redis
func (s *SessionStore) GetSession(ctx context.Context, userID string) (*Session, error) {
	sessionJSON, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(sessionJSON, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// DeleteSession removes the user's session from Redis
func (s *SessionStore) DeleteSession(ctx context.Context, userID string) error {
	return s.client.Del(ctx, sessionKey(userID)).Err()
}
