package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound means no live session record exists for the token:
// either it was revoked by logout or its TTL ran out.
var ErrSessionNotFound = fmt.Errorf("session not found")

const sessionKeyPrefix = "console:session:"

// Record is the server-side trace of an issued session. The signed cookie
// remains the authority for claims; the record exists so logout can revoke
// a session before its token expires.
type Record struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps session records in Redis with a TTL matching the token
// lifetime, so records expire on their own and logout only has to delete.
type Store struct {
	client *redis.Client
}

// NewStore creates a Redis-backed session store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Create writes the record for a freshly issued token.
func (s *Store) Create(ctx context.Context, token *Token) error {
	record := Record{
		ID:        token.ID,
		Subject:   token.Subject,
		Username:  token.Username,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refusing to store expired session %s", token.ID)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+token.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get fetches the record for a session ID, or ErrSessionNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &record, nil
}

// Exists reports whether a live record exists for the session ID.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

// Delete revokes a session. Deleting an already-gone session is not an
// error; logout must be idempotent.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Count returns the number of live sessions. Used for the active-sessions
// gauge; SCAN keeps it from blocking Redis.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var cursor uint64
	var total int64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan sessions: %w", err)
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
