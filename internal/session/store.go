// Package session keeps the single valid refresh token of each user in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "REFRESH_TOKEN"

var (
	// ErrNotFound is returned when no refresh token is stored for the user.
	ErrNotFound = errors.New("session not found")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Store maps user ids to their current refresh token. Writes are
// last-writer-wins: a Put replaces whatever token was stored before.
type Store struct {
	redis redis.UniversalClient
}

func NewStore(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

// Key returns the Redis key holding the refresh token of userID.
func Key(userID string) string {
	return keyPrefix + "@" + userID
}

// Put stores token for userID and sets its expiry in one command.
func (s *Store) Put(ctx context.Context, userID, token string, ttlSeconds int64) error {
	if ttlSeconds < 1 {
		return fmt.Errorf("invalid session ttl %d", ttlSeconds)
	}
	value, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, Key(userID), value, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the stored token or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (string, error) {
	raw, err := s.redis.Get(ctx, Key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		// An unreadable entry is as good as none.
		return "", ErrNotFound
	}
	return token, nil
}

// Delete removes the entry. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, Key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
