// Package sessionkv implements platform.Session on top of Redis, grounded
// on the teacher's pkg/redis connection conventions and the per-session key
// namespacing of internal/core/session.Manager.
package sessionkv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every session hash; SessionTTL matches the teacher's
// internal/core/session.Manager.SessionTTL so idle conversations expire the
// same way call-monitoring entries do.
const (
	KeyPrefix  = "violetconvo:session"
	SessionTTL = 1 * time.Hour
)

// Store is a Redis-backed platform.Session factory: one hash per user holds
// every session variable the engine reads/writes this conversation.
type Store struct {
	client *redis.Client
}

// New wraps an already-configured *redis.Client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func sessionKey(userID string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, userID)
}

// Session returns the platform.Session bound to userID. Distinct calls for
// the same userID share the same backing hash; the handle itself carries
// no state beyond the key.
func (s *Store) Session(userID string) *Session {
	return &Session{client: s.client, key: sessionKey(userID)}
}

// Session implements platform.Session (internal/platform) against one
// Redis hash, refreshing its TTL on every write (spec §3 Session survives
// "between turns within one logical conversation").
type Session struct {
	client *redis.Client
	key    string
}

// Get returns a session variable's value and whether it was present.
func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sessionkv: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set writes a session variable and refreshes the hash's TTL.
func (s *Session) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, key, value)
	pipe.Expire(ctx, s.key, SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sessionkv: set %q: %w", key, err)
	}
	return nil
}

// GetAttributes returns every session variable currently stored.
func (s *Session) GetAttributes(ctx context.Context) (map[string]string, error) {
	attrs, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("sessionkv: get attributes: %w", err)
	}
	return attrs, nil
}

// Delete removes the session entirely, e.g. once a turn ends the
// conversation (spec §4.4 RequestClose).
func (s *Session) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
