package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps the short-lived state of the identity provider:
// revoked token ids and failed sign-in counters.
type SessionStore interface {
	// Revoke marks a token id as signed out until the token expires
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RecordFailure increments the failure counter for key. The counter
	// expires window after its first failure.
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	Failures(ctx context.Context, key string) (int, error)
	ResetFailures(ctx context.Context, key string) error
}

const (
	revokedPrefix  = "gradetrack:revoked:"
	failuresPrefix = "gradetrack:signin-failures:"
)

// RedisSessionStore implements SessionStore on Redis
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a session store using client
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil // Already expired
	}
	if err := s.client.Set(ctx, revokedPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSessionStore) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	redisKey := failuresPrefix + key

	n, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record sign-in failure: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set failure window: %w", err)
		}
	}
	return int(n), nil
}

func (s *RedisSessionStore) Failures(ctx context.Context, key string) (int, error) {
	val, err := s.client.Get(ctx, failuresPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sign-in failures: %w", err)
	}
	return strconv.Atoi(val)
}

func (s *RedisSessionStore) ResetFailures(ctx context.Context, key string) error {
	return s.client.Del(ctx, failuresPrefix+key).Err()
}

// MemorySessionStore implements SessionStore in process memory
type MemorySessionStore struct {
	mu       sync.Mutex
	revoked  map[string]time.Time
	failures map[string]*failureCounter
	now      func() time.Time
}

type failureCounter struct {
	count     int
	expiresAt time.Time
}

// NewMemorySessionStore creates an empty in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		revoked:  make(map[string]time.Time),
		failures: make(map[string]*failureCounter),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	if until.After(s.now()) {
		s.revoked[jti] = until
	}
	return nil
}

func (s *MemorySessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.revoked[jti]
	return ok && until.After(s.now()), nil
}

func (s *MemorySessionStore) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.failures[key]
	if !ok || !c.expiresAt.After(now) {
		c = &failureCounter{expiresAt: now.Add(window)}
		s.failures[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *MemorySessionStore) Failures(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.failures[key]
	if !ok || !c.expiresAt.After(s.now()) {
		return 0, nil
	}
	return c.count, nil
}

func (s *MemorySessionStore) ResetFailures(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failures, key)
	return nil
}

// sweep drops expired entries; must be called with the lock held
func (s *MemorySessionStore) sweep() {
	now := s.now()
	for jti, until := range s.revoked {
		if !until.After(now) {
			delete(s.revoked, jti)
		}
	}
	for key, c := range s.failures {
		if !c.expiresAt.After(now) {
			delete(s.failures, key)
		}
	}
}
