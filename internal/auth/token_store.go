package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore persists the service token of each session. Get returns
// ErrNotAuthenticated when no token is stored.
type TokenStore interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, token string, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}

const tokenKeyPrefix = "session:token:"

// RedisTokenStore keeps tokens under session:token:<id> with a TTL.
type RedisTokenStore struct {
	client redis.UniversalClient
}

func NewRedisTokenStore(client redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Get(ctx context.Context, sessionID string) (string, error) {
	token, err := s.client.Get(ctx, tokenKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("get session token: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, sessionID, token string, ttl time.Duration) error {
	return s.client.Set(ctx, tokenKeyPrefix+sessionID, token, ttl).Err()
}

func (s *RedisTokenStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, tokenKeyPrefix+sessionID).Err()
}

// MemoryTokenStore is an in-process TokenStore.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
	now    func() time.Time
}

type memoryToken struct {
	value   string
	expires time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]memoryToken), now: time.Now}
}

func (s *MemoryTokenStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[sessionID]
	if !ok {
		return "", ErrNotAuthenticated
	}
	if !t.expires.IsZero() && !t.expires.After(s.now()) {
		delete(s.tokens, sessionID)
		return "", ErrNotAuthenticated
	}
	return t.value, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, sessionID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.tokens[sessionID] = memoryToken{value: token, expires: expires}
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, sessionID)
	return nil
}
