package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolioHub/internal/form"
	"portfolioHub/internal/submit"
)

// ErrNotFound is returned when the session has no draft.
var ErrNotFound = errors.New("draft not found")

// ErrDiscardFailed is returned by Service.Do together with the draft when fn
// asked for a discard and the delete failed. The work done by fn stands.
var ErrDiscardFailed = errors.New("discard draft failed")

// Draft is the in-progress form of one browser session.
type Draft struct {
	Mode      submit.Mode `json:"mode"`
	Form      *form.Form  `json:"form"`
	Hydrated  bool        `json:"hydrated"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Store persists drafts by session id.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Draft, error)
	Save(ctx context.Context, sessionID string, d *Draft) error
	Delete(ctx context.Context, sessionID string) error
}

const draftKeyPrefix = "draft:"

// RedisStore keeps drafts as JSON under draft:<session> with a sliding TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Draft, error) {
	data, err := s.client.Get(ctx, draftKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, d *Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set draft: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, draftKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store. Drafts are stored encoded so callers
// never share a *form.Form with the store.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Draft, error) {
	s.mu.Lock()
	data, ok := s.drafts[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, d *Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	s.mu.Lock()
	s.drafts[sessionID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.drafts, sessionID)
	s.mu.Unlock()
	return nil
}
