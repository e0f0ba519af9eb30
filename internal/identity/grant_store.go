package identity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/tenant-session/internal/domain"
)

const grantKey = "identity:grant"

// GrantStore keeps the provider's current grant across restarts.
type GrantStore interface {
	Save(ctx context.Context, grant domain.Grant) error
	Load(ctx context.Context) (*domain.Grant, error)
	Delete(ctx context.Context) error
}

type redisGrantStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisGrantStore stores the grant as JSON for at most ttl.
func NewRedisGrantStore(client *redis.Client, prefix string, ttl time.Duration) GrantStore {
	return &redisGrantStore{client: client, key: prefix + grantKey, ttl: ttl}
}

func (s *redisGrantStore) Save(ctx context.Context, grant domain.Grant) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, payload, s.ttl).Err()
}

func (s *redisGrantStore) Load(ctx context.Context) (*domain.Grant, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var grant domain.Grant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (s *redisGrantStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// MemoryGrantStore keeps the grant in process memory.
type MemoryGrantStore struct {
	mu    sync.Mutex
	grant *domain.Grant
}

// NewMemoryGrantStore returns an empty in-memory store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{}
}

func (s *MemoryGrantStore) Save(_ context.Context, grant domain.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant = &grant
	return nil
}

func (s *MemoryGrantStore) Load(context.Context) (*domain.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grant == nil {
		return nil, nil
	}
	g := *s.grant
	return &g, nil
}

func (s *MemoryGrantStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grant = nil
	return nil
}
