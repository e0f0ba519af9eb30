package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKey = "session:state"

// RedisPersister stores the committed state as JSON under one key.
type RedisPersister struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisPersister builds a persister. A zero ttl keeps the key forever.
func NewRedisPersister(client *redis.Client, prefix string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, key: prefix + stateKey, ttl: ttl}
}

func (p *RedisPersister) Save(ctx context.Context, state State) error {
	if p == nil || p.client == nil {
		return errors.New("redis client not configured")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.key, payload, p.ttl).Err()
}

func (p *RedisPersister) Load(ctx context.Context) (*State, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("redis client not configured")
	}
	raw, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	state.Loading = false
	return &state, nil
}

func (p *RedisPersister) Clear(ctx context.Context) error {
	if p == nil || p.client == nil {
		return errors.New("redis client not configured")
	}
	return p.client.Del(ctx, p.key).Err()
}
