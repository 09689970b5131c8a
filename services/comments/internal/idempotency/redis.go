package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "comments:idempotent:"
	// pending marks a reserved key; a completed key holds the response body.
	pending = "\x00pending"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore returns a Store backed by client. ttl <= 0 means 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) Reserve(ctx context.Context, key string) ([]byte, bool, error) {
	k := keyPrefix + key
	set, err := s.client.SetNX(ctx, k, pending, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	// SetNX returns true if the key was SET (i.e. NOT a duplicate).
	if set {
		return nil, true, nil
	}
	val, err := s.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as in progress, the client retries.
		return nil, false, ErrInProgress
	}
	if err != nil {
		return nil, false, err
	}
	if string(val) == pending {
		return nil, false, ErrInProgress
	}
	return val, false, nil
}

func (s *redisStore) Complete(ctx context.Context, key string, response []byte) error {
	return s.client.Set(ctx, keyPrefix+key, response, s.ttl).Err()
}

func (s *redisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
