package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tenantauth/backend/internal/mfa/domain"
)

const redisKeyPrefix = "mfa"

// RedisStore is a ChallengeStore backed by Redis, for deployments running
// more than one instance. The challenge record and its attempt counter live
// under separate keys with the same TTL, so INCR stays atomic across
// instances.
type RedisStore struct {
	client *redis.Client
	// fallbackTTL re-arms the counter's expiry if it ever loses its TTL
	// between the challenge expiring and an increment landing.
	fallbackTTL time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, fallbackTTL: ttl}
}

func (s *RedisStore) codeKey(userID string) string {
	return redisKeyPrefix + ":code:" + userID
}

func (s *RedisStore) attemptsKey(userID string) string {
	return redisKeyPrefix + ":attempts:" + userID
}

func (s *RedisStore) Put(ctx context.Context, userID string, ch *domain.Challenge, ttl time.Duration) error {
	encoded, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.codeKey(userID), encoded, ttl)
		pipe.Set(ctx, s.attemptsKey(userID), 0, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mfa store: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*domain.Challenge, error) {
	data, err := s.client.Get(ctx, s.codeKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mfa store: %w", err)
	}
	var ch domain.Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("mfa store: %w", err)
	}
	return &ch, nil
}

func (s *RedisStore) Increment(ctx context.Context, userID string) (int, error) {
	key := s.attemptsKey(userID)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("mfa store: %w", err)
	}
	s.client.ExpireNX(ctx, key, s.fallbackTTL)
	return int(n), nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.codeKey(userID), s.attemptsKey(userID)).Err(); err != nil {
		return fmt.Errorf("mfa store: %w", err)
	}
	return nil
}
