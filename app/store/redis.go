package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkoutKeyPrefix = "billing:checkout:"

var ErrRedisNotReady = errors.New("redis is not ready")

type RedisCheckoutStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCheckoutStore(client redis.UniversalClient, ttl time.Duration) *RedisCheckoutStore {
	return &RedisCheckoutStore{client: client, ttl: ttl}
}

// ConnectRedis parses a redis:// URL and verifies the server answers PING.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrRedisNotReady, err)
	}
	return client, nil
}

func (s *RedisCheckoutStore) Save(ctx context.Context, attempt CheckoutAttempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, checkoutKey(attempt.Reference), raw, s.ttl).Err()
}

func (s *RedisCheckoutStore) Get(ctx context.Context, reference string) (*CheckoutAttempt, error) {
	raw, err := s.client.Get(ctx, checkoutKey(reference)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	attempt := &CheckoutAttempt{}
	if err := json.Unmarshal(raw, attempt); err != nil {
		return nil, fmt.Errorf("decode checkout attempt %s: %w", reference, err)
	}
	return attempt, nil
}

func (s *RedisCheckoutStore) Delete(ctx context.Context, reference string) error {
	return s.client.Del(ctx, checkoutKey(reference)).Err()
}

func checkoutKey(reference string) string {
	return checkoutKeyPrefix + reference
}
