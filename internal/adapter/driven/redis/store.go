// Package redis implements the HashStore port on Redis hashes: one hash per
// group, one field per id.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HashStore = (*Store)(nil)

// hashClient is the subset of *goredis.Client the store uses.
type hashClient interface {
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd
	HKeys(ctx context.Context, key string) *goredis.StringSliceCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

// Store is a HashStore backed by Redis.
type Store struct {
	client hashClient
	closer func() error
}

// New connects to the Redis server at redisURL (redis:// or rediss://).
// The connection is lazy; call WaitReady before serving traffic.
func New(redisURL string) (*Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	return &Store{client: client, closer: client.Close}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client hashClient) *Store {
	return &Store{client: client}
}

// WaitReady pings Redis with exponential backoff until it answers, maxWait
// elapses, or ctx is canceled.
func (s *Store) WaitReady(ctx context.Context, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = maxWait

	err := backoff.Retry(func() error {
		return s.client.Ping(ctx).Err()
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("redis not ready: %w", err)
	}
	return nil
}

// HGet returns the field id of hash group.
func (s *Store) HGet(ctx context.Context, group, id string) (string, error) {
	value, err := s.client.HGet(ctx, group, id).Result()
	if errors.Is(err, goredis.Nil) {
		return "", driven.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", group, err)
	}
	return value, nil
}

// HSet sets the field id of hash group.
func (s *Store) HSet(ctx context.Context, group, id, value string) error {
	if err := s.client.HSet(ctx, group, id, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", group, err)
	}
	return nil
}

// HKeys lists the fields of hash group.
func (s *Store) HKeys(ctx context.Context, group string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, group).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys %s: %w", group, err)
	}
	return keys, nil
}

// Close releases the connection pool when the store owns it.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
