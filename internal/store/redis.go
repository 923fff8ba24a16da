package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMaxRetries = 10

// RedisStore keeps JSON-encoded values under a key prefix so several
// instances can share OTP challenges and failure windows.
type RedisStore[T any] struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

// NewRedisStore creates a store that namespaces every key with prefix
func NewRedisStore[T any](client redis.UniversalClient, prefix string) *RedisStore[T] {
	return &RedisStore[T]{
		client:     client,
		prefix:     prefix,
		maxRetries: defaultMaxRetries,
	}
}

func (s *RedisStore[T]) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore[T]) decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode stored value: %w", err)
	}
	return v, nil
}

func (s *RedisStore[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	v, err := s.decode(data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (s *RedisStore[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	return s.client.Set(ctx, s.key(key), data, ttl).Err()
}

func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Update applies fn inside WATCH/MULTI and retries when another writer
// touched the key between the read and the commit.
func (s *RedisStore[T]) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc[T]) error {
	k := s.key(key)

	txf := func(tx *redis.Tx) error {
		var current T
		exists := false

		data, err := tx.Get(ctx, k).Bytes()
		switch {
		case err == nil:
			current, err = s.decode(data)
			if err != nil {
				return err
			}
			exists = true
		case errors.Is(err, redis.Nil):
		default:
			return err
		}

		next, mutation, err := fn(current, exists)
		if err != nil {
			return err
		}

		switch mutation {
		case Save:
			encoded, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode value: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, encoded, ttl)
				return nil
			})
			return err
		case Remove:
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, k)
				return nil
			})
			return err
		}
		return nil
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *RedisStore[T]) Prune(ctx context.Context, remove func(key string, value T) bool) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		data, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, err
		}
		v, err := s.decode(data)
		if err != nil {
			// undecodable entries are left for their TTL
			continue
		}
		if !remove(strings.TrimPrefix(k, s.prefix), v) {
			continue
		}
		if err := s.client.Del(ctx, k).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}
