package docstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a string value and tracks the keys of a
// collection in a set so they can be listed without SCAN.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pizzaflow"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) docKey(collection, key string) string {
	return fmt.Sprintf("%s:%s:doc:%s", s.prefix, collection, key)
}

func (s *RedisStore) indexKey(collection string) string {
	return fmt.Sprintf("%s:%s:keys", s.prefix, collection)
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := validateKey(collection, key); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.docKey(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collection, key), value, 0)
		pipe.SAdd(ctx, s.indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *RedisStore) Create(ctx context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.docKey(collection, key), value, 0).Result()
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	if !ok {
		return ErrExists
	}
	if err := s.client.SAdd(ctx, s.indexKey(collection), key).Err(); err != nil {
		return fmt.Errorf("index %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, collection, key string) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.docKey(collection, key))
		pipe.SRem(ctx, s.indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, key, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) ListKeys(ctx context.Context, collection string) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	slices.Sort(keys)
	return keys, nil
}
