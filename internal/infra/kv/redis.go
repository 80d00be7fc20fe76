package kv

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values in Redis. Update uses WATCH/MULTI so concurrent
// writers from any process never lose an update.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "redis get")
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return pkgerrors.Wrap(s.rdb.Set(ctx, key, value, 0).Err(), "redis set")
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return pkgerrors.Wrap(s.rdb.Del(ctx, key).Err(), "redis del")
}

func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}

		next, write, err := fn(current, exists)
		if err != nil {
			return err
		}
		if !write {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

var _ Store = (*RedisStore)(nil)
