package kv

import (
	"context"
	"errors"

	"github.com/bradfitz/gomemcache/memcache"
	pkgerrors "github.com/pkg/errors"
)

// MemcachedStore keeps values in memcached. Update relies on gets/cas.
// Values never expire, but memcached may still evict them under memory
// pressure, so this backend suits caches of the collection more than the
// only copy of it.
type MemcachedStore struct {
	mc *memcache.Client
}

func NewMemcachedStore(mc *memcache.Client) *MemcachedStore {
	return &MemcachedStore{mc: mc}
}

func (s *MemcachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := s.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "memcached get")
	}
	return item.Value, nil
}

func (s *MemcachedStore) Set(ctx context.Context, key string, value []byte) error {
	return pkgerrors.Wrap(s.mc.Set(&memcache.Item{Key: key, Value: value}), "memcached set")
}

func (s *MemcachedStore) Delete(ctx context.Context, key string) error {
	err := s.mc.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return pkgerrors.Wrap(err, "memcached delete")
}

func (s *MemcachedStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	for i := 0; i < maxUpdateAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := s.mc.Get(key)
		exists := true
		if errors.Is(err, memcache.ErrCacheMiss) {
			exists = false
		} else if err != nil {
			return pkgerrors.Wrap(err, "memcached get")
		}

		var current []byte
		if exists {
			current = item.Value
		}

		next, write, err := fn(current, exists)
		if err != nil {
			return err
		}
		if !write {
			return nil
		}

		if exists {
			item.Value = next
			err = s.mc.CompareAndSwap(item)
		} else {
			err = s.mc.Add(&memcache.Item{Key: key, Value: next})
		}

		switch {
		case err == nil:
			return nil
		case errors.Is(err, memcache.ErrCASConflict),
			errors.Is(err, memcache.ErrNotStored),
			errors.Is(err, memcache.ErrCacheMiss):
			continue
		default:
			return pkgerrors.Wrap(err, "memcached write")
		}
	}
	return ErrContention
}

var _ Store = (*MemcachedStore)(nil)
