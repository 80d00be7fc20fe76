package kv

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/patrickmn/go-cache"
	pkgerrors "github.com/pkg/errors"
)

// LocalStore keeps values in process memory. With a snapshot path it
// behaves like on-device storage: the snapshot is loaded at start and
// rewritten after every change.
type LocalStore struct {
	mu       sync.Mutex
	cache    *cache.Cache
	snapshot string
}

func NewLocalStore(snapshot string) (*LocalStore, error) {
	s := &LocalStore{
		cache:    cache.New(cache.NoExpiration, 0),
		snapshot: snapshot,
	}
	if snapshot == "" {
		return s, nil
	}

	err := s.cache.LoadFile(snapshot)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, pkgerrors.Wrap(err, "load snapshot")
	}
	return s, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key)
}

func (s *LocalStore) get(key string) ([]byte, error) {
	v, found := s.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	value, ok := v.([]byte)
	if !ok {
		return nil, pkgerrors.Errorf("unexpected value type %T for %s", v, key)
	}
	return clone(value), nil
}

func (s *LocalStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(key, clone(value), true)
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(key, nil, false)
}

func (s *LocalStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	current, err := s.get(key)
	exists := true
	if errors.Is(err, ErrNotFound) {
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

	return s.commit(key, clone(next), true)
}

// commit applies one change and persists it. When the snapshot cannot be
// written the previous value is restored, so memory never holds data the
// caller was told failed.
func (s *LocalStore) commit(key string, value []byte, present bool) error {
	previous, existed := s.cache.Get(key)

	if present {
		s.cache.Set(key, value, cache.NoExpiration)
	} else {
		s.cache.Delete(key)
	}

	err := s.persist()
	if err == nil {
		return nil
	}

	if existed {
		s.cache.Set(key, previous, cache.NoExpiration)
	} else {
		s.cache.Delete(key)
	}
	return err
}

func (s *LocalStore) persist() error {
	if s.snapshot == "" {
		return nil
	}
	err := s.cache.SaveFile(s.snapshot)
	if err != nil {
		slog.Error(
			"failed to save snapshot",
			slog.String("error", err.Error()),
			slog.String("path", s.snapshot),
			slog.String("module", "kv"),
		)
		return pkgerrors.Wrap(err, "save snapshot")
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ Store = (*LocalStore)(nil)
