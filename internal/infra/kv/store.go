package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable is returned while a backend is considered down.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrContention is returned when an update kept losing optimistic races.
	ErrContention = errors.New("too much contention on key")
)

// UpdateFunc receives the current value of a key and returns the value to
// store. When write is false the stored value is left untouched.
// It may be called more than once and must not have side effects.
type UpdateFunc func(current []byte, exists bool) (next []byte, write bool, err error)

// Store is a byte-oriented key-value store. Update is atomic per key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

const maxUpdateAttempts = 16
