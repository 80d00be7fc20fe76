package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerStore stops calling a failing backend for a while instead of
// letting every request wait on it.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Store, config BreakerConfig) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn(
				"storage breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
				slog.String("module", "kv"),
			)
		},
		IsSuccessful: isBackendSuccess,
	})
	return &BreakerStore{next: next, cb: cb}
}

// isBackendSuccess only counts backend failures. Missing keys, rejected
// updates and cancelled requests say nothing about backend health.
func isBackendSuccess(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.As(err, new(*rejectedUpdate))
}

// rejectedUpdate marks an error returned by an UpdateFunc.
type rejectedUpdate struct {
	err error
}

func (r *rejectedUpdate) Error() string { return r.err.Error() }
func (r *rejectedUpdate) Unwrap() error { return r.err }

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.cb.Execute(func() (any, error) {
		return s.next.Get(ctx, key)
	})
	if err != nil {
		return nil, translate(err)
	}
	return v.([]byte), nil
}

func (s *BreakerStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.next.Set(ctx, key, value)
	})
	return translate(err)
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.next.Delete(ctx, key)
	})
	return translate(err)
}

func (s *BreakerStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	wrapped := func(current []byte, exists bool) ([]byte, bool, error) {
		next, write, err := fn(current, exists)
		if err != nil {
			return nil, false, &rejectedUpdate{err: err}
		}
		return next, write, nil
	}
	_, err := s.cb.Execute(func() (any, error) {
		return nil, s.next.Update(ctx, key, wrapped)
	})

	var rejected *rejectedUpdate
	if errors.As(err, &rejected) {
		return rejected.err
	}
	return translate(err)
}

func translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	return err
}

var _ Store = (*BreakerStore)(nil)
