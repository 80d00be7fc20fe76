package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/memories/internal/domain"
)

// Channel is the pub/sub channel carrying memory change events.
const Channel = "memories"

const subscriberBuffer = 16

// Signal publishes memory change events and fans them out to subscribers.
type Signal interface {
	Publish(ctx context.Context, event domain.Event) error
	Subscribe(ctx context.Context) (<-chan domain.Event, func())
}

// RedisSignal shares events between processes through Redis pub/sub.
type RedisSignal struct {
	rdb *redis.Client
}

func NewRedisSignal(redisClient *redis.Client) *RedisSignal {
	return &RedisSignal{
		rdb: redisClient,
	}
}

func (s *RedisSignal) Publish(ctx context.Context, event domain.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, Channel, jsonstr).Err()
	if err != nil {
		return errors.Wrap(err, "failed to publish event")
	}

	return nil
}

func (s *RedisSignal) Subscribe(ctx context.Context) (<-chan domain.Event, func()) {
	pubsub := s.rdb.Subscribe(ctx, Channel)
	output := make(chan domain.Event, subscriberBuffer)

	go func() {
		defer close(output)
		for msg := range pubsub.Channel() {
			var event domain.Event
			err := json.Unmarshal([]byte(msg.Payload), &event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Failed to decode event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			pubsub.Close()
		})
	}
	return output, cancel
}

// LocalSignal is an in-process hub for single instance deployments.
// Slow subscribers miss events instead of blocking publishers.
type LocalSignal struct {
	mu          sync.Mutex
	subscribers map[chan domain.Event]struct{}
}

func NewLocalSignal() *LocalSignal {
	return &LocalSignal{subscribers: make(map[chan domain.Event]struct{})}
}

func (s *LocalSignal) Publish(ctx context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			slog.WarnContext(
				ctx, "Dropping event for slow subscriber",
				slog.String("type", string(event.Type)),
				slog.String("module", "signal"),
			)
		}
	}
	return nil
}

func (s *LocalSignal) Subscribe(ctx context.Context) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			close(ch)
			s.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}
