// Package events publishes committed task lifecycle transitions.
// Events go out after the handler's transaction commits; a failed publish
// never undoes a transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tutu-network/bounty/internal/domain"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "bounty:task_events"

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, domain.TaskEvent) error { return nil }

func (Noop) Close() error { return nil }

// ─── Redis ──────────────────────────────────────────────────────────────────

// RedisPublisher publishes event JSON to a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

// NewRedisPublisher connects to Redis at opts.Addr.
func NewRedisPublisher(opts *redis.Options, channel string, log *slog.Logger) (*RedisPublisher, error) {
	if opts == nil || opts.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisPublisher{
		rdb:     redis.NewClient(opts),
		channel: channel,
		log:     log.With(slog.String("component", "events")),
	}, nil
}

// Channel returns the pub/sub channel name.
func (p *RedisPublisher) Channel() string { return p.channel }

// Ping verifies Redis connectivity.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Publish sends ev as JSON on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev domain.TaskEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.log.Debug("event published", slog.String("type", string(ev.Type)), slog.String("task", string(ev.Task)))
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// Subscription streams decoded events from the channel.
type Subscription struct {
	ps     *redis.PubSub
	events chan domain.TaskEvent
}

// Subscribe listens on the channel until ctx is done or Close is called.
// Malformed payloads are skipped.
func (p *RedisPublisher) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := p.rdb.Subscribe(ctx, p.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", p.channel, err)
	}

	s := &Subscription{ps: ps, events: make(chan domain.TaskEvent, 16)}
	go func() {
		defer close(s.events)
		for msg := range ps.Channel() {
			var ev domain.TaskEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.log.Warn("skipping malformed event", slog.Any("error", err))
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s, nil
}

// Events returns the decoded event stream. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan domain.TaskEvent { return s.events }

// Close ends the subscription.
func (s *Subscription) Close() error { return s.ps.Close() }
