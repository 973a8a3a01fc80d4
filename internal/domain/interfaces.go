package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// EventPublisher fans committed lifecycle events out to subscribers.
// Implemented by infra/events (no-op and Redis pub/sub).
type EventPublisher interface {
	Publish(ctx context.Context, ev TaskEvent) error
	Close() error
}
