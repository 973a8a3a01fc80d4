package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/infra/metrics"
)

var (
	// ErrBacklogFull is returned by Retrying.Publish when an event fails
	// and the retry backlog has no room left for it.
	ErrBacklogFull = errors.New("event retry backlog full")

	errRetriesExhausted = errors.New("event retries exhausted")
)

// ─── Retry Queue ────────────────────────────────────────────────────────────
// Failed publishes are re-queued with exponential backoff. Delivery order
// across retries is not preserved; consumers order by event timestamp.

// RetryConfig configures the retry queue behavior.
type RetryConfig struct {
	MaxRetries int           // Retry attempts before an event is dropped
	BaseDelay  time.Duration // Initial backoff delay (doubles each retry)
	MaxDelay   time.Duration // Cap on backoff delay
	MaxPending int           // Backlog size; 0 = unbounded
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		MaxPending: 1024,
	}
}

type retryEntry struct {
	ev        domain.TaskEvent
	attempt   int
	nextRetry time.Time
	lastErr   string
}

// Retrying wraps a publisher and retries events it failed to deliver.
type Retrying struct {
	next domain.EventPublisher
	cfg  RetryConfig
	log  *slog.Logger
	now  func() time.Time

	mu        sync.Mutex
	pending   []retryEntry
	retries   int64
	delivered int64
	dropped   int64
}

// NewRetrying wraps next with a retry backlog.
func NewRetrying(next domain.EventPublisher, cfg RetryConfig, log *slog.Logger) *Retrying {
	if log == nil {
		log = slog.Default()
	}
	return &Retrying{
		next: next,
		cfg:  cfg,
		log:  log.With(slog.String("component", "events")),
		now:  time.Now,
	}
}

// Publish tries next once. A failure is queued for retry and only reported
// if the backlog is full.
func (r *Retrying) Publish(ctx context.Context, ev domain.TaskEvent) error {
	err := r.next.Publish(ctx, ev)
	if err == nil {
		return nil
	}
	if qerr := r.schedule(retryEntry{ev: ev, lastErr: err.Error()}); qerr != nil {
		return errors.Join(qerr, err)
	}
	return nil
}

// schedule bumps e.attempt and queues it with backoff. A non-nil error
// means the event was dropped instead.
func (r *Retrying) schedule(e retryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.attempt++
	if e.attempt > r.cfg.MaxRetries {
		r.dropped++
		metrics.EventsDropped.Inc()
		r.log.Error("event dropped",
			slog.String("id", e.ev.ID),
			slog.String("type", string(e.ev.Type)),
			slog.Int("attempts", e.attempt-1),
			slog.String("error", e.lastErr),
		)
		return errRetriesExhausted
	}
	if r.cfg.MaxPending > 0 && len(r.pending) >= r.cfg.MaxPending {
		r.dropped++
		metrics.EventsDropped.Inc()
		return ErrBacklogFull
	}

	// baseDelay * 2^(attempt-1), capped
	delay := r.cfg.BaseDelay
	for i := 1; i < e.attempt; i++ {
		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
			break
		}
	}
	e.nextRetry = r.now().Add(delay)

	r.pending = append(r.pending, e)
	r.retries++
	metrics.EventRetries.Inc()
	return nil
}

// drainReady removes and returns every entry whose backoff has elapsed.
func (r *Retrying) drainReady() []retryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var ready []retryEntry
	keep := r.pending[:0]
	for _, e := range r.pending {
		if now.Before(e.nextRetry) {
			keep = append(keep, e)
		} else {
			ready = append(ready, e)
		}
	}
	r.pending = keep
	return ready
}

// Flush republishes every event whose backoff has elapsed and returns how
// many were delivered. Failures go back on the queue.
func (r *Retrying) Flush(ctx context.Context) int {
	sent := 0
	for _, e := range r.drainReady() {
		if err := r.next.Publish(ctx, e.ev); err != nil {
			e.lastErr = err.Error()
			_ = r.schedule(e)
			continue
		}
		sent++
	}
	r.mu.Lock()
	r.delivered += int64(sent)
	r.mu.Unlock()
	return sent
}

// Run flushes the backlog every interval until ctx is cancelled.
func (r *Retrying) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Pending returns the number of events awaiting retry.
func (r *Retrying) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// RetryStats holds retry queue statistics.
type RetryStats struct {
	Pending   int   `json:"pending"`
	Retries   int64 `json:"retries"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

// Stats returns current retry queue statistics.
func (r *Retrying) Stats() RetryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RetryStats{
		Pending:   len(r.pending),
		Retries:   r.retries,
		Delivered: r.delivered,
		Dropped:   r.dropped,
	}
}

// Close closes the wrapped publisher. Undelivered events are lost.
func (r *Retrying) Close() error {
	if n := r.Pending(); n > 0 {
		r.log.Warn("closing with undelivered events", slog.Int("pending", n))
	}
	return r.next.Close()
}
