// Package health provides periodic health checks with auto-recovery.
// Besides store connectivity, the checks audit conservation of funds:
// the ledger must balance and every task escrow must match its status.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tutu-network/bounty/internal/app/ledger"
	"github.com/tutu-network/bounty/internal/infra/metrics"
	"github.com/tutu-network/bounty/internal/infra/sqlite"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 60 * time.Second

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Auditor reports the ledger conservation state.
type Auditor interface {
	Audit(ctx context.Context) (ledger.AuditReport, error)
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *slog.Logger
}

// NewChecker creates a health checker with the standard checks.
func NewChecker(db *sqlite.DB, auditor Auditor, dataDir string, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Checker{
		interval: interval,
		log:      slog.Default().With(slog.String("component", "health")),
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
			},
			{
				Name: "data_dir",
				CheckFn: func(ctx context.Context) error {
					return checkDataDir(dataDir)
				},
				RecoverFn: func(ctx context.Context) error {
					return os.MkdirAll(dataDir, 0700)
				},
			},
			{
				Name: "ledger_balance",
				CheckFn: func(ctx context.Context) error {
					r, err := auditor.Audit(ctx)
					if err != nil {
						return err
					}
					if r.Debits != r.Credits {
						return fmt.Errorf("ledger out of balance: debits %d, credits %d", r.Debits, r.Credits)
					}
					return nil
				},
			},
			{
				Name: "escrow",
				CheckFn: func(ctx context.Context) error {
					r, err := auditor.Audit(ctx)
					if err != nil {
						return err
					}
					if n := len(r.Mismatches); n > 0 {
						m := r.Mismatches[0]
						return fmt.Errorf("%d task escrow mismatch(es); first %s (%s) holds %d, bounty %d",
							n, m.Task, m.Status, m.Balance, m.Bounty)
					}
					return nil
				},
			},
		},
	}
}

// Add registers an extra check, e.g. for the event broker.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	statuses := make([]Status, len(checks))
	for i, check := range checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			c.log.Warn("check failed", slog.String("check", check.Name), slog.Any("error", err))
			if check.RecoverFn != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				_ = check.RecoverFn(ctx)
			}
		} else {
			s.Healthy = true
		}
		gauge := 0.0
		if s.Healthy {
			gauge = 1
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(gauge)
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkDataDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("check data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
