package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutu-network/bounty/internal/api"
	"github.com/tutu-network/bounty/internal/app/bounty"
	"github.com/tutu-network/bounty/internal/app/ledger"
	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/health"
	"github.com/tutu-network/bounty/internal/infra/events"
	"github.com/tutu-network/bounty/internal/infra/sqlite"
)

// Daemon is the bounty runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Bounty *bounty.Service
	Wallet *ledger.Service
	Events domain.EventPublisher
	Health *health.Checker
	Server *api.Server
	Log    *slog.Logger

	logFile io.Closer
	retry   *events.Retrying
	cancel  context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	logger, logFile, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	dataDir := cfg.Storage.Dir
	if dataDir == "" {
		dataDir = bountyHome()
	}
	db, err := sqlite.Open(dataDir)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Daemon{
		Config:  cfg,
		DB:      db,
		Log:     logger.With(slog.String("component", "daemon")),
		logFile: logFile,
		Events:  events.Noop{},
	}

	// Event publishing is optional; a configured but unreachable broker
	// only degrades health.
	var rp *events.RedisPublisher
	if cfg.Events.RedisAddr != "" {
		rp, err = events.NewRedisPublisher(&redis.Options{Addr: cfg.Events.RedisAddr}, cfg.Events.Channel, logger)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("events: %w", err)
		}
		d.retry = events.NewRetrying(rp, events.DefaultRetryConfig(), logger)
		d.Events = d.retry
	}

	d.Wallet = ledger.NewService(db, ledger.FaucetConfig{
		Enabled:   cfg.Faucet.Enabled,
		MaxAmount: cfg.Faucet.MaxAmount,
	})
	d.Bounty = bounty.NewService(db, d.Events, logger)

	d.Health = health.NewChecker(db, d.Wallet, dataDir, parseDuration(cfg.Health.Interval, health.DefaultInterval))
	d.Health.Add(health.Check{
		Name:    "task_counts",
		CheckFn: d.Bounty.RefreshTaskGauges,
	})
	if rp != nil {
		d.Health.Add(health.Check{
			Name:    "redis",
			CheckFn: rp.Ping,
		})
	}

	d.Server = api.NewServer(d.Bounty, d.Wallet, logger)
	d.Server.SetHealth(d.Health)
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}


// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)
	if d.retry != nil {
		go d.retry.Run(ctx, time.Second)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		d.Log.Info("shutting down")
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	d.Log.Info("serving",
		slog.String("addr", "http://"+addr),
		slog.String("db", d.DB.Path()),
		slog.Bool("metrics", d.Config.Telemetry.Prometheus),
		slog.Bool("events", d.Config.Events.RedisAddr != ""),
	)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Events != nil {
		_ = d.Events.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.logFile != nil {
		_ = d.logFile.Close()
	}
}
