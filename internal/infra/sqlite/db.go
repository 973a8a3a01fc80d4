// Package sqlite provides SQLite-based persistent storage for the bounty board.
// Uses WAL mode for concurrent reads and crash-safe writes. A single
// connection serializes every write transaction, which is what makes each
// lifecycle handler an atomic unit.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// FileName is the database file created inside the data dir.
const FileName = "bounty.db"

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db   *sql.DB
	path string
}

// Open creates or opens the SQLite database at dir/bounty.db.
// Enables WAL mode, foreign keys, a 5-second busy timeout and immediate
// transactions so concurrent processes queue instead of deadlocking.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes handlers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db, path: dbPath}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// Path returns the database file location.
func (d *DB) Path() string { return d.path }

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS boards (
			address        TEXT PRIMARY KEY,
			authority      TEXT NOT NULL UNIQUE,
			task_count     INTEGER NOT NULL DEFAULT 0,
			total_bounties INTEGER NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			address       TEXT PRIMARY KEY,
			board         TEXT NOT NULL REFERENCES boards(address),
			task_id       INTEGER NOT NULL,
			creator       TEXT NOT NULL,
			claimer       TEXT,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL,
			bounty_amount INTEGER NOT NULL CHECK (bounty_amount > 0),
			status        TEXT NOT NULL,
			proof         TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL,
			UNIQUE (board, task_id),
			CHECK ((claimer IS NULL) = (status = 'CREATED'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_creator ON tasks(creator)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_claimer ON tasks(claimer)`,

		// Balances. Task escrow lives at the task's own address.
		`CREATE TABLE IF NOT EXISTS accounts (
			address    TEXT PRIMARY KEY,
			balance    INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			CHECK (balance >= 0 OR address = 'system_pool')
		)`,

		// Double-entry ledger: every transfer writes a DEBIT and a CREDIT.
		`CREATE TABLE IF NOT EXISTS ledger (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			transfer_id  TEXT NOT NULL,
			timestamp    INTEGER NOT NULL,
			type         TEXT NOT NULL,
			entry_type   TEXT NOT NULL,
			account      TEXT NOT NULL,
			amount       INTEGER NOT NULL,
			task_address TEXT,
			description  TEXT,
			balance      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger(account)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transfer ON ledger(transfer_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx exposes the repository methods. Inside Atomic it is bound to a SQL
// transaction; inside View it reads straight from the connection.
type Tx struct {
	q   querier
	now time.Time
}

// Now is the timestamp shared by every write in this unit.
func (tx *Tx) Now() time.Time { return tx.now }

// Atomic runs fn in a single transaction. Any error returned by fn, or a
// panic, rolls back every write fn made.
func (d *DB) Atomic(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&Tx{q: sqlTx, now: time.Now().UTC()}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs read-only fn outside an explicit transaction.
func (d *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	return fn(&Tx{q: d.db, now: time.Now().UTC()})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
