package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tutu-network/bounty/internal/domain"
)

// ─── Balances ───────────────────────────────────────────────────────────────

// Balance returns the current balance of addr (0 if it has none).
func (tx *Tx) Balance(ctx context.Context, addr domain.Address) (int64, error) {
	var balance int64
	err := tx.q.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE address = ?`, string(addr),
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Debit subtracts amount from addr if it can cover it. ok is false when
// the balance is short (or the account does not exist). The system pool
// is exempt from the floor.
func (tx *Tx) Debit(ctx context.Context, addr domain.Address, amount int64) (balance int64, ok bool, err error) {
	err = tx.q.QueryRowContext(ctx,
		`UPDATE accounts SET balance = balance - ?, updated_at = ?
		 WHERE address = ? AND (balance >= ? OR address = ?)
		 RETURNING balance`,
		amount, tx.now.Unix(), string(addr), amount, string(domain.SystemPool),
	).Scan(&balance)
	if err == sql.ErrNoRows {
		if addr == domain.SystemPool {
			return tx.openSystemPool(ctx, amount)
		}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("debit %s: %w", addr, err)
	}
	return balance, true, nil
}

func (tx *Tx) openSystemPool(ctx context.Context, amount int64) (int64, bool, error) {
	_, err := tx.q.ExecContext(ctx,
		`INSERT INTO accounts (address, balance, updated_at) VALUES (?, ?, ?)`,
		string(domain.SystemPool), -amount, tx.now.Unix())
	if err != nil {
		return 0, false, fmt.Errorf("open system pool: %w", err)
	}
	return -amount, true, nil
}

// Credit adds amount to addr, opening the account if needed.
func (tx *Tx) Credit(ctx context.Context, addr domain.Address, amount int64) (int64, error) {
	var balance int64
	err := tx.q.QueryRowContext(ctx,
		`INSERT INTO accounts (address, balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at
		 RETURNING balance`,
		string(addr), amount, tx.now.Unix(),
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("credit %s: %w", addr, err)
	}
	return balance, nil
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// InsertLedgerEntry appends a ledger entry.
func (tx *Tx) InsertLedgerEntry(ctx context.Context, e domain.LedgerEntry) (int64, error) {
	result, err := tx.q.ExecContext(ctx,
		`INSERT INTO ledger (transfer_id, timestamp, type, entry_type, account, amount, task_address, description, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TransferID, e.Timestamp.Unix(), string(e.Type), string(e.EntryType),
		string(e.Account), e.Amount, nullStr(string(e.TaskAddress)), nullStr(e.Description), e.Balance,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LedgerEntries returns recent ledger entries for an account, newest first.
func (tx *Tx) LedgerEntries(ctx context.Context, account domain.Address, limit int) ([]domain.LedgerEntry, error) {
	rows, err := tx.q.QueryContext(ctx,
		`SELECT id, transfer_id, timestamp, type, entry_type, account, amount, task_address, description, balance
		 FROM ledger WHERE account = ? ORDER BY id DESC LIMIT ?`,
		string(account), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		var typ, entryType, acct string
		var taskAddr, desc sql.NullString
		err := rows.Scan(&e.ID, &e.TransferID, &ts, &typ, &entryType, &acct,
			&e.Amount, &taskAddr, &desc, &e.Balance)
		if err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.Type = domain.TransactionType(typ)
		e.EntryType = domain.EntryType(entryType)
		e.Account = domain.Address(acct)
		if taskAddr.Valid {
			e.TaskAddress = domain.Address(taskAddr.String)
		}
		if desc.Valid {
			e.Description = desc.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LedgerTotals returns the summed DEBIT and CREDIT amounts.
func (tx *Tx) LedgerTotals(ctx context.Context) (debits, credits int64, err error) {
	err = tx.q.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN entry_type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN entry_type = ? THEN amount END), 0)
		 FROM ledger`,
		string(domain.EntryDebit), string(domain.EntryCredit),
	).Scan(&debits, &credits)
	return debits, credits, err
}

// EscrowMismatch is a task whose escrow balance disagrees with its status.
type EscrowMismatch struct {
	Task    domain.Address    `json:"task"`
	Status  domain.TaskStatus `json:"status"`
	Bounty  int64             `json:"bounty"`
	Balance int64             `json:"balance"`
}

// EscrowMismatches lists tasks whose escrow balance is not bounty_amount
// while open, or not 0 once resolved.
func (tx *Tx) EscrowMismatches(ctx context.Context) ([]EscrowMismatch, error) {
	rows, err := tx.q.QueryContext(ctx,
		`SELECT t.address, t.status, t.bounty_amount, COALESCE(a.balance, 0)
		 FROM tasks t LEFT JOIN accounts a ON a.address = t.address
		 WHERE (t.status IN (?, ?, ?) AND COALESCE(a.balance, 0) != t.bounty_amount)
		    OR (t.status IN (?, ?) AND COALESCE(a.balance, 0) != 0)`,
		string(domain.TaskCreated), string(domain.TaskClaimed), string(domain.TaskCompleted),
		string(domain.TaskApproved), string(domain.TaskRejected),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EscrowMismatch
	for rows.Next() {
		var m EscrowMismatch
		var addr, status string
		if err := rows.Scan(&addr, &status, &m.Bounty, &m.Balance); err != nil {
			return nil, err
		}
		m.Task = domain.Address(addr)
		m.Status = domain.TaskStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}
