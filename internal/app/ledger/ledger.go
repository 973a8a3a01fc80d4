// Package ledger implements fund transfers between balances.
// Every transfer creates matched DEBIT/CREDIT entries, so
// SUM(debits) == SUM(credits) is an invariant.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/infra/sqlite"
)

var errSelfTransfer = errors.New("transfer source and destination are the same")

// Transfer moves t.Amount from t.From to t.To inside tx. On any error the
// caller must abandon tx; Atomic then rolls back both sides.
func Transfer(ctx context.Context, tx *sqlite.Tx, t domain.Transfer) error {
	if t.Amount == 0 {
		return fmt.Errorf("transfer: %w", domain.ErrInvalidAmount)
	}
	if t.Amount > math.MaxInt64 {
		return fmt.Errorf("transfer %d: %w", t.Amount, domain.ErrArithmeticOverflow)
	}
	if t.From == t.To {
		return errSelfTransfer
	}
	amount := int64(t.Amount)

	// SQLite silently promotes overflowing integers to REAL; check first.
	toBal, err := tx.Balance(ctx, t.To)
	if err != nil {
		return fmt.Errorf("get %s balance: %w", t.To, err)
	}
	if toBal > math.MaxInt64-amount {
		return fmt.Errorf("credit %s: %w", t.To, domain.ErrArithmeticOverflow)
	}

	if t.From == domain.SystemPool {
		poolBal, err := tx.Balance(ctx, t.From)
		if err != nil {
			return fmt.Errorf("get pool balance: %w", err)
		}
		if poolBal < math.MinInt64+amount {
			return fmt.Errorf("debit %s: %w", t.From, domain.ErrArithmeticOverflow)
		}
	}

	fromBal, ok, err := tx.Debit(ctx, t.From, amount)
	if err != nil {
		return err
	}
	if !ok {
		have, _ := tx.Balance(ctx, t.From)
		return fmt.Errorf("%w: %s has %d, need %d", domain.ErrInsufficientFunds, t.From, have, amount)
	}

	newToBal, err := tx.Credit(ctx, t.To, amount)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	entries := []domain.LedgerEntry{
		{EntryType: domain.EntryDebit, Account: t.From, Balance: fromBal},
		{EntryType: domain.EntryCredit, Account: t.To, Balance: newToBal},
	}
	for _, e := range entries {
		e.TransferID = id
		e.Timestamp = tx.Now()
		e.Type = t.Type
		e.Amount = amount
		e.TaskAddress = t.TaskAddress
		e.Description = t.Description
		if _, err := tx.InsertLedgerEntry(ctx, e); err != nil {
			return fmt.Errorf("record %s %s: %w", e.EntryType, e.Account, err)
		}
	}
	return nil
}
