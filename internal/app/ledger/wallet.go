package ledger

import (
	"context"
	"fmt"

	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/infra/metrics"
	"github.com/tutu-network/bounty/internal/infra/sqlite"
)

// DefaultHistoryLimit caps History when the caller passes 0.
const DefaultHistoryLimit = 50

// FaucetConfig bounds Deposit.
type FaucetConfig struct {
	Enabled   bool
	MaxAmount uint64 // 0 = unlimited
}

// Service manages caller balances.
type Service struct {
	db     *sqlite.DB
	faucet FaucetConfig
}

// NewService creates a wallet service.
func NewService(db *sqlite.DB, faucet FaucetConfig) *Service {
	return &Service{db: db, faucet: faucet}
}

// Balance returns the current balance at addr.
func (s *Service) Balance(ctx context.Context, addr domain.Address) (int64, error) {
	var bal int64
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		bal, err = tx.Balance(ctx, addr)
		return err
	})
	return bal, err
}

// Deposit mints amount from the system pool into id's balance and returns
// the new balance.
func (s *Service) Deposit(ctx context.Context, id domain.Identity, amount uint64) (int64, error) {
	if !s.faucet.Enabled {
		return 0, domain.ErrFaucetDisabled
	}
	if amount == 0 {
		return 0, fmt.Errorf("deposit: %w", domain.ErrInvalidAmount)
	}
	if s.faucet.MaxAmount > 0 && amount > s.faucet.MaxAmount {
		return 0, fmt.Errorf("%w: %d > %d", domain.ErrDepositTooLarge, amount, s.faucet.MaxAmount)
	}
	if err := id.Validate(); err != nil {
		return 0, err
	}

	acct := domain.AccountOf(id)
	var bal int64
	err := s.db.Atomic(ctx, func(tx *sqlite.Tx) error {
		err := Transfer(ctx, tx, domain.Transfer{
			From:        domain.SystemPool,
			To:          acct,
			Amount:      amount,
			Type:        domain.TxDeposit,
			Description: "faucet deposit",
		})
		if err != nil {
			return err
		}
		bal, err = tx.Balance(ctx, acct)
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.Deposits.Add(float64(amount))
	return bal, nil
}

// History returns recent ledger entries for addr, newest first.
func (s *Service) History(ctx context.Context, addr domain.Address, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var entries []domain.LedgerEntry
	err := s.db.View(ctx, func(tx *sqlite.Tx) (err error) {
		entries, err = tx.LedgerEntries(ctx, addr, limit)
		return err
	})
	return entries, err
}

// AuditReport summarizes the conservation checks.
type AuditReport struct {
	Debits     int64                   `json:"debits"`
	Credits    int64                   `json:"credits"`
	Mismatches []sqlite.EscrowMismatch `json:"mismatches,omitempty"`
}

// Balanced reports whether the ledger and every task escrow reconcile.
func (r AuditReport) Balanced() bool {
	return r.Debits == r.Credits && len(r.Mismatches) == 0
}

// Audit checks the double-entry invariant and that each task's escrow
// holds its bounty while open and nothing once resolved.
func (s *Service) Audit(ctx context.Context) (AuditReport, error) {
	var r AuditReport
	err := s.db.View(ctx, func(tx *sqlite.Tx) error {
		var err error
		if r.Debits, r.Credits, err = tx.LedgerTotals(ctx); err != nil {
			return fmt.Errorf("ledger totals: %w", err)
		}
		if r.Mismatches, err = tx.EscrowMismatches(ctx); err != nil {
			return fmt.Errorf("escrow audit: %w", err)
		}
		return nil
	})
	return r, err
}
