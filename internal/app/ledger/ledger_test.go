package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/infra/metrics"
	"github.com/tutu-network/bounty/internal/infra/sqlite"
)

const (
	alice = domain.Identity("aa00000000000000000000000000000000000000000000000000000000000000")
	bob   = domain.Identity("bb00000000000000000000000000000000000000000000000000000000000000")
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestService(t *testing.T) (*Service, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewService(db, FaucetConfig{Enabled: true, MaxAmount: 1_000_000}), db
}

func transfer(db *sqlite.DB, from, to domain.Address, amount uint64) error {
	ctx := context.Background()
	return db.Atomic(ctx, func(tx *sqlite.Tx) error {
		return Transfer(ctx, tx, domain.Transfer{From: from, To: to, Amount: amount, Type: domain.TxEscrow})
	})
}

// ─── Transfer Tests ─────────────────────────────────────────────────────────

func TestTransfer_MovesFunds(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	svc.Deposit(ctx, alice, 500)

	if err := transfer(db, domain.AccountOf(alice), domain.AccountOf(bob), 200); err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}

	a, _ := svc.Balance(ctx, domain.AccountOf(alice))
	b, _ := svc.Balance(ctx, domain.AccountOf(bob))
	if a != 300 {
		t.Errorf("alice = %d, want 300", a)
	}
	if b != 200 {
		t.Errorf("bob = %d, want 200", b)
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	svc.Deposit(ctx, alice, 100)

	err := transfer(db, domain.AccountOf(alice), domain.AccountOf(bob), 101)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	a, _ := svc.Balance(ctx, domain.AccountOf(alice))
	b, _ := svc.Balance(ctx, domain.AccountOf(bob))
	if a != 100 || b != 0 {
		t.Errorf("balances = %d/%d, want 100/0 (unchanged)", a, b)
	}
}

func TestTransfer_ZeroAmount(t *testing.T) {
	_, db := newTestService(t)
	if err := transfer(db, domain.AccountOf(alice), domain.AccountOf(bob), 0); err == nil {
		t.Error("Transfer(0) should return error")
	}
}

func TestTransfer_SelfTransfer(t *testing.T) {
	_, db := newTestService(t)
	if err := transfer(db, domain.AccountOf(alice), domain.AccountOf(alice), 1); err == nil {
		t.Error("self transfer should return error")
	}
}

func TestTransfer_AmountOverflow(t *testing.T) {
	_, db := newTestService(t)
	err := transfer(db, domain.SystemPool, domain.AccountOf(bob), math.MaxInt64+1)
	if !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Errorf("err = %v, want ErrArithmeticOverflow", err)
	}
}

func TestTransfer_BalanceOverflow(t *testing.T) {
	_, db := newTestService(t)
	if err := transfer(db, domain.SystemPool, domain.AccountOf(bob), math.MaxInt64); err != nil {
		t.Fatalf("first transfer error: %v", err)
	}
	err := transfer(db, domain.SystemPool, domain.AccountOf(bob), 1)
	if !errors.Is(err, domain.ErrArithmeticOverflow) {
		t.Errorf("err = %v, want ErrArithmeticOverflow", err)
	}
}

func TestTransfer_WritesMatchedEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Deposit(ctx, alice, 75)

	hist, err := svc.History(ctx, domain.SystemPool, 10)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(hist) != 1 || hist[0].EntryType != domain.EntryDebit {
		t.Fatalf("system pool history = %+v, want one DEBIT", hist)
	}
	mine, _ := svc.History(ctx, domain.AccountOf(alice), 10)
	if len(mine) != 1 || mine[0].EntryType != domain.EntryCredit {
		t.Fatalf("alice history = %+v, want one CREDIT", mine)
	}
	if hist[0].TransferID != mine[0].TransferID {
		t.Error("DEBIT and CREDIT should share a transfer id")
	}
	if mine[0].Balance != 75 || hist[0].Balance != -75 {
		t.Errorf("running balances = %d/%d, want 75/-75", mine[0].Balance, hist[0].Balance)
	}
}

// ─── Wallet Tests ───────────────────────────────────────────────────────────

func TestService_InitialBalance(t *testing.T) {
	svc, _ := newTestService(t)
	bal, err := svc.Balance(context.Background(), domain.AccountOf(alice))
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if bal != 0 {
		t.Errorf("initial balance = %d, want 0", bal)
	}
}

func TestService_DepositMultiple(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, alice, 10)
	svc.Deposit(ctx, alice, 20)
	bal, err := svc.Deposit(ctx, alice, 30)
	if err != nil {
		t.Fatalf("Deposit() error: %v", err)
	}
	if bal != 60 {
		t.Errorf("balance = %d, want 60", bal)
	}
}

func depositedTotal(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.Deposits.Write(&m); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestService_DepositCountsMetric(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	before := depositedTotal(t)
	if _, err := svc.Deposit(ctx, alice, 250); err != nil {
		t.Fatalf("Deposit() error: %v", err)
	}
	if _, err := svc.Deposit(ctx, alice, 0); err == nil {
		t.Fatal("zero deposit should fail")
	}
	if got := depositedTotal(t) - before; got != 250 {
		t.Errorf("deposits metric grew by %v, want 250", got)
	}
}

func TestService_DepositLimits(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	off := NewService(db, FaucetConfig{Enabled: false})
	if _, err := off.Deposit(ctx, alice, 1); !errors.Is(err, domain.ErrFaucetDisabled) {
		t.Errorf("disabled faucet err = %v, want ErrFaucetDisabled", err)
	}

	capped := NewService(db, FaucetConfig{Enabled: true, MaxAmount: 100})
	if _, err := capped.Deposit(ctx, alice, 101); !errors.Is(err, domain.ErrDepositTooLarge) {
		t.Errorf("oversized deposit err = %v, want ErrDepositTooLarge", err)
	}
	if _, err := capped.Deposit(ctx, alice, 0); err == nil {
		t.Error("Deposit(0) should return error")
	}
	if _, err := capped.Deposit(ctx, "not-a-key", 5); !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Errorf("bad identity err = %v, want ErrInvalidIdentity", err)
	}
}

func TestService_HistoryDefaultLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < DefaultHistoryLimit+5; i++ {
		svc.Deposit(ctx, alice, 1)
	}
	hist, _ := svc.History(ctx, domain.AccountOf(alice), 0)
	if len(hist) != DefaultHistoryLimit {
		t.Errorf("History(0) = %d entries, want %d", len(hist), DefaultHistoryLimit)
	}
}

// ─── Audit Tests ────────────────────────────────────────────────────────────

func TestAudit_Balanced(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, alice, 500)
	svc.Deposit(ctx, bob, 250)
	transfer(db, domain.AccountOf(alice), domain.AccountOf(bob), 125)

	r, err := svc.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if !r.Balanced() {
		t.Errorf("Audit() = %+v, want balanced", r)
	}
	if r.Debits != 875 {
		t.Errorf("debits = %d, want 875", r.Debits)
	}
}
