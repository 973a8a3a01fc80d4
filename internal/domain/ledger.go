package domain

import "time"

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a fund movement.
type TransactionType string

const (
	TxDeposit TransactionType = "DEPOSIT"
	TxEscrow  TransactionType = "ESCROW"
	TxPayout  TransactionType = "PAYOUT"
	TxRefund  TransactionType = "REFUND"
)

// SystemPool is the mint account that funds deposits. It is the only
// account allowed to carry a negative balance.
const SystemPool Address = "system_pool"

// LedgerEntry is a single row in the double-entry ledger. Every transfer
// writes one DEBIT and one CREDIT sharing a TransferID.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	TransferID  string          `json:"transfer_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        TransactionType `json:"type"`
	EntryType   EntryType       `json:"entry_type"`
	Account     Address         `json:"account"`
	Amount      int64           `json:"amount"`
	TaskAddress Address         `json:"task_address,omitempty"`
	Description string          `json:"description,omitempty"`
	Balance     int64           `json:"balance"`
}

// Transfer describes one atomic movement of funds between two balances.
type Transfer struct {
	From        Address
	To          Address
	Amount      uint64
	Type        TransactionType
	TaskAddress Address
	Description string
}
