package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Validation errors
	ErrTitleTooLong        = errors.New("title too long")
	ErrDescriptionTooLong  = errors.New("description too long")
	ErrProofTooLong        = errors.New("proof too long")
	ErrInvalidBountyAmount = errors.New("bounty amount must be greater than 0")
	ErrInvalidIdentity     = errors.New("invalid identity")
	ErrInvalidAmount       = errors.New("amount must be greater than 0")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// State errors
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrTaskAlreadyClaimed = errors.New("task already claimed")

	// Resource errors
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrFaucetDisabled     = errors.New("faucet is disabled")
	ErrDepositTooLarge    = errors.New("deposit exceeds faucet limit")

	// Lookup errors
	ErrBoardExists   = errors.New("board already initialized for this authority")
	ErrBoardNotFound = errors.New("board not found")
	ErrTaskNotFound  = errors.New("task not found")
)

// StatusError reports a precise status mismatch. Kind is the compatible
// sentinel (ErrTaskAlreadyClaimed for claims, ErrInvalidTaskStatus
// otherwise) so errors.Is keeps working against the coarse names.
type StatusError struct {
	Op       string
	Expected TaskStatus
	Actual   TaskStatus
	Kind     error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v: expected %s, got %s", e.Op, e.Kind, e.Expected, e.Actual)
}

func (e *StatusError) Unwrap() error { return e.Kind }

// NewStatusError builds a StatusError for op.
func NewStatusError(op string, kind error, expected, actual TaskStatus) *StatusError {
	return &StatusError{Op: op, Expected: expected, Actual: actual, Kind: kind}
}

// kinds maps sentinels to their stable external names.
var kinds = []struct {
	err  error
	name string
}{
	{ErrTitleTooLong, "TitleTooLong"},
	{ErrDescriptionTooLong, "DescriptionTooLong"},
	{ErrProofTooLong, "ProofTooLong"},
	{ErrInvalidBountyAmount, "InvalidBountyAmount"},
	{ErrInvalidIdentity, "InvalidIdentity"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrTaskAlreadyClaimed, "TaskAlreadyClaimed"},
	{ErrInvalidTaskStatus, "InvalidTaskStatus"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrFaucetDisabled, "FaucetDisabled"},
	{ErrDepositTooLarge, "DepositTooLarge"},
	{ErrBoardExists, "BoardExists"},
	{ErrBoardNotFound, "BoardNotFound"},
	{ErrTaskNotFound, "TaskNotFound"},
}

// ErrorKind returns the stable name of a domain error, or "Internal".
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
