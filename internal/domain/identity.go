package domain

import (
	"encoding/hex"
	"fmt"
)

// Identity is a caller's hex-encoded Ed25519 public key.
type Identity string

// IdentityLen is the hex length of a 32-byte public key.
const IdentityLen = 64

// Validate checks that id is a public key in canonical lower-case hex.
func (id Identity) Validate() error {
	if len(id) != IdentityLen {
		return fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidIdentity, IdentityLen, len(id))
	}
	key, err := hex.DecodeString(string(id))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	// One key, one identity: only lower-case hex is accepted.
	if hex.EncodeToString(key) != string(id) {
		return fmt.Errorf("%w: identity must be lower-case hex", ErrInvalidIdentity)
	}
	return nil
}

// Short returns an abbreviated form for display ("ab12cd…ef34").
func (id Identity) Short() string {
	if len(id) <= 12 {
		return string(id)
	}
	return string(id[:6]) + "…" + string(id[len(id)-4:])
}

// Address is a derived storage location (hex SHA-256). Boards, tasks and
// balances are all keyed by Address; a caller's own balance lives at the
// Address equal to its Identity.
type Address string

// AccountOf returns the balance address owned by an identity.
func AccountOf(id Identity) Address { return Address(id) }
