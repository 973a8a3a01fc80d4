// Package security provides caller identity, request tokens and address
// derivation. Every caller is an Ed25519 keypair; its public key (hex) is
// the Identity recorded as a board authority, task creator or claimer.
package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tutu-network/bounty/internal/domain"
)

// ErrNoKeypair is returned by LoadKeypair when no key has been generated.
var ErrNoKeypair = errors.New("no keypair found, run 'bounty keygen'")

// Keypair holds a caller's Ed25519 identity.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeypair creates a new Ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

func keyPaths(home string) (pubPath, privPath string) {
	dir := filepath.Join(home, "keys")
	return filepath.Join(dir, "id.pub"), filepath.Join(dir, "id.key")
}

// LoadKeypair reads the keypair stored under home/keys.
func LoadKeypair(home string) (*Keypair, error) {
	pubPath, privPath := keyPaths(home)

	privBytes, err := os.ReadFile(privPath)
	if os.IsNotExist(err) {
		return nil, ErrNoKeypair
	}
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	priv, err := hex.DecodeString(string(privBytes))
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("decode private key %s: malformed", privPath)
	}

	kp := &Keypair{Private: ed25519.PrivateKey(priv)}
	kp.Public = kp.Private.Public().(ed25519.PublicKey)

	// The .pub file is informational; a mismatch means someone edited it.
	if pubBytes, err := os.ReadFile(pubPath); err == nil {
		if string(pubBytes) != kp.PublicKeyHex() {
			return nil, fmt.Errorf("public key %s does not match private key", pubPath)
		}
	}
	return kp, nil
}

// SaveKeypair writes kp under home/keys, refusing to overwrite unless force.
func SaveKeypair(home string, kp *Keypair, force bool) error {
	pubPath, privPath := keyPaths(home)
	if !force {
		if _, err := os.Stat(privPath); err == nil {
			return fmt.Errorf("keypair already exists at %s (use --force to replace)", privPath)
		}
	}
	if err := os.MkdirAll(filepath.Dir(privPath), 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(kp.Private)), 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(kp.PublicKeyHex()), 0644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}

// PublicKeyHex returns the public key as a hex string.
func (kp *Keypair) PublicKeyHex() string {
	return hex.EncodeToString(kp.Public)
}

// Identity returns the caller identity for this keypair.
func (kp *Keypair) Identity() domain.Identity {
	return domain.Identity(kp.PublicKeyHex())
}

// Sign signs a message with the private key.
func (kp *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.Private, message)
}

// Verify checks a signature against a public key.
func Verify(message, signature []byte, publicKey ed25519.PublicKey) bool {
	return ed25519.Verify(publicKey, message, signature)
}

// PublicKeyOf decodes an identity back into an Ed25519 public key.
func PublicKeyOf(id domain.Identity) (ed25519.PublicKey, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	b, _ := hex.DecodeString(string(id))
	return ed25519.PublicKey(b), nil
}
