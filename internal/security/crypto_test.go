package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutu-network/bounty/internal/domain"
)

// ─── Keypair Generation ─────────────────────────────────────────────────────

func TestGenerateKeypair(t *testing.T) {
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	if len(kp.Public) != 32 {
		t.Errorf("public key len = %d, want 32", len(kp.Public))
	}
	if err := kp.Identity().Validate(); err != nil {
		t.Errorf("Identity().Validate() error: %v", err)
	}
}

func TestGenerateKeypair_Unique(t *testing.T) {
	kp1, _ := GenerateKeypair()
	kp2, _ := GenerateKeypair()

	if kp1.Identity() == kp2.Identity() {
		t.Error("two generated keypairs should have different identities")
	}
}

func TestSignVerify(t *testing.T) {
	kp, _ := GenerateKeypair()
	message := []byte("claim task 0")

	sig := kp.Sign(message)
	if !Verify(message, sig, kp.Public) {
		t.Error("Verify() should return true for valid signature")
	}
	if Verify([]byte("claim task 1"), sig, kp.Public) {
		t.Error("Verify() should return false for wrong message")
	}
}

// ─── Persistence ────────────────────────────────────────────────────────────

func TestLoadKeypair_Missing(t *testing.T) {
	_, err := LoadKeypair(t.TempDir())
	if !errors.Is(err, ErrNoKeypair) {
		t.Errorf("err = %v, want ErrNoKeypair", err)
	}
}

func TestSaveKeypair_RefusesOverwrite(t *testing.T) {
	home := t.TempDir()
	kp1, _ := GenerateKeypair()
	kp2, _ := GenerateKeypair()

	if err := SaveKeypair(home, kp1, false); err != nil {
		t.Fatalf("SaveKeypair() error: %v", err)
	}
	if err := SaveKeypair(home, kp2, false); err == nil {
		t.Error("second SaveKeypair() without force should fail")
	}
	if err := SaveKeypair(home, kp2, true); err != nil {
		t.Fatalf("SaveKeypair(force) error: %v", err)
	}

	got, err := LoadKeypair(home)
	if err != nil {
		t.Fatalf("LoadKeypair() error: %v", err)
	}
	if got.Identity() != kp2.Identity() {
		t.Error("forced save should replace the stored identity")
	}
}

func TestSaveLoadKeypair_Stable(t *testing.T) {
	home := t.TempDir()

	kp1, _ := GenerateKeypair()
	if err := SaveKeypair(home, kp1, false); err != nil {
		t.Fatalf("SaveKeypair() error: %v", err)
	}
	kp2, err := LoadKeypair(home)
	if err != nil {
		t.Fatalf("LoadKeypair() error: %v", err)
	}
	if kp1.Identity() != kp2.Identity() {
		t.Error("loaded keypair should match created keypair")
	}

	info, err := os.Stat(filepath.Join(home, "keys", "id.key"))
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("private key mode = %o, want 600", info.Mode().Perm())
	}
}

func TestLoadKeypair_PublicMismatch(t *testing.T) {
	home := t.TempDir()
	kp, _ := GenerateKeypair()
	SaveKeypair(home, kp, false)

	other, _ := GenerateKeypair()
	os.WriteFile(filepath.Join(home, "keys", "id.pub"), []byte(other.PublicKeyHex()), 0644)

	if _, err := LoadKeypair(home); err == nil {
		t.Error("LoadKeypair() should reject a mismatched public key file")
	}
}

// ─── Address Derivation ─────────────────────────────────────────────────────

func TestDeriveAddress_Deterministic(t *testing.T) {
	a := DeriveAddress([]byte("task"), []byte("board"))
	b := DeriveAddress([]byte("task"), []byte("board"))
	if a != b {
		t.Errorf("DeriveAddress not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("address len = %d, want 64", len(a))
	}
}

func TestDeriveAddress_LengthPrefixed(t *testing.T) {
	a := DeriveAddress([]byte("ab"), []byte("c"))
	b := DeriveAddress([]byte("a"), []byte("bc"))
	if a == b {
		t.Error("seed boundaries should affect the address")
	}
}

func TestBoardAndTaskAddresses(t *testing.T) {
	kp1, _ := GenerateKeypair()
	kp2, _ := GenerateKeypair()

	b1 := BoardAddress(kp1.Identity())
	b2 := BoardAddress(kp2.Identity())
	if b1 == b2 {
		t.Error("different authorities should get different boards")
	}

	seen := map[domain.Address]bool{b1: true, b2: true}
	for i := uint64(0); i < 50; i++ {
		addr := TaskAddress(b1, i)
		if seen[addr] {
			t.Fatalf("TaskAddress(%d) collided", i)
		}
		seen[addr] = true
	}
	if TaskAddress(b1, 3) != TaskAddress(b1, 3) {
		t.Error("TaskAddress should be reproducible")
	}
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

func TestIssueVerifyToken(t *testing.T) {
	kp, _ := GenerateKeypair()
	tok, err := IssueToken(kp, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}

	id, err := VerifyToken(tok)
	if err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	if id != kp.Identity() {
		t.Errorf("identity = %s, want %s", id, kp.Identity())
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	kp, _ := GenerateKeypair()
	tok, _ := IssueToken(kp, -time.Minute)

	_, err := VerifyToken(tok)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	if _, err := VerifyToken("not.a.token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestVerifyToken_ForgedSubject(t *testing.T) {
	signer, _ := GenerateKeypair()
	victim, _ := GenerateKeypair()

	claims := jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   victim.PublicKeyHex(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(signer.Private)
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}

	if _, err := VerifyToken(tok); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("token claiming another identity should fail, got %v", err)
	}
}

func TestVerifyToken_UpperCaseSubject(t *testing.T) {
	kp, _ := GenerateKeypair()

	claims := jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   strings.ToUpper(kp.PublicKeyHex()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(kp.Private)
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}

	if id, err := VerifyToken(tok); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("upper-case subject should be rejected, got %q, %v", id, err)
	}
}

func TestPublicKeyOf_RejectsUpperCase(t *testing.T) {
	kp, _ := GenerateKeypair()
	if _, err := PublicKeyOf(domain.Identity(strings.ToUpper(kp.PublicKeyHex()))); !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Errorf("PublicKeyOf(upper) error = %v, want ErrInvalidIdentity", err)
	}
}
