package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutu-network/bounty/internal/domain"
)

// TokenIssuer is the "iss" claim on self-signed request tokens.
const TokenIssuer = "bounty"

// IssueToken returns an EdDSA JWT asserting kp's identity for ttl.
func IssueToken(kp *Keypair, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   kp.PublicKeyHex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := tok.SignedString(kp.Private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks that a token was signed by the key named in its
// subject and has not expired, returning that identity.
func VerifyToken(raw string) (domain.Identity, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		c, ok := t.Claims.(*jwt.RegisteredClaims)
		if !ok {
			return nil, errors.New("unexpected claims type")
		}
		return PublicKeyOf(domain.Identity(c.Subject))
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return domain.Identity(claims.Subject), nil
}
