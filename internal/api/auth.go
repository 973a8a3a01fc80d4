package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/security"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

func contextWithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// callerOf returns the authenticated identity set by requireAuth.
func callerOf(r *http.Request) domain.Identity {
	id, _ := r.Context().Value(ctxKeyIdentity).(domain.Identity)
	return id
}

// requireAuth enforces a self-signed EdDSA bearer token.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Unauthenticated", "missing or invalid Authorization header")
			return
		}
		id, err := security.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthenticated", "invalid token: "+err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), id)))
	})
}
