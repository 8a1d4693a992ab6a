package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/otp-auth-api/internal/application/token"
	"github.com/otp-auth-api/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller injected into the request context.
type Identity struct {
	UserID string
	User   *domain.User
	Token  string
}

// Auth validates the Bearer token through the token engine, which checks
// signature, expiry, and revocation, and resolves the owning user.
func Auth(tokens token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			res, err := tokens.Verify(r.Context(), tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "token verification failed")
				return
			}
			if !res.Valid {
				writeJSONError(w, http.StatusUnauthorized, authFailureMessage(res.Reason))
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, &Identity{
				UserID: res.UserID,
				User:   res.User,
				Token:  tokenStr,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authFailureMessage(reason token.VerifyReason) string {
	switch reason {
	case token.ReasonExpired:
		return "token expired"
	case token.ReasonRevoked:
		return "token revoked"
	case token.ReasonUserGone:
		return "account no longer exists"
	}
	return "invalid token"
}

// IdentityFromContext extracts the authenticated caller from the request context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}
