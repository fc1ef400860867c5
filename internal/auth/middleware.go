package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ngampusin/identity/internal/model"
)

// Identity is the verified-identity context attached to every
// authenticated request: who the caller is and the two profile attributes
// the rest of the application keys on. It is resolved once by RequireAuth
// and passed explicitly into the service layer — handlers never re-parse
// the token.
type Identity struct {
	UserID   string
	Role     model.Role
	Fakultas string
	Token    string // the raw bearer token, needed by the profile-refresh path
}

// contextKey is an unexported type for context keys in this package.
// A package-private key type prevents other packages from reading or
// shadowing the identity value.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth enforces authentication on protected routes.
//
// The token is read from the Authorization header ("Bearer <jwt>") or,
// failing that, from the "token" HttpOnly cookie set at login. Browser
// clients use the cookie; API clients use the header. A missing or invalid
// token ends the request with 401 — the version-counter check against the
// store happens later, in the service layer, where the user record is
// loaded anyway.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractToken(r)
			if tokenStr == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				unauthorized(w)
				return
			}

			ident := Identity{
				UserID:   claims.UserID,
				Role:     claims.Role,
				Fakultas: claims.Fakultas,
				Token:    tokenStr,
			}
			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the authenticated caller's identity.
// Returns (zero, false) on routes not behind RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok && ident.UserID != ""
}

// extractToken pulls the bearer token from the request, header first.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
}
