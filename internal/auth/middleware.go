package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey int

const (
	identityContextKey contextKey = iota
	bearerContextKey
)

// TokenVerifier decodes a bearer token and checks revocation.
type TokenVerifier interface {
	DecodeToken(ctx context.Context, token string) (Claims, error)
}

// Middleware authenticates the request with a bearer access token and puts
// the identity (and the raw token, for logout) on the request context.
func Middleware(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeUnauthorized(w, "missing authorization token")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeUnauthorized(w, "invalid authorization format")
			return
		}

		raw := strings.TrimSpace(parts[1])
		if raw == "" {
			writeUnauthorized(w, "invalid authorization token")
			return
		}

		claims, err := verifier.DecodeToken(r.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				writeUnauthorized(w, "token has expired")
			case errors.Is(err, ErrTokenRevoked):
				writeUnauthorized(w, "token has been invalidated")
			default:
				writeUnauthorized(w, "could not validate credentials")
			}
			return
		}

		if claims.Subject == "" {
			writeUnauthorized(w, "invalid token payload")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, claims.Subject)
		ctx = context.WithValue(ctx, bearerContextKey, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the authenticated identity set by Middleware.
func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityContextKey).(string)
	return identity, ok && identity != ""
}

// BearerFromContext returns the raw token the request authenticated with.
func BearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerContextKey).(string)
	return token, ok && token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message)
}
