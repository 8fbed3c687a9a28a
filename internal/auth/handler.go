package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

const maxFormBodyBytes = 1 << 20

// Authenticator is the service surface the HTTP handlers need.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	CreateAccessToken(email string) (string, error)
	BlacklistToken(ctx context.Context, token string) error
}

type Handler struct {
	service Authenticator
}

func NewHandler(service Authenticator) *Handler {
	return &Handler{service: service}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login authenticates an OAuth2 password form (username + password fields)
// and returns a bearer access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBodyBytes)

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	identity, err := h.service.Authenticate(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountLocked):
			writeUnauthorized(w, "account is locked, please try again later")
		case errors.Is(err, ErrInvalidCredentials):
			writeUnauthorized(w, "incorrect username or password")
		case errors.Is(err, ErrPasswordResetRequired):
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUpgradeRequired, "account requires password reset")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to login")
		}
		return
	}

	token, err := h.service.CreateAccessToken(identity)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout revokes the token the request authenticated with. Runs behind
// Middleware, which leaves the raw token on the context.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := BearerFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "missing authorization token")
		return
	}

	if err := h.service.BlacklistToken(r.Context(), token); err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			writeUnauthorized(w, "invalid token format")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "successfully logged out"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
