package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"userbase/internal/auth"
)

// Finder is the lookup surface the profile endpoint needs.
type Finder interface {
	GetByEmail(ctx context.Context, email string) (User, error)
}

type Handler struct {
	repo Finder
}

func NewHandler(repo Finder) *Handler {
	return &Handler{repo: repo}
}

// profileResponse is the public view of a user. The password hash is
// deliberately absent.
type profileResponse struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	EmailVerified       bool       `json:"email_verified"`
	CreatedAt           time.Time  `json:"created_at"`
	LastLogin           *time.Time `json:"last_login"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"locked_until"`
}

// Me returns the details of the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "could not validate credentials")
		return
	}

	u, err := h.repo.GetByEmail(r.Context(), identity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:                  u.ID,
		Email:               u.Email,
		EmailVerified:       u.EmailVerified,
		CreatedAt:           u.CreatedAt,
		LastLogin:           u.LastLogin,
		FailedLoginAttempts: u.FailedLoginAttempts,
		LockedUntil:         u.LockedUntil,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
