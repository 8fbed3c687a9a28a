package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"userbase/internal/auth"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByEmail looks a user up case-insensitively. Not-found surfaces as
// sql.ErrNoRows; anything else is wrapped infrastructure failure.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	email = auth.NormalizeEmail(email)

	var u User
	var lastLogin, lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, email_verified, created_at, last_login, failed_login_attempts, locked_until
		FROM users
		WHERE lower(email) = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &lastLogin, &u.FailedLoginAttempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("query user by email: %w", err)
	}

	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		u.LastLogin = &value
	}
	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		u.LockedUntil = &value
	}

	return u, nil
}

// FindPasswordHash is the credential lookup the auth service runs on.
func (r *Repository) FindPasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT password_hash
		FROM users
		WHERE lower(email) = $1
	`, auth.NormalizeEmail(email)).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("query password hash: %w", err)
	}

	return hash, nil
}

// RecordLoginSuccess stamps last_login and clears the persisted failure
// state in one update.
func (r *Repository) RecordLoginSuccess(ctx context.Context, email string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_login = $2, failed_login_attempts = 0, locked_until = NULL
		WHERE lower(email) = $1
	`, auth.NormalizeEmail(email), at.UTC())
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}

	return nil
}

// RecordLoginFailure mirrors the in-process attempt state onto the user
// row so it can be surfaced through the profile endpoint. A no-op for
// identities without a row.
func (r *Repository) RecordLoginFailure(ctx context.Context, email string, failedAttempts int, lockedUntil *time.Time) error {
	var lockedValue any
	if lockedUntil != nil {
		lockedValue = lockedUntil.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = $2, locked_until = $3
		WHERE lower(email) = $1
	`, auth.NormalizeEmail(email), failedAttempts, lockedValue)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	return nil
}

// EnsureAdmin creates the bootstrap account when it does not exist yet.
// An existing account keeps its password.
func (r *Repository) EnsureAdmin(ctx context.Context, email, plainPassword string) error {
	email = auth.NormalizeEmail(email)
	if email == "" && plainPassword == "" {
		return nil
	}
	if email == "" || plainPassword == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = $1)
	`, email).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if exists {
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}

	hash, err := auth.HashPassword(plainPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, email_verified, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
	`, id.String(), email, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}

	return nil
}
