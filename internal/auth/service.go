package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	// ErrInvalidCredentials covers both unknown identity and wrong
	// password; the two cases are never distinguishable to the caller.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrAccountLocked      = errors.New("account is locked")
	// ErrPasswordResetRequired means the stored hash is unreadable and
	// the account needs an explicit reset flow.
	ErrPasswordResetRequired = errors.New("account requires password reset")
	ErrTokenRevoked          = errors.New("token has been invalidated")
)

// A valid bcrypt hash that matches no real account. Burning a comparison
// against it keeps the unknown-identity path as slow as a wrong password.
const enumerationDummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// UserStore is the credential boundary the service authenticates against.
// FindPasswordHash returns sql.ErrNoRows for an unknown identity; any
// other error is infrastructure and surfaces as retryable.
type UserStore interface {
	FindPasswordHash(ctx context.Context, email string) (string, error)
	RecordLoginSuccess(ctx context.Context, email string, at time.Time) error
	RecordLoginFailure(ctx context.Context, email string, failedAttempts int, lockedUntil *time.Time) error
}

type Config struct {
	Secret          string
	Algorithm       string
	AccessTokenTTL  time.Duration
	MaxAttempts     int
	LockoutDuration time.Duration
}

// Service orchestrates credential verification, token issue/decode,
// revocation and login lockout.
type Service struct {
	users     UserStore
	codec     *TokenCodec
	blacklist *Blacklist
	tracker   *AttemptTracker
	accessTTL time.Duration
}

func NewService(users UserStore, store Store, cfg Config) (*Service, error) {
	codec, err := NewTokenCodec(cfg.Secret, cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}

	return &Service{
		users:     users,
		codec:     codec,
		blacklist: NewBlacklist(store),
		tracker:   NewAttemptTracker(cfg.MaxAttempts, cfg.LockoutDuration),
		accessTTL: accessTTL,
	}, nil
}

// Authenticate verifies credentials and returns the normalized identity.
// Order matters: an active lock short-circuits before anything else and
// does not count as a further attempt; an unknown identity still records
// a failure against the submitted email.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	if s.tracker.IsLocked(email) {
		return "", ErrAccountLocked
	}

	hash, err := s.users.FindPasswordHash(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_, _ = VerifyPassword(password, enumerationDummyHash)
			s.recordFailure(ctx, email, false)
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user %s: %w", email, err)
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		// Unreadable stored hash is not an attempt against the account.
		return "", ErrPasswordResetRequired
	}
	if !ok {
		s.recordFailure(ctx, email, true)
		return "", ErrInvalidCredentials
	}

	s.tracker.RecordSuccess(email)
	if err := s.users.RecordLoginSuccess(ctx, email, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("record login for %s: %w", email, err)
	}

	return email, nil
}

// recordFailure updates the in-process tracker and, for known identities,
// mirrors the new state into the user row. The tracker stays authoritative
// for the lock decision, so persistence is best effort.
func (s *Service) recordFailure(ctx context.Context, email string, persist bool) {
	s.tracker.RecordFailure(email)
	if !persist {
		return
	}

	count, lockedUntil := s.tracker.State(email)
	if err := s.users.RecordLoginFailure(ctx, email, count, lockedUntil); err != nil {
		sentry.CaptureException(err)
	}
}

func (s *Service) CreateAccessToken(email string) (string, error) {
	return s.codec.Issue(NormalizeEmail(email), s.accessTTL)
}

// DecodeToken validates signature and expiry, then checks the revocation
// list. A blacklist store failure never passes a token through: the token
// is treated as revoked.
func (s *Service) DecodeToken(ctx context.Context, token string) (Claims, error) {
	cleaned := CleanToken(token)

	claims, err := s.codec.Decode(cleaned)
	if err != nil {
		return Claims{}, err
	}

	revoked, err := s.blacklist.Contains(ctx, cleaned)
	if err != nil {
		sentry.CaptureException(err)
		return Claims{}, ErrTokenRevoked
	}
	if revoked {
		return Claims{}, ErrTokenRevoked
	}

	return claims, nil
}

// DecodeWithoutRevocation skips the blacklist lookup. Only for call sites
// that check revocation separately; DecodeToken is the default everywhere
// else.
func (s *Service) DecodeWithoutRevocation(token string) (Claims, error) {
	return s.codec.Decode(CleanToken(token))
}

// BlacklistToken revokes the token for its remaining natural lifetime.
// An already-expired token needs no entry and is a no-op; a malformed
// token is ErrTokenInvalid.
func (s *Service) BlacklistToken(ctx context.Context, token string) error {
	cleaned := CleanToken(token)

	remaining, err := s.codec.RemainingTTL(cleaned)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return nil
	}

	return s.blacklist.Add(ctx, cleaned, remaining)
}

// NormalizeEmail lowercases and trims an identity. Applied at every
// lookup, insert and update site rather than relying on a database
// collation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
