package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the signature checked out but the expiry
	// instant has passed.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid covers every other decode failure: bad structure,
	// bad signature, wrong algorithm, missing expiry.
	ErrTokenInvalid = errors.New("could not validate credentials")
)

// Claims is the decoded content of an access token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenCodec signs and verifies self-contained access tokens. Both
// operations are pure; a codec is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	method jwt.SigningMethod
}

func NewTokenCodec(secret, algorithm string) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret must not be empty")
	}

	if algorithm == "" {
		algorithm = "HS256"
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown jwt algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwt algorithm %q is not an HMAC method", algorithm)
	}

	return &TokenCodec{secret: []byte(secret), method: method}, nil
}

func (c *TokenCodec) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Decode verifies signature and expiry and returns the claims. No claim is
// trusted before the signature validates.
func (c *TokenCodec) Decode(token string) (Claims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if !parsed.Valid || claims.ExpiresAt == nil {
		return Claims{}, ErrTokenInvalid
	}

	return Claims{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time.UTC()}, nil
}

// RemainingTTL returns how long the token stays naturally valid. An
// already-expired token returns zero with no error; a token whose
// signature or structure does not verify returns ErrTokenInvalid.
func (c *TokenCodec) RemainingTTL(token string) (time.Duration, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, c.keyFunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid || claims.ExpiresAt == nil {
		return 0, ErrTokenInvalid
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

func (c *TokenCodec) keyFunc(*jwt.Token) (any, error) {
	return c.secret, nil
}
