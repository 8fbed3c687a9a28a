package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// ErrRehashRequired marks a stored hash that cannot be verified because it
// is truncated, malformed or in a format bcrypt does not understand.
// Callers surface this as "account requires password reset", never as a
// plain wrong password and never as a crash.
var ErrRehashRequired = errors.New("stored password hash requires reset")

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored hash. A hash
// that bcrypt cannot read at all yields ErrRehashRequired instead of false.
func VerifyPassword(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrRehashRequired
	}
}
