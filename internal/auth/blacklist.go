package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const blacklistKeyPrefix = "auth:blacklist:"

// Store is the key-value surface the blacklist runs on. Production wires
// Redis behind it; entries self-expire with their TTL, so revoked tokens
// never need manual cleanup.
type Store interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Blacklist records tokens that were explicitly invalidated before their
// natural expiry.
type Blacklist struct {
	store Store
}

func NewBlacklist(store Store) *Blacklist {
	return &Blacklist{store: store}
}

// CleanToken strips a single leading "Bearer " scheme prefix and
// surrounding whitespace so that equivalent presentations of the same
// token collide on the same key.
func CleanToken(token string) string {
	token = strings.TrimPrefix(token, "Bearer ")
	return strings.TrimSpace(token)
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(CleanToken(token)))
	return blacklistKeyPrefix + hex.EncodeToString(sum[:])
}

// Add marks the token revoked for its remaining natural lifetime. A token
// whose remaining TTL is zero or negative is already expired and nothing
// is stored; decoding rejects it on expiry grounds anyway.
func (b *Blacklist) Add(ctx context.Context, token string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}

	cleaned := CleanToken(token)
	return b.store.SetWithTTL(ctx, blacklistKey(cleaned), cleaned, remaining)
}

// Contains reports whether the token has been revoked. The stored value
// must equal the normalized token exactly, which defends against key
// collisions in a shared store. Store errors propagate so the caller can
// fail closed.
func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	cleaned := CleanToken(token)

	value, found, err := b.store.Get(ctx, blacklistKey(cleaned))
	if err != nil {
		return false, err
	}

	return found && value == cleaned, nil
}
