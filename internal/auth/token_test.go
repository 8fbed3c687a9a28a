package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("test-secret-key", "HS256")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func TestNewTokenCodecRejectsBadConfig(t *testing.T) {
	if _, err := NewTokenCodec("", "HS256"); err == nil {
		t.Fatal("empty secret accepted")
	}
	if _, err := NewTokenCodec("secret", "RS256"); err == nil {
		t.Fatal("non-HMAC algorithm accepted")
	}
	if _, err := NewTokenCodec("secret", "nonsense"); err == nil {
		t.Fatal("unknown algorithm accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "user@example.com" {
		t.Fatalf("subject = %q, want user@example.com", claims.Subject)
	}

	remaining := time.Until(claims.ExpiresAt)
	if remaining < 59*time.Minute || remaining > time.Hour {
		t.Fatalf("expiry %v outside expected window", remaining)
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := codec.Decode(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestDecodeTamperedToken(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip a character in the signature segment.
	dot := strings.LastIndex(token, ".")
	sig := []byte(token[dot+1:])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := token[:dot+1] + string(sig)

	if _, err := codec.Decode(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewTokenCodec("different-secret", "HS256")
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}

	token, err := other.Issue("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := codec.Decode(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, input := range []string{"", "not.a.token", "a.b"} {
		if _, err := codec.Decode(input); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("input %q: got %v, want ErrTokenInvalid", input, err)
		}
	}
}

func TestRemainingTTL(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Issue("user@example.com", 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	remaining, err := codec.RemainingTTL(token)
	if err != nil {
		t.Fatalf("RemainingTTL: %v", err)
	}
	if remaining < 29*time.Minute || remaining > 30*time.Minute {
		t.Fatalf("remaining %v outside expected window", remaining)
	}

	expired, err := codec.Issue("user@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	remaining, err = codec.RemainingTTL(expired)
	if err != nil {
		t.Fatalf("RemainingTTL expired: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expired token remaining = %v, want 0", remaining)
	}

	if _, err := codec.RemainingTTL("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}
