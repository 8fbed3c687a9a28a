package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"userbase/internal/auth"
)

type fakeFinder struct {
	user User
	err  error
}

func (f *fakeFinder) GetByEmail(context.Context, string) (User, error) {
	if f.err != nil {
		return User{}, f.err
	}
	return f.user, nil
}

type fakeVerifier struct {
	claims auth.Claims
	err    error
}

func (v *fakeVerifier) DecodeToken(context.Context, string) (auth.Claims, error) {
	if v.err != nil {
		return auth.Claims{}, v.err
	}
	return v.claims, nil
}

func getMe(t *testing.T, finder *fakeFinder, verifier *fakeVerifier) *httptest.ResponseRecorder {
	t.Helper()

	handler := auth.Middleware(verifier, http.HandlerFunc(NewHandler(finder).Me))

	request := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	request.Header.Set("Authorization", "Bearer some.jwt.token")

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestMeReturnsProfile(t *testing.T) {
	lastLogin := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	finder := &fakeFinder{user: User{
		ID:            "0194fdc2-0000-7000-8000-000000000001",
		Email:         "user@example.com",
		PasswordHash:  "$2b$12$secret-hash",
		EmailVerified: true,
		CreatedAt:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		LastLogin:     &lastLogin,
	}}
	verifier := &fakeVerifier{claims: auth.Claims{Subject: "user@example.com", ExpiresAt: time.Now().Add(time.Hour)}}

	recorder := getMe(t, finder, verifier)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["email"] != "user@example.com" {
		t.Fatalf("email = %v", body["email"])
	}
	if body["email_verified"] != true {
		t.Fatalf("email_verified = %v", body["email_verified"])
	}
	for key := range body {
		if key == "password_hash" {
			t.Fatal("password hash leaked in response")
		}
	}
}

func TestMeUnknownUser(t *testing.T) {
	finder := &fakeFinder{err: sql.ErrNoRows}
	verifier := &fakeVerifier{claims: auth.Claims{Subject: "ghost@example.com", ExpiresAt: time.Now().Add(time.Hour)}}

	recorder := getMe(t, finder, verifier)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestMeRepositoryError(t *testing.T) {
	finder := &fakeFinder{err: errors.New("connection reset")}
	verifier := &fakeVerifier{claims: auth.Claims{Subject: "user@example.com", ExpiresAt: time.Now().Add(time.Hour)}}

	recorder := getMe(t, finder, verifier)
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", recorder.Code)
	}
}

func TestMeRejectsBadToken(t *testing.T) {
	finder := &fakeFinder{}
	verifier := &fakeVerifier{err: auth.ErrTokenInvalid}

	recorder := getMe(t, finder, verifier)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	if recorder.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("missing WWW-Authenticate header")
	}
}
