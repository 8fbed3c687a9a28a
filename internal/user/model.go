package user

import "time"

type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	EmailVerified       bool
	CreatedAt           time.Time
	LastLogin           *time.Time
	FailedLoginAttempts int
	LockedUntil         *time.Time
}
