package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidToken = errors.New("invalid token")
)

// UserStore is the persistence boundary for users, roles and password
// tokens. Lookups return (nil, nil) when nothing matches.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, email, passwordHash string, roles ...string) (*User, error)

	RecordFailedLogin(ctx context.Context, userID string, at time.Time) error
	ResetFailedLogins(ctx context.Context, userID string, at time.Time) error

	CreatePasswordToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*PasswordToken, error)
	FindPasswordToken(ctx context.Context, tokenHash string) (*PasswordToken, error)
	HasActivePasswordToken(ctx context.Context, userID string, now time.Time) (bool, error)

	// ReplacePassword stores a new hash, clears the lockout counter and deletes
	// the consumed token together with every expired token of the user.
	ReplacePassword(ctx context.Context, userID, passwordHash, consumedTokenID string, now time.Time) error
}
