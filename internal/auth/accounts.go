package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SessionRevoker drops every session of a user.
type SessionRevoker interface {
	DeleteByUser(ctx context.Context, userID string) error
}

// Accounts covers the account lifecycle outside of login: admin-driven
// registration and the password token flow shared by new accounts and resets.
type Accounts struct {
	Users    UserStore
	Hasher   PasswordHasher
	Sessions SessionRevoker
	TokenTTL time.Duration
	Now      func() time.Time
}

func (a *Accounts) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Register creates a user with a random password. Without roles the user
// gets RoleUser.
func (a *Accounts) Register(ctx context.Context, email string, roles ...string) (*User, error) {
	email = strings.TrimSpace(email)
	existing, err := a.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	password, err := GeneratePassword()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := a.Hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	return a.Users.Create(ctx, email, hash, roles...)
}

// IssuePasswordToken stores the hash of a new token and returns the token.
func (a *Accounts) IssuePasswordToken(ctx context.Context, user *User) (string, error) {
	token, err := RandomToken(16)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if _, err := a.Users.CreatePasswordToken(ctx, user.ID, HashString(token), a.now().Add(a.TokenTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func (a *Accounts) HasPendingToken(ctx context.Context, userID string) (bool, error) {
	return a.Users.HasActivePasswordToken(ctx, userID, a.now())
}

// UserByToken resolves an unexpired token to its owner.
func (a *Accounts) UserByToken(ctx context.Context, token string) (*User, error) {
	pt, err := a.lookupToken(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := a.Users.FindByID(ctx, pt.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// SetPassword consumes token for the user owning email and revokes every
// session of that user.
func (a *Accounts) SetPassword(ctx context.Context, email, token, password string) (*User, error) {
	user, err := a.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	pt, err := a.lookupToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if pt.UserID != user.ID {
		return nil, ErrInvalidToken
	}

	hash, err := a.Hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	// Sessions go first: a failure here leaves the old password and the
	// token in place, so the request can simply be retried.
	if a.Sessions != nil {
		if err := a.Sessions.DeleteByUser(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
	}
	if err := a.Users.ReplacePassword(ctx, user.ID, hash, pt.ID, a.now()); err != nil {
		return nil, err
	}
	return user, nil
}

func (a *Accounts) lookupToken(ctx context.Context, token string) (*PasswordToken, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	pt, err := a.Users.FindPasswordToken(ctx, HashString(token))
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	if pt == nil || pt.Expired(a.now()) {
		return nil, ErrInvalidToken
	}
	return pt, nil
}
