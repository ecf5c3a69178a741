package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryUserStore is an in-process UserStore used by tests and local tooling.
type MemoryUserStore struct {
	mu     sync.Mutex
	users  map[string]*User
	tokens map[string]*PasswordToken
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:  make(map[string]*User),
		tokens: make(map[string]*PasswordToken),
	}
}

func (m *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.TrimSpace(email)
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (m *MemoryUserStore) FindByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (m *MemoryUserStore) Create(_ context.Context, email, passwordHash string, roles ...string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.TrimSpace(email)
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return nil, ErrUserExists
		}
	}
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}

	now := time.Now()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        NewRoleSet(roles...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return copyUser(u), nil
}

func (m *MemoryUserStore) RecordFailedLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedLoginAttempts++
	u.LastLoginAttempt = &at
	return nil
}

func (m *MemoryUserStore) ResetFailedLogins(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedLoginAttempts = 0
	u.LastLoginAttempt = &at
	return nil
}

func (m *MemoryUserStore) CreatePasswordToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) (*PasswordToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt := &PasswordToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	m.tokens[pt.ID] = pt
	cp := *pt
	return &cp, nil
}

func (m *MemoryUserStore) FindPasswordToken(_ context.Context, tokenHash string) (*PasswordToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pt := range m.tokens {
		if pt.TokenHash == tokenHash {
			cp := *pt
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryUserStore) HasActivePasswordToken(_ context.Context, userID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pt := range m.tokens {
		if pt.UserID == userID && !pt.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryUserStore) ReplacePassword(_ context.Context, userID, passwordHash, consumedTokenID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pt, ok := m.tokens[consumedTokenID]; !ok || pt.UserID != userID {
		return ErrInvalidToken
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.FailedLoginAttempts = 0
	u.UpdatedAt = now

	for id, pt := range m.tokens {
		if id == consumedTokenID || (pt.UserID == userID && pt.Expired(now)) {
			delete(m.tokens, id)
		}
	}
	return nil
}

// PasswordTokens returns a snapshot of the tokens held for userID.
func (m *MemoryUserStore) PasswordTokens(userID string) []PasswordToken {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PasswordToken
	for _, pt := range m.tokens {
		if pt.UserID == userID {
			out = append(out, *pt)
		}
	}
	return out
}

func copyUser(u *User) *User {
	cp := *u
	cp.Roles = NewRoleSet(u.Roles.Names()...)
	if u.LastLoginAttempt != nil {
		t := *u.LastLoginAttempt
		cp.LastLoginAttempt = &t
	}
	return &cp
}
