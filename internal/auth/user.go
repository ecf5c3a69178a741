package auth

import (
	"sort"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RoleSet holds the role names granted to a user.
type RoleSet map[string]struct{}

func NewRoleSet(names ...string) RoleSet {
	rs := make(RoleSet, len(names))
	for _, n := range names {
		if n != "" {
			rs[n] = struct{}{}
		}
	}
	return rs
}

func (rs RoleSet) Has(name string) bool {
	_, ok := rs[name]
	return ok
}

// Names returns the roles sorted by name.
func (rs RoleSet) Names() []string {
	out := make([]string, 0, len(rs))
	for n := range rs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	FailedLoginAttempts int
	LastLoginAttempt    *time.Time
	Roles               RoleSet
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (u *User) HasRole(name string) bool {
	return u != nil && u.Roles.Has(name)
}

// PasswordToken is a single-use credential for setting a password. Only the
// SHA-256 hash of the token handed to the user is stored.
type PasswordToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *PasswordToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
