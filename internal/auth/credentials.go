package auth

import (
	"context"
	"fmt"
	"math"
	"time"
)

const invalidCredentialsMessage = "Invalid username or password"

type Outcome int

const (
	Rejected Outcome = iota
	Authenticated
)

func (o Outcome) String() string {
	if o == Authenticated {
		return "authenticated"
	}
	return "rejected"
}

// LoginResult is the verdict for a credential check. Infrastructure failures
// are reported through the accompanying error instead.
type LoginResult struct {
	Outcome Outcome
	User    *User
	Reason  string
}

type LockoutPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: 5, Window: time.Minute}
}

type CredentialVerifier struct {
	Users  UserStore
	Hasher PasswordHasher
	Policy LockoutPolicy
	Now    func() time.Time
}

func NewCredentialVerifier(users UserStore, hasher PasswordHasher, policy LockoutPolicy) *CredentialVerifier {
	return &CredentialVerifier{Users: users, Hasher: hasher, Policy: policy, Now: time.Now}
}

func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := v.Users.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return LoginResult{Outcome: Rejected, Reason: invalidCredentialsMessage}, nil
	}

	now := v.now()
	if remaining, locked := v.lockedFor(user, now); locked {
		return LoginResult{
			Outcome: Rejected,
			Reason:  "Too many failed login attempts, please try again in " + humanizeWait(remaining),
		}, nil
	}

	if !v.Hasher.Compare(user.PasswordHash, password) {
		if err := v.Users.RecordFailedLogin(ctx, user.ID, now); err != nil {
			return LoginResult{}, fmt.Errorf("record failed login: %w", err)
		}
		return LoginResult{Outcome: Rejected, Reason: invalidCredentialsMessage}, nil
	}

	if err := v.Users.ResetFailedLogins(ctx, user.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("reset failed logins: %w", err)
	}

	user, err = v.Users.FindByID(ctx, user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("reload user: %w", err)
	}
	if user == nil {
		return LoginResult{Outcome: Rejected, Reason: invalidCredentialsMessage}, nil
	}
	return LoginResult{Outcome: Authenticated, User: user}, nil
}

func (v *CredentialVerifier) lockedFor(user *User, now time.Time) (time.Duration, bool) {
	if v.Policy.MaxAttempts <= 0 || user.FailedLoginAttempts < v.Policy.MaxAttempts {
		return 0, false
	}
	if user.LastLoginAttempt == nil {
		return 0, false
	}
	remaining := user.LastLoginAttempt.Add(v.Policy.Window).Sub(now)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

func (v *CredentialVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func humanizeWait(d time.Duration) string {
	if d >= time.Minute {
		minutes := int(math.Ceil(d.Minutes()))
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	seconds := int(math.Ceil(d.Seconds()))
	if seconds <= 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", seconds)
}
