package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newVerifierFixture(t *testing.T) (*CredentialVerifier, *MemoryUserStore, *User, *clock) {
	t.Helper()
	store := NewMemoryUserStore()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("Correct-horse1")
	require.NoError(t, err)
	user, err := store.Create(context.Background(), "qa@example.com", hash, RoleUser)
	require.NoError(t, err)

	c := &clock{t: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
	v := NewCredentialVerifier(store, hasher, DefaultLockoutPolicy())
	v.Now = c.Now
	return v, store, user, c
}

func TestVerifyUnknownEmail(t *testing.T) {
	v, _, _, _ := newVerifierFixture(t)

	res, err := v.Verify(context.Background(), "nobody@example.com", "whatever")
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, "Invalid username or password", res.Reason)
	assert.Nil(t, res.User)
}

func TestVerifySuccessReturnsUserWithRoles(t *testing.T) {
	v, store, user, c := newVerifierFixture(t)
	ctx := context.Background()

	require.NoError(t, store.RecordFailedLogin(ctx, user.ID, c.Now()))

	res, err := v.Verify(ctx, "QA@example.com", "Correct-horse1")
	require.NoError(t, err)
	require.Equal(t, Authenticated, res.Outcome)
	assert.Equal(t, user.ID, res.User.ID)
	assert.True(t, res.User.HasRole(RoleUser))

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LastLoginAttempt)
	assert.True(t, stored.LastLoginAttempt.Equal(c.Now()))
}

func TestVerifyWrongPasswordIncrementsCounter(t *testing.T) {
	v, store, user, _ := newVerifierFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := v.Verify(ctx, user.Email, "nope")
		require.NoError(t, err)
		assert.Equal(t, Rejected, res.Outcome)
		assert.Equal(t, "Invalid username or password", res.Reason)

		stored, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, i, stored.FailedLoginAttempts)
	}
}

func TestVerifyLockoutBlocksCorrectPassword(t *testing.T) {
	v, store, user, c := newVerifierFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := v.Verify(ctx, user.Email, "nope")
		require.NoError(t, err)
	}

	c.Advance(20 * time.Second)
	res, err := v.Verify(ctx, user.Email, "Correct-horse1")
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Equal(t, "Too many failed login attempts, please try again in 40 seconds", res.Reason)

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.FailedLoginAttempts, "locked attempts are not counted")

	c.Advance(41 * time.Second)
	res, err = v.Verify(ctx, user.Email, "Correct-horse1")
	require.NoError(t, err)
	assert.Equal(t, Authenticated, res.Outcome)

	stored, err = store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
}

func TestVerifyCustomPolicy(t *testing.T) {
	v, _, user, c := newVerifierFixture(t)
	v.Policy = LockoutPolicy{MaxAttempts: 2, Window: 5 * time.Minute}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := v.Verify(ctx, user.Email, "nope")
		require.NoError(t, err)
	}
	c.Advance(time.Minute)

	res, err := v.Verify(ctx, user.Email, "Correct-horse1")
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Contains(t, res.Reason, "4 minutes")
}

type failingStore struct {
	*MemoryUserStore
	err error
}

func (f failingStore) FindByEmail(context.Context, string) (*User, error) {
	return nil, f.err
}

func TestVerifyPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	v := NewCredentialVerifier(failingStore{MemoryUserStore: NewMemoryUserStore(), err: boom}, NewBcryptHasher(bcrypt.MinCost), DefaultLockoutPolicy())

	_, err := v.Verify(context.Background(), "qa@example.com", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestHumanizeWait(t *testing.T) {
	assert.Equal(t, "1 second", humanizeWait(200*time.Millisecond))
	assert.Equal(t, "30 seconds", humanizeWait(29500*time.Millisecond))
	assert.Equal(t, "1 minute", humanizeWait(time.Minute))
	assert.Equal(t, "2 minutes", humanizeWait(61*time.Second))
}

func TestRoleSet(t *testing.T) {
	rs := NewRoleSet("user", "admin", "", "user")
	assert.True(t, rs.Has(RoleAdmin))
	assert.False(t, rs.Has("editor"))
	assert.Equal(t, []string{"admin", "user"}, rs.Names())

	var nilUser *User
	assert.False(t, nilUser.HasRole(RoleUser))
}
