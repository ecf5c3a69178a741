package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingRevoker struct {
	revoked []string
	err     error
}

func (r *recordingRevoker) DeleteByUser(_ context.Context, userID string) error {
	r.revoked = append(r.revoked, userID)
	return r.err
}

func newAccounts(t *testing.T) (*Accounts, *MemoryUserStore, *recordingRevoker, *clock) {
	t.Helper()
	store := NewMemoryUserStore()
	revoker := &recordingRevoker{}
	c := &clock{t: time.Now()}
	a := &Accounts{
		Users:    store,
		Hasher:   NewBcryptHasher(bcrypt.MinCost),
		Sessions: revoker,
		TokenTTL: 15 * time.Minute,
		Now:      c.Now,
	}
	return a, store, revoker, c
}

func TestRegisterCreatesUserWithDefaultRole(t *testing.T) {
	a, _, _, _ := newAccounts(t)
	ctx := context.Background()

	user, err := a.Register(ctx, " new@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.True(t, user.HasRole(RoleUser))
	assert.False(t, user.HasRole(RoleAdmin))
	assert.NotEmpty(t, user.PasswordHash)

	_, err = a.Register(ctx, "NEW@example.com")
	assert.ErrorIs(t, err, ErrUserExists)

	admin, err := a.Register(ctx, "ops@example.com", RoleUser, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, admin.HasRole(RoleAdmin))
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword()
	require.NoError(t, err)
	assert.Len(t, pw, 16)
	for _, r := range pw {
		assert.True(t, strings.ContainsRune(generatedPasswordChars, r), "unexpected rune %q", r)
	}

	other, err := GeneratePassword()
	require.NoError(t, err)
	assert.NotEqual(t, pw, other)
}

func TestPasswordTokenLifecycle(t *testing.T) {
	a, store, revoker, c := newAccounts(t)
	ctx := context.Background()

	user, err := a.Register(ctx, "qa@example.com")
	require.NoError(t, err)

	pending, err := a.HasPendingToken(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, pending)

	stale, err := a.IssuePasswordToken(ctx, user)
	require.NoError(t, err)
	c.Advance(20 * time.Minute)

	token, err := a.IssuePasswordToken(ctx, user)
	require.NoError(t, err)
	assert.NotContains(t, token, "=")

	pending, err = a.HasPendingToken(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, pending)

	_, err = a.UserByToken(ctx, stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	owner, err := a.UserByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, owner.ID)

	for _, pt := range store.PasswordTokens(user.ID) {
		assert.NotEqual(t, token, pt.TokenHash, "only hashes are stored")
	}
	require.Len(t, store.PasswordTokens(user.ID), 2)

	_, err = a.SetPassword(ctx, user.Email, token, "N3w-password!")
	require.NoError(t, err)

	assert.Empty(t, store.PasswordTokens(user.ID), "consumed and expired tokens are removed")
	assert.Equal(t, []string{user.ID}, revoker.revoked)

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, a.Hasher.Compare(stored.PasswordHash, "N3w-password!"))

	_, err = a.SetPassword(ctx, user.Email, token, "Again-1234!")
	assert.ErrorIs(t, err, ErrInvalidToken, "tokens are single use")
}

func TestSetPasswordKeepsOtherUsersTokens(t *testing.T) {
	a, store, _, _ := newAccounts(t)
	ctx := context.Background()

	alice, err := a.Register(ctx, "alice@example.com")
	require.NoError(t, err)
	bob, err := a.Register(ctx, "bob@example.com")
	require.NoError(t, err)

	aliceToken, err := a.IssuePasswordToken(ctx, alice)
	require.NoError(t, err)
	_, err = a.IssuePasswordToken(ctx, bob)
	require.NoError(t, err)

	_, err = a.SetPassword(ctx, bob.Email, aliceToken, "N3w-password!")
	assert.ErrorIs(t, err, ErrInvalidToken, "token must belong to the email's user")

	_, err = a.SetPassword(ctx, alice.Email, aliceToken, "N3w-password!")
	require.NoError(t, err)
	assert.Len(t, store.PasswordTokens(bob.ID), 1)
}

func TestSetPasswordErrors(t *testing.T) {
	a, _, revoker, _ := newAccounts(t)
	ctx := context.Background()

	_, err := a.SetPassword(ctx, "ghost@example.com", "tok", "N3w-password!")
	assert.ErrorIs(t, err, ErrUserNotFound)

	user, err := a.Register(ctx, "qa@example.com")
	require.NoError(t, err)

	_, err = a.SetPassword(ctx, user.Email, "", "N3w-password!")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, revoker.revoked, "invalid tokens never revoke sessions")
}

func TestSetPasswordKeepsPasswordWhenRevocationFails(t *testing.T) {
	a, store, revoker, _ := newAccounts(t)
	ctx := context.Background()

	user, err := a.Register(ctx, "qa@example.com")
	require.NoError(t, err)
	token, err := a.IssuePasswordToken(ctx, user)
	require.NoError(t, err)

	revoker.err = errors.New("redis down")
	_, err = a.SetPassword(ctx, user.Email, token, "N3w-password!")
	assert.ErrorContains(t, err, "revoke sessions")

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash, "password unchanged while sessions survive")
	assert.Len(t, store.PasswordTokens(user.ID), 1, "token stays usable for a retry")

	revoker.err = nil
	_, err = a.SetPassword(ctx, user.Email, token, "N3w-password!")
	require.NoError(t, err)
	assert.Equal(t, []string{user.ID, user.ID}, revoker.revoked)

	stored, err = store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, a.Hasher.Compare(stored.PasswordHash, "N3w-password!"))
}

func TestReplacePasswordConsumesTokenOnce(t *testing.T) {
	a, store, _, c := newAccounts(t)
	ctx := context.Background()

	user, err := a.Register(ctx, "qa@example.com")
	require.NoError(t, err)
	_, err = a.IssuePasswordToken(ctx, user)
	require.NoError(t, err)
	tokens := store.PasswordTokens(user.ID)
	require.Len(t, tokens, 1)

	require.NoError(t, store.ReplacePassword(ctx, user.ID, "first", tokens[0].ID, c.Now()))
	err = store.ReplacePassword(ctx, user.ID, "second", tokens[0].ID, c.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.PasswordHash)
}

func TestIdentityResolver(t *testing.T) {
	store := NewMemoryUserStore()
	user, err := store.Create(context.Background(), "qa@example.com", "hash", RoleUser, RoleAdmin)
	require.NoError(t, err)

	r := &IdentityResolver{Users: store}
	id := r.Serialize(user)
	assert.Equal(t, user.ID, id)
	assert.Empty(t, r.Serialize(nil))

	got, err := r.Deserialize(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, got.HasRole(RoleAdmin))

	got, err = r.Deserialize(context.Background(), "deleted-user")
	require.NoError(t, err)
	assert.Nil(t, got)
}
