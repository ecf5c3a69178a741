package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{
	"id", "email", "password_hash", "failed_login_attempts", "last_login_attempt",
	"created_at", "updated_at", "roles",
}

func newMockRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewUserRepository(mock), mock
}

func TestRepositoryFindByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	id := uuid.NewString()

	mock.ExpectQuery("FROM users u").
		WithArgs("qa@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow(id, "qa@example.com", "hash", 2, &now, now, now, []string{"admin", "user"}))

	user, err := repo.FindByEmail(context.Background(), " qa@example.com ")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, 2, user.FailedLoginAttempts)
	require.NotNil(t, user.LastLoginAttempt)
	assert.True(t, user.HasRole(RoleAdmin))
	assert.True(t, user.HasRole(RoleUser))
}

func TestRepositoryFindByEmailMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM users u").
		WithArgs("ghost@example.com").
		WillReturnRows(pgxmock.NewRows(userColumns))

	user, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRepositoryFindByIDSkipsMalformedIDs(t *testing.T) {
	repo, _ := newMockRepo(t)

	user, err := repo.FindByID(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "qa@example.com", "hash").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(pgxmock.AnyArg(), []string{RoleUser, RoleAdmin}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	user, err := repo.Create(context.Background(), "qa@example.com", "hash", RoleUser, RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, now, user.CreatedAt)
	assert.Equal(t, []string{RoleAdmin, RoleUser}, user.Roles.Names())
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "qa@example.com", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "qa@example.com", "hash")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRepositoryCreateDuplicateDifferentCase(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "QA@Example.com", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_key"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "QA@Example.com", "hash")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRepositoryCreateUnknownRole(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "qa@example.com", "hash").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(pgxmock.AnyArg(), []string{"editor"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "qa@example.com", "hash", "editor")
	assert.ErrorContains(t, err, "unknown role")
}

func TestRepositoryFailedLoginCounters(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec("failed_login_attempts \\+ 1").
		WithArgs(at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("SET failed_login_attempts = 0").
		WithArgs(at, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.RecordFailedLogin(context.Background(), "user-1", at))
	require.NoError(t, repo.ResetFailedLogins(context.Background(), "user-1", at))
}

func TestRepositoryPasswordTokens(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	expires := now.Add(15 * time.Minute)

	mock.ExpectQuery("INSERT INTO password_tokens").
		WithArgs(pgxmock.AnyArg(), "user-1", "hashed", expires).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery("FROM password_tokens").
		WithArgs("hashed").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
			AddRow("token-1", "user-1", "hashed", expires, now))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("user-1", now).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ctx := context.Background()
	pt, err := repo.CreatePasswordToken(ctx, "user-1", "hashed", expires)
	require.NoError(t, err)
	assert.Equal(t, now, pt.CreatedAt)

	found, err := repo.FindPasswordToken(ctx, "hashed")
	require.NoError(t, err)
	assert.Equal(t, "token-1", found.ID)
	assert.False(t, found.Expired(now))

	active, err := repo.HasActivePasswordToken(ctx, "user-1", now)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestRepositoryReplacePassword(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_tokens").
		WithArgs("token-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("UPDATE users").
		WithArgs("new-hash", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM password_tokens").
		WithArgs("user-1", now).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplacePassword(context.Background(), "user-1", "new-hash", "token-1", now))
}

func TestRepositoryReplacePasswordTokenAlreadyUsed(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_tokens").
		WithArgs("token-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := repo.ReplacePassword(context.Background(), "user-1", "new-hash", "token-1", time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRepositoryReplacePasswordMissingUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM password_tokens").
		WithArgs("token-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("UPDATE users").
		WithArgs("new-hash", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.ReplacePassword(context.Background(), "user-1", "new-hash", "token-1", time.Now())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
