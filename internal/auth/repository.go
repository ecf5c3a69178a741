package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type UserRepository struct {
	DB DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{DB: db}
}

const selectUser = `
	SELECT u.id, u.email, u.password_hash, u.failed_login_attempts, u.last_login_attempt,
	       u.created_at, u.updated_at,
	       COALESCE(array_agg(r.name) FILTER (WHERE r.name IS NOT NULL), '{}') AS roles
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
`

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.DB.QueryRow(ctx, selectUser+` WHERE lower(u.email) = lower($1) GROUP BY u.id`, strings.TrimSpace(email))
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.DB.QueryRow(ctx, selectUser+` WHERE u.id = $1 GROUP BY u.id`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, roles ...string) (*User, error) {
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create user: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		Roles:        NewRoleSet(roles...),
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.PasswordHash).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = ANY($2)
	`, user.ID, roles)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("assign roles: %w", err)
	}
	if tag.RowsAffected() != int64(len(user.Roles)) {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("assign roles: unknown role in %v", roles)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) RecordFailedLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    last_login_attempt = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, at, userID)
	return err
}

func (r *UserRepository) ResetFailedLogins(ctx context.Context, userID string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    last_login_attempt = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, at, userID)
	return err
}

func (r *UserRepository) CreatePasswordToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*PasswordToken, error) {
	pt := &PasswordToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO password_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, pt.ID, pt.UserID, pt.TokenHash, pt.ExpiresAt).Scan(&pt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert password token: %w", err)
	}
	return pt, nil
}

func (r *UserRepository) FindPasswordToken(ctx context.Context, tokenHash string) (*PasswordToken, error) {
	var pt PasswordToken
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM password_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&pt.ID, &pt.UserID, &pt.TokenHash, &pt.ExpiresAt, &pt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

func (r *UserRepository) HasActivePasswordToken(ctx context.Context, userID string, now time.Time) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM password_tokens WHERE user_id = $1 AND expires_at > $2
		)
	`, userID, now).Scan(&exists)
	return exists, err
}

// ReplacePassword consumes the token, sets the new hash and drops the
// user's expired tokens in one transaction. A token that is already gone
// yields ErrInvalidToken, so only one of two racing requests succeeds.
func (r *UserRepository) ReplacePassword(ctx context.Context, userID, passwordHash, consumedTokenID string, now time.Time) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace password: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM password_tokens
		WHERE id = $1 AND user_id = $2
	`, consumedTokenID, userID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("consume password token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return ErrInvalidToken
	}

	tag, err = tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $1,
		    failed_login_attempts = 0,
		    updated_at = NOW()
		WHERE id = $2
	`, passwordHash, userID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return ErrUserNotFound
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM password_tokens
		WHERE user_id = $1 AND expires_at <= $2
	`, userID, now); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("delete expired password tokens: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace password: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u     User
		roles []string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FailedLoginAttempts,
		&u.LastLoginAttempt,
		&u.CreatedAt,
		&u.UpdatedAt,
		&roles,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = NewRoleSet(roles...)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
