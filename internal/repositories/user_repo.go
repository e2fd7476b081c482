package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tkaraba/slotbook/internal/database"
	"github.com/tkaraba/slotbook/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `id, email, password_hash, password_version, failed_attempts, locked_until, email_verified, active, created_at, updated_at`

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockedUntil *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.PasswordVersion,
		&user.FailedAttempts, &lockedUntil, &user.EmailVerified, &user.Active,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LockedUntil = lockedUntil
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks a user up case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.PasswordVersion == 0 {
		user.PasswordVersion = 1
	}

	query := `
		INSERT INTO users (id, email, password_hash, password_version, failed_attempts, locked_until, email_verified, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.PasswordVersion,
		user.FailedAttempts, user.LockedUntil, user.EmailVerified, user.Active,
		user.CreatedAt, user.UpdatedAt,
	))
}

// IncrementFailedAttempts bumps the failure counter and returns the new count.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// SetLockedUntil records the lock expiry computed by the lockout policy.
func (r *UserRepository) SetLockedUntil(ctx context.Context, id string, until *time.Time) error {
	query := `UPDATE users SET locked_until = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, until)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ResetFailedAttempts clears the failure counter and any lock after a
// successful login.
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	query := `
		UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new hash and bumps password_version so earlier
// access tokens stop verifying.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = $2, password_version = password_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUserRow(r.pool.QueryRow(ctx, query, id, passwordHash))
	if err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	return user, nil
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, id string) error {
	query := `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
