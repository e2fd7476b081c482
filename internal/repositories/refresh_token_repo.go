package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tkaraba/slotbook/internal/database"
	"github.com/tkaraba/slotbook/internal/models"
)

type RefreshTokenRepository struct {
	db *database.DB
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, FALSE, NOW())
	`

	_, err := r.db.Pool.Exec(ctx, query, token.ID, token.UserID, token.ExpiresAt)
	return database.MapPostgresError(err)
}

func (r *RefreshTokenRepository) GetByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, expires_at, revoked, created_at
		FROM refresh_tokens WHERE id = $1
	`

	var token models.RefreshToken
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&token.ID, &token.UserID, &token.ExpiresAt, &token.Revoked, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &token, nil
}

// Rotate atomically exchanges a presented refresh id for newID.
//
// The presented row is locked with SELECT ... FOR UPDATE so two concurrent
// rotations of the same id serialize: the second transaction observes
// revoked = true committed by the first and is classified as a replay. The
// successor row copies expires_at forward unchanged, so a family's total
// lifetime is fixed at login no matter how often it rotates.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, presentedID, newID string, now time.Time) (models.RotationResult, error) {
	var result models.RotationResult

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var token models.RefreshToken
		err := tx.QueryRow(ctx, `
			SELECT id, user_id, expires_at, revoked
			FROM refresh_tokens WHERE id = $1
			FOR UPDATE
		`, presentedID).Scan(&token.ID, &token.UserID, &token.ExpiresAt, &token.Revoked)

		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				result = models.RotationResult{Kind: models.RotationUnknown}
				return nil
			}
			return err
		}

		if token.Revoked {
			result = models.RotationResult{Kind: models.RotationReplayed, UserID: token.UserID}
			return nil
		}

		if token.ExpiresAt.Before(now) {
			result = models.RotationResult{Kind: models.RotationExpired, UserID: token.UserID}
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1
		`, presentedID); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, expires_at, revoked, created_at)
			VALUES ($1, $2, $3, FALSE, NOW())
		`, newID, token.UserID, token.ExpiresAt); err != nil {
			return err
		}

		result = models.RotationResult{
			Kind:      models.RotationOK,
			NewID:     newID,
			UserID:    token.UserID,
			ExpiresAt: token.ExpiresAt,
		}
		return nil
	})

	if err != nil {
		return models.RotationResult{}, database.MapPostgresError(err)
	}
	return result, nil
}

// Revoke marks a single token revoked. Used at logout; revoking an already
// revoked or unknown id is not an error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// RevokeAllForUser revokes every unrevoked token belonging to the user and
// returns how many were revoked. This terminates all sessions on all devices.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`

	result, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// CountActiveForUser returns the number of unrevoked, unexpired tokens.
func (r *RefreshTokenRepository) CountActiveForUser(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE user_id = $1 AND NOT revoked AND expires_at > NOW()
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteExpired removes rows past their expiry. Advisory cleanup only:
// expired rows already fail the exp comparison at rotation.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < NOW()`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
