package repositories

import (
	"context"
	"time"

	"chamahub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// refreshTokenRepository implements RefreshTokenRepository interface
type refreshTokenRepository struct {
	store
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{store: newStore(db)}
}

// Create creates a new refresh token
func (r *refreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return db.Create(token).Error
	})
}

// GetByTokenHash gets a refresh token by its hash, revoked or not
func (r *refreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("token_hash = ?", tokenHash).First(&token).Error
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Rotate revokes the old token and links it to its replacement
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldID uint, next *models.RefreshToken, now time.Time) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			// Conditional revoke: of two concurrent rotations only one matches
			if err := affected(tx.Model(&models.RefreshToken{}).
				Where("id = ? AND revoked_at IS NULL", oldID).
				Update("revoked_at", now)); err != nil {
				return err
			}
			if err := tx.Create(next).Error; err != nil {
				return err
			}
			return tx.Model(&models.RefreshToken{}).
				Where("id = ?", oldID).
				Update("replaced_by_id", next.ID).Error
		})
	})
}

// RevokeByFingerprint revokes the user's live tokens issued to one device
func (r *refreshTokenRepository) RevokeByFingerprint(ctx context.Context, userID uint, fingerprint string) (int64, error) {
	var n int64
	err := r.run(ctx, func(db *gorm.DB) error {
		result := db.Model(&models.RefreshToken{}).
			Where("user_id = ? AND fingerprint = ? AND revoked_at IS NULL", userID, fingerprint).
			Update("revoked_at", time.Now())
		n = result.RowsAffected
		return result.Error
	})
	return n, err
}

// RevokeAllByUserID revokes all refresh tokens for a user
func (r *refreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.run(ctx, func(db *gorm.DB) error {
		result := db.Model(&models.RefreshToken{}).
			Where("user_id = ?", userID).
			Where("revoked_at IS NULL").
			Update("revoked_at", time.Now())
		n = result.RowsAffected
		return result.Error
	})
	return n, err
}

// DeleteExpired deletes tokens that expired before the cutoff (cleanup job)
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.run(ctx, func(db *gorm.DB) error {
		result := db.Where("expires_at < ?", before).Delete(&models.RefreshToken{})
		n = result.RowsAffected
		return result.Error
	})
	return n, err
}

// CountActiveByUserID counts active tokens for a user
func (r *refreshTokenRepository) CountActiveByUserID(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Model(&models.RefreshToken{}).
			Where("user_id = ?", userID).
			Where("revoked_at IS NULL").
			Where("expires_at > ?", time.Now()).
			Count(&count).Error
	})
	return count, err
}
