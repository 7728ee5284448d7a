package repositories

import (
	"context"
	"time"

	"chamahub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	store
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{store: newStore(db)}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return db.Create(user).Error
	})
}

// GetByID gets a user by ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail gets a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("email = ?", email).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByPhone gets a user by normalized phone number
func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("phone = ?", phone).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail checks if email exists, including soft-deleted users
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	})
	return count > 0, err
}

// ExistsByPhone checks if phone exists, including soft-deleted users
func (r *userRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Unscoped().Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error
	})
	return count > 0, err
}

// UpdateFields updates selected columns of a user
func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&models.User{}).Where("id = ?", id).Updates(fields))
	})
}

// ConsumeEmailVerification verifies the email of the token owner
func (r *userRepository) ConsumeEmailVerification(ctx context.Context, tokenHash string, now time.Time) (uint, error) {
	var user models.User
	err := r.run(ctx, func(db *gorm.DB) error {
		if err := db.Select("id").
			Where("email_verify_hash = ? AND email_verify_expires > ?", tokenHash, now).
			First(&user).Error; err != nil {
			return err
		}
		// The hash in the WHERE clause makes a concurrent second use a no-op
		return affected(db.Model(&models.User{}).
			Where("id = ? AND email_verify_hash = ?", user.ID, tokenHash).
			Updates(map[string]interface{}{
				"email_verified":       true,
				"email_verify_hash":    nil,
				"email_verify_expires": nil,
			}))
	})
	if err == ErrStaleWrite {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// IncrementOTPAttempts bumps the failed OTP counter atomically
func (r *userRepository) IncrementOTPAttempts(ctx context.Context, id uint) (int, error) {
	var attempts int
	err := r.run(ctx, func(db *gorm.DB) error {
		if err := affected(db.Model(&models.User{}).
			Where("id = ?", id).
			UpdateColumn("phone_otp_attempts", gorm.Expr("phone_otp_attempts + 1"))); err != nil {
			return err
		}
		return db.Model(&models.User{}).Where("id = ?", id).
			Pluck("phone_otp_attempts", &attempts).Error
	})
	return attempts, err
}

// ConsumePhoneOTP verifies the phone if the code is still current
func (r *userRepository) ConsumePhoneOTP(ctx context.Context, id uint, codeHash string, maxAttempts int, now time.Time) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&models.User{}).
			Where("id = ? AND phone_otp_hash = ? AND phone_otp_expires > ? AND phone_otp_attempts < ?",
				id, codeHash, now, maxAttempts).
			Updates(map[string]interface{}{
				"phone_verified":     true,
				"phone_otp_hash":     nil,
				"phone_otp_expires":  nil,
				"phone_otp_attempts": 0,
			}))
	})
}

// ConsumePasswordReset replaces the password of the reset token owner
func (r *userRepository) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uint, error) {
	var user models.User
	err := r.run(ctx, func(db *gorm.DB) error {
		if err := db.Select("id").
			Where("reset_token_hash = ? AND reset_token_expires > ?", tokenHash, now).
			First(&user).Error; err != nil {
			return err
		}
		return affected(db.Model(&models.User{}).
			Where("id = ? AND reset_token_hash = ?", user.ID, tokenHash).
			Updates(map[string]interface{}{
				"password_hash":       passwordHash,
				"reset_token_hash":    nil,
				"reset_token_expires": nil,
			}))
	})
	if err == ErrStaleWrite {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}
