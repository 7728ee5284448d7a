package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/core/domain"
	"chamahub/internal/pkg/password"
	"chamahub/internal/pkg/validator"
)

// UserService handles the caller's own profile
type UserService struct {
	userRepo    repositories.UserRepository
	refreshRepo repositories.RefreshTokenRepository
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repositories.UserRepository,
	refreshRepo repositories.RefreshTokenRepository,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
	}
}

// UpdateProfileInput represents update profile input (for self)
type UpdateProfileInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// GetProfile gets own profile
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// UpdateProfile updates own names
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input *UpdateProfileInput) (*models.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	v := validator.Errors{}
	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		v.Check(validator.IsName(name), "first_name", "must be 2 to 50 characters")
		if name != user.FirstName {
			fields["first_name"] = name
			user.FirstName = name
		}
	}
	if input.LastName != nil {
		name := strings.TrimSpace(*input.LastName)
		v.Check(validator.IsName(name), "last_name", "must be 2 to 50 characters")
		if name != user.LastName {
			fields["last_name"] = name
			user.LastName = name
		}
	}
	if !v.Empty() {
		return nil, domain.InvalidFields(v)
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
			return nil, err
		}
	}

	return user.ToResponse(), nil
}

// ChangePassword changes the caller's password and signs out every device
func (s *UserService) ChangePassword(ctx context.Context, userID uint, input *ChangePasswordInput) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	// Verify old password
	if !password.Verify(input.OldPassword, user.PasswordHash) {
		return domain.ErrWrongPassword
	}

	// Validate new password
	if !password.ValidatePassword(input.NewPassword) {
		return domain.InvalidFields(map[string]string{
			"new_password": password.RuleMessage,
		})
	}

	// Hash new password
	hashedPassword, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": hashedPassword}); err != nil {
		return err
	}
	if _, err := s.refreshRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return err
	}

	log.Printf("✅ Password changed: user %d", userID)
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
