package repositories

import (
	"context"

	"chamahub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// membershipRepository implements MembershipRepository interface
type membershipRepository struct {
	store
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{store: newStore(db)}
}

// Get gets the membership of a user in a chama, active or not
func (r *membershipRepository) Get(ctx context.Context, chamaID, userID uint) (*models.ChamaMember, error) {
	var member models.ChamaMember
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("chama_id = ? AND user_id = ?", chamaID, userID).First(&member).Error
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Create creates a membership
func (r *membershipRepository) Create(ctx context.Context, member *models.ChamaMember) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return db.Create(member).Error
	})
}

// Reactivate re-enables a deactivated membership with a fresh role
func (r *membershipRepository) Reactivate(ctx context.Context, id uint, role string) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&models.ChamaMember{}).
			Where("id = ? AND is_active = ?", id, false).
			Updates(map[string]interface{}{"is_active": true, "role": role}))
	})
}

// ListByChama lists members of a chama with their user profile
func (r *membershipRepository) ListByChama(ctx context.Context, chamaID uint, offset, limit int) ([]*models.ChamaMember, int64, error) {
	var members []*models.ChamaMember
	var total int64

	err := r.run(ctx, func(db *gorm.DB) error {
		// Count total
		if err := db.Model(&models.ChamaMember{}).Where("chama_id = ?", chamaID).Count(&total).Error; err != nil {
			return err
		}
		return db.Preload("User").
			Where("chama_id = ?", chamaID).
			Order("is_active DESC, joined_at ASC").
			Offset(offset).Limit(limit).
			Find(&members).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ActiveChamaIDs lists the chamas where the user is an active member
func (r *membershipRepository) ActiveChamaIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Model(&models.ChamaMember{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Pluck("chama_id", &ids).Error
	})
	return ids, err
}

// UpdateRole changes the role of an active member
func (r *membershipRepository) UpdateRole(ctx context.Context, chamaID, userID uint, role string) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&models.ChamaMember{}).
			Where("chama_id = ? AND user_id = ? AND is_active = ?", chamaID, userID, true).
			Update("role", role))
	})
}

// SetActive flips the active flag; roster history is untouched
func (r *membershipRepository) SetActive(ctx context.Context, chamaID, userID uint, active bool) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&models.ChamaMember{}).
			Where("chama_id = ? AND user_id = ?", chamaID, userID).
			Update("is_active", active))
	})
}
