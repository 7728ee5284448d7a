package repositories

import (
	"context"

	"chamahub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// chamaRepository implements ChamaRepository interface
type chamaRepository struct {
	store
}

// NewChamaRepository creates a new chama repository
func NewChamaRepository(db *gorm.DB) ChamaRepository {
	return &chamaRepository{store: newStore(db)}
}

// Create creates a chama and its founding membership
func (r *chamaRepository) Create(ctx context.Context, chama *models.Chama, founder *models.ChamaMember) error {
	return r.run(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(chama).Error; err != nil {
				return err
			}
			founder.ChamaID = chama.ID
			return tx.Create(founder).Error
		})
	})
}

// GetByID gets a chama by ID
func (r *chamaRepository) GetByID(ctx context.Context, id uint) (*models.Chama, error) {
	var chama models.Chama
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).First(&chama).Error
	})
	if err != nil {
		return nil, err
	}
	return &chama, nil
}

// GetByInviteCode gets a chama by its invite code
func (r *chamaRepository) GetByInviteCode(ctx context.Context, code string) (*models.Chama, error) {
	var chama models.Chama
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Where("invite_code = ?", code).First(&chama).Error
	})
	if err != nil {
		return nil, err
	}
	return &chama, nil
}

// ListByUser lists the chamas where the user is an active member
func (r *chamaRepository) ListByUser(ctx context.Context, userID uint) ([]*models.Chama, error) {
	var chamas []*models.Chama
	err := r.run(ctx, func(db *gorm.DB) error {
		return db.Joins("JOIN chama_members cm ON cm.chama_id = chamas.id").
			Where("cm.user_id = ? AND cm.is_active = ?", userID, true).
			Order("chamas.created_at DESC").
			Find(&chamas).Error
	})
	return chamas, err
}
