package config

import (
	"fmt"
	"log"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/pkg/password"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account
const DemoPassword = "Chama2026pass"

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

type seedUser struct {
	email, phone, first, last, role string
	trust                           int
}

var demoUsers = []seedUser{
	{"wanjiku@chamahub.local", "+254700000001", "Wanjiku", "Kamau", "CHAIRPERSON", 90},
	{"otieno@chamahub.local", "+254700000002", "Otieno", "Odhiambo", "TREASURER", 85},
	{"akinyi@chamahub.local", "+254700000003", "Akinyi", "Were", "SECRETARY", 70},
	{"mutua@chamahub.local", "+254700000004", "Mutua", "Kilonzo", "MEMBER", 62},
	{"chebet@chamahub.local", "+254700000005", "Chebet", "Rono", "MEMBER", 45},
}

// Run executes all seeders
// This is for development/testing only
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedDemoChama(); err != nil {
		log.Printf("⚠️ Demo chama seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedDemoChama seeds one chama with a full set of officials and members
func (s *Seeder) seedDemoChama() error {
	var count int64
	s.db.Model(&models.Chama{}).Where("invite_code = ?", "DEMO2026").Count(&count)
	if count > 0 {
		return nil // Already seeded
	}

	hashedPassword, err := password.Hash(DemoPassword)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		users := make([]*models.User, 0, len(demoUsers))
		for _, u := range demoUsers {
			user := &models.User{
				Email:         u.email,
				Phone:         u.phone,
				PasswordHash:  hashedPassword,
				FirstName:     u.first,
				LastName:      u.last,
				TrustScore:    u.trust,
				EmailVerified: true,
				PhoneVerified: true,
				IsActive:      true,
			}
			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
			users = append(users, user)
		}

		chama := &models.Chama{
			Name:        "Umoja Savings Group",
			Description: "Demo chama for local development",
			CurrentFund: decimal.Zero,
			Visibility:  "PRIVATE",
			InviteCode:  "DEMO2026",
			CreatedBy:   users[0].ID,
		}
		if err := tx.Create(chama).Error; err != nil {
			return err
		}

		for i, u := range users {
			member := &models.ChamaMember{
				ChamaID:  chama.ID,
				UserID:   u.ID,
				Role:     demoUsers[i].role,
				IsActive: true,
			}
			if err := tx.Create(member).Error; err != nil {
				return err
			}
		}

		log.Printf("✅ Demo chama created: %s (invite code %s, %d members)", chama.Name, chama.InviteCode, len(users))
		return nil
	})
}
