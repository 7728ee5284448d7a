package services

import (
	"context"
	"errors"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/core/domain"
)

// AuthzService answers role questions about chama memberships. It only reads.
type AuthzService struct {
	memberRepo repositories.MembershipRepository
}

// NewAuthzService creates a new authorization evaluator
func NewAuthzService(memberRepo repositories.MembershipRepository) *AuthzService {
	return &AuthzService{memberRepo: memberRepo}
}

// Allow reports whether userID is an active member of chamaID holding one of roles
func (s *AuthzService) Allow(ctx context.Context, userID, chamaID uint, roles []domain.Role) (bool, error) {
	_, err := s.Require(ctx, userID, chamaID, roles)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrForbidden) {
		return false, nil
	}
	return false, err
}

// Require returns the caller's membership or ErrForbidden
func (s *AuthzService) Require(ctx context.Context, userID, chamaID uint, roles []domain.Role) (*models.ChamaMember, error) {
	member, err := s.memberRepo.Get(ctx, chamaID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if !member.IsActive || !hasRole(roles, domain.Role(member.Role)) {
		return nil, domain.ErrForbidden
	}
	return member, nil
}

// ReadableChamas lists the chamas whose room userID may join
func (s *AuthzService) ReadableChamas(ctx context.Context, userID uint) ([]uint, error) {
	return s.memberRepo.ActiveChamaIDs(ctx, userID)
}

func hasRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
