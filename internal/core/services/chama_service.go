package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/core/domain"
	"chamahub/internal/pkg/pagination"
	"chamahub/internal/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// inviteCodeLength is the length of generated invite codes
const inviteCodeLength = 8

// ChamaService manages chamas and their memberships
type ChamaService struct {
	chamaRepo  repositories.ChamaRepository
	memberRepo repositories.MembershipRepository
	authz      *AuthzService
}

// NewChamaService creates a new chama service
func NewChamaService(
	chamaRepo repositories.ChamaRepository,
	memberRepo repositories.MembershipRepository,
	authz *AuthzService,
) *ChamaService {
	return &ChamaService{
		chamaRepo:  chamaRepo,
		memberRepo: memberRepo,
		authz:      authz,
	}
}

// CreateChamaInput represents chama creation input
type CreateChamaInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility,omitempty" example:"PRIVATE"`
}

// JoinChamaInput represents a join by invite code
type JoinChamaInput struct {
	InviteCode string `json:"invite_code"`
}

// UpdateRoleInput represents a role change
type UpdateRoleInput struct {
	Role string `json:"role" example:"TREASURER"`
}

// MemberResponse is a membership with the member's name
type MemberResponse struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	JoinedAt  string `json:"joined_at"`
}

// Create creates a chama; the creator becomes its chairperson
func (s *ChamaService) Create(ctx context.Context, userID uint, input *CreateChamaInput) (*models.Chama, error) {
	name := strings.TrimSpace(input.Name)
	visibility := strings.ToUpper(strings.TrimSpace(input.Visibility))
	if visibility == "" {
		visibility = domain.VisibilityPrivate
	}

	v := validator.Errors{}
	v.Check(len(name) >= 3 && len(name) <= 100, "name", "must be 3 to 100 characters")
	v.Check(visibility == domain.VisibilityPrivate || visibility == domain.VisibilityPublic,
		"visibility", "must be PRIVATE or PUBLIC")
	if !v.Empty() {
		return nil, domain.InvalidFields(v)
	}

	chama := &models.Chama{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CurrentFund: decimal.Zero,
		Visibility:  visibility,
		CreatedBy:   userID,
	}
	founder := &models.ChamaMember{
		UserID:   userID,
		Role:     string(domain.RoleChairperson),
		IsActive: true,
	}

	// Retry on the rare invite code collision
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		chama.InviteCode = newInviteCode()
		err = s.chamaRepo.Create(ctx, chama, founder)
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Chama created: %s (ID: %d) by user %d", chama.Name, chama.ID, userID)
	return chama, nil
}

// JoinByInvite makes the caller an active MEMBER of the chama behind the invite code
func (s *ChamaService) JoinByInvite(ctx context.Context, userID uint, input *JoinChamaInput) (*models.Chama, error) {
	code := strings.ToUpper(strings.TrimSpace(input.InviteCode))
	if code == "" {
		return nil, domain.InvalidFields(map[string]string{"invite_code": "is required"})
	}

	chama, err := s.chamaRepo.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrInvalidInviteCode
		}
		return nil, err
	}

	existing, err := s.memberRepo.Get(ctx, chama.ID, userID)
	switch {
	case err == nil && existing.IsActive:
		return nil, domain.ErrAlreadyMember
	case err == nil:
		// Former members come back as plain members
		if err := s.memberRepo.Reactivate(ctx, existing.ID, string(domain.RoleMember)); err != nil {
			if errors.Is(err, repositories.ErrStaleWrite) {
				return nil, domain.ErrAlreadyMember
			}
			return nil, err
		}
	case errors.Is(err, repositories.ErrNotFound):
		member := &models.ChamaMember{
			ChamaID:  chama.ID,
			UserID:   userID,
			Role:     string(domain.RoleMember),
			IsActive: true,
		}
		if err := s.memberRepo.Create(ctx, member); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return nil, domain.ErrAlreadyMember
			}
			return nil, err
		}
	default:
		return nil, err
	}

	log.Printf("✅ User %d joined chama %d", userID, chama.ID)
	return chama, nil
}

// ListMine lists the chamas the caller is an active member of
func (s *ChamaService) ListMine(ctx context.Context, userID uint) ([]*models.Chama, error) {
	chamas, err := s.chamaRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chamas == nil {
		chamas = []*models.Chama{}
	}
	return chamas, nil
}

// Get returns a chama to one of its members. The invite code is shown to officials only.
func (s *ChamaService) Get(ctx context.Context, userID, chamaID uint) (*models.Chama, error) {
	member, err := s.authz.Require(ctx, userID, chamaID, domain.AnyRole)
	if err != nil {
		return nil, err
	}

	chama, err := s.chamaRepo.GetByID(ctx, chamaID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrChamaNotFound
		}
		return nil, err
	}
	if !hasRole(domain.OfficialRoles, domain.Role(member.Role)) {
		chama.InviteCode = ""
	}
	return chama, nil
}

// ListMembers lists members of a chama, a page at a time
func (s *ChamaService) ListMembers(ctx context.Context, userID, chamaID uint, params *pagination.Params) (*pagination.Response, error) {
	if _, err := s.authz.Require(ctx, userID, chamaID, domain.AnyRole); err != nil {
		return nil, err
	}

	members, total, err := s.memberRepo.ListByChama(ctx, chamaID, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]*MemberResponse, 0, len(members))
	for _, m := range members {
		resp := &MemberResponse{
			UserID:   m.UserID,
			Role:     m.Role,
			IsActive: m.IsActive,
			JoinedAt: m.JoinedAt.UTC().Format("2006-01-02"),
		}
		if m.User != nil {
			resp.FirstName = m.User.FirstName
			resp.LastName = m.User.LastName
		}
		items = append(items, resp)
	}
	return pagination.NewResponse(items, params, total), nil
}

// UpdateRole changes a member's role. Only the chairperson may do it.
func (s *ChamaService) UpdateRole(ctx context.Context, userID, chamaID, targetID uint, input *UpdateRoleInput) error {
	role := domain.Role(strings.ToUpper(strings.TrimSpace(input.Role)))
	if !role.IsValid() {
		return domain.InvalidFields(map[string]string{"role": "must be CHAIRPERSON, TREASURER, SECRETARY or MEMBER"})
	}

	if _, err := s.authz.Require(ctx, userID, chamaID, []domain.Role{domain.RoleChairperson}); err != nil {
		return err
	}
	if targetID == userID {
		return domain.ErrForbidden.WithMessage("you cannot change your own role")
	}

	if err := s.memberRepo.UpdateRole(ctx, chamaID, targetID, string(role)); err != nil {
		if errors.Is(err, repositories.ErrStaleWrite) {
			return domain.ErrMembershipNotFound
		}
		return err
	}

	log.Printf("✅ Role updated: user %d in chama %d is now %s", targetID, chamaID, role)
	return nil
}

// DeactivateMember removes a member from future rosters. Existing roster entries stay.
func (s *ChamaService) DeactivateMember(ctx context.Context, userID, chamaID, targetID uint) error {
	if _, err := s.authz.Require(ctx, userID, chamaID, domain.OfficialRoles); err != nil {
		return err
	}
	if targetID == userID {
		return domain.ErrForbidden.WithMessage("you cannot remove yourself")
	}

	target, err := s.memberRepo.Get(ctx, chamaID, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.ErrMembershipNotFound
		}
		return err
	}
	if !target.IsActive {
		return nil
	}
	if target.Role == string(domain.RoleChairperson) {
		return domain.ErrForbidden.WithMessage("the chairperson cannot be removed")
	}

	if err := s.memberRepo.SetActive(ctx, chamaID, targetID, false); err != nil {
		if errors.Is(err, repositories.ErrStaleWrite) {
			return nil
		}
		return err
	}

	log.Printf("✅ Member deactivated: user %d in chama %d by user %d", targetID, chamaID, userID)
	return nil
}

// newInviteCode returns an uppercase code derived from a random uuid
func newInviteCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:inviteCodeLength])
}
