package services

import (
	"context"
	"strings"
	"testing"

	"chamahub/internal/core/domain"
	"chamahub/internal/pkg/pagination"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChamaService(store *fakeStore) *ChamaService {
	return NewChamaService(fakeChamas{store}, fakeMembers{store}, NewAuthzService(fakeMembers{store}))
}

func TestChama_CreateJoinAndList(t *testing.T) {
	store := newFakeStore()
	svc := newChamaService(store)
	ctx := context.Background()
	founder := store.addUser("founder@chama.test", 50)
	joiner := store.addUser("joiner@chama.test", 50)

	chama, err := svc.Create(ctx, founder.ID, &CreateChamaInput{Name: "  Tujenge Investment  "})
	require.NoError(t, err)
	assert.Equal(t, "Tujenge Investment", chama.Name)
	assert.Equal(t, domain.VisibilityPrivate, chama.Visibility)
	assert.Len(t, chama.InviteCode, inviteCodeLength)
	assert.True(t, chama.CurrentFund.IsZero())

	founderMembership, err := fakeMembers{store}.Get(ctx, chama.ID, founder.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoleChairperson), founderMembership.Role)

	// Invite codes are case-insensitive
	_, err = svc.JoinByInvite(ctx, joiner.ID, &JoinChamaInput{InviteCode: " " + strings.ToLower(chama.InviteCode)})
	require.NoError(t, err)
	_, err = svc.JoinByInvite(ctx, joiner.ID, &JoinChamaInput{InviteCode: chama.InviteCode})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
	_, err = svc.JoinByInvite(ctx, joiner.ID, &JoinChamaInput{InviteCode: "NOPE0000"})
	assert.ErrorIs(t, err, domain.ErrInvalidInviteCode)

	mine, err := svc.ListMine(ctx, joiner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, chama.ID, mine[0].ID)

	// Plain members do not see the invite code
	seen, err := svc.Get(ctx, joiner.ID, chama.ID)
	require.NoError(t, err)
	assert.Empty(t, seen.InviteCode)
	seen, err = svc.Get(ctx, founder.ID, chama.ID)
	require.NoError(t, err)
	assert.Equal(t, chama.InviteCode, seen.InviteCode)

	page, err := svc.ListMembers(ctx, joiner.ID, chama.ID, pagination.NewParams(1, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Meta.Total)
	items, ok := page.Items.([]*MemberResponse)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, founder.ID, items[0].UserID)
}

func TestChama_CreateValidation(t *testing.T) {
	svc := newChamaService(newFakeStore())

	_, err := svc.Create(context.Background(), 1, &CreateChamaInput{Name: "ab", Visibility: "SECRET"})
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "name")
	assert.Contains(t, appErr.Fields, "visibility")
}

func TestChama_RolesAndDeactivation(t *testing.T) {
	store := newFakeStore()
	svc := newChamaService(store)
	ctx := context.Background()
	chair := store.addUser("chair@chama.test", 50)
	member := store.addUser("member@chama.test", 50)

	chama, err := svc.Create(ctx, chair.ID, &CreateChamaInput{Name: "Mavuno Self Help"})
	require.NoError(t, err)
	_, err = svc.JoinByInvite(ctx, member.ID, &JoinChamaInput{InviteCode: chama.InviteCode})
	require.NoError(t, err)

	// Only the chairperson assigns roles
	assert.ErrorIs(t, svc.UpdateRole(ctx, member.ID, chama.ID, chair.ID, &UpdateRoleInput{Role: "MEMBER"}), domain.ErrForbidden)
	assert.ErrorIs(t, svc.UpdateRole(ctx, chair.ID, chama.ID, chair.ID, &UpdateRoleInput{Role: "MEMBER"}), domain.ErrForbidden)
	assert.ErrorIs(t, svc.UpdateRole(ctx, chair.ID, chama.ID, member.ID, &UpdateRoleInput{Role: "BOSS"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.UpdateRole(ctx, chair.ID, chama.ID, 9999, &UpdateRoleInput{Role: "MEMBER"}), domain.ErrMembershipNotFound)
	require.NoError(t, svc.UpdateRole(ctx, chair.ID, chama.ID, member.ID, &UpdateRoleInput{Role: "treasurer"}))

	authz := NewAuthzService(fakeMembers{store})
	ok, err := authz.Allow(ctx, member.ID, chama.ID, domain.TreasurerOnly)
	require.NoError(t, err)
	assert.True(t, ok)

	// The chairperson cannot be removed, nor can officials remove themselves
	assert.ErrorIs(t, svc.DeactivateMember(ctx, member.ID, chama.ID, chair.ID), domain.ErrForbidden)
	assert.ErrorIs(t, svc.DeactivateMember(ctx, chair.ID, chama.ID, chair.ID), domain.ErrForbidden)

	require.NoError(t, svc.DeactivateMember(ctx, chair.ID, chama.ID, member.ID))
	require.NoError(t, svc.DeactivateMember(ctx, chair.ID, chama.ID, member.ID))

	ok, err = authz.Allow(ctx, member.ID, chama.ID, domain.AnyRole)
	require.NoError(t, err)
	assert.False(t, ok)

	// Rejoining restores a plain membership
	_, err = svc.JoinByInvite(ctx, member.ID, &JoinChamaInput{InviteCode: chama.InviteCode})
	require.NoError(t, err)
	m, err := fakeMembers{store}.Get(ctx, chama.ID, member.ID)
	require.NoError(t, err)
	assert.True(t, m.IsActive)
	assert.Equal(t, string(domain.RoleMember), m.Role)
}

func TestAuthz_ReadableChamas(t *testing.T) {
	store := newFakeStore()
	user := store.addUser("reader@chama.test", 50)
	first := store.addChama("First", decimal.Zero)
	second := store.addChama("Second", decimal.Zero)
	third := store.addChama("Third", decimal.Zero)
	store.addMember(first.ID, user.ID, domain.RoleMember)
	store.addMember(second.ID, user.ID, domain.RoleSecretary)
	store.addMember(third.ID, user.ID, domain.RoleMember)
	require.NoError(t, fakeMembers{store}.SetActive(context.Background(), third.ID, user.ID, false))

	authz := NewAuthzService(fakeMembers{store})
	ids, err := authz.ReadableChamas(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, second.ID}, ids)

	ok, err := authz.Allow(context.Background(), user.ID, second.ID, domain.OfficialRoles)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = authz.Allow(context.Background(), user.ID, first.ID, domain.OfficialRoles)
	require.NoError(t, err)
	assert.False(t, ok)
}
