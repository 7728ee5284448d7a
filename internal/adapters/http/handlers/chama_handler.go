package handlers

import (
	"chamahub/internal/config"
	"chamahub/internal/core/services"
	"chamahub/internal/pkg/pagination"
	"chamahub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ChamaHandler handles chama and membership endpoints
type ChamaHandler struct {
	chamaService *services.ChamaService
	cfg          *config.Config
}

// NewChamaHandler creates a new chama handler
func NewChamaHandler(chamaService *services.ChamaService, cfg *config.Config) *ChamaHandler {
	return &ChamaHandler{
		chamaService: chamaService,
		cfg:          cfg,
	}
}

// Create creates a chama
// @Summary Create chama
// @Description The creator becomes the chairperson
// @Tags Chamas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateChamaInput true "Chama data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /chamas [post]
func (h *ChamaHandler) Create(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.CreateChamaInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	chama, err := h.chamaService.Create(c.UserContext(), userID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Created(c, "Chama created successfully", chama)
}

// Join joins a chama by invite code
// @Summary Join chama
// @Tags Chamas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.JoinChamaInput true "Invite code"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /chamas/join [post]
func (h *ChamaHandler) Join(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.JoinChamaInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	chama, err := h.chamaService.JoinByInvite(c.UserContext(), userID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Joined chama successfully", chama)
}

// ListMine lists the caller's chamas
// @Summary My chamas
// @Tags Chamas
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /chamas [get]
func (h *ChamaHandler) ListMine(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	chamas, err := h.chamaService.ListMine(c.UserContext(), userID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Chamas retrieved successfully", chamas)
}

// Get returns one chama
// @Summary Get chama
// @Tags Chamas
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chama ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /chamas/{id} [get]
func (h *ChamaHandler) Get(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}
	chamaID, err := paramID(c, "id")
	if err != nil {
		return fail(c, h.cfg, err)
	}

	chama, err := h.chamaService.Get(c.UserContext(), userID, chamaID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Chama retrieved successfully", chama)
}

// ListMembers lists a chama's members
// @Summary List members
// @Tags Chamas
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chama ID"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /chamas/{id}/members [get]
func (h *ChamaHandler) ListMembers(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}
	chamaID, err := paramID(c, "id")
	if err != nil {
		return fail(c, h.cfg, err)
	}

	page, err := h.chamaService.ListMembers(c.UserContext(), userID, chamaID, pagination.GetParams(c))
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Members retrieved successfully", page)
}

// UpdateRole changes a member's role
// @Summary Update member role
// @Tags Chamas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chama ID"
// @Param userId path int true "User ID"
// @Param body body services.UpdateRoleInput true "New role"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /chamas/{id}/members/{userId}/role [put]
func (h *ChamaHandler) UpdateRole(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}
	chamaID, err := paramID(c, "id")
	if err != nil {
		return fail(c, h.cfg, err)
	}
	targetID, err := paramID(c, "userId")
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.UpdateRoleInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.chamaService.UpdateRole(c.UserContext(), userID, chamaID, targetID, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Role updated successfully", nil)
}

// DeactivateMember removes a member from future cycles
// @Summary Deactivate member
// @Tags Chamas
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chama ID"
// @Param userId path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /chamas/{id}/members/{userId} [delete]
func (h *ChamaHandler) DeactivateMember(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}
	chamaID, err := paramID(c, "id")
	if err != nil {
		return fail(c, h.cfg, err)
	}
	targetID, err := paramID(c, "userId")
	if err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.chamaService.DeactivateMember(c.UserContext(), userID, chamaID, targetID); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Member deactivated successfully", nil)
}
