package handlers

import (
	"chamahub/internal/config"
	"chamahub/internal/core/services"
	"chamahub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles the caller's own profile
type UserHandler struct {
	userService *services.UserService
	cfg         *config.Config
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, cfg *config.Config) *UserHandler {
	return &UserHandler{
		userService: userService,
		cfg:         cfg,
	}
}

// GetProfile gets own profile
// @Summary Get my profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /profile [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	profile, err := h.userService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Profile retrieved successfully", profile)
}

// UpdateProfile updates own profile
// @Summary Update my profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.UpdateProfileInput true "Profile data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /profile [put]
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	profile, err := h.userService.UpdateProfile(c.UserContext(), userID, &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Profile updated successfully", profile)
}

// ChangePassword changes own password and signs out every device
// @Summary Change password
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ChangePasswordInput true "Old and new password"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /profile/password [put]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req services.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.userService.ChangePassword(c.UserContext(), userID, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Password changed successfully, please login again", nil)
}
