package handlers

import (
	"chamahub/internal/config"
	"chamahub/internal/core/services"
	"chamahub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// RefreshRequest represents refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenRequest carries a one-time email token
type TokenRequest struct {
	Token string `json:"token"`
}

// CodeRequest carries a phone verification code
type CodeRequest struct {
	Code string `json:"code"`
}

// ForgotPasswordRequest represents forgot password request body
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Register handles user registration
// @Summary Register new user
// @Description Register a new user; email and phone start unverified
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Registration data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	result, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Created(c, "Registration successful", result)
}

// Login handles user login
// @Summary Login user
// @Description Authenticate user and open a session for this device
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	result, err := h.authService.Login(c.UserContext(), &req, clientInfo(c))
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Login successful", result)
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Description Rotate a refresh token; the presented token cannot be used again
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest true "Refresh token"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	pair, err := h.authService.Refresh(c.UserContext(), req.RefreshToken, clientInfo(c))
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Token refreshed successfully", pair)
}

// Logout handles user logout
// @Summary Logout user
// @Description Revoke every refresh token of the caller
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.authService.Logout(c.UserContext(), userID); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Logged out successfully", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	user, err := h.authService.Me(c.UserContext(), userID)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user": user,
	})
}

// VerifyEmail consumes an email verification token
// @Summary Verify email
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body TokenRequest true "Verification token"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	var req TokenRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.authService.VerifyEmail(c.UserContext(), req.Token); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Email verified successfully", nil)
}

// VerifyPhone checks the caller's phone OTP
// @Summary Verify phone
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CodeRequest true "6-digit code"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/verify-phone [post]
func (h *AuthHandler) VerifyPhone(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	var req CodeRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.authService.VerifyPhone(c.UserContext(), userID, req.Code); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Phone number verified successfully", nil)
}

// ResendEmailVerification issues a new email token
// @Summary Resend email verification
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/resend-email-verification [post]
func (h *AuthHandler) ResendEmailVerification(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.authService.ResendEmailVerification(c.UserContext(), userID); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Verification email sent", nil)
}

// ResendPhoneVerification issues a new phone OTP
// @Summary Resend phone verification
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/resend-phone-verification [post]
func (h *AuthHandler) ResendPhoneVerification(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.authService.ResendPhoneVerification(c.UserContext(), userID); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Verification code sent", nil)
}

// ForgotPassword starts a password reset
// @Summary Forgot password
// @Description Always succeeds for well-formed emails so accounts cannot be enumerated
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body ForgotPasswordRequest true "Account email"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "If the account exists, a reset link has been sent", nil)
}

// ResetPassword completes a password reset
// @Summary Reset password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.ResetPasswordInput true "Reset token and new password"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req services.ResetPasswordInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, h.cfg, err)
	}

	if err := h.authService.ResetPassword(c.UserContext(), &req); err != nil {
		return fail(c, h.cfg, err)
	}

	return response.Success(c, "Password has been reset, please login again", nil)
}
