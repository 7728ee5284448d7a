package handlers

import (
	"chamahub/internal/adapters/http/middleware"
	"chamahub/internal/config"
	"chamahub/internal/core/domain"
	"chamahub/internal/core/services"
	"chamahub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// fail writes the error envelope; internal details are only shown in dev
func fail(c *fiber.Ctx, cfg *config.Config, err error) error {
	return response.FromError(c, err, cfg.IsDev())
}

// currentUser returns the id set by AuthMiddleware
func currentUser(c *fiber.Ctx) (uint, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return 0, domain.ErrUnauthenticated
	}
	return userID, nil
}

// paramID parses a positive numeric route parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, domain.InvalidFields(map[string]string{name: "must be a positive integer"})
	}
	return uint(id), nil
}

// parseBody decodes the JSON body into out
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return domain.ErrInvalidInput.WithMessage("invalid request body")
	}
	return nil
}

// clientInfo identifies the calling device for session binding
func clientInfo(c *fiber.Ctx) services.ClientInfo {
	return services.ClientInfo{
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IP:        c.IP(),
	}
}
