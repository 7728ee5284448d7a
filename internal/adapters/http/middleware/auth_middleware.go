package middleware

import (
	"strings"

	"chamahub/internal/core/domain"
	"chamahub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Authenticator resolves an access token to a user id
type Authenticator interface {
	Authenticate(token string) (uint, error)
}

// AuthMiddleware creates authentication middleware.
// The access token is read from the Authorization header.
func AuthMiddleware(auth Authenticator, showDetails bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Read bearer token
		var accessToken string
		authHeader := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(authHeader, "Bearer ") {
			accessToken = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}

		// 2. No token found
		if accessToken == "" {
			return response.FromError(c, domain.ErrUnauthenticated.WithMessage("access token required"), showDetails)
		}

		// 3. Validate token
		userID, err := auth.Authenticate(accessToken)
		if err != nil {
			return response.FromError(c, err, showDetails)
		}

		// 4. Set user info in context
		c.Locals("userID", userID)

		return c.Next()
	}
}

// UserID returns the authenticated user id set by AuthMiddleware
func UserID(c *fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("userID").(uint)
	return userID, ok && userID != 0
}
