package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// CacheHeaders sets Cache-Control after the handler has run.
// Successful GETs outside /auth are privately cacheable for maxAge (revalidated
// through the ETag when maxAge is zero); everything else is no-store.
func CacheHeaders(maxAge time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if err == nil && c.Method() == fiber.MethodGet &&
			cacheableStatus(c.Response().StatusCode()) &&
			!strings.HasPrefix(c.Path(), "/auth") {
			c.Set(fiber.HeaderCacheControl, formatCacheControl(maxAge))
			return err
		}

		c.Set(fiber.HeaderCacheControl, "no-store")
		return err
	}
}

func cacheableStatus(status int) bool {
	return status == fiber.StatusOK || status == fiber.StatusNotModified
}

// formatCacheControl formats cache control header value
func formatCacheControl(maxAge time.Duration) string {
	seconds := int(maxAge.Seconds())
	if seconds <= 0 {
		return "private, no-cache"
	}
	return "private, max-age=" + strconv.Itoa(seconds)
}

// NoCacheHeaders sets no-cache headers
func NoCacheHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
		c.Set(fiber.HeaderPragma, "no-cache")
		c.Set(fiber.HeaderExpires, "0")
		return c.Next()
	}
}
