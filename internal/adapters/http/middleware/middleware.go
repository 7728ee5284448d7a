package middleware

import (
	"time"

	"chamahub/internal/config"
	"chamahub/internal/core/domain"
	"chamahub/internal/observability/metrics"
	"chamahub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// Setup configures all middlewares for the application
func Setup(app *fiber.App, cfg *config.Config) {
	// Recover middleware - catches panics, ErrorHandler writes the envelope
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.IsDev()}))

	// Correlation id, echoed in X-Request-ID and in 500 responses
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	// Logger middleware
	if cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format: "${time} | ${locals:requestid} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format:     "${time} | ${locals:requestid} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}

	app.Use(metrics.FiberMiddleware())

	// Gzip Compression middleware
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Security Headers middleware (Helmet)
	app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "SAMEORIGIN",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		PermissionPolicy:          "geolocation=(), microphone=(), camera=()",
	}))

	// CORS middleware
	origins := cfg.GetAllowedOrigins()
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		ExposeHeaders:    "X-Request-ID,Retry-After,ETag",
		AllowCredentials: origins != "*", // Cannot be true with AllowOrigins: "*"
	}))

	// Rate Limiter middleware - General API (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: limitReached(time.Minute, cfg.IsDev()),
	}))

	// Cache-Control for every response, weak ETag for cacheable GETs
	app.Use(CacheHeaders(0))
	app.Use(etag.New(etag.Config{Weak: true}))
}

// AuthRateLimiter creates a stricter rate limiter for unauthenticated auth endpoints
// 10 requests per minute per IP (register, verify-email, reset-password)
func AuthRateLimiter(showDetails bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "-auth"
		},
		LimitReached: limitReached(time.Minute, showDetails),
	})
}

func limitReached(window time.Duration, showDetails bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return response.FromError(c, domain.ErrRateLimited.WithRetryAfter(window), showDetails)
	}
}

// ErrorHandler handles errors that escape handlers (fiber errors, recovered panics)
func ErrorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return response.FromError(c, err, cfg.IsDev())
	}
}
