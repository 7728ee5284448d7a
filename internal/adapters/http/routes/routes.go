package routes

import (
	"chamahub/internal/adapters/http/handlers"
	"chamahub/internal/adapters/http/middleware"
	"chamahub/internal/config"
	"chamahub/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// Deps holds what the HTTP surface needs from the rest of the process
type Deps struct {
	Config       *config.Config
	Auth         *services.AuthService
	Users        *services.UserService
	Chamas       *services.ChamaService
	Rosca        *services.RoscaService
	HealthChecks map[string]handlers.HealthCheck
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps Deps) {
	cfg := deps.Config

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg, deps.HealthChecks)
	authHandler := handlers.NewAuthHandler(deps.Auth, cfg)
	userHandler := handlers.NewUserHandler(deps.Users, cfg)
	chamaHandler := handlers.NewChamaHandler(deps.Chamas, cfg)
	roscaHandler := handlers.NewRoscaHandler(deps.Rosca, cfg)

	requireAuth := middleware.AuthMiddleware(deps.Auth, cfg.IsDev())

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	authRoutes := app.Group("/auth", middleware.NoCacheHeaders())
	setupAuthRoutes(authRoutes, authHandler, requireAuth, cfg)

	// Profile routes (Authenticated users)
	profileRoutes := app.Group("/profile", requireAuth)
	setupProfileRoutes(profileRoutes, userHandler)

	// Chama routes (Authenticated users, roles checked per chama)
	chamaRoutes := app.Group("/chamas", requireAuth)
	setupChamaRoutes(chamaRoutes, chamaHandler)

	// ROSCA routes (Authenticated users, roles checked per chama)
	roscaRoutes := app.Group("/rosca", requireAuth)
	setupRoscaRoutes(roscaRoutes, roscaHandler)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, requireAuth fiber.Handler, cfg *config.Config) {
	strict := middleware.AuthRateLimiter(cfg.IsDev())

	// Public routes; login, refresh and forgot-password enforce their own budgets
	router.Post("/register", strict, handler.Register)
	router.Post("/login", handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/verify-email", strict, handler.VerifyEmail)
	router.Post("/forgot-password", handler.ForgotPassword)
	router.Post("/reset-password", strict, handler.ResetPassword)

	// Protected routes
	router.Post("/logout", requireAuth, handler.Logout)
	router.Get("/me", requireAuth, handler.Me)
	router.Post("/verify-phone", requireAuth, handler.VerifyPhone)
	router.Post("/resend-email-verification", requireAuth, handler.ResendEmailVerification)
	router.Post("/resend-phone-verification", requireAuth, handler.ResendPhoneVerification)
}

// setupProfileRoutes configures profile routes
func setupProfileRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", handler.GetProfile)
	router.Put("/", handler.UpdateProfile)
	router.Put("/password", handler.ChangePassword)
}

// setupChamaRoutes configures chama and membership routes
func setupChamaRoutes(router fiber.Router, handler *handlers.ChamaHandler) {
	router.Post("/", handler.Create)
	router.Get("/", handler.ListMine)
	router.Post("/join", handler.Join)
	router.Get("/:id", handler.Get)
	router.Get("/:id/members", handler.ListMembers)
	router.Put("/:id/members/:userId/role", handler.UpdateRole)
	router.Delete("/:id/members/:userId", handler.DeactivateMember)
}

// setupRoscaRoutes configures cycle, payout and swap routes
func setupRoscaRoutes(router fiber.Router, handler *handlers.RoscaHandler) {
	// Cycles
	router.Post("/cycles", handler.CreateCycle)
	router.Get("/chama/:chamaId/cycles", handler.ListCycles)
	router.Get("/cycles/:cycleId", handler.GetCycle)
	router.Get("/cycles/:cycleId/roster", handler.GetRoster)
	router.Post("/cycles/:cycleId/activate", handler.ActivateCycle)
	router.Delete("/cycles/:cycleId", handler.CancelCycle)

	// Money (treasurer checks happen in the service)
	router.Post("/cycles/:cycleId/contributions", handler.RecordContribution)
	router.Post("/cycles/:cycleId/payout", handler.ProcessPayout)

	// Swaps
	router.Post("/cycles/:cycleId/swap-request", handler.RequestSwap)
	router.Get("/cycles/:cycleId/swap-requests", handler.ListSwapRequests)
	router.Put("/swap-requests/:id/respond", handler.RespondToSwap)
}
