package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chamahub/internal/adapters/events"
	"chamahub/internal/adapters/http/middleware"
	"chamahub/internal/adapters/http/routes"
	"chamahub/internal/bootstrap"
	"chamahub/internal/config"
	"chamahub/internal/observability/metrics"
	"chamahub/internal/observability/tracing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "chamahub/docs" // Swagger docs
)

// @title ChamaHub API
// @version 1.0
// @description Chama (ROSCA) management API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@chamahub.co.ke

// @BasePath /
// @schemes https http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (no-op without an OTLP endpoint)
	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, "chamahub-api", cfg.AppMode)
	if err != nil {
		log.Fatalf("❌ Failed to initialize tracing: %v", err)
	}

	// Connect to database, cache and build services
	rt, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize: %v", err)
	}
	defer rt.Close()

	// Apply migrations
	sqlDB, err := rt.DB.DB()
	if err != nil {
		log.Fatalf("❌ Failed to get sql.DB: %v", err)
	}
	if err := config.MigrateUp(sqlDB); err != nil {
		log.Fatalf("❌ Failed to migrate: %v", err)
	}

	// Seed demo data in development
	if cfg.IsDev() {
		if err := config.NewSeeder(rt.DB).Run(); err != nil {
			log.Printf("⚠️ Warning: Failed to seed demo data: %v", err)
		}
	}

	// Scheduled jobs: swap expiry and refresh token purge
	if err := rt.Cron.Start(); err != nil {
		log.Fatalf("❌ Failed to start cron: %v", err)
	}
	defer rt.Cron.Stop()

	// Cross-instance event relay
	if rt.Relay != nil {
		go func() {
			if err := rt.Relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("❌ Event relay stopped: %v", err)
			}
		}()
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ChamaHub API v1.0",
		ErrorHandler: middleware.ErrorHandler(cfg),
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, rt.RouteDeps())

	// Side listener: websocket event bus and Prometheus metrics
	side := newSideServer(cfg, rt)
	go func() {
		log.Printf("🚀 Side listener on port %s (/ws, /metrics)", cfg.SidePort)
		if err := side.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("❌ Side listener error: %v", err)
		}
	}()

	// Graceful shutdown
	go gracefulShutdown(app, side, cancel)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("❌ Failed to start server: %v", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Printf("⚠️ Error flushing traces: %v", err)
	}
}

// newSideServer serves the websocket endpoint and metrics on SIDE_PORT
func newSideServer(cfg *config.Config, rt *bootstrap.Runtime) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.SidePort,
		Handler:           sideHandler(events.NewWSHandler(rt.Hub, rt.Auth, rt.Authz, cfg.OriginAllowed)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// sideHandler mounts /ws and /metrics behind tracing and request metrics
func sideHandler(ws http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/metrics", promhttp.Handler())
	return otelhttp.NewHandler(metrics.HTTPMetricsMiddleware(mux), "side")
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App, side *http.Server, cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	cancel()

	ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := side.Shutdown(ctx); err != nil {
		log.Printf("❌ Error during side listener shutdown: %v", err)
	}
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
