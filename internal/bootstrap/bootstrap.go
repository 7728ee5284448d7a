package bootstrap

import (
	"context"
	"fmt"
	"log"

	"chamahub/internal/adapters/cache"
	"chamahub/internal/adapters/events"
	"chamahub/internal/adapters/http/handlers"
	"chamahub/internal/adapters/http/routes"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/config"
	"chamahub/internal/core/services"
	"chamahub/internal/pkg/jwt"
	"chamahub/internal/pkg/ratelimit"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the process-wide dependency graph shared by the server and chamactl
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client // nil when REDIS_URL is empty

	Cache   cache.Cache
	Limiter ratelimit.Limiter
	Hub     *events.Hub
	Relay   *events.RedisRelay // nil without Redis

	RefreshTokens repositories.RefreshTokenRepository

	Auth   *services.AuthService
	Users  *services.UserService
	Authz  *services.AuthzService
	Chamas *services.ChamaService
	Rosca  *services.RoscaService
	Cron   *services.CronService

	closers []func() error
}

// New connects to the database (and Redis when configured) and builds every service
func New(cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	rt.DB = db
	rt.closers = append(rt.closers, func() error { return config.CloseDatabase(db) })

	// Cache, limiter and event bus are Redis-backed when Redis is configured
	rt.Hub = events.NewHub()
	var publisher services.EventPublisher = rt.Hub
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Redis = rdb
		rt.closers = append(rt.closers, rdb.Close)

		rt.Cache = cache.NewRedis(rdb)
		rt.Limiter = ratelimit.NewRedisLimiter(rdb)
		rt.Relay = events.NewRedisRelay(rdb, rt.Hub)
		publisher = rt.Relay
		log.Println("✅ Redis connected: cache, rate limits and event relay are shared")
	} else {
		memLimiter := ratelimit.NewMemoryLimiter()
		rt.closers = append(rt.closers, func() error { memLimiter.Stop(); return nil })
		rt.Cache = cache.NewMemory()
		rt.Limiter = memLimiter
		log.Println("⚠️ REDIS_URL not set, using in-process cache, rate limits and events")
	}

	keys, err := jwt.NewKeyRing(cfg.JWT.Issuer, cfg.JWT.ActiveKID, cfg.JWT.Keys, cfg.JWT.RetiredKIDs)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("key ring: %w", err)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	rt.RefreshTokens = repositories.NewRefreshTokenRepository(db)
	chamaRepo := repositories.NewChamaRepository(db)
	memberRepo := repositories.NewMembershipRepository(db)
	roscaRepo := repositories.NewRoscaRepository(db)

	// Initialize services
	notifier := services.NewNotificationService(cfg)
	rt.Auth = services.NewAuthService(userRepo, rt.RefreshTokens, keys, rt.Limiter, notifier, cfg)
	rt.Users = services.NewUserService(userRepo, rt.RefreshTokens)
	rt.Authz = services.NewAuthzService(memberRepo)
	rt.Chamas = services.NewChamaService(chamaRepo, memberRepo, rt.Authz)
	rt.Rosca = services.NewRoscaService(roscaRepo, rt.Authz, rt.Cache, publisher, cfg)
	rt.Cron = services.NewCronService(rt.Rosca, rt.RefreshTokens)

	return rt, nil
}

// RouteDeps returns what routes.Setup needs
func (rt *Runtime) RouteDeps() routes.Deps {
	return routes.Deps{
		Config: rt.Config,
		Auth:   rt.Auth,
		Users:  rt.Users,
		Chamas: rt.Chamas,
		Rosca:  rt.Rosca,
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(ctx context.Context) error { return config.HealthCheck(ctx, rt.DB) },
			"cache":    rt.Cache.Ping,
		},
	}
}

// Close releases connections in reverse order of creation
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.Printf("⚠️ Error during close: %v", err)
		}
	}
	rt.closers = nil
}
