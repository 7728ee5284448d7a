package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode        string `env:"APP_MODE" envDefault:"dev"`
	Port           string `env:"PORT" envDefault:"3000"`
	SidePort       string `env:"SIDE_PORT" envDefault:"3001"`
	AppBaseURL     string `env:"APP_BASE_URL" envDefault:"http://localhost:5173"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
	RedisURL       string `env:"REDIS_URL"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	SwapRequestTTL time.Duration `env:"SWAP_REQUEST_TTL" envDefault:"72h"`

	Database     DatabaseConfig
	JWT          JWTConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Notify       NotifyConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string        `env:"DB_HOST" envDefault:"localhost"`
	Port         string        `env:"DB_PORT" envDefault:"3306"`
	User         string        `env:"DB_USER" envDefault:"root"`
	Password     string        `env:"DB_PASS"`
	DBName       string        `env:"DB_NAME" envDefault:"chamahub"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	Timeout      time.Duration `env:"DB_TIMEOUT" envDefault:"5s"`
}

// JWTConfig holds token signing configuration.
// Keys maps key id to secret; new tokens use ActiveKID and any non-retired key verifies.
type JWTConfig struct {
	Issuer         string            `env:"JWT_ISSUER" envDefault:"chamahub"`
	ActiveKID      string            `env:"JWT_ACTIVE_KID" envDefault:"k1"`
	Keys           map[string]string `env:"JWT_KEYS" envKeyValSeparator:":"`
	RetiredKIDs    []string          `env:"JWT_RETIRED_KIDS"`
	AccessTTL      time.Duration     `env:"ACCESS_TOKEN_TTL" envDefault:"168h"`
	RefreshTTL     time.Duration     `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	RefreshTimeout time.Duration     `env:"REFRESH_VERIFY_TIMEOUT" envDefault:"1s"`
}

// VerificationConfig holds email/phone verification and password reset policy
type VerificationConfig struct {
	RequireVerifiedEmail bool          `env:"REQUIRE_VERIFIED_EMAIL" envDefault:"false"`
	EmailTTL             time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"24h"`
	PhoneOTPTTL          time.Duration `env:"PHONE_OTP_TTL" envDefault:"10m"`
	EmailCooldown        time.Duration `env:"EMAIL_RESEND_COOLDOWN" envDefault:"5m"`
	PhoneCooldown        time.Duration `env:"PHONE_RESEND_COOLDOWN" envDefault:"2m"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	OTPMaxAttempts       int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
}

// RateLimitConfig holds per-endpoint request budgets
type RateLimitConfig struct {
	LoginPerEmail int           `env:"RL_LOGIN_PER_EMAIL" envDefault:"3"`
	LoginPerIP    int           `env:"RL_LOGIN_PER_IP" envDefault:"100"`
	LoginWindow   time.Duration `env:"RL_LOGIN_WINDOW" envDefault:"15m"`
	OTPPerUser    int           `env:"RL_OTP_PER_USER" envDefault:"5"`
	OTPWindow     time.Duration `env:"RL_OTP_WINDOW" envDefault:"15m"`
	ResetPerEmail int           `env:"RL_RESET_PER_EMAIL" envDefault:"2"`
	ResetWindow   time.Duration `env:"RL_RESET_WINDOW" envDefault:"1h"`
}

// NotifyConfig holds outbound email and SMS settings
type NotifyConfig struct {
	SMTPHost    string        `env:"SMTP_HOST"`
	SMTPPort    string        `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string        `env:"SMTP_USER"`
	SMTPPass    string        `env:"SMTP_PASS"`
	SMTPFrom    string        `env:"SMTP_FROM" envDefault:"ChamaHub <no-reply@chamahub.local>"`
	SMSAPIURL   string        `env:"SMS_API_URL"`
	SMSAPIKey   string        `env:"SMS_API_KEY"`
	SMSSenderID string        `env:"SMS_SENDER_ID" envDefault:"CHAMAHUB"`
	Timeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", cfg.AppMode)
	return cfg, nil
}

// Validate checks values env tags cannot express
func (c *Config) Validate() error {
	// trim spaces for Windows compatibility
	c.AppMode = strings.TrimSpace(c.AppMode)
	if c.AppMode != "dev" && c.AppMode != "prod" {
		return fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", c.AppMode)
	}
	if len(c.JWT.Keys) == 0 {
		if c.IsProd() {
			return fmt.Errorf("JWT_KEYS is required in prod")
		}
		c.JWT.Keys = map[string]string{c.JWT.ActiveKID: "dev-only-signing-key-change-me-0123456789"}
		log.Println("⚠️ JWT_KEYS not set, using a development signing key")
	}
	if c.Verification.OTPMaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS and websocket upgrades
func (c *Config) GetAllowedOrigins() string {
	if c.AllowedOrigins == "" {
		if c.IsDev() {
			return "*"
		}
		// Default production origins
		return "https://app.chamahub.co.ke"
	}
	return c.AllowedOrigins
}

// OriginAllowed reports whether origin is in the allowed list
func (c *Config) OriginAllowed(origin string) bool {
	allowed := c.GetAllowedOrigins()
	if allowed == "*" || origin == "" {
		return true
	}
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}
