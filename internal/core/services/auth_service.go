package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/config"
	"chamahub/internal/core/domain"
	"chamahub/internal/observability/metrics"
	"chamahub/internal/pkg/jwt"
	"chamahub/internal/pkg/password"
	"chamahub/internal/pkg/ratelimit"
	"chamahub/internal/pkg/validator"
)

const (
	emailTokenBytes = 32
	resetTokenBytes = 32
	otpLength       = 6
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo    repositories.UserRepository
	refreshRepo repositories.RefreshTokenRepository
	keys        *jwt.KeyRing
	limiter     ratelimit.Limiter
	notifier    Notifier
	cfg         *config.Config
	now         func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	refreshRepo repositories.RefreshTokenRepository,
	keys *jwt.KeyRing,
	limiter ratelimit.Limiter,
	notifier Notifier,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		keys:        keys,
		limiter:     limiter,
		notifier:    notifier,
		cfg:         cfg,
		now:         time.Now,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	NationalID  string `json:"nationalId,omitempty"`
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordInput represents the password reset completion input
type ResetPasswordInput struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User            *models.UserResponse `json:"user"`
	AccessToken     string               `json:"access_token"`
	RefreshToken    string               `json:"refresh_token,omitempty"`
	AccessExpiresAt time.Time            `json:"access_expires_at"`
}

// Register registers a new, unverified user and returns an access token
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*AuthResponse, error) {
	// 1. Validate and normalize input
	email := validator.NormalizeEmail(input.Email)
	phone, phoneOK := validator.NormalizePhone(input.PhoneNumber)
	nationalID := strings.TrimSpace(input.NationalID)

	v := validator.Errors{}
	v.Check(validator.IsEmail(email), "email", "must be a valid email address")
	v.Check(phoneOK, "phoneNumber", "must be a valid Kenyan mobile number")
	v.Check(password.ValidatePassword(input.Password), "password", password.RuleMessage)
	v.Check(validator.IsName(input.FirstName), "firstName", "must be 2 to 50 characters")
	v.Check(validator.IsName(input.LastName), "lastName", "must be 2 to 50 characters")
	if nationalID != "" {
		v.Check(validator.IsNationalID(nationalID), "nationalId", "must be 6 to 10 digits")
	}
	if !v.Empty() {
		return nil, domain.InvalidFields(v)
	}

	// 2. Check if email or phone already exists
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !exists {
		exists, err = s.userRepo.ExistsByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
	}
	if exists {
		return nil, domain.ErrDuplicateIdentity
	}

	// 3. Hash password
	hashedPassword, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	// 4. Prepare verification secrets
	now := s.now().UTC()
	emailToken, err := password.GenerateToken(emailTokenBytes)
	if err != nil {
		return nil, err
	}
	otp, err := password.GenerateOTP(otpLength)
	if err != nil {
		return nil, err
	}
	emailHash := password.HashToken(emailToken)
	otpHash := password.HashCode(phone, otp)
	emailExpires := now.Add(s.cfg.Verification.EmailTTL)
	otpExpires := now.Add(s.cfg.Verification.PhoneOTPTTL)

	// 5. Create user
	user := &models.User{
		Email:              email,
		Phone:              phone,
		PasswordHash:       hashedPassword,
		FirstName:          strings.TrimSpace(input.FirstName),
		LastName:           strings.TrimSpace(input.LastName),
		TrustScore:         domain.DefaultTrust,
		EmailVerifyHash:    &emailHash,
		EmailVerifyExpires: &emailExpires,
		EmailVerifySentAt:  &now,
		PhoneOTPHash:       &otpHash,
		PhoneOTPExpires:    &otpExpires,
		PhoneOTPSentAt:     &now,
		IsActive:           true,
	}
	if nationalID != "" {
		user.NationalID = &nationalID
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, err
	}

	// 6. Dispatch verification messages (never fails registration)
	s.notifier.SendEmailVerification(user, emailToken)
	s.notifier.SendPhoneOTP(user, otp)

	// 7. Generate access token
	accessToken, accessExp, err := s.keys.GenerateAccessToken(user.ID, s.cfg.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}

	metrics.ObserveAuth("register", "success")
	log.Printf("✅ User registered: %s (ID: %d)", user.Email, user.ID)

	return &AuthResponse{
		User:            user.ToResponse(),
		AccessToken:     accessToken,
		AccessExpiresAt: accessExp,
	}, nil
}

// Login authenticates a user and opens a session bound to the client device
func (s *AuthService) Login(ctx context.Context, input *LoginInput, client ClientInfo) (*AuthResponse, error) {
	email := validator.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		v := validator.Errors{}
		v.Check(email != "", "email", "is required")
		v.Check(input.Password != "", "password", "is required")
		return nil, domain.InvalidFields(v)
	}

	// 1. Rate limit before touching the database
	emailKey := "login:email:" + email
	if err := s.allow(ctx, "login:ip:"+client.IP, ratelimit.Rule{Max: s.cfg.RateLimit.LoginPerIP, Window: s.cfg.RateLimit.LoginWindow}, domain.ErrRateLimited); err != nil {
		metrics.ObserveAuth("login", "rate_limited")
		return nil, err
	}
	if err := s.allow(ctx, emailKey, ratelimit.Rule{Max: s.cfg.RateLimit.LoginPerEmail, Window: s.cfg.RateLimit.LoginWindow}, domain.ErrRateLimited); err != nil {
		metrics.ObserveAuth("login", "rate_limited")
		return nil, err
	}

	// 2. Find user by email; unknown emails cost the same as wrong passwords
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			password.VerifyDummy(input.Password)
			metrics.ObserveAuth("login", "failure")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	// 3. Verify password
	if !password.Verify(input.Password, user.PasswordHash) {
		metrics.ObserveAuth("login", "failure")
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Check account state and verification policy
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	if s.cfg.Verification.RequireVerifiedEmail && !user.EmailVerified {
		metrics.ObserveAuth("login", "unverified")
		return nil, domain.ErrEmailNotVerified
	}

	// 5. Replace any session already open on this device
	fingerprint := fingerprintOf(client)
	if _, err := s.refreshRepo.RevokeByFingerprint(ctx, user.ID, fingerprint); err != nil {
		return nil, err
	}

	// 6. Generate and store tokens
	pair, record, err := s.issueTokens(user.ID, client)
	if err != nil {
		return nil, err
	}
	if err := s.refreshRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	// 7. Update last login and clear the per-email budget
	now := s.now().UTC()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		log.Printf("⚠️ Failed to update last login for user %d: %v", user.ID, err)
	}
	user.LastLoginAt = &now
	if err := s.limiter.Reset(ctx, emailKey); err != nil {
		log.Printf("⚠️ Failed to reset login limiter: %v", err)
	}

	metrics.ObserveAuth("login", "success")
	log.Printf("✅ User logged in: %s (ID: %d)", user.Email, user.ID)

	return &AuthResponse{
		User:            user.ToResponse(),
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	}, nil
}

// Refresh rotates a refresh token and issues a new access token.
// Not found, expired and revoked tokens all fail the same way.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JWT.RefreshTimeout)
	defer cancel()

	// 1. Validate signature, kind and expiry
	claims, err := s.keys.ValidateRefreshToken(refreshToken)
	if err != nil {
		metrics.ObserveAuth("refresh", "invalid")
		return nil, domain.ErrInvalidRefresh
	}

	// 2. Look up the stored record
	stored, err := s.refreshRepo.GetByTokenHash(ctx, password.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.ObserveAuth("refresh", "invalid")
			return nil, domain.ErrInvalidRefresh
		}
		return nil, err
	}

	now := s.now()
	if stored.UserID != claims.UserID || stored.IsExpiredAt(now) {
		metrics.ObserveAuth("refresh", "invalid")
		return nil, domain.ErrInvalidRefresh
	}

	// 3. A rotated token replayed from another device means it leaked
	if stored.IsRevoked() {
		if stored.ReplacedByID != nil && stored.Fingerprint != fingerprintOf(client) {
			s.revokeOnReuse(ctx, stored.UserID)
		}
		metrics.ObserveAuth("refresh", "revoked")
		return nil, domain.ErrInvalidRefresh
	}

	// 4. Check the user is still allowed in
	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrInvalidRefresh
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	// 5. Rotate
	pair, record, err := s.issueTokens(user.ID, client)
	if err != nil {
		return nil, err
	}
	if err := s.refreshRepo.Rotate(ctx, stored.ID, record, now.UTC()); err != nil {
		if errors.Is(err, repositories.ErrStaleWrite) {
			// Lost a race with a concurrent rotation of the same token
			metrics.ObserveAuth("refresh", "revoked")
			return nil, domain.ErrInvalidRefresh
		}
		return nil, err
	}

	metrics.ObserveAuth("refresh", "success")
	return pair, nil
}

// revokeOnReuse ends every session of userID. It runs detached so the caller's
// response time does not reveal that the token was found.
func (s *AuthService) revokeOnReuse(ctx context.Context, userID uint) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, repositories.DefaultTimeout)
		defer cancel()
		n, err := s.refreshRepo.RevokeAllByUserID(ctx, userID)
		if err != nil {
			log.Printf("❌ Failed to revoke sessions after token reuse (user %d): %v", userID, err)
			return
		}
		log.Printf("🚨 Refresh token reuse detected for user %d, revoked %d sessions", userID, n)
	}()
}

// Logout revokes every refresh token of the user
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	n, err := s.refreshRepo.RevokeAllByUserID(ctx, userID)
	if err != nil {
		return err
	}
	metrics.ObserveAuth("logout", "success")
	log.Printf("✅ User logged out: ID %d (%d sessions revoked)", userID, n)
	return nil
}

// Me returns the caller's profile
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// Authenticate validates an access token and returns its user id
func (s *AuthService) Authenticate(token string) (uint, error) {
	if token == "" {
		return 0, domain.ErrUnauthenticated
	}
	claims, err := s.keys.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, domain.ErrTokenExpired
		}
		return 0, domain.ErrInvalidToken
	}
	return claims.UserID, nil
}

// VerifyEmail consumes an email verification token
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidVerifyToken
	}

	userID, err := s.userRepo.ConsumeEmailVerification(ctx, password.HashToken(token), s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.ObserveAuth("verify_email", "invalid")
			return domain.ErrInvalidVerifyToken
		}
		return err
	}

	metrics.ObserveAuth("verify_email", "success")
	log.Printf("✅ Email verified: user %d", userID)
	return nil
}

// ResendEmailVerification issues a fresh email token once the cooldown has passed
func (s *AuthService) ResendEmailVerification(ctx context.Context, userID uint) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return domain.ErrAlreadyVerified
	}

	now := s.now().UTC()
	if wait := cooldownRemaining(user.EmailVerifySentAt, s.cfg.Verification.EmailCooldown, now); wait > 0 {
		return domain.ErrResendCooldown.WithRetryAfter(wait)
	}

	token, err := password.GenerateToken(emailTokenBytes)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"email_verify_hash":    password.HashToken(token),
		"email_verify_expires": now.Add(s.cfg.Verification.EmailTTL),
		"email_verify_sent_at": now,
	}); err != nil {
		return err
	}

	s.notifier.SendEmailVerification(user, token)
	return nil
}

// ForgotPassword starts a password reset. It reports success for unknown
// emails so the endpoint cannot be used to enumerate accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = validator.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return domain.InvalidFields(map[string]string{"email": "must be a valid email address"})
	}

	rule := ratelimit.Rule{Max: s.cfg.RateLimit.ResetPerEmail, Window: s.cfg.RateLimit.ResetWindow}
	if err := s.allow(ctx, "reset:email:"+email, rule, domain.ErrRateLimited); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := password.GenerateToken(resetTokenBytes)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"reset_token_hash":    password.HashToken(token),
		"reset_token_expires": now.Add(s.cfg.Verification.PasswordResetTTL),
		"reset_sent_at":       now,
	}); err != nil {
		return err
	}

	s.notifier.SendPasswordReset(user, token)
	log.Printf("📧 Password reset requested: user %d", user.ID)
	return nil
}

// ResetPassword sets a new password from a reset token and ends every session
func (s *AuthService) ResetPassword(ctx context.Context, input *ResetPasswordInput) error {
	if !password.ValidatePassword(input.Password) {
		return domain.InvalidFields(map[string]string{
			"password": password.RuleMessage,
		})
	}
	if input.Token == "" {
		return domain.ErrInvalidResetToken
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return err
	}

	userID, err := s.userRepo.ConsumePasswordReset(ctx, password.HashToken(input.Token), hashed, s.now().UTC())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.ErrInvalidResetToken
		}
		return err
	}

	if _, err := s.refreshRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions after reset: %w", err)
	}

	log.Printf("✅ Password reset: user %d", userID)
	return nil
}

// issueTokens creates a token pair and the refresh record to persist
func (s *AuthService) issueTokens(userID uint, client ClientInfo) (*TokenPair, *models.RefreshToken, error) {
	accessToken, accessExp, err := s.keys.GenerateAccessToken(userID, s.cfg.JWT.AccessTTL)
	if err != nil {
		return nil, nil, err
	}
	refreshToken, tokenID, refreshExp, err := s.keys.GenerateRefreshToken(userID, s.cfg.JWT.RefreshTTL)
	if err != nil {
		return nil, nil, err
	}

	record := &models.RefreshToken{
		UserID:      userID,
		TokenHash:   password.HashToken(refreshToken),
		TokenID:     tokenID,
		Fingerprint: fingerprintOf(client),
		UserAgent:   truncate(client.UserAgent, 255),
		IPAddress:   truncate(client.IP, 45),
		ExpiresAt:   refreshExp,
	}
	return &TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExp,
	}, record, nil
}

// allow consumes one hit of rule for key. Limiter outages fail open.
func (s *AuthService) allow(ctx context.Context, key string, rule ratelimit.Rule, denied *domain.AppError) error {
	res, err := s.limiter.Allow(ctx, key, rule)
	if err != nil {
		log.Printf("⚠️ Rate limiter unavailable (%s): %v", key, err)
		return nil
	}
	if !res.Allowed {
		return denied.WithRetryAfter(res.RetryAfter)
	}
	return nil
}

func (s *AuthService) getUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// fingerprintOf binds a session to user agent and ip
func fingerprintOf(client ClientInfo) string {
	return password.HashToken(client.UserAgent + "|" + client.IP)
}

// cooldownRemaining returns how long until a resend is allowed
func cooldownRemaining(sentAt *time.Time, cooldown time.Duration, now time.Time) time.Duration {
	if sentAt == nil {
		return 0
	}
	wait := sentAt.Add(cooldown).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
