package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/adapters/persistence/repositories"
	"chamahub/internal/core/domain"
	"chamahub/internal/observability/metrics"
	"chamahub/internal/pkg/password"
	"chamahub/internal/pkg/ratelimit"
)

// ============================================================
// Phone OTP - verification of the registered phone number
// ============================================================

// VerifyPhone checks a 6-digit code against the caller's pending OTP.
// A wrong code counts against the attempt limit; once the limit is reached the
// code is locked and only a resend issues a usable one.
func (s *AuthService) VerifyPhone(ctx context.Context, userID uint, code string) error {
	if len(code) != otpLength {
		return domain.InvalidFields(map[string]string{"code": fmt.Sprintf("must be %d digits", otpLength)})
	}

	// 1. Per-user budget, checked before the database
	rule := ratelimit.Rule{Max: s.cfg.RateLimit.OTPPerUser, Window: s.cfg.RateLimit.OTPWindow}
	if err := s.allow(ctx, fmt.Sprintf("otp:user:%d", userID), rule, domain.ErrTooManyAttempts); err != nil {
		metrics.ObserveAuth("verify_phone", "rate_limited")
		return err
	}

	// 2. Load the pending code
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PhoneVerified {
		return domain.ErrAlreadyVerified
	}

	maxAttempts := s.cfg.Verification.OTPMaxAttempts
	if user.PhoneOTPAttempts >= maxAttempts {
		metrics.ObserveAuth("verify_phone", "locked")
		return domain.ErrTooManyAttempts
	}
	now := s.now().UTC()
	if user.PhoneOTPHash == nil || user.PhoneOTPExpires == nil || !now.Before(*user.PhoneOTPExpires) {
		return domain.ErrInvalidOTP
	}

	// 3. Compare
	codeHash := password.HashCode(user.Phone, code)
	if !password.EqualHashes(codeHash, *user.PhoneOTPHash) {
		attempts, err := s.userRepo.IncrementOTPAttempts(ctx, user.ID)
		if err != nil {
			return err
		}
		metrics.ObserveAuth("verify_phone", "mismatch")
		log.Printf("⚠️ Wrong OTP for user %d (%d/%d)", user.ID, attempts, maxAttempts)
		return domain.ErrInvalidOTP
	}

	// 4. Consume; the conditional update loses to a concurrent resend or lockout
	if err := s.userRepo.ConsumePhoneOTP(ctx, user.ID, codeHash, maxAttempts, now); err != nil {
		if errors.Is(err, repositories.ErrStaleWrite) {
			return domain.ErrInvalidOTP
		}
		return err
	}

	metrics.ObserveAuth("verify_phone", "success")
	log.Printf("✅ Phone verified: user %d", user.ID)
	return nil
}

// ResendPhoneVerification issues a new OTP once the cooldown has passed.
// The attempt counter starts over with the new code.
func (s *AuthService) ResendPhoneVerification(ctx context.Context, userID uint) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PhoneVerified {
		return domain.ErrAlreadyVerified
	}

	now := s.now().UTC()
	if wait := cooldownRemaining(user.PhoneOTPSentAt, s.cfg.Verification.PhoneCooldown, now); wait > 0 {
		return domain.ErrResendCooldown.WithRetryAfter(wait)
	}

	return s.issuePhoneOTP(ctx, user)
}

// issuePhoneOTP stores a fresh code for user and texts it
func (s *AuthService) issuePhoneOTP(ctx context.Context, user *models.User) error {
	code, err := password.GenerateOTP(otpLength)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"phone_otp_hash":     password.HashCode(user.Phone, code),
		"phone_otp_expires":  now.Add(s.cfg.Verification.PhoneOTPTTL),
		"phone_otp_sent_at":  now,
		"phone_otp_attempts": 0,
	}); err != nil {
		return err
	}

	s.notifier.SendPhoneOTP(user, code)
	return nil
}
