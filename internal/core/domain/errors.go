package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind groups errors by how they surface to callers
type ErrorKind string

const (
	KindInvalidInput    ErrorKind = "invalid-input"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not-found"
	KindConflict        ErrorKind = "conflict"
	KindRateLimited     ErrorKind = "rate-limited"
	KindInternal        ErrorKind = "internal"
)

// AppError is a classified error with a stable code.
// Two AppErrors match under errors.Is when their codes are equal.
type AppError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	Fields     map[string]string
	RetryAfter time.Duration
}

// NewError creates a new AppError
func NewError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on code so that detailed copies still match their sentinel
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy with a different message
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// WithRetryAfter returns a copy carrying an advisory retry window
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	cp := *e
	cp.RetryAfter = d
	return &cp
}

// InvalidFields builds an invalid-input error naming the offending fields
func InvalidFields(fields map[string]string) *AppError {
	return &AppError{
		Kind:    KindInvalidInput,
		Code:    ErrInvalidInput.Code,
		Message: "validation failed",
		Fields:  fields,
	}
}

// AsAppError extracts an AppError from err
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Generic errors
var (
	ErrInvalidInput    = NewError(KindInvalidInput, "INVALID_INPUT", "invalid input")
	ErrUnauthenticated = NewError(KindUnauthenticated, "UNAUTHENTICATED", "authentication required")
	ErrForbidden       = NewError(KindForbidden, "FORBIDDEN", "you don't have permission to perform this action")
	ErrNotFound        = NewError(KindNotFound, "NOT_FOUND", "resource not found")
	ErrRateLimited     = NewError(KindRateLimited, "RATE_LIMITED", "too many requests, please try again later")
	ErrInternal        = NewError(KindInternal, "INTERNAL", "internal server error")
)

// Auth errors
var (
	ErrDuplicateIdentity  = NewError(KindConflict, "DUPLICATE_IDENTITY", "email or phone number already registered")
	ErrInvalidCredentials = NewError(KindUnauthenticated, "INVALID_CREDENTIALS", "invalid email or password")
	ErrEmailNotVerified   = NewError(KindForbidden, "EMAIL_NOT_VERIFIED", "please verify your email before logging in")
	ErrInvalidRefresh     = NewError(KindUnauthenticated, "INVALID_REFRESH", "invalid or expired refresh token")
	ErrInvalidToken       = NewError(KindUnauthenticated, "INVALID_TOKEN", "invalid access token")
	ErrTokenExpired       = NewError(KindUnauthenticated, "TOKEN_EXPIRED", "access token expired")
	ErrUserInactive       = NewError(KindForbidden, "USER_INACTIVE", "user account is inactive")
	ErrUserNotFound       = NewError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrInvalidVerifyToken = NewError(KindInvalidInput, "INVALID_VERIFICATION_TOKEN", "verification token is invalid or expired")
	ErrInvalidOTP         = NewError(KindInvalidInput, "INVALID_OTP", "verification code is invalid or expired")
	ErrTooManyAttempts    = NewError(KindRateLimited, "TOO_MANY_ATTEMPTS", "too many incorrect attempts, request a new code")
	ErrAlreadyVerified    = NewError(KindInvalidInput, "ALREADY_VERIFIED", "already verified")
	ErrResendCooldown     = NewError(KindRateLimited, "RESEND_COOLDOWN", "please wait before requesting another code")
	ErrInvalidResetToken  = NewError(KindInvalidInput, "INVALID_RESET_TOKEN", "reset token is invalid or expired")
	ErrWrongPassword      = NewError(KindInvalidInput, "WRONG_PASSWORD", "current password is incorrect")
)

// Chama errors
var (
	ErrChamaNotFound      = NewError(KindNotFound, "CHAMA_NOT_FOUND", "chama not found")
	ErrInvalidInviteCode  = NewError(KindNotFound, "INVALID_INVITE_CODE", "invite code not found")
	ErrAlreadyMember      = NewError(KindConflict, "ALREADY_MEMBER", "already a member of this chama")
	ErrMembershipNotFound = NewError(KindNotFound, "MEMBERSHIP_NOT_FOUND", "membership not found")
	ErrInsufficientFunds  = NewError(KindConflict, "INSUFFICIENT_FUNDS", "chama fund is insufficient for this transaction")
)

// ROSCA errors
var (
	ErrCycleNotFound          = NewError(KindNotFound, "CYCLE_NOT_FOUND", "cycle not found")
	ErrNotEnoughMembers       = NewError(KindInvalidInput, "NOT_ENOUGH_MEMBERS", "a cycle needs at least 2 active members")
	ErrInvalidManualRoster    = NewError(KindInvalidInput, "INVALID_MANUAL_ROSTER", "manual roster must list every active member exactly once")
	ErrCycleNotActive         = NewError(KindConflict, "CYCLE_NOT_ACTIVE", "cycle is not active")
	ErrCycleNotPending        = NewError(KindConflict, "CYCLE_NOT_PENDING", "cycle is not pending")
	ErrCycleNotCancellable    = NewError(KindConflict, "CYCLE_NOT_CANCELLABLE", "cycle has contributions or payouts and cannot be cancelled")
	ErrCycleClosed            = NewError(KindConflict, "CYCLE_CLOSED", "cycle is completed or cancelled")
	ErrInvalidPosition        = NewError(KindInvalidInput, "INVALID_POSITION_OR_ALREADY_PAID", "invalid position or already paid")
	ErrNotAllMembersPaid      = NewError(KindInvalidInput, "NOT_ALL_MEMBERS_PAID", "not all members have contributed for this position")
	ErrNotInRoster            = NewError(KindForbidden, "NOT_IN_ROSTER", "you are not part of this cycle's roster")
	ErrSwapTargetInvalid      = NewError(KindInvalidInput, "INVALID_SWAP_TARGET", "target position is invalid")
	ErrSwapEntryPaid          = NewError(KindInvalidInput, "SWAP_ENTRY_PAID", "both positions must still be pending")
	ErrSwapExists             = NewError(KindConflict, "SWAP_EXISTS", "a pending swap request already exists for these positions")
	ErrSwapNotFound           = NewError(KindNotFound, "SWAP_NOT_FOUND", "swap request not found")
	ErrSwapNotPending         = NewError(KindConflict, "SWAP_NOT_PENDING", "swap request is no longer pending")
	ErrSwapExpired            = NewError(KindConflict, "SWAP_EXPIRED", "swap request expired because a position was paid")
	ErrDuplicatePayoutRef     = NewError(KindConflict, "DUPLICATE_PAYOUT", "payout already recorded for this member")
	ErrInvalidSwapAction      = NewError(KindInvalidInput, "INVALID_SWAP_ACTION", "action must be APPROVED or REJECTED")
	ErrContributorNotInRoster = NewError(KindInvalidInput, "CONTRIBUTOR_NOT_IN_ROSTER", "contributor is not on this cycle's roster")
)

// NotAllMembersPaid cites the position whose eligibility failed
func NotAllMembersPaid(position, paid, required int64) *AppError {
	return ErrNotAllMembersPaid.WithMessage(
		"not all members have contributed for position %d (%d of %d eligible)", position, paid, required)
}
