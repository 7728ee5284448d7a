package services

import (
	"context"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/core/domain"
)

// Note: AuthService implementation is in auth_service.go (phone OTP flows in otp_service.go)
// Note: RoscaService implementation is in rosca_service.go (roster ordering in roster.go)

// EventPublisher pushes domain events to connected clients.
// Delivery is best effort; implementations never block on slow clients.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// Notifier dispatches verification messages outside the request path.
// Every method returns immediately; failures are logged by the implementation.
type Notifier interface {
	SendEmailVerification(user *models.User, token string)
	SendPhoneOTP(user *models.User, code string)
	SendPasswordReset(user *models.User, token string)
}

// ClientInfo identifies the device a session is bound to
type ClientInfo struct {
	UserAgent string
	IP        string
}
