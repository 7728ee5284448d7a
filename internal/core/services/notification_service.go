package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"

	"chamahub/internal/adapters/persistence/models"
	"chamahub/internal/config"
	"chamahub/internal/pkg/retry"
)

// NotificationService sends email over SMTP and SMS over the provider's HTTP API
type NotificationService struct {
	cfg        config.NotifyConfig
	baseURL    string
	httpClient *http.Client
	retry      *retry.Config
}

// NewNotificationService creates a new notification service
func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{
		cfg:        cfg.Notify,
		baseURL:    strings.TrimRight(cfg.AppBaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Notify.Timeout},
		retry:      retry.DefaultConfig(),
	}
}

// EmailEnabled checks if SMTP is configured
func (s *NotificationService) EmailEnabled() bool {
	return s.cfg.SMTPHost != ""
}

// SMSEnabled checks if the SMS provider is configured
func (s *NotificationService) SMSEnabled() bool {
	return s.cfg.SMSAPIURL != ""
}

// SendEmailVerification emails the verification link
func (s *NotificationService) SendEmailVerification(user *models.User, token string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)
	body := fmt.Sprintf("Hello %s,\r\n\r\nConfirm your ChamaHub email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n",
		user.FirstName, link)
	s.dispatch("verification email", func(ctx context.Context) error {
		return s.sendEmail(ctx, user.Email, "Verify your ChamaHub email", body)
	})
}

// SendPhoneOTP texts the phone verification code
func (s *NotificationService) SendPhoneOTP(user *models.User, code string) {
	message := fmt.Sprintf("Your ChamaHub verification code is %s. It expires in 10 minutes.", code)
	s.dispatch("phone OTP", func(ctx context.Context) error {
		return s.sendSMS(ctx, user.Phone, message)
	})
}

// SendPasswordReset emails the password reset link
func (s *NotificationService) SendPasswordReset(user *models.User, token string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)
	body := fmt.Sprintf("Hello %s,\r\n\r\nA password reset was requested for your ChamaHub account. Open the link below to choose a new password:\r\n\r\n%s\r\n\r\nIf you did not ask for this, ignore this email.\r\n",
		user.FirstName, link)
	s.dispatch("password reset email", func(ctx context.Context) error {
		return s.sendEmail(ctx, user.Email, "Reset your ChamaHub password", body)
	})
}

// dispatch runs send in the background with its own bounded timeout
func (s *NotificationService) dispatch(what string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if err := retry.Do(ctx, s.retry, what, send); err != nil {
			log.Printf("❌ Failed to send %s: %v", what, err)
			return
		}
		log.Printf("📨 Sent %s", what)
	}()
}

func (s *NotificationService) sendEmail(ctx context.Context, to, subject, body string) error {
	if !s.EmailEnabled() {
		log.Printf("ℹ️ SMTP not configured, skipping email to %s", to)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.SMTPFrom,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, envelopeAddress(s.cfg.SMTPFrom), []string{to}, []byte(msg))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// smsRequest is the provider payload
type smsRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id"`
}

func (s *NotificationService) sendSMS(ctx context.Context, to, message string) error {
	if !s.SMSEnabled() {
		log.Printf("ℹ️ SMS provider not configured, skipping SMS to %s", to)
		return nil
	}

	payload, err := json.Marshal(smsRequest{To: to, Message: message, SenderID: s.cfg.SMSSenderID})
	if err != nil {
		return &retry.Permanent{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SMSAPIURL, bytes.NewReader(payload))
	if err != nil {
		return &retry.Permanent{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.SMSAPIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("sms provider returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return &retry.Permanent{Err: fmt.Errorf("sms provider rejected request: %d", resp.StatusCode)}
	}
	return nil
}

// envelopeAddress extracts the bare address from "Name <addr>"
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}
