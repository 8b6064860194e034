package notify

import (
	"context"
	"log/slog"
)

// SecurityAlertSender is the single outbound-email use case this service
// has: telling a user their token family was revoked due to suspected
// replay. Invitation, verification, and password-reset mail belong to
// onboarding flows this service doesn't own.
type SecurityAlertSender interface {
	SendSecurityAlert(ctx context.Context, to, reason, ip string) error
}

// DevMailer prints emails to stdout (safe for development).
type DevMailer struct {
	Logger *slog.Logger
}

func (m *DevMailer) SendSecurityAlert(ctx context.Context, to, reason, ip string) error {
	m.Logger.Info("EMAIL SENT",
		"to", to,
		"type", "security_alert",
		"reason", reason,
		"ip", ip,
	)
	return nil
}
