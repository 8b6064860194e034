package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lavente-household/authcore/internal/mailer"
)

// ProductionMailer sends security-alert mail synchronously through a
// mailer.EmailProvider. It is invoked from the asynq task handler in
// internal/jobs, which already supplies the queue/retry semantics — this
// type itself enqueues nothing.
type ProductionMailer struct {
	Provider mailer.EmailProvider
	Logger   *slog.Logger
}

func NewProductionMailer(provider mailer.EmailProvider, logger *slog.Logger) *ProductionMailer {
	return &ProductionMailer{Provider: provider, Logger: logger}
}

func (m *ProductionMailer) SendSecurityAlert(ctx context.Context, to, reason, ip string) error {
	payload := mailer.EmailPayload{
		To:       to,
		Template: mailer.TemplateSecurityAlert,
		Data: map[string]any{
			"reason": reason,
			"ip":     ip,
		},
		RequestID: uuid.New().String(),
	}

	if _, err := m.Provider.Send(ctx, payload); err != nil {
		m.Logger.Error("security alert email failed",
			"to_hash", mailer.HashRecipient(to),
			"error", err,
		)
		return fmt.Errorf("send security alert: %w", err)
	}

	m.Logger.Info("security alert email sent", "to_hash", mailer.HashRecipient(to))
	return nil
}
