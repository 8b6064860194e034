// Package jobs dispatches the bounded, fire-and-forget side effects of
// family revocation — an audit log entry and a security-alert email —
// through hibiken/asynq against Redis (see DESIGN.md).
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavente-household/authcore/internal/audit"
	"github.com/lavente-household/authcore/internal/notify"
	"github.com/lavente-household/authcore/internal/storage/db"
)

const TypeSecurityAlert = "security:alert"

// SecurityAlertPayload is the task body enqueued by Dispatcher and consumed
// by the handler registered in NewMux.
type SecurityAlertPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`
}

// Dispatcher implements auth.FamilyRevokedNotifier by enqueueing a task
// instead of doing any I/O inline — the Token Family Manager must never
// block its 401 response on a notification.
type Dispatcher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewDispatcher(client *asynq.Client, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

func (d *Dispatcher) NotifyFamilyRevoked(ctx context.Context, userID uuid.UUID, reason string) {
	payload, err := json.Marshal(SecurityAlertPayload{UserID: userID, Reason: reason})
	if err != nil {
		d.logger.Error("jobs: marshal security alert payload failed", "error", err)
		return
	}
	task := asynq.NewTask(TypeSecurityAlert, payload)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Queue("default")); err != nil {
		d.logger.Error("jobs: enqueue security alert failed", "user_id", userID, "error", err)
	}
}

// Handler processes queued security-alert tasks: looks up the user's
// contact email, records an audit trail entry, and sends the alert.
type Handler struct {
	queries     *db.Queries
	auditLogger audit.AuditService
	sender      notify.SecurityAlertSender
	logger      *slog.Logger
}

func NewHandler(queries *db.Queries, auditLogger audit.AuditService, sender notify.SecurityAlertSender, logger *slog.Logger) *Handler {
	return &Handler{queries: queries, auditLogger: auditLogger, sender: sender, logger: logger}
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload SecurityAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("jobs: unmarshal security alert payload: %w", err)
	}

	h.auditLogger.Log(ctx, string(audit.EventFamilyRevoked), audit.LogParams{
		ActorID:  payload.UserID,
		Metadata: map[string]interface{}{"reason": payload.Reason},
	})

	user, err := h.queries.GetUserByID(ctx, pgtype.UUID{Bytes: payload.UserID, Valid: true})
	if err != nil {
		h.logger.Warn("jobs: user vanished before security alert could be sent", "user_id", payload.UserID, "error", err)
		return nil // don't retry for a user that no longer exists
	}
	if !user.Email.Valid || user.Email.String == "" {
		h.logger.Info("jobs: user has no email on file, skipping security alert", "user_id", payload.UserID)
		return nil
	}

	if err := h.sender.SendSecurityAlert(ctx, user.Email.String, payload.Reason, ""); err != nil {
		return fmt.Errorf("jobs: send security alert: %w", err)
	}
	return nil
}

// NewMux wires the task type to its handler for cmd/worker's asynq.Server.
func NewMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSecurityAlert, h.ProcessTask)
	return mux
}
