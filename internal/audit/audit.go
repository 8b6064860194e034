package audit

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit log, trimmed to the
// security events of the Token Family Manager. Only EventFamilyRevoked is
// written, by the family-revocation job in internal/jobs.
type EventType string

const (
	EventLoginSuccess    EventType = "LOGIN_SUCCESS"
	EventLoginFailed     EventType = "LOGIN_FAILED"
	EventRefresh         EventType = "TOKEN_REFRESHED"
	EventReplayDetected  EventType = "REPLAY_DETECTED"
	EventFamilyRevoked   EventType = "FAMILY_REVOKED"
	EventLogout          EventType = "LOGOUT"
	EventLongLivedIssued EventType = "LONG_LIVED_TOKEN_ISSUED"
	EventMFAEnabled      EventType = "MFA_ENABLED"
)

// AuditLogger defines the contract for immutable logging.
type AuditLogger interface {
	Log(ctx context.Context, actorID uuid.UUID, action EventType, resource string, metadata map[string]string)
}

// JSONAuditLogger writes structured logs to stdout, but with a specific
// "audit" key that can be filtered by log aggregators to go to a separate
// index, independent of the main application log stream.
type JSONAuditLogger struct {
	logger *slog.Logger
	mu     sync.Mutex
}

func NewJSONAuditLogger() *JSONAuditLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &JSONAuditLogger{
		logger: slog.New(handler),
	}
}

func (l *JSONAuditLogger) Log(ctx context.Context, actorID uuid.UUID, action EventType, resource string, metadata map[string]string) {
	fields := []interface{}{
		slog.String("log_type", "AUDIT_TRAIL"),
		slog.String("actor_id", actorID.String()),
		slog.String("action", string(action)),
		slog.String("resource", resource),
		slog.Time("timestamp_utc", time.Now().UTC()),
	}

	for k, v := range metadata {
		fields = append(fields, slog.String("meta_"+k, v))
	}

	l.logger.InfoContext(ctx, "audit_event", fields...)
}

// MockAuditLogger discards everything; used in tests that don't care about
// the audit trail.
type MockAuditLogger struct{}

func (m *MockAuditLogger) Log(ctx context.Context, actorID uuid.UUID, action EventType, resource string, metadata map[string]string) {
}
