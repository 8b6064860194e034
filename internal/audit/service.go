package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavente-household/authcore/internal/storage/db"
)

// AuditService defines the interface for recording security events.
type AuditService interface {
	Log(ctx context.Context, action string, params LogParams)
}

// LogParams encapsulates optional fields for an audit log. HouseholdID is
// household-scoped rather than tenant-scoped — most Token Family Manager
// events have no household at all (a login touches no household), so it
// is left zero-value and stored as NULL.
type LogParams struct {
	ActorID     uuid.UUID
	HouseholdID uuid.UUID
	Metadata    map[string]interface{}
}

// DBLogger implements AuditService using the PostgreSQL database.
type DBLogger struct {
	queries *db.Queries
	logger  *slog.Logger
}

func NewDBLogger(queries *db.Queries, logger *slog.Logger) *DBLogger {
	return &DBLogger{
		queries: queries,
		logger:  logger,
	}
}

// Log records an event. Executes synchronously — at the volume this
// service's events occur (login, refresh, logout), a queue would be
// over-engineering; SweepExpired and the asynq-backed notifier already
// absorb the operations that would actually benefit from one.
func (s *DBLogger) Log(ctx context.Context, action string, params LogParams) {
	metadataBytes, err := json.Marshal(params.Metadata)
	if err != nil {
		s.logger.Error("audit_metadata_marshal_failed", "error", err)
		metadataBytes = []byte("{}")
	}

	toUUID := func(u uuid.UUID) pgtype.UUID {
		return pgtype.UUID{Bytes: u, Valid: u != uuid.Nil}
	}

	err = s.queries.CreateAuditLog(ctx, db.CreateAuditLogParams{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		ActorID:     toUUID(params.ActorID),
		HouseholdID: toUUID(params.HouseholdID),
		Action:      action,
		Metadata:    metadataBytes,
	})

	if err != nil {
		s.logger.Error("audit_db_insert_failed",
			"action", action,
			"error", err,
			"actor", params.ActorID,
		)
	}
}
