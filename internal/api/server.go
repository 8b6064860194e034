package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavente-household/authcore/internal/audit"
	"github.com/lavente-household/authcore/internal/auth"
	"github.com/lavente-household/authcore/internal/authz"
	"github.com/lavente-household/authcore/internal/crypto"
	"github.com/lavente-household/authcore/internal/household"
	"github.com/lavente-household/authcore/internal/storage/db"
)

// Server bundles every dependency the HTTP handlers need. Built once in
// cmd/api/main.go and threaded into NewServer.
type Server struct {
	Router *chi.Mux
	DB     *db.Queries
	Pool   *pgxpool.Pool
	Logger *slog.Logger

	TFM        *auth.Manager
	Codec      *auth.Codec
	Resolver   *auth.PrincipalResolver
	Mediator   *authz.Mediator
	Households *household.Registry
	MFA        *auth.MFAService
	Secrets    *crypto.Box
	Audit      audit.AuditService

	OnboardingEnabled bool
}
