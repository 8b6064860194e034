package api

import (
	"log/slog"

	"github.com/lavente-household/authcore/internal/audit"
	"github.com/lavente-household/authcore/internal/auth"
	"github.com/lavente-household/authcore/internal/authz"
	customMiddleware "github.com/lavente-household/authcore/internal/api/middleware"
	"github.com/lavente-household/authcore/internal/crypto"
	"github.com/lavente-household/authcore/internal/household"
	"github.com/lavente-household/authcore/internal/metrics"
	"github.com/lavente-household/authcore/internal/storage/db"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewServerParams bundles the dependencies NewServer wires into the router,
// built once in cmd/api/main.go.
type NewServerParams struct {
	Pool              *pgxpool.Pool
	Queries           *db.Queries
	Codec             *auth.Codec
	TFM               *auth.Manager
	Resolver          *auth.PrincipalResolver
	Mediator          *authz.Mediator
	Households        *household.Registry
	MFA               *auth.MFAService
	Secrets           *crypto.Box
	Audit             audit.AuditService
	OnboardingEnabled bool
}

// NewServer builds the chi router and every middleware layer: request ID,
// real IP, Sentry, logging, recovery, rate limiting, then auth/authz
// factories applied per route group. There is no tenant-context RLS
// middleware here — household scoping is enforced by the Mediator's
// explicit membership lookup instead of a session-level Postgres variable.
func NewServer(p NewServerParams) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(customMiddleware.RequestLogger)
	r.Use(customMiddleware.PanicRecovery)

	limiter := customMiddleware.NewIPRateLimiter(5, 10)
	r.Use(limiter.Middleware)

	requireAuth := customMiddleware.RequireAuth(p.TFM, p.Resolver)

	s := &Server{
		Router:            r,
		DB:                p.Queries,
		Pool:              p.Pool,
		Logger:            slog.Default(),
		TFM:               p.TFM,
		Codec:             p.Codec,
		Resolver:          p.Resolver,
		Mediator:          p.Mediator,
		Households:        p.Households,
		MFA:               p.MFA,
		Secrets:           p.Secrets,
		Audit:             p.Audit,
		OnboardingEnabled: p.OnboardingEnabled,
	}

	r.Get("/health", s.HealthHandler())
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/.well-known/jwks.json", s.JWKSHandler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth", s.Login())
		r.Post("/auth/fresh-login", s.FreshLogin())
		r.Get("/auth/refresh", s.Refresh())
		r.Post("/auth/logout", s.Logout())
		r.Post("/auth/mfa/verify", s.VerifyMFA())
		r.Post("/auth/mfa/backup", s.VerifyBackupCode())

		r.Get("/onboarding", s.OnboardingStatus())
		r.Post("/onboarding", s.Onboard())

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/sessions", s.ListSessions())
			r.Delete("/auth/sessions/{jti}", s.RevokeSession())

			r.Post("/auth/mfa/setup", s.SetupMFA())
			r.With(customMiddleware.RequireFresh).Post("/auth/mfa/activate", s.ActivateMFA())

			r.Route("/household/{household_id}", func(r chi.Router) {
				r.With(customMiddleware.RequireHousehold(p.Mediator, authz.Member)).
					Get("/shoppinglist", s.ShoppingListStub())
				r.With(customMiddleware.RequireHousehold(p.Mediator, authz.Admin)).
					Put("/", s.UpdateHouseholdStub())
			})
		})
	})

	return s
}
