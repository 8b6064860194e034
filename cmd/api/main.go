package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lavente-household/authcore/internal/api"
	"github.com/lavente-household/authcore/internal/audit"
	"github.com/lavente-household/authcore/internal/auth"
	"github.com/lavente-household/authcore/internal/authz"
	"github.com/lavente-household/authcore/internal/config"
	"github.com/lavente-household/authcore/internal/crypto"
	"github.com/lavente-household/authcore/internal/household"
	"github.com/lavente-household/authcore/internal/jobs"
	"github.com/lavente-household/authcore/internal/storage"
	"github.com/lavente-household/authcore/internal/storage/db"
	"github.com/lavente-household/authcore/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.Setup(cfg.AppEnv)
	log.Info("application_startup", "env", cfg.AppEnv)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.AppEnv,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	ctx := context.Background()
	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	queries := db.New(pool)

	if cfg.JWTPrivateKeyPEM == "" {
		if cfg.AppEnv == "production" {
			log.Error("jwt_private_key_missing", "details", "fatal_in_production")
			os.Exit(1)
		}
		log.Warn("jwt_private_key_missing", "details", "dev_mode_unsafe")
	}
	signingKey, err := auth.ParsePrivateKeyPEM(cfg.JWTPrivateKeyPEM)
	if err != nil {
		log.Error("jwt_private_key_invalid", "error", err)
		os.Exit(1)
	}
	codec := auth.NewCodec(signingKey, cfg.AccessTTL, cfg.RefreshTTL)
	hasher := auth.NewBcryptHasher()
	mfaService := auth.NewMFAService("LaventeHousehold")

	secretKey, err := crypto.KeyFromHex(cfg.SecretEncryptionKeyHex)
	if err != nil {
		log.Error("secret_encryption_key_invalid", "error", err)
		os.Exit(1)
	}
	secretBox, err := crypto.NewBox(secretKey)
	if err != nil {
		log.Error("secret_box_init_failed", "error", err)
		os.Exit(1)
	}

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("redis_url_invalid", "error", err)
		os.Exit(1)
	}
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOpt.Addr,
		Password: redisOpt.Password,
		DB:       redisOpt.DB,
	})
	defer asynqClient.Close()

	dispatcher := jobs.NewDispatcher(asynqClient, log)

	tfm := auth.NewManager(pool, queries, codec, hasher, dispatcher)
	resolver := auth.NewPrincipalResolver(queries)
	registry := household.NewRegistry(queries)
	mediator := authz.NewMediator(registry)
	auditLogger := audit.NewDBLogger(queries, log)

	server := api.NewServer(api.NewServerParams{
		Pool:              pool,
		Queries:           queries,
		Codec:             codec,
		TFM:               tfm,
		Resolver:          resolver,
		Mediator:          mediator,
		Households:        registry,
		MFA:               mfaService,
		Secrets:           secretBox,
		Audit:             auditLogger,
		OnboardingEnabled: cfg.OnboardingEnabled,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		pool.Close()
		log.Info("server_shutdown_complete")
	}
}
