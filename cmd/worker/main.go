// Package main runs the background job worker: a bounded-concurrency asynq
// consumer for the fire-and-forget side effects of family revocation
// (audit log entry + security-alert email).
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/lavente-household/authcore/internal/audit"
	"github.com/lavente-household/authcore/internal/config"
	"github.com/lavente-household/authcore/internal/crypto"
	"github.com/lavente-household/authcore/internal/jobs"
	"github.com/lavente-household/authcore/internal/mailer"
	"github.com/lavente-household/authcore/internal/notify"
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
	log.Info("job_worker_starting")

	pool, err := storage.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	queries := db.New(pool)
	auditLogger := audit.NewDBLogger(queries, log)

	var sender notify.SecurityAlertSender
	if cfg.SMTPHost == "" {
		log.Warn("smtp_host_missing", "details", "falling back to dev mailer")
		sender = &notify.DevMailer{Logger: log}
	} else {
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

		provider, err := mailer.NewSMTPProvider(mailer.SMTPConfig{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			User:          cfg.SMTPUser,
			PassEncrypted: cfg.SMTPPassEncrypted,
			From:          cfg.SMTPFrom,
			TLSMode:       cfg.SMTPTLSMode,
		}, secretBox)
		if err != nil {
			log.Error("smtp_provider_init_failed", "error", err)
			os.Exit(1)
		}
		sender = notify.NewProductionMailer(provider, log)
	}

	handler := jobs.NewHandler(queries, auditLogger, sender, log)

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("redis_url_invalid", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisOpt.Addr, Password: redisOpt.Password, DB: redisOpt.DB},
		asynq.Config{Concurrency: 10},
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(jobs.NewMux(handler))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("job_worker_failed", "error", err)
		os.Exit(1)
	case sig := <-quit:
		log.Info("job_worker_shutting_down", "signal", sig)
		srv.Shutdown()
	}
}
