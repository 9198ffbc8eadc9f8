package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"

	"github.com/eventify/eventify-api/internal/config"
	"github.com/eventify/eventify-api/internal/domain/coupon"
	"github.com/eventify/eventify-api/internal/domain/points"
	"github.com/eventify/eventify-api/internal/domain/transaction"
	"github.com/eventify/eventify-api/internal/jobs"
	"github.com/eventify/eventify-api/internal/pkg/database"
	"github.com/eventify/eventify-api/internal/pkg/email"
	"github.com/eventify/eventify-api/internal/pkg/joblock"
	"github.com/eventify/eventify-api/internal/pkg/jwt"
	"github.com/eventify/eventify-api/internal/pkg/logger"
	"github.com/eventify/eventify-api/internal/pkg/realtime"
	"github.com/eventify/eventify-api/internal/pkg/storage"
	"github.com/eventify/eventify-api/migrations"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Eventify API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := migrations.Apply(ctx, db)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Outbound channels ----------
	emailService := email.NewService(email.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFromAddr,
		FromName:  cfg.EmailFromName,
	})
	defer emailService.Close()

	hub := realtime.NewHub(redis)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Services ----------
	transactionService := transaction.NewService(transaction.NewPostgresStore(db))
	transactionService.SetWindows(cfg.PaymentWindow, cfg.ConfirmationWindow)
	transactionService.SetNotifiers(emailService, hub, cfg.FrontendURL)

	if cfg.R2AccessKeyID != "" {
		proofs, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage")
		}
		transactionService.SetProofStore(proofs, cfg.ProofUploadTTL)
	} else {
		log.Warn().Msg("R2 not configured, proof upload URLs disabled")
	}

	pointsService := points.NewService(points.NewPostgresStore(db))
	couponService := coupon.NewService(coupon.NewRepository(db))

	// ---------- Background jobs ----------
	var scheduler *jobs.Scheduler
	if cfg.JobsEnabled {
		var locker joblock.Locker = joblock.NewLocal()
		if cfg.UsesRedisLock() {
			if redis == nil {
				log.Fatal().Msg("JOB_LOCK_BACKEND=redis requires REDIS_URL")
			}
			locker = joblock.NewRedis(redis)
		}

		scheduler = jobs.NewScheduler(locker, cfg.JobTimeout)
		jobs.RegisterSweeps(scheduler, cfg, transactionService, pointsService)
		scheduler.Start()
	}

	// ---------- HTTP ----------
	router := newRouter(routes{
		cfg:          cfg,
		jwt:          jwtService,
		transactions: transaction.NewHandler(transactionService),
		coupons:      coupon.NewHandler(couponService),
		points:       points.NewHandler(pointsService),
		ws:           realtime.NewHandler(hub, jwtService, cfg.AllowedOrigins),
		ready:        db.PingContext,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	transactionService.Wait()

	log.Info().Msg("Server exited properly")
}
