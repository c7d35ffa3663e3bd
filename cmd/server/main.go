package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mowmarket/mowmarket-backend/internal/config"
	"github.com/mowmarket/mowmarket-backend/internal/db"
	httpHandlers "github.com/mowmarket/mowmarket-backend/internal/http/handlers"
	httpRouter "github.com/mowmarket/mowmarket-backend/internal/http/router"
	"github.com/mowmarket/mowmarket-backend/internal/logger"
	"github.com/mowmarket/mowmarket-backend/internal/mail"
	"github.com/mowmarket/mowmarket-backend/internal/metrics"
	"github.com/mowmarket/mowmarket-backend/internal/payments"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
	"github.com/mowmarket/mowmarket-backend/internal/service"
	"github.com/mowmarket/mowmarket-backend/internal/storage"
	"github.com/mowmarket/mowmarket-backend/internal/worker"
	"github.com/mowmarket/mowmarket-backend/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: cannot load configuration: %v", err)
	}

	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	metrics.Register()

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: database connection failed: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	photoStorage, err := storage.NewPhotoStorage(cfg.MediaStoragePath, cfg.MaxUploadSizeMB, cfg.SignedURLSecret, cfg.SignedURLTTL)
	if err != nil {
		log.Fatalf("main: photo storage init failed: %v", err)
	}

	// Repositories.
	userRepo := repository.NewUserRepository(dbConn)
	bookingRepo := repository.NewBookingRepository(dbConn)
	contractorRepo := repository.NewContractorRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	photoRepo := repository.NewPhotoRepository(dbConn)
	pricingRepo := repository.NewPricingRepository(dbConn)

	// Outbound adapters.
	processor := payments.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey)
	mailer := mail.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, userRepo)

	hub := ws.NewHub()
	go hub.Run(ctx)

	// Services.
	dispatcher := service.NewNotificationService(notificationRepo, userRepo, hub, mailer)
	pricing := service.NewPricingService()
	payouts := service.NewPayoutService(bookingRepo, contractorRepo, processor, dispatcher, cfg.ContractorShareRate, cfg.ReviewWindow)
	bookings := service.NewBookingService(bookingRepo, pricingRepo, pricing, payouts, dispatcher, cfg.PriceChangeThreshold)
	acceptance := service.NewAcceptanceService(bookingRepo, contractorRepo, userRepo, processor, dispatcher,
		cfg.ProbationMaxActiveJobs, cfg.ProbationJobValueCeiling, cfg.StandardMaxActiveJobs)
	completions := service.NewCompletionService(bookingRepo, photoRepo, dispatcher, cfg.MinEvidencePhotos)
	disputes := service.NewDisputeService(disputeRepo, bookingRepo, contractorRepo, processor, dispatcher, cfg.ContractorShareRate)
	quality := service.NewQualityService(contractorRepo, dispatcher)

	// Background jobs.
	scheduler := worker.NewScheduler(nil)
	scheduler.Add("auto_release_payouts", cfg.SweepInterval, func(ctx context.Context, now time.Time) error {
		_, err := payouts.AutoRelease(ctx, now)
		return err
	})
	scheduler.Add("stale_price_approvals", cfg.SweepInterval, func(ctx context.Context, now time.Time) error {
		_, err := bookings.ExpireStalePriceChanges(ctx, now.Add(-cfg.PriceApprovalWindow))
		return err
	})
	scheduler.Add("quality_control", cfg.QualitySweepInterval, func(ctx context.Context, now time.Time) error {
		return quality.Run(ctx, now)
	})
	scheduler.Start(ctx)

	// Handlers and router.
	bookingHandler := httpHandlers.NewBookingHandler(bookings, photoRepo)
	contractorHandler := httpHandlers.NewContractorHandler(acceptance, completions, bookings, contractorRepo)
	disputeHandler := httpHandlers.NewDisputeHandler(disputes)
	adminHandler := httpHandlers.NewAdminHandler(pricingRepo, bookings)
	notificationHandler := httpHandlers.NewNotificationHandler(dispatcher)
	mediaHandler := httpHandlers.NewMediaHandler(photoRepo, bookingRepo, photoStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg,
		bookingHandler, contractorHandler, disputeHandler, adminHandler,
		notificationHandler, mediaHandler, wsHandler, healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("http shutdown: %v", err)
	}

	scheduler.Wait()
}

func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		log.Printf("main: database close: %v", err)
	}
}
