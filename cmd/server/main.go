package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/database"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/events"
	"github.com/pampermomma/backend/internal/handlers"
	"github.com/pampermomma/backend/internal/logging"
	"github.com/pampermomma/backend/internal/mailer"
	"github.com/pampermomma/backend/internal/middleware"
	"github.com/pampermomma/backend/internal/payments"
	"github.com/pampermomma/backend/internal/routes"
	"github.com/pampermomma/backend/internal/services"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.AttachDB(database.DB)

	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cfg.LogRetentionDays, cleanupDone)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Env,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Federated sign-in
	var verifier services.IdentityVerifier
	if cfg.FederatedEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		oidcVerifier, err := services.NewOIDCVerifier(ctx, cfg.FederatedIssuerURL, cfg.FederatedClientID)
		cancel()
		if err != nil {
			slog.Error("federated sign-in unavailable", "issuer", cfg.FederatedIssuerURL, "error", err)
			os.Exit(1)
		}
		verifier = oidcVerifier
	}

	// Notification fan-out
	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			slog.Error("nats connection failed", "error", err)
			os.Exit(1)
		}
		publisher = natsPublisher
	}

	// Email
	var transport mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		transport = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
	}
	emails, err := mailer.NewDispatcher(transport, cfg.OTPTTL())
	if err != nil {
		slog.Error("email templates failed to load", "error", err)
		os.Exit(1)
	}

	gateway := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// Services
	authService := services.NewAuthService(database.DB, cfg, verifier)
	otpService := services.NewOTPService(database.DB, cfg)
	accountService := services.NewAccountService(database.DB, cfg, otpService, authService, emails)
	registryService := services.NewRegistryService(database.DB, gateway)
	catalogService := services.NewCatalogService(database.DB)
	sharingService := services.NewSharingService(database.DB)
	notificationService := services.NewNotificationService(database.DB, publisher)
	paymentService := services.NewPaymentService(database.DB, gateway, notificationService, emails)
	withdrawalService := services.NewWithdrawalService(database.DB, cfg, otpService, gateway, emails)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	// Routes
	routes.Setup(app, cfg, authService, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Account:      handlers.NewAccountHandler(accountService),
		Registry:     handlers.NewRegistryHandler(registryService),
		Catalog:      handlers.NewCatalogHandler(catalogService),
		Sharing:      handlers.NewSharingHandler(sharingService),
		Payment:      handlers.NewPaymentHandler(paymentService),
		Withdrawal:   handlers.NewWithdrawalHandler(withdrawalService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Health:       handlers.NewHealthHandler(),
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	publisher.Close()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(dto.ErrorResponse{
		Error:   true,
		Message: message,
	})
}
