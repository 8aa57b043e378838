package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/handlers"
	"github.com/pampermomma/backend/internal/middleware"
	"github.com/pampermomma/backend/internal/services"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Account      *handlers.AccountHandler
	Registry     *handlers.RegistryHandler
	Catalog      *handlers.CatalogHandler
	Sharing      *handlers.SharingHandler
	Payment      *handlers.PaymentHandler
	Withdrawal   *handlers.WithdrawalHandler
	Notification *handlers.NotificationHandler
	Health       *handlers.HealthHandler
}

func Setup(app *fiber.App, cfg *config.Config, authService *services.AuthService, h Handlers) {
	// Protected routes get the auth middleware individually so public routes
	// in the same groups stay open.
	protected := middleware.Authenticated(cfg, authService)

	// General API rate limiter: 60 req/min per IP
	general := middleware.PerIP(60, time.Minute)

	app.Get("/health", h.Health.Check)

	// Auth: 10 req/min per IP
	apiAuth := app.Group("/api-auth", middleware.PerIP(10, time.Minute))
	apiAuth.Post("/basic/login", h.Auth.Login)
	apiAuth.Post("/basic/login/refresh", h.Auth.Refresh)
	apiAuth.Post("/basic/login/verify", h.Auth.Verify)
	apiAuth.Post("/logout", h.Auth.Logout)

	accounts := app.Group("/accounts", general)
	accounts.Post("/signup", middleware.PerIP(10, time.Minute), h.Account.Signup)
	accounts.Get("/me/profile", protected, h.Account.Profile)
	accounts.Patch("/me/update-profile", protected, h.Account.UpdateProfile)
	accounts.Post("/me/change-password", protected, h.Account.ChangePassword)
	accounts.Post("/me/add-phone-number", protected, h.Account.AddPhoneNumber)

	sendOTPLimit := middleware.PerEmail(3, 10*time.Minute)
	verifyOTPLimit := middleware.PerEmail(5, 10*time.Minute)

	reset := accounts.Group("/password-reset")
	reset.Post("/send-otp", sendOTPLimit, h.Account.SendPasswordResetOTP)
	reset.Post("/verify-otp", verifyOTPLimit, h.Account.VerifyPasswordResetOTP)
	reset.Post("/reset-password", h.Account.ResetPassword)
	reset.Post("/reset-password-with-token", h.Account.ResetPasswordWithToken)

	verify := accounts.Group("/verify-email")
	verify.Post("/send-otp", sendOTPLimit, h.Account.SendEmailVerificationOTP)
	verify.Post("/verify-otp", verifyOTPLimit, h.Account.VerifyEmailVerificationOTP)
	verify.Post("/verify-email", h.Account.VerifyEmail)
	verify.Post("/verify-email-with-token", h.Account.VerifyEmailWithToken)

	// Registered ahead of the group so processor retries bypass the general limiter.
	app.Post("/registries/payments/stripe-webhook", h.Payment.Webhook)

	registries := app.Group("/registries", general)

	// Public
	registries.Get("/public/:shareable_id", h.Registry.Public)
	registries.Get("/default", h.Registry.Defaults)
	registries.Get("/services/default", h.Registry.DefaultServices)
	registries.Post("/payments/create-payment-intent", middleware.PerIP(30, time.Minute), h.Payment.CreateIntent)

	// Owned registries
	registries.Get("/r", protected, h.Registry.List)
	registries.Post("/r", protected, h.Registry.Create)
	registries.Post("/r/create-connect-account", protected, h.Withdrawal.ConnectAccount)
	registries.Get("/r/:id", protected, h.Registry.Get)
	registries.Patch("/r/:id", protected, h.Registry.Update)
	registries.Delete("/r/:id", protected, h.Registry.Delete)
	registries.Post("/r/:id/initiate-withdrawal-verification", protected, h.Withdrawal.Initiate)
	registries.Post("/r/:id/withdraw", protected, h.Withdrawal.Withdraw)

	// Services
	registries.Get("/services", protected, h.Catalog.List)
	registries.Post("/services", protected, h.Catalog.Create)
	registries.Get("/services/:id", protected, h.Catalog.Get)
	registries.Patch("/services/:id", protected, h.Catalog.Update)
	registries.Delete("/services/:id", protected, h.Catalog.Delete)
	registries.Get("/services/:id/contributions", protected, h.Catalog.Contributions)
	registries.Get("/contributions", protected, h.Catalog.OwnerContributions)

	// Shared with the caller
	registries.Get("/shared", protected, h.Sharing.List)
	registries.Post("/shared", protected, h.Sharing.Share)
	registries.Get("/shared/:id", protected, h.Sharing.Get)
	registries.Get("/shared/:id/services/:service_id", protected, h.Sharing.GetService)

	notifications := app.Group("/notifications", general, protected)
	notifications.Get("/", h.Notification.List)
	notifications.Post("/:id/read", h.Notification.MarkRead)
}
