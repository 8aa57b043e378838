package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/database/dbtest"
	"github.com/pampermomma/backend/internal/events/eventstest"
	"github.com/pampermomma/backend/internal/handlers"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/payments/paymentstest"
	"github.com/pampermomma/backend/internal/routes"
	"github.com/pampermomma/backend/internal/services"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const password = "correct-horse-battery"

type nopEmails struct{ codes []string }

func (m *nopEmails) PasswordResetOTP(_ context.Context, _, code, _ string) error {
	m.codes = append(m.codes, code)
	return nil
}

func (m *nopEmails) EmailVerificationOTP(_ context.Context, _, code, _ string) error {
	m.codes = append(m.codes, code)
	return nil
}

func (m *nopEmails) WithdrawalOTP(_ context.Context, _, code string, _ decimal.Decimal, _ string) error {
	m.codes = append(m.codes, code)
	return nil
}

func (m *nopEmails) ContributionReceived(context.Context, string, string, string, string, decimal.Decimal) error {
	return nil
}

type testApp struct {
	app     *fiber.App
	db      *gorm.DB
	gateway *paymentstest.Gateway
	events  *eventstest.Recorder
	emails  *nopEmails
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := dbtest.New(t)
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  "15m",
		JWTRefreshExpiry: "168h",
		BcryptCost:       bcrypt.MinCost,
		OTPTTLSeconds:    600,
		FrontendURL:      "https://app.example.com",
	}
	gateway := paymentstest.New()
	recorder := &eventstest.Recorder{}
	emails := &nopEmails{}

	authService := services.NewAuthService(db, cfg, nil)
	otpService := services.NewOTPService(db, cfg)
	notificationService := services.NewNotificationService(db, recorder)

	app := fiber.New()
	routes.Setup(app, cfg, authService, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Account:      handlers.NewAccountHandler(services.NewAccountService(db, cfg, otpService, authService, emails)),
		Registry:     handlers.NewRegistryHandler(services.NewRegistryService(db, gateway)),
		Catalog:      handlers.NewCatalogHandler(services.NewCatalogService(db)),
		Sharing:      handlers.NewSharingHandler(services.NewSharingService(db)),
		Payment:      handlers.NewPaymentHandler(services.NewPaymentService(db, gateway, notificationService, emails)),
		Withdrawal:   handlers.NewWithdrawalHandler(services.NewWithdrawalService(db, cfg, otpService, gateway, emails)),
		Notification: handlers.NewNotificationHandler(notificationService),
		Health:       handlers.NewHealthHandler(),
	})

	return &testApp{app: app, db: db, gateway: gateway, events: recorder, emails: emails}
}

func (a *testApp) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{Email: email, Password: string(hash), FirstName: "Jo", LastName: "Lee", IsActive: true}
	if err := a.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

// login returns an access token for email.
func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	var out struct {
		Access string `json:"access"`
	}
	res := a.do(t, http.MethodPost, "/api-auth/basic/login", "", map[string]string{"email": email, "password": password})
	decode(t, res, http.StatusOK, &out)
	return out.Access
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.([]byte)
		if !ok {
			var err error
			raw, err = json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return res
}

// decode asserts the status code and unmarshals the body into out, if given.
func decode(t *testing.T, res *http.Response, wantStatus int, out any) {
	t.Helper()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if res.StatusCode != wantStatus {
		t.Fatalf("status = %d, want %d; body: %s", res.StatusCode, wantStatus, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode body %s: %v", body, err)
		}
	}
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
