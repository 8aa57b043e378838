package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/database/dbtest"
	"github.com/pampermomma/backend/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "correct-horse-battery"

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                "test-secret",
		JWTAccessExpiry:          "15m",
		JWTRefreshExpiry:         "168h",
		BcryptCost:               bcrypt.MinCost,
		OTPTTLSeconds:            600,
		FrontendURL:              "https://app.example.com/",
		FrontendPasswordResetURL: "https://app.example.com/reset-password",
		FrontendVerifyEmailURL:   "https://app.example.com/verify-email",
	}
}

type sentEmail struct {
	Kind     string
	To       string
	Code     string
	Link     string
	Amount   decimal.Decimal
	Registry string
}

// captureMailer records every email instead of sending it.
type captureMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *captureMailer) record(e sentEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

func (m *captureMailer) PasswordResetOTP(_ context.Context, email, code, link string) error {
	return m.record(sentEmail{Kind: "password_reset", To: email, Code: code, Link: link})
}

func (m *captureMailer) EmailVerificationOTP(_ context.Context, email, code, link string) error {
	return m.record(sentEmail{Kind: "email_verification", To: email, Code: code, Link: link})
}

func (m *captureMailer) WithdrawalOTP(_ context.Context, email, code string, amount decimal.Decimal, registryName string) error {
	return m.record(sentEmail{Kind: "withdrawal", To: email, Code: code, Amount: amount, Registry: registryName})
}

func (m *captureMailer) ContributionReceived(_ context.Context, email, registryName, _, _ string, amount decimal.Decimal) error {
	return m.record(sentEmail{Kind: "contribution", To: email, Amount: amount, Registry: registryName})
}

func (m *captureMailer) last(t *testing.T) sentEmail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email was sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var errSMTP = errors.New("smtp unavailable")

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		Email:     models.NormalizeEmail(email),
		Password:  string(hash),
		FirstName: "Test",
		LastName:  "User",
		IsActive:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func createRegistry(t *testing.T, db *gorm.DB, owner *models.User, services ...models.Service) *models.Registry {
	t.Helper()
	registry := models.Registry{Name: "Baby Lee", BabiesCount: 1, CreatedByID: owner.ID}
	if err := db.Omit("Services").Create(&registry).Error; err != nil {
		t.Fatalf("create registry: %v", err)
	}
	for _, svc := range services {
		svc.RegistryID = registry.ID
		if err := db.Create(&svc).Error; err != nil {
			t.Fatalf("create service: %v", err)
		}
		registry.Services = append(registry.Services, svc)
	}
	return &registry
}

func mealPrep() models.Service {
	return models.Service{
		Name:        "Meal prep",
		Hours:       4,
		CostPerHour: decimal.RequireFromString("25.00"),
		IsActive:    true,
	}
}

// addContribution stores a succeeded contribution. availableOn may be nil to
// leave it unsettled.
func addContribution(t *testing.T, db *gorm.DB, serviceID uuid.UUID, amount, fee string, availableOn *time.Time) *models.Contribution {
	t.Helper()
	c := models.Contribution{
		ServiceID:             &serviceID,
		Amount:                decimal.RequireFromString(amount),
		StripePaymentIntentID: "pi_" + uuid.NewString(),
		Status:                models.ContributionSucceeded,
		AvailableOn:           availableOn,
	}
	if fee != "" {
		f := decimal.RequireFromString(fee)
		c.Fee = &f
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	return &c
}

func newTestDB(t *testing.T) *gorm.DB {
	return dbtest.New(t)
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrString(s string) *string { return &s }
