package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/otp"
	"github.com/pampermomma/backend/internal/payments"
	"github.com/pampermomma/backend/internal/payments/paymentstest"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type withdrawalFixture struct {
	db       *gorm.DB
	gateway  *paymentstest.Gateway
	mail     *captureMailer
	svc      *WithdrawalService
	owner    *models.User
	registry *models.Registry
}

// newWithdrawalFixture sets up a registry with 50.00 available (55 minus a
// 5.00 fee) and an onboarded payout account.
func newWithdrawalFixture(t *testing.T) *withdrawalFixture {
	t.Helper()
	db := newTestDB(t)
	cfg := testConfig()
	gateway := paymentstest.New()
	mail := &captureMailer{}

	owner := createUser(t, db, "mom@example.com")
	account := "acct_ready"
	db.Model(owner).Update("stripe_account_id", account)
	owner.StripeAccountID = &account
	gateway.Accounts[account] = &payments.PayoutAccount{ID: account, DetailsSubmitted: true, TransfersActive: true}

	registry := createRegistry(t, db, owner, mealPrep())
	addContribution(t, db, registry.Services[0].ID, "55.00", "5.00", ptrTime(time.Now().Add(-24*time.Hour)))

	return &withdrawalFixture{
		db:       db,
		gateway:  gateway,
		mail:     mail,
		svc:      NewWithdrawalService(db, cfg, NewOTPService(db, cfg), gateway, mail),
		owner:    owner,
		registry: registry,
	}
}

func (f *withdrawalFixture) initiate(t *testing.T, amount string) (code, device string) {
	t.Helper()
	device, err := f.svc.Initiate(context.Background(), f.owner.ID, f.registry.ID, &dto.InitiateWithdrawalRequest{
		Amount: decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	return f.mail.last(t).Code, device
}

func TestWithdrawalService_Initiate(t *testing.T) {
	f := newWithdrawalFixture(t)
	stranger := createUser(t, f.db, "stranger@example.com")
	ctx := context.Background()

	if _, err := f.svc.Initiate(ctx, stranger.ID, f.registry.ID, &dto.InitiateWithdrawalRequest{Amount: decimal.NewFromInt(1)}); !errors.Is(err, ErrNotOwner) {
		t.Errorf("stranger: err = %v, want ErrNotOwner", err)
	}
	if _, err := f.svc.Initiate(ctx, f.owner.ID, f.registry.ID, &dto.InitiateWithdrawalRequest{Amount: decimal.Zero}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v, want ErrInvalidAmount", err)
	}

	_, err := f.svc.Initiate(ctx, f.owner.ID, f.registry.ID, &dto.InitiateWithdrawalRequest{Amount: decimal.RequireFromString("50.01")})
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("excess: err = %v, want InsufficientBalanceError", err)
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(50)) {
		t.Errorf("available = %s, want 50", insufficient.Available)
	}
	if f.mail.count() != 0 {
		t.Error("no code should be sent for a rejected amount")
	}

	code, device := f.initiate(t, "50")
	if code == "" || device == "" {
		t.Fatal("expected code and device token")
	}
	sent := f.mail.last(t)
	if sent.Kind != "withdrawal" || sent.Registry != f.registry.Name {
		t.Errorf("sent = %+v", sent)
	}
}

func TestWithdrawalService_Finalize(t *testing.T) {
	f := newWithdrawalFixture(t)
	code, device := f.initiate(t, "30")

	transferID, err := f.svc.Finalize(context.Background(), f.owner.ID, f.registry.ID, &dto.WithdrawRequest{
		Amount:         decimal.NewFromInt(30),
		OTP:            code,
		DeviceIdentity: device,
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if len(f.gateway.Transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(f.gateway.Transfers))
	}
	transfer := f.gateway.Transfers[0]
	if transfer.Destination != "acct_ready" || !transfer.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("transfer = %+v", transfer)
	}

	var w models.Withdrawal
	if err := f.db.First(&w, "stripe_transfer_id = ?", transferID).Error; err != nil {
		t.Fatalf("withdrawal not recorded: %v", err)
	}
	if w.Status != models.WithdrawalPending {
		t.Errorf("status = %q, want pending", w.Status)
	}
	if !strings.HasPrefix(transfer.IdempotencyKey, "withdrawal-") {
		t.Errorf("idempotency key = %q", transfer.IdempotencyKey)
	}

	var remaining int64
	f.db.Model(&models.OTPRequest{}).Where("ref = ?", otp.WithdrawalRef(f.registry.ID, f.owner.ID)).Count(&remaining)
	if remaining != 0 {
		t.Errorf("otp rows = %d, want 0", remaining)
	}

	_, err = f.svc.Finalize(context.Background(), f.owner.ID, f.registry.ID, &dto.WithdrawRequest{
		Amount:         decimal.NewFromInt(30),
		OTP:            code,
		DeviceIdentity: device,
	})
	if !errors.Is(err, ErrInvalidWithdrawalCode) {
		t.Errorf("replayed code: err = %v, want ErrInvalidWithdrawalCode", err)
	}
}

func TestWithdrawalService_FinalizeRetryAfterFailedWrite(t *testing.T) {
	f := newWithdrawalFixture(t)
	code, device := f.initiate(t, "50")

	failWrites := true
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_withdrawals", func(tx *gorm.DB) {
		if failWrites && tx.Statement.Table == "withdrawals" {
			tx.AddError(errors.New("db down"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	req := &dto.WithdrawRequest{Amount: decimal.NewFromInt(50), OTP: code, DeviceIdentity: device}
	if _, err := f.svc.Finalize(context.Background(), f.owner.ID, f.registry.ID, req); err == nil {
		t.Fatal("first attempt should fail while withdrawals cannot be written")
	}

	failWrites = false
	transferID, err := f.svc.Finalize(context.Background(), f.owner.ID, f.registry.ID, req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}

	if len(f.gateway.Transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(f.gateway.Transfers))
	}
	var rows []models.Withdrawal
	f.db.Find(&rows, "registry_id = ?", f.registry.ID)
	if len(rows) != 1 || rows[0].StripeTransferID != transferID {
		t.Fatalf("withdrawals = %+v, want one row for %s", rows, transferID)
	}

	balance, err := registryBalance(f.db, f.registry.ID, time.Now())
	if err != nil {
		t.Fatalf("registryBalance: %v", err)
	}
	if !balance.Available.IsZero() {
		t.Errorf("available = %s, want 0", balance.Available)
	}
}

func TestWithdrawalService_FinalizeRejects(t *testing.T) {
	testCases := []struct {
		name    string
		setup   func(f *withdrawalFixture)
		amount  string
		badCode bool
		check   func(t *testing.T, err error)
	}{
		{
			name:    "wrong code",
			amount:  "10",
			badCode: true,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidWithdrawalCode) {
					t.Errorf("err = %v, want ErrInvalidWithdrawalCode", err)
				}
			},
		},
		{
			name: "no payout account",
			setup: func(f *withdrawalFixture) {
				f.db.Model(f.owner).Update("stripe_account_id", nil)
			},
			amount: "10",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoPayoutAccount) {
					t.Errorf("err = %v, want ErrNoPayoutAccount", err)
				}
			},
		},
		{
			name: "account not ready",
			setup: func(f *withdrawalFixture) {
				f.gateway.Accounts["acct_ready"].TransfersActive = false
			},
			amount: "10",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrPayoutAccountNotReady) {
					t.Errorf("err = %v, want ErrPayoutAccountNotReady", err)
				}
			},
		},
		{
			name: "balance spent since initiation",
			setup: func(f *withdrawalFixture) {
				f.db.Create(&models.Withdrawal{RegistryID: f.registry.ID, Amount: decimal.NewFromInt(45), Status: models.WithdrawalPending})
			},
			amount: "10",
			check: func(t *testing.T, err error) {
				var insufficient *InsufficientBalanceError
				if !errors.As(err, &insufficient) {
					t.Errorf("err = %v, want InsufficientBalanceError", err)
				}
			},
		},
		{
			name: "processor failure",
			setup: func(f *withdrawalFixture) {
				f.gateway.TransferErr = errors.New("insufficient platform funds")
			},
			amount: "10",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrProcessor) {
					t.Errorf("err = %v, want ErrProcessor", err)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWithdrawalFixture(t)
			code, device := f.initiate(t, tc.amount)
			if tc.badCode {
				code = flipCode(code)
			}
			if tc.setup != nil {
				tc.setup(f)
			}

			_, err := f.svc.Finalize(context.Background(), f.owner.ID, f.registry.ID, &dto.WithdrawRequest{
				Amount:         decimal.RequireFromString(tc.amount),
				OTP:            code,
				DeviceIdentity: device,
			})
			tc.check(t, err)

			var count int64
			f.db.Model(&models.Withdrawal{}).Where("stripe_transfer_id <> ''").Count(&count)
			if count != 0 {
				t.Errorf("withdrawals recorded = %d, want 0", count)
			}
		})
	}
}

func TestWithdrawalService_CreateConnectAccount(t *testing.T) {
	db := newTestDB(t)
	gateway := paymentstest.New()
	cfg := testConfig()
	svc := NewWithdrawalService(db, cfg, NewOTPService(db, cfg), gateway, &captureMailer{})
	user := createUser(t, db, "mom@example.com")
	ctx := context.Background()

	link, err := svc.CreateConnectAccount(ctx, user.ID)
	if err != nil {
		t.Fatalf("CreateConnectAccount: %v", err)
	}
	var stored models.User
	db.First(&stored, "id = ?", user.ID)
	if stored.StripeAccountID == nil {
		t.Fatal("account id was not saved")
	}
	if link != "https://connect.example.com/onboarding/"+*stored.StripeAccountID {
		t.Errorf("link = %q", link)
	}

	again, err := svc.CreateConnectAccount(ctx, user.ID)
	if err != nil {
		t.Fatalf("second CreateConnectAccount: %v", err)
	}
	if len(gateway.Created) != 1 {
		t.Errorf("accounts created = %d, want 1", len(gateway.Created))
	}
	if again != link {
		t.Errorf("incomplete onboarding should return a new onboarding link, got %q", again)
	}

	gateway.Accounts[*stored.StripeAccountID].DetailsSubmitted = true
	login, err := svc.CreateConnectAccount(ctx, user.ID)
	if err != nil {
		t.Fatalf("CreateConnectAccount after onboarding: %v", err)
	}
	if login != "https://connect.example.com/login/"+*stored.StripeAccountID {
		t.Errorf("login link = %q", login)
	}
}

func flipCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
