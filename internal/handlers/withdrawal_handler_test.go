package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/payments"
	"github.com/shopspring/decimal"
)

func TestWithdrawal(t *testing.T) {
	a := newTestApp(t)
	serviceID, registry, owner := ownedService(t, a)
	a.createUser(t, "friend@example.com")
	friend := a.login(t, "friend@example.com")

	available := time.Now().Add(-time.Hour)
	fee := decimal.RequireFromString("1.00")
	contribution := models.Contribution{
		ServiceID:             &serviceID,
		Amount:                decimal.RequireFromString("51.00"),
		Fee:                   &fee,
		AvailableOn:           &available,
		StripePaymentIntentID: "pi_settled",
		Status:                models.ContributionSucceeded,
	}
	if err := a.db.Create(&contribution).Error; err != nil {
		t.Fatalf("create contribution: %v", err)
	}
	if err := a.db.Model(&models.User{}).Where("email = ?", "mom@example.com").Update("stripe_account_id", "acct_ready").Error; err != nil {
		t.Fatalf("set payout account: %v", err)
	}
	a.gateway.Accounts["acct_ready"] = &payments.PayoutAccount{ID: "acct_ready", DetailsSubmitted: true, TransfersActive: true}

	base := "/registries/r/" + registry.ID.String()

	decode(t, a.do(t, http.MethodPost, base+"/initiate-withdrawal-verification", friend, map[string]string{"amount": "10"}), http.StatusForbidden, nil)
	decode(t, a.do(t, http.MethodPost, base+"/initiate-withdrawal-verification", owner, map[string]string{"amount": "0"}), http.StatusBadRequest, nil)
	decode(t, a.do(t, http.MethodPost, base+"/initiate-withdrawal-verification", owner, map[string]string{"amount": "50.01"}), http.StatusBadRequest, nil)

	var started dto.InitiateWithdrawalResponse
	decode(t, a.do(t, http.MethodPost, base+"/initiate-withdrawal-verification", owner, map[string]string{"amount": "40"}), http.StatusOK, &started)
	code := a.emails.codes[len(a.emails.codes)-1]

	withdraw := map[string]string{"amount": "40", "otp": code, "device_identity": "wrong-device"}
	decode(t, a.do(t, http.MethodPost, base+"/withdraw", owner, withdraw), http.StatusBadRequest, nil)

	withdraw["device_identity"] = started.DeviceIdentity
	var done dto.WithdrawResponse
	decode(t, a.do(t, http.MethodPost, base+"/withdraw", owner, withdraw), http.StatusOK, &done)
	if done.TransferID == "" || len(a.gateway.Transfers) != 1 {
		t.Fatalf("expected one transfer, got %+v and %d transfers", done, len(a.gateway.Transfers))
	}

	// The code is single use.
	decode(t, a.do(t, http.MethodPost, base+"/withdraw", owner, withdraw), http.StatusBadRequest, nil)
}

func TestConnectAccount(t *testing.T) {
	a := newTestApp(t)
	a.createUser(t, "mom@example.com")
	token := a.login(t, "mom@example.com")

	var out dto.ConnectAccountResponse
	decode(t, a.do(t, http.MethodPost, "/registries/r/create-connect-account", token, nil), http.StatusOK, &out)
	if out.URL == "" {
		t.Fatal("expected an onboarding link")
	}
}
