package ledger

import (
	"testing"
	"time"

	"github.com/pampermomma/backend/internal/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestComputeBalance(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(48 * time.Hour)

	contribs := []models.Contribution{
		{Amount: dec("300"), Fee: decPtr("9"), AvailableOn: timePtr(past), Status: models.ContributionSucceeded},
		{Amount: dec("200"), Fee: decPtr("6"), AvailableOn: timePtr(past), Status: models.ContributionSucceeded},
		{Amount: dec("100"), Fee: decPtr("3.20"), AvailableOn: timePtr(future), Status: models.ContributionSucceeded},
		{Amount: dec("50"), Status: models.ContributionSucceeded},
		{Amount: dec("75"), Fee: decPtr("1"), AvailableOn: timePtr(past), Status: "failed"},
	}
	withdrawals := []models.Withdrawal{
		{Amount: dec("100"), Status: models.WithdrawalSucceeded},
		{Amount: dec("50"), Status: models.WithdrawalPending},
		{Amount: dec("40"), Status: models.WithdrawalFailed},
	}

	got := ComputeBalance(contribs, withdrawals, now)

	if !got.Available.Equal(dec("335")) {
		t.Errorf("Available = %s, want 335", got.Available)
	}
	if !got.Pending.Equal(dec("96.80")) {
		t.Errorf("Pending = %s, want 96.80", got.Pending)
	}
}

func TestComputeBalance_AvailableOnBoundary(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	contribs := []models.Contribution{
		{Amount: dec("10"), AvailableOn: timePtr(now), Status: models.ContributionSucceeded},
	}

	got := ComputeBalance(contribs, nil, now)
	if !got.Available.Equal(dec("10")) {
		t.Errorf("Available = %s, want 10", got.Available)
	}
	if !got.Pending.IsZero() {
		t.Errorf("Pending = %s, want 0", got.Pending)
	}
}

func TestComputeBalance_Empty(t *testing.T) {
	got := ComputeBalance(nil, nil, time.Now())
	if !got.Available.IsZero() || !got.Pending.IsZero() {
		t.Errorf("got %+v, want zero balance", got)
	}
}

func TestStateOf(t *testing.T) {
	testCases := []struct {
		name          string
		service       models.Service
		contribs      []models.Contribution
		wantCompleted bool
		wantAvailable bool
		wantRemaining string
	}{
		{
			name:          "no contributions",
			service:       models.Service{Hours: 4, CostPerHour: dec("25"), IsActive: true},
			wantAvailable: true,
			wantRemaining: "100",
		},
		{
			name:    "partially funded",
			service: models.Service{Hours: 4, CostPerHour: dec("25"), IsActive: true},
			contribs: []models.Contribution{
				{Amount: dec("60"), Status: models.ContributionSucceeded},
				{Amount: dec("30"), Status: "failed"},
			},
			wantAvailable: true,
			wantRemaining: "40",
		},
		{
			name:    "fully funded",
			service: models.Service{Hours: 2, CostPerHour: dec("50"), IsActive: true},
			contribs: []models.Contribution{
				{Amount: dec("60"), Status: models.ContributionSucceeded},
				{Amount: dec("40"), Status: models.ContributionSucceeded},
			},
			wantCompleted: true,
			wantRemaining: "0",
		},
		{
			name:          "inactive",
			service:       models.Service{Hours: 2, CostPerHour: dec("50"), IsActive: false},
			wantRemaining: "100",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state := StateOf(&tc.service, tc.contribs)
			if state.IsCompleted != tc.wantCompleted {
				t.Errorf("IsCompleted = %v, want %v", state.IsCompleted, tc.wantCompleted)
			}
			if state.IsAvailable != tc.wantAvailable {
				t.Errorf("IsAvailable = %v, want %v", state.IsAvailable, tc.wantAvailable)
			}
			if !state.Remaining.Equal(dec(tc.wantRemaining)) {
				t.Errorf("Remaining = %s, want %s", state.Remaining, tc.wantRemaining)
			}
		})
	}
}

func TestStateOf_WithdrawableAmount(t *testing.T) {
	s := models.Service{Hours: 10, CostPerHour: dec("20"), IsActive: true, TotalWithdrawn: dec("30")}
	state := StateOf(&s, []models.Contribution{{Amount: dec("80"), Status: models.ContributionSucceeded}})

	if !state.AvailableWithdrawableAmount.Equal(dec("50")) {
		t.Errorf("AvailableWithdrawableAmount = %s, want 50", state.AvailableWithdrawableAmount)
	}
	if !state.TotalCost.Equal(dec("200")) {
		t.Errorf("TotalCost = %s, want 200", state.TotalCost)
	}
}

func TestCents(t *testing.T) {
	if got := ToCents(dec("12.345")); got != 1235 {
		t.Errorf("ToCents(12.345) = %d, want 1235", got)
	}
	if got := ToCents(dec("0.5")); got != 50 {
		t.Errorf("ToCents(0.5) = %d, want 50", got)
	}
	if got := FromCents(1999); !got.Equal(dec("19.99")) {
		t.Errorf("FromCents(1999) = %s, want 19.99", got)
	}
}
