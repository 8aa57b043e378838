// Package ledger derives service totals and registry balances from stored
// contributions and withdrawals. Everything here is pure; callers load rows
// and pass the clock.
package ledger

import (
	"time"

	"github.com/pampermomma/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Balance is the withdrawable position of a registry.
type Balance struct {
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
}

// ServiceState holds the derived fields of a service.
type ServiceState struct {
	TotalCost                   decimal.Decimal `json:"total_cost"`
	TotalContributions          decimal.Decimal `json:"total_contributions"`
	Remaining                   decimal.Decimal `json:"remaining"`
	AvailableWithdrawableAmount decimal.Decimal `json:"available_withdrawable_amount"`
	IsCompleted                 bool            `json:"is_completed"`
	IsAvailable                 bool            `json:"is_available"`
}

func TotalCost(s *models.Service) decimal.Decimal {
	return decimal.NewFromInt(int64(s.Hours)).Mul(s.CostPerHour)
}

// TotalContributions sums the amount of succeeded contributions.
func TotalContributions(contribs []models.Contribution) decimal.Decimal {
	total := decimal.Zero
	for _, c := range contribs {
		if c.Status == models.ContributionSucceeded {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// StateOf computes the derived fields of s from its succeeded contributions.
func StateOf(s *models.Service, contribs []models.Contribution) ServiceState {
	cost := TotalCost(s)
	contributed := TotalContributions(contribs)

	completed := s.IsActive && contributed.GreaterThanOrEqual(cost)
	remaining := cost.Sub(contributed)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return ServiceState{
		TotalCost:                   cost,
		TotalContributions:          contributed,
		Remaining:                   remaining,
		AvailableWithdrawableAmount: contributed.Sub(s.TotalWithdrawn),
		IsCompleted:                 completed,
		IsAvailable:                 s.IsActive && !completed,
	}
}

// ComputeBalance splits settled contribution funds by availability and
// subtracts withdrawals that are pending or succeeded. Contributions whose
// AvailableOn is not yet known are counted in neither bucket.
func ComputeBalance(contribs []models.Contribution, withdrawals []models.Withdrawal, now time.Time) Balance {
	available := decimal.Zero
	pending := decimal.Zero

	for _, c := range contribs {
		if c.Status != models.ContributionSucceeded || c.AvailableOn == nil {
			continue
		}
		net := c.Amount
		if c.Fee != nil {
			net = net.Sub(*c.Fee)
		}
		if c.AvailableOn.After(now) {
			pending = pending.Add(net)
		} else {
			available = available.Add(net)
		}
	}

	for _, w := range withdrawals {
		if w.Status == models.WithdrawalPending || w.Status == models.WithdrawalSucceeded {
			available = available.Sub(w.Amount)
		}
	}

	return Balance{Available: available, Pending: pending}
}

// NeedsEnrichment reports whether c still lacks processor settlement data.
func NeedsEnrichment(c *models.Contribution) bool {
	return c.Status == models.ContributionSucceeded && c.AvailableOn == nil
}

// FromCents converts a processor minor-unit amount to dollars.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts a dollar amount to processor minor units, rounding half up.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
