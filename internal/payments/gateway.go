// Package payments wraps the payment processor behind a small interface so
// services can be exercised without network access.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventTransferCreated        = "transfer.created"
	EventTransferReversed       = "transfer.reversed"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotSettled       = errors.New("payment has no balance transaction yet")
)

// Gateway is the subset of processor operations the backend relies on.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, p IntentParams) (clientSecret string, err error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	Settlement(ctx context.Context, intentID string) (*Settlement, error)
	PayoutAccount(ctx context.Context, accountID string) (*PayoutAccount, error)
	CreateTransfer(ctx context.Context, p TransferParams) (transferID string, err error)
	CreateExpressAccount(ctx context.Context, email string) (accountID string, err error)
	OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	LoginLink(ctx context.Context, accountID string) (string, error)
}

type IntentParams struct {
	Amount     decimal.Decimal
	ServiceID  uuid.UUID
	RegistryID uuid.UUID
}

type TransferParams struct {
	Amount         decimal.Decimal
	Destination    string
	RegistryID     uuid.UUID
	IdempotencyKey string
}

// Settlement is the processor's view of when funds become available and
// what it kept.
type Settlement struct {
	Fee         decimal.Decimal
	AvailableOn time.Time
}

type PayoutAccount struct {
	ID               string
	DetailsSubmitted bool
	TransfersActive  bool
}

// Ready reports whether transfers to the account can be made.
func (a *PayoutAccount) Ready() bool {
	return a.DetailsSubmitted && a.TransfersActive
}

// Event is a verified webhook event reduced to the fields the backend uses.
type Event struct {
	ID            string
	Type          string
	PaymentIntent *PaymentIntent
	Transfer      *Transfer
}

type PaymentIntent struct {
	ID               string
	AmountReceived   decimal.Decimal
	Metadata         map[string]string
	ContributorName  string
	ContributorEmail string
}

// ServiceID returns the service id carried in metadata, if present and valid.
func (p *PaymentIntent) ServiceID() (uuid.UUID, bool) {
	raw, ok := p.Metadata["service_id"]
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

type Transfer struct {
	ID string
}
