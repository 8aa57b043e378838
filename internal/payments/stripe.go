package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pampermomma/backend/internal/ledger"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway implements Gateway on top of the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, p IntentParams) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ledger.ToCents(p.Amount)),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("service_id", p.ServiceID.String())
	params.AddMetadata("registry_id", p.RegistryID.String())

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}
	return pi.ClientSecret, nil
}

// legacyCharges covers payloads rendered for API versions that still embed
// the charge list on the intent.
type legacyCharges struct {
	Charges struct {
		Data []struct {
			BillingDetails struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"billing_details"`
		} `json:"data"`
	} `json:"charges"`
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventPaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to decode payment intent: %w", err)
		}
		intent := &PaymentIntent{
			ID:             pi.ID,
			AmountReceived: ledger.FromCents(pi.AmountReceived),
			Metadata:       pi.Metadata,
		}
		if pi.LatestCharge != nil && pi.LatestCharge.BillingDetails != nil {
			intent.ContributorName = pi.LatestCharge.BillingDetails.Name
			intent.ContributorEmail = pi.LatestCharge.BillingDetails.Email
		}
		if intent.ContributorName == "" && intent.ContributorEmail == "" {
			var legacy legacyCharges
			if json.Unmarshal(ev.Data.Raw, &legacy) == nil && len(legacy.Charges.Data) > 0 {
				intent.ContributorName = legacy.Charges.Data[0].BillingDetails.Name
				intent.ContributorEmail = legacy.Charges.Data[0].BillingDetails.Email
			}
		}
		if intent.ContributorEmail == "" {
			intent.ContributorEmail = pi.ReceiptEmail
		}
		out.PaymentIntent = intent
	case EventTransferCreated, EventTransferReversed:
		var tr stripe.Transfer
		if err := json.Unmarshal(ev.Data.Raw, &tr); err != nil {
			return nil, fmt.Errorf("failed to decode transfer: %w", err)
		}
		out.Transfer = &Transfer{ID: tr.ID}
	}

	return out, nil
}

func (g *StripeGateway) Settlement(ctx context.Context, intentID string) (*Settlement, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge.balance_transaction")

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	if pi.LatestCharge == nil || pi.LatestCharge.BalanceTransaction == nil {
		return nil, ErrNotSettled
	}

	bt := pi.LatestCharge.BalanceTransaction
	if bt.AvailableOn == 0 {
		got, err := g.api.BalanceTransactions.Get(bt.ID, &stripe.BalanceTransactionParams{Params: stripe.Params{Context: ctx}})
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve balance transaction: %w", err)
		}
		bt = got
	}

	return &Settlement{
		Fee:         ledger.FromCents(bt.Fee),
		AvailableOn: time.Unix(bt.AvailableOn, 0).UTC(),
	}, nil
}

func (g *StripeGateway) PayoutAccount(ctx context.Context, accountID string) (*PayoutAccount, error) {
	acct, err := g.api.Accounts.GetByID(accountID, &stripe.AccountParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve account: %w", err)
	}
	out := &PayoutAccount{ID: acct.ID, DetailsSubmitted: acct.DetailsSubmitted}
	if acct.Capabilities != nil {
		out.TransfersActive = string(acct.Capabilities.Transfers) == "active"
	}
	return out, nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, p TransferParams) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(ledger.ToCents(p.Amount)),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(p.Destination),
	}
	params.Context = ctx
	params.AddMetadata("registry_id", p.RegistryID.String())
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create transfer: %w", err)
	}
	return tr.ID, nil
}

func (g *StripeGateway) CreateExpressAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:         stripe.String(string(stripe.AccountTypeExpress)),
		Email:        stripe.String(email),
		BusinessType: stripe.String(string(stripe.AccountBusinessTypeIndividual)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx

	acct, err := g.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create account: %w", err)
	}
	return acct.ID, nil
}

func (g *StripeGateway) OnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create account link: %w", err)
	}
	return link.URL, nil
}

func (g *StripeGateway) LoginLink(ctx context.Context, accountID string) (string, error) {
	params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
	params.Context = ctx

	link, err := g.api.LoginLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create login link: %w", err)
	}
	return link.URL, nil
}
