// Package paymentstest provides an in-memory payments.Gateway for tests.
package paymentstest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pampermomma/backend/internal/payments"
)

// Gateway records calls and returns canned results. ParseWebhook accepts a
// JSON-encoded payments.Event and treats Signature as the only valid header.
// CreateTransfer replays the first result for a repeated idempotency key, as
// the processor does.
type Gateway struct {
	mu sync.Mutex

	Signature    string
	ClientSecret string
	Settlements  map[string]*payments.Settlement
	Accounts     map[string]*payments.PayoutAccount
	Err          error
	TransferErr  error

	Intents   []payments.IntentParams
	Transfers []payments.TransferParams
	Created   []string
	seq       int
	byKey     map[string]string
}

func New() *Gateway {
	return &Gateway{
		Signature:    "valid",
		ClientSecret: "pi_secret_test",
		Settlements:  map[string]*payments.Settlement{},
		Accounts:     map[string]*payments.PayoutAccount{},
	}
}

func (g *Gateway) CreatePaymentIntent(_ context.Context, p payments.IntentParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.Intents = append(g.Intents, p)
	return g.ClientSecret, nil
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (*payments.Event, error) {
	if signature != g.Signature {
		return nil, payments.ErrInvalidSignature
	}
	var ev payments.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *Gateway) Settlement(_ context.Context, intentID string) (*payments.Settlement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.Settlements[intentID]
	if !ok {
		return nil, payments.ErrNotSettled
	}
	return s, nil
}

func (g *Gateway) PayoutAccount(_ context.Context, accountID string) (*payments.PayoutAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.Accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("no such account: %s", accountID)
	}
	return a, nil
}

func (g *Gateway) CreateTransfer(_ context.Context, p payments.TransferParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.TransferErr != nil {
		return "", g.TransferErr
	}
	if id, ok := g.byKey[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		return id, nil
	}
	g.Transfers = append(g.Transfers, p)
	g.seq++
	id := fmt.Sprintf("tr_%d", g.seq)
	if g.byKey == nil {
		g.byKey = map[string]string{}
	}
	g.byKey[p.IdempotencyKey] = id
	return id, nil
}

func (g *Gateway) CreateExpressAccount(_ context.Context, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.seq++
	id := fmt.Sprintf("acct_%d", g.seq)
	g.Created = append(g.Created, email)
	g.Accounts[id] = &payments.PayoutAccount{ID: id}
	return id, nil
}

func (g *Gateway) OnboardingLink(_ context.Context, accountID, _, _ string) (string, error) {
	return "https://connect.example.com/onboarding/" + accountID, nil
}

func (g *Gateway) LoginLink(_ context.Context, accountID string) (string, error) {
	return "https://connect.example.com/login/" + accountID, nil
}
