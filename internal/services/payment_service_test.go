package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/events"
	"github.com/pampermomma/backend/internal/events/eventstest"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/payments"
	"github.com/pampermomma/backend/internal/payments/paymentstest"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type paymentFixture struct {
	db       *gorm.DB
	gateway  *paymentstest.Gateway
	recorder *eventstest.Recorder
	mail     *captureMailer
	payments *PaymentService
	owner    *models.User
	registry *models.Registry
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	db := newTestDB(t)
	gateway := paymentstest.New()
	recorder := &eventstest.Recorder{}
	mail := &captureMailer{}
	notifications := NewNotificationService(db, recorder)
	owner := createUser(t, db, "mom@example.com")
	return &paymentFixture{
		db:       db,
		gateway:  gateway,
		recorder: recorder,
		mail:     mail,
		payments: NewPaymentService(db, gateway, notifications, mail),
		owner:    owner,
		registry: createRegistry(t, db, owner, mealPrep()),
	}
}

func intentEvent(t *testing.T, intentID string, serviceID string, amount string) []byte {
	t.Helper()
	ev := payments.Event{
		ID:   "evt_" + intentID,
		Type: payments.EventPaymentIntentSucceeded,
		PaymentIntent: &payments.PaymentIntent{
			ID:              intentID,
			AmountReceived:  decimal.RequireFromString(amount),
			Metadata:        map[string]string{"service_id": serviceID},
			ContributorName: "Aunt May",
		},
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func TestPaymentService_CreateIntent(t *testing.T) {
	f := newPaymentFixture(t)
	serviceID := f.registry.Services[0].ID
	addContribution(t, f.db, serviceID, "60.00", "", nil)

	testCases := []struct {
		name      string
		serviceID uuid.UUID
		amount    string
		wantErr   error
	}{
		{"below minimum", serviceID, "0.49", ErrAmountTooSmall},
		{"unknown service", uuid.New(), "10", ErrServiceNotFound},
		{"exceeds remaining", serviceID, "40.01", &AmountExceedsRemainingError{}},
		{"exactly remaining", serviceID, "40", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			secret, err := f.payments.CreateIntent(context.Background(), &dto.CreatePaymentIntentRequest{
				ServiceID: tc.serviceID,
				Amount:    decimal.RequireFromString(tc.amount),
			})
			var exceeds *AmountExceedsRemainingError
			switch {
			case tc.wantErr == nil:
				if err != nil {
					t.Fatalf("CreateIntent: %v", err)
				}
				if secret != f.gateway.ClientSecret {
					t.Errorf("secret = %q", secret)
				}
			case errors.As(tc.wantErr, &exceeds):
				if !errors.As(err, &exceeds) {
					t.Fatalf("err = %v, want AmountExceedsRemainingError", err)
				}
				if exceeds.Error() != "Contribution amount of $40.01 exceeds the remaining amount of $40.00." {
					t.Errorf("message = %q", exceeds.Error())
				}
			default:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
			}
		})
	}

	if len(f.gateway.Intents) != 1 {
		t.Fatalf("intents created = %d, want 1", len(f.gateway.Intents))
	}
	if f.gateway.Intents[0].RegistryID != f.registry.ID {
		t.Error("intent should carry the registry id")
	}
}

func TestPaymentService_CreateIntentUnavailable(t *testing.T) {
	f := newPaymentFixture(t)
	serviceID := f.registry.Services[0].ID
	f.db.Model(&models.Service{}).Where("id = ?", serviceID).Update("is_active", false)

	_, err := f.payments.CreateIntent(context.Background(), &dto.CreatePaymentIntentRequest{
		ServiceID: serviceID,
		Amount:    decimal.RequireFromString("5"),
	})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestPaymentService_CreateIntentProcessorError(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.Err = errors.New("card network down")

	_, err := f.payments.CreateIntent(context.Background(), &dto.CreatePaymentIntentRequest{
		ServiceID: f.registry.Services[0].ID,
		Amount:    decimal.RequireFromString("5"),
	})
	if !errors.Is(err, ErrProcessor) {
		t.Errorf("err = %v, want ErrProcessor", err)
	}
}

func TestPaymentService_WebhookIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t)
	serviceID := f.registry.Services[0].ID.String()
	payload := intentEvent(t, "pi_123", serviceID, "25.00")

	for i := 0; i < 2; i++ {
		if err := f.payments.HandleWebhook(context.Background(), payload, "valid"); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	var contribs []models.Contribution
	f.db.Where("stripe_payment_intent_id = ?", "pi_123").Find(&contribs)
	if len(contribs) != 1 {
		t.Fatalf("contributions = %d, want 1", len(contribs))
	}
	if !contribs[0].Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("amount = %s, want 25", contribs[0].Amount)
	}
	if contribs[0].ContributorName != "Aunt May" {
		t.Errorf("contributor = %q", contribs[0].ContributorName)
	}

	var notes []models.Notification
	f.db.Where("user_id = ?", f.owner.ID).Find(&notes)
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Type != models.NotificationContribution {
		t.Errorf("type = %q", notes[0].Type)
	}
	if want := "Aunt May just contributed $25.00 to your 'Meal prep' service!"; notes[0].Message != want {
		t.Errorf("message = %q, want %q", notes[0].Message, want)
	}

	msgs := f.recorder.Messages()
	if len(msgs) != 1 || msgs[0].Subject != events.UserNotificationSubject(f.owner.ID.String()) {
		t.Errorf("published = %+v", msgs)
	}
	if f.mail.count() != 1 {
		t.Errorf("emails = %d, want 1", f.mail.count())
	}
}

func TestPaymentService_WebhookUpdatesExistingRow(t *testing.T) {
	f := newPaymentFixture(t)
	serviceID := f.registry.Services[0].ID.String()

	if err := f.payments.HandleWebhook(context.Background(), intentEvent(t, "pi_9", serviceID, "10.00"), "valid"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.payments.HandleWebhook(context.Background(), intentEvent(t, "pi_9", serviceID, "12.00"), "valid"); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	var c models.Contribution
	f.db.First(&c, "stripe_payment_intent_id = ?", "pi_9")
	if !c.Amount.Equal(decimal.RequireFromString("12")) {
		t.Errorf("amount = %s, want 12", c.Amount)
	}
}

func TestPaymentService_WebhookRejections(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	if err := f.payments.HandleWebhook(ctx, intentEvent(t, "pi_1", f.registry.Services[0].ID.String(), "5"), "forged"); !errors.Is(err, payments.ErrInvalidSignature) {
		t.Errorf("bad signature: err = %v, want ErrInvalidSignature", err)
	}
	if err := f.payments.HandleWebhook(ctx, intentEvent(t, "pi_2", "", "5"), "valid"); err != nil {
		t.Errorf("missing service id should be ignored: %v", err)
	}
	if err := f.payments.HandleWebhook(ctx, intentEvent(t, "pi_3", "not-a-uuid", "5"), "valid"); err != nil {
		t.Errorf("invalid service id should be ignored: %v", err)
	}
	if err := f.payments.HandleWebhook(ctx, intentEvent(t, "pi_4", uuid.NewString(), "5"), "valid"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("unknown service: err = %v, want ErrServiceNotFound", err)
	}

	other, _ := json.Marshal(payments.Event{ID: "evt_x", Type: "charge.refunded"})
	if err := f.payments.HandleWebhook(ctx, other, "valid"); err != nil {
		t.Errorf("unhandled event type should be accepted: %v", err)
	}

	var count int64
	f.db.Model(&models.Contribution{}).Count(&count)
	if count != 0 {
		t.Errorf("contributions = %d, want 0", count)
	}
}

func TestPaymentService_TransferEvents(t *testing.T) {
	f := newPaymentFixture(t)
	created := models.Withdrawal{RegistryID: f.registry.ID, Amount: decimal.RequireFromString("5"), Status: models.WithdrawalPending, StripeTransferID: "tr_ok"}
	reversed := models.Withdrawal{RegistryID: f.registry.ID, Amount: decimal.RequireFromString("5"), Status: models.WithdrawalSucceeded, StripeTransferID: "tr_back"}
	f.db.Create(&created)
	f.db.Create(&reversed)

	send := func(kind, id string) {
		t.Helper()
		payload, _ := json.Marshal(payments.Event{ID: "evt_" + id, Type: kind, Transfer: &payments.Transfer{ID: id}})
		if err := f.payments.HandleWebhook(context.Background(), payload, "valid"); err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
	}
	send(payments.EventTransferCreated, "tr_ok")
	send(payments.EventTransferReversed, "tr_back")

	var w models.Withdrawal
	f.db.First(&w, "id = ?", created.ID)
	if w.Status != models.WithdrawalSucceeded {
		t.Errorf("created transfer status = %q, want succeeded", w.Status)
	}
	f.db.First(&w, "id = ?", reversed.ID)
	if w.Status != models.WithdrawalFailed {
		t.Errorf("reversed transfer status = %q, want failed", w.Status)
	}
}
