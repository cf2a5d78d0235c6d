package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"telco-billing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	payments map[int64]*models.Payment

	createErr   error
	finalizeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{payments: make(map[int64]*models.Payment)}
}

func (f *fakeStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	payment.ID = f.nextID
	copied := *payment
	f.payments[payment.ID] = &copied
	return nil
}

func (f *fakeStore) FinalizePayment(_ context.Context, paymentID int64, status, gatewayResponse string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	payment, ok := f.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment %d not found", paymentID)
	}
	if payment.Status != models.PaymentStatusProcessing {
		return fmt.Errorf("payment %d already finalized", paymentID)
	}
	payment.Status = status
	payment.GatewayResponse = gatewayResponse
	return nil
}

func (f *fakeStore) GetPaymentByID(_ context.Context, id int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d not found", id)
	}
	copied := *payment
	return &copied, nil
}

func (f *fakeStore) GetPaymentByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, payment := range f.payments {
		if payment.TransactionID == transactionID {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("payment %s not found", transactionID)
}

func (f *fakeStore) GetPaymentsByUserID(_ context.Context, userID int64) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, payment := range f.payments {
		if payment.UserID == userID {
			out = append(out, *payment)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPaymentsByBillID(_ context.Context, billID int64) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, payment := range f.payments {
		if payment.BillID == billID {
			out = append(out, *payment)
		}
	}
	return out, nil
}

type fakeGateway struct {
	result ChargeResult
	err    error
	block  bool // honor context cancellation instead of returning
}

func (f *fakeGateway) Charge(ctx context.Context, _ string, _ CardInstrument, _ int64) (ChargeResult, error) {
	if f.block {
		<-ctx.Done()
		return ChargeResult{}, ctx.Err()
	}
	return f.result, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.PaymentCompletedEvent
}

func (f *fakePublisher) PublishPaymentCompleted(_ context.Context, event *models.PaymentCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func validRequest() *ProcessRequest {
	return &ProcessRequest{
		UserID: 42,
		BillID: 7,
		Amount: 85000,
		Method: "CARD",
		Card: CardInstrument{
			Number:     "4242424242424242",
			Expiry:     "09/28",
			CVV:        "123",
			HolderName: "K PERERA",
		},
	}
}

func TestProcessPaymentSuccess(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gw := &fakeGateway{result: ChargeResult{Success: true, GatewayRef: "ref-1", Message: "approved"}}
	svc := NewService(store, gw, pub, time.Second)

	payment, err := svc.ProcessPayment(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "4242", payment.CardLastFour)
	assert.NotEmpty(t, payment.TransactionID)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, payment.TransactionID, event.TransactionID)
	assert.Equal(t, payment.TransactionID, event.CorrelationID)
	assert.Equal(t, int64(7), event.BillID)
	assert.Equal(t, int64(85000), event.Amount)
	assert.NotEmpty(t, event.DeliveryID)

	stored, err := store.GetPaymentByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, stored.Status)
}

func TestProcessPaymentDeclined(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gw := &fakeGateway{result: ChargeResult{Success: false, GatewayRef: "ref-2", Message: "insufficient funds"}}
	svc := NewService(store, gw, pub, time.Second)

	payment, err := svc.ProcessPayment(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Contains(t, payment.GatewayResponse, "insufficient funds")
	// A declined payment is persisted but never announced.
	assert.Empty(t, pub.events)
}

func TestProcessPaymentGatewayError(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gw := &fakeGateway{err: errors.New("connection reset")}
	svc := NewService(store, gw, pub, time.Second)

	payment, err := svc.ProcessPayment(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Contains(t, payment.GatewayResponse, "gateway error")
	assert.Empty(t, pub.events)
}

func TestProcessPaymentGatewayTimeoutNeverLeftProcessing(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gw := &fakeGateway{block: true}
	svc := NewService(store, gw, pub, 20*time.Millisecond)

	payment, err := svc.ProcessPayment(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	stored, err := store.GetPaymentByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, stored.Status)
	assert.Empty(t, pub.events)
}

func TestProcessPaymentValidation(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := NewService(store, &fakeGateway{}, pub, time.Second)

	tests := []struct {
		name   string
		mutate func(*ProcessRequest)
		field  string
	}{
		{"zero amount", func(r *ProcessRequest) { r.Amount = 0 }, "amount"},
		{"negative amount", func(r *ProcessRequest) { r.Amount = -100 }, "amount"},
		{"short card number", func(r *ProcessRequest) { r.Card.Number = "4242" }, "card_number"},
		{"letters in card number", func(r *ProcessRequest) { r.Card.Number = "4242abcd42424242" }, "card_number"},
		{"bad expiry month", func(r *ProcessRequest) { r.Card.Expiry = "13/28" }, "card_expiry"},
		{"bad expiry format", func(r *ProcessRequest) { r.Card.Expiry = "2028-09" }, "card_expiry"},
		{"short cvv", func(r *ProcessRequest) { r.Card.CVV = "12" }, "cvv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			_, err := svc.ProcessPayment(context.Background(), req)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	// Nothing is persisted for a rejected request.
	assert.Empty(t, store.payments)
	assert.Empty(t, pub.events)
}

func TestGetPaymentByTransaction(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	gw := &fakeGateway{result: ChargeResult{Success: true, GatewayRef: "ref-3", Message: "approved"}}
	svc := NewService(store, gw, pub, time.Second)

	payment, err := svc.ProcessPayment(context.Background(), validRequest())
	require.NoError(t, err)

	got, err := svc.GetPaymentByTransaction(context.Background(), payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)
}
