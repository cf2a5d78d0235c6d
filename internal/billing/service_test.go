package billing

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
	mu        sync.Mutex
	nextID    int64
	bills     map[int64]*models.Bill
	items     map[int64][]models.BillItem
	credits   map[string]int64 // transaction id -> bill id
	processed map[string]bool

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bills:     make(map[int64]*models.Bill),
		items:     make(map[int64][]models.BillItem),
		credits:   make(map[string]int64),
		processed: make(map[string]bool),
	}
}

func (f *fakeStore) CreateBill(_ context.Context, bill *models.Bill, items []models.BillItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	bill.ID = f.nextID
	copied := *bill
	f.bills[bill.ID] = &copied
	f.items[bill.ID] = items
	return nil
}

func (f *fakeStore) GetBillByID(_ context.Context, id int64) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill, ok := f.bills[id]
	if !ok {
		return nil, fmt.Errorf("bill %d not found", id)
	}
	copied := *bill
	return &copied, nil
}

func (f *fakeStore) GetBillByNumber(_ context.Context, billNumber string) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, bill := range f.bills {
		if bill.BillNumber == billNumber {
			copied := *bill
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("bill %s not found", billNumber)
}

func (f *fakeStore) GetBillsByUserID(_ context.Context, userID int64) ([]models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Bill
	for _, bill := range f.bills {
		if bill.UserID == userID {
			out = append(out, *bill)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUnpaidBillsByUserID(_ context.Context, userID int64) ([]models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Bill
	for _, bill := range f.bills {
		if bill.UserID == userID && !models.IsTerminalBillStatus(bill.Status) {
			out = append(out, *bill)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBillItems(_ context.Context, billID int64) ([]models.BillItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[billID], nil
}

func (f *fakeStore) GetDueBills(_ context.Context, now time.Time) ([]models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Bill
	for _, bill := range f.bills {
		switch bill.Status {
		case models.BillStatusUnpaid, models.BillStatusPartiallyPaid:
			if bill.DueDate.Before(now) {
				out = append(out, *bill)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) MarkBillOverdue(_ context.Context, billID int64, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill, ok := f.bills[billID]
	if !ok {
		return false, fmt.Errorf("bill %d not found", billID)
	}
	switch bill.Status {
	case models.BillStatusUnpaid, models.BillStatusPartiallyPaid:
		bill.Status = models.BillStatusOverdue
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) ApplyPayment(_ context.Context, billID int64, transactionID string, amount int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill, ok := f.bills[billID]
	if !ok {
		return false, fmt.Errorf("bill %d not found", billID)
	}
	if _, seen := f.credits[transactionID]; seen {
		return false, nil
	}
	f.credits[transactionID] = billID
	bill.PaidAmount += amount
	if !models.IsTerminalBillStatus(bill.Status) {
		bill.Status = models.DeriveBillStatus(bill.PaidAmount, bill.TotalAmount, bill.DueDate, now)
	}
	return true, nil
}

func (f *fakeStore) IsEventProcessed(_ context.Context, deliveryID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[deliveryID], nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, deliveryID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[deliveryID] = true
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	generated []*models.BillGeneratedEvent
	overdue   []*models.BillOverdueEvent
	publishErr error
}

func (f *fakePublisher) PublishBillGenerated(_ context.Context, event *models.BillGeneratedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.generated = append(f.generated, event)
	return nil
}

func (f *fakePublisher) PublishBillOverdue(_ context.Context, event *models.BillOverdueEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.overdue = append(f.overdue, event)
	return nil
}

type fakeCatalog struct {
	services []ActiveService
	err      error
}

func (f *fakeCatalog) GetActiveServices(_ context.Context, _ int64) ([]ActiveService, error) {
	return f.services, f.err
}

type fakeDirectory struct {
	contact Contact
	err     error
}

func (f *fakeDirectory) GetContact(_ context.Context, _ int64) (Contact, error) {
	return f.contact, f.err
}

func newTestService(store *fakeStore, catalog *fakeCatalog, directory *fakeDirectory, pub *fakePublisher) *Service {
	return NewService(store, catalog, directory, pub, 50000, 15)
}

func TestGenerateBillIncludesActiveServices(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	catalog := &fakeCatalog{services: []ActiveService{
		{ServiceType: "DATA", ServiceName: "5GB Data Plan"},
		{ServiceType: "VOICE", ServiceName: "Unlimited Voice"},
	}}
	directory := &fakeDirectory{contact: Contact{Email: "kasun@example.com", MobileNumber: "0771234567"}}
	svc := newTestService(store, catalog, directory, pub)

	bill, items, err := svc.GenerateBill(context.Background(), 42)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, models.ChargeTypeSubscription, items[0].ChargeType)
	assert.Equal(t, int64(50000), items[0].Amount)
	assert.Equal(t, int64(50000+85000+45000), bill.TotalAmount)
	assert.Equal(t, models.BillStatusUnpaid, bill.Status)
	assert.Equal(t, "0771234567", bill.MobileNumber)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 15), bill.DueDate, 5*time.Second)

	require.Len(t, pub.generated, 1)
	event := pub.generated[0]
	assert.Equal(t, models.EventTypeBillGenerated, event.EventType)
	assert.Equal(t, bill.BillNumber, event.CorrelationID)
	assert.Equal(t, bill.ID, event.BillID)
	assert.Equal(t, "kasun@example.com", event.Email)
	assert.NotEmpty(t, event.DeliveryID)
}

func TestGenerateBillCatalogDownFallsBackToBaseFee(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	catalog := &fakeCatalog{err: errors.New("connection refused")}
	directory := &fakeDirectory{contact: Contact{Email: "a@b.lk", MobileNumber: "0770001111"}}
	svc := newTestService(store, catalog, directory, pub)

	bill, items, err := svc.GenerateBill(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, models.ChargeTypeSubscription, items[0].ChargeType)
	assert.Equal(t, int64(50000), bill.TotalAmount)
	assert.Len(t, pub.generated, 1)
}

func TestGenerateBillDirectoryDownUsesFallbackContact(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	catalog := &fakeCatalog{}
	directory := &fakeDirectory{err: errors.New("timeout")}
	svc := newTestService(store, catalog, directory, pub)

	bill, _, err := svc.GenerateBill(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, FallbackPhoneNumber, bill.MobileNumber)
	require.Len(t, pub.generated, 1)
	assert.Equal(t, FallbackEmail, pub.generated[0].Email)
}

func TestGenerateBillStoreFailureDoesNotPublish(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db down")
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{}, pub)

	_, _, err := svc.GenerateBill(context.Background(), 7)
	assert.Error(t, err)
	assert.Empty(t, pub.generated)
}

func paymentEvent(billID int64, txID, deliveryID string, amount int64) *models.PaymentCompletedEvent {
	return &models.PaymentCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventType:     models.EventTypePaymentCompleted,
			CorrelationID: txID,
			UserID:        42,
			DeliveryID:    deliveryID,
			Timestamp:     time.Now(),
		},
		BillID:        billID,
		TransactionID: txID,
		Amount:        amount,
	}
}

func TestHandlePaymentCompletedFullPayment(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{contact: Contact{Email: "a@b.lk", MobileNumber: "0770001111"}}, pub)

	bill, _, err := svc.GenerateBill(context.Background(), 42)
	require.NoError(t, err)

	err = svc.HandlePaymentCompleted(context.Background(), paymentEvent(bill.ID, "tx-1", "d-1", bill.TotalAmount))
	require.NoError(t, err)

	got, err := store.GetBillByID(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPaid, got.Status)
	assert.Equal(t, bill.TotalAmount, got.PaidAmount)
	assert.True(t, store.processed["d-1"])
}

func TestHandlePaymentCompletedPartialPayment(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{contact: Contact{Email: "a@b.lk", MobileNumber: "0770001111"}}, pub)

	bill, _, err := svc.GenerateBill(context.Background(), 42)
	require.NoError(t, err)

	err = svc.HandlePaymentCompleted(context.Background(), paymentEvent(bill.ID, "tx-1", "d-1", bill.TotalAmount/2))
	require.NoError(t, err)

	got, err := store.GetBillByID(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPartiallyPaid, got.Status)
	assert.Equal(t, bill.TotalAmount/2, got.PaidAmount)
}

func TestHandlePaymentCompletedRedeliveryNeverDoubleCredits(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{contact: Contact{Email: "a@b.lk", MobileNumber: "0770001111"}}, pub)

	bill, _, err := svc.GenerateBill(context.Background(), 42)
	require.NoError(t, err)

	// Same delivery id redelivered by the consumer group.
	event := paymentEvent(bill.ID, "tx-1", "d-1", 10000)
	require.NoError(t, svc.HandlePaymentCompleted(context.Background(), event))
	require.NoError(t, svc.HandlePaymentCompleted(context.Background(), event))

	// Same transaction republished under a fresh delivery id.
	require.NoError(t, svc.HandlePaymentCompleted(context.Background(), paymentEvent(bill.ID, "tx-1", "d-2", 10000)))

	got, err := store.GetBillByID(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.PaidAmount)
}

func TestHandlePaymentCompletedOrphanedEventDropped(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{}, pub)

	// Crediting an unknown bill must not bounce the message back to the
	// broker for endless redelivery.
	err := svc.HandlePaymentCompleted(context.Background(), paymentEvent(999, "tx-x", "d-x", 5000))
	assert.NoError(t, err)
}

func TestSweepOverdueFlipsDueBillsOnce(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{contact: Contact{Email: "a@b.lk", MobileNumber: "0770001111"}}, pub)

	bill, _, err := svc.GenerateBill(context.Background(), 42)
	require.NoError(t, err)

	after := bill.DueDate.AddDate(0, 0, 1)

	flipped, err := svc.SweepOverdue(context.Background(), after)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)
	require.Len(t, pub.overdue, 1)
	assert.Equal(t, bill.ID, pub.overdue[0].BillID)
	assert.Equal(t, bill.TotalAmount, pub.overdue[0].Amount)

	// A second sweep finds nothing left to flip and publishes nothing new.
	flipped, err = svc.SweepOverdue(context.Background(), after)
	require.NoError(t, err)
	assert.Equal(t, 0, flipped)
	assert.Len(t, pub.overdue, 1)
}

func TestSweepOverdueSkipsPaidBills(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{contact: Contact{Email: "a@b.lk", MobileNumber: "0770001111"}}, pub)

	bill, _, err := svc.GenerateBill(context.Background(), 42)
	require.NoError(t, err)

	require.NoError(t, svc.HandlePaymentCompleted(context.Background(),
		paymentEvent(bill.ID, "tx-1", "d-1", bill.TotalAmount)))

	flipped, err := svc.SweepOverdue(context.Background(), bill.DueDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, flipped)
	assert.Empty(t, pub.overdue)

	got, err := store.GetBillByID(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPaid, got.Status)
}

func TestSweepOverdueStopsOnCancelledContext(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newTestService(store, &fakeCatalog{}, &fakeDirectory{contact: Contact{Email: "a@b.lk", MobileNumber: "0770001111"}}, pub)

	for i := 0; i < 3; i++ {
		_, _, err := svc.GenerateBill(context.Background(), int64(i+1))
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SweepOverdue(ctx, time.Now().AddDate(0, 1, 0))
	assert.ErrorIs(t, err, context.Canceled)
}
