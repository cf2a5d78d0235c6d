package billing

import (
	"context"
	"fmt"
	"time"

	"telco-billing/internal/models"
	"telco-billing/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of the entity store the billing coordinator needs
type Store interface {
	CreateBill(ctx context.Context, bill *models.Bill, items []models.BillItem) error
	GetBillByID(ctx context.Context, id int64) (*models.Bill, error)
	GetBillByNumber(ctx context.Context, billNumber string) (*models.Bill, error)
	GetBillsByUserID(ctx context.Context, userID int64) ([]models.Bill, error)
	GetUnpaidBillsByUserID(ctx context.Context, userID int64) ([]models.Bill, error)
	GetBillItems(ctx context.Context, billID int64) ([]models.BillItem, error)
	GetDueBills(ctx context.Context, now time.Time) ([]models.Bill, error)
	MarkBillOverdue(ctx context.Context, billID int64, now time.Time) (bool, error)
	ApplyPayment(ctx context.Context, billID int64, transactionID string, amount int64, now time.Time) (bool, error)
	IsEventProcessed(ctx context.Context, deliveryID string) (bool, error)
	MarkEventProcessed(ctx context.Context, deliveryID, eventType string) error
}

// Publisher publishes billing events
type Publisher interface {
	PublishBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error
	PublishBillOverdue(ctx context.Context, event *models.BillOverdueEvent) error
}

// Service generates bills, reconciles payment events against them and runs
// the overdue sweep
type Service struct {
	store     Store
	catalog   CatalogClient
	directory UserDirectory
	publisher Publisher
	baseFee   int64
	dueDays   int
	logger    *zap.Logger
}

// NewService creates a new billing service
func NewService(store Store, catalog CatalogClient, directory UserDirectory, publisher Publisher, baseFee int64, dueDays int) *Service {
	return &Service{
		store:     store,
		catalog:   catalog,
		directory: directory,
		publisher: publisher,
		baseFee:   baseFee,
		dueDays:   dueDays,
		logger:    util.GetLogger(),
	}
}

// GenerateBill builds a bill for the user's current billing period. The
// catalog lookup is best effort: if it fails the bill carries only the base
// subscription line and generation still succeeds.
func (s *Service) GenerateBill(ctx context.Context, userID int64) (*models.Bill, []models.BillItem, error) {
	ctx, span := util.StartSpan(ctx, "billing.GenerateBill")
	defer span.End()

	now := time.Now()

	items := []models.BillItem{{
		Description: "Monthly subscription",
		ChargeType:  models.ChargeTypeSubscription,
		Amount:      s.baseFee,
		Quantity:    1,
	}}

	services, err := s.catalog.GetActiveServices(ctx, userID)
	if err != nil {
		util.BillsDegradedTotal.Inc()
		s.logger.Warn("Catalog unavailable, generating base-subscription-only bill",
			zap.Int64("user_id", userID),
			zap.Error(err))
		services = nil
	}

	for _, svc := range services {
		rate, known := rateFor(svc.ServiceType)
		if !known {
			s.logger.Warn("Unknown service category, using default rate",
				zap.String("service_type", svc.ServiceType),
				zap.Int64("user_id", userID))
		}
		chargeType, _ := models.NormalizeChargeType(svc.ServiceType)
		items = append(items, models.BillItem{
			Description: svc.ServiceName,
			ChargeType:  chargeType,
			Amount:      rate,
			Quantity:    1,
		})
	}

	var total int64
	for _, item := range items {
		total += item.Amount
	}

	contact, err := s.directory.GetContact(ctx, userID)
	if err != nil {
		s.logger.Warn("User directory unavailable, using fallback contact",
			zap.Int64("user_id", userID),
			zap.Error(err))
		contact = Contact{Email: FallbackEmail, MobileNumber: FallbackPhoneNumber}
	}

	bill := &models.Bill{
		UserID:        userID,
		MobileNumber:  contact.MobileNumber,
		BillNumber:    fmt.Sprintf("BILL-%d", now.UnixMilli()),
		BillingPeriod: now.Format("Jan 2006"),
		BillDate:      now,
		DueDate:       now.AddDate(0, 0, s.dueDays),
		TotalAmount:   total,
		PaidAmount:    0,
		Status:        models.BillStatusUnpaid,
	}

	if err := s.store.CreateBill(ctx, bill, items); err != nil {
		return nil, nil, fmt.Errorf("failed to create bill: %w", err)
	}

	util.BillsGeneratedTotal.Inc()
	s.logger.Info("Bill generated",
		zap.Int64("bill_id", bill.ID),
		zap.Int64("user_id", userID),
		zap.Int64("total_amount", total))

	event := &models.BillGeneratedEvent{
		BaseEvent: models.BaseEvent{
			EventType:     models.EventTypeBillGenerated,
			CorrelationID: bill.BillNumber,
			UserID:        userID,
			DeliveryID:    uuid.New().String(),
			Timestamp:     now,
		},
		BillID:        bill.ID,
		PhoneNumber:   contact.MobileNumber,
		Email:         contact.Email,
		BillNumber:    bill.BillNumber,
		Amount:        bill.TotalAmount,
		DueDate:       bill.DueDate,
		BillingPeriod: bill.BillingPeriod,
	}

	if err := s.publisher.PublishBillGenerated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BillGenerated event", zap.Error(err))
	}

	return bill, items, nil
}

// HandlePaymentCompleted credits a payment event to its bill. Safe under
// redelivery twice over: the consumer-group delivery id is checked first, and
// the credit itself is keyed by transaction id so a duplicate never
// double-applies.
func (s *Service) HandlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "billing.HandlePaymentCompleted")
	defer span.End()

	if event.DeliveryID != "" {
		processed, err := s.store.IsEventProcessed(ctx, event.DeliveryID)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			util.PaymentsDuplicateTotal.Inc()
			s.logger.Info("Event already processed",
				zap.String("delivery_id", event.DeliveryID))
			return nil
		}
	}

	applied, err := s.store.ApplyPayment(ctx, event.BillID, event.TransactionID, event.Amount, time.Now())
	if err != nil {
		// A credit against a bill this service has never seen is an invariant
		// violation: log it, drop the event, leave a metric for operators.
		util.PaymentsOrphanedTotal.Inc()
		s.logger.Error("Failed to apply payment, dropping event",
			zap.Int64("bill_id", event.BillID),
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err))
		return nil
	}

	if applied {
		util.PaymentsAppliedTotal.Inc()
		s.logger.Info("Payment credited",
			zap.Int64("bill_id", event.BillID),
			zap.String("transaction_id", event.TransactionID),
			zap.Int64("amount", event.Amount))
	} else {
		util.PaymentsDuplicateTotal.Inc()
		s.logger.Info("Payment already credited, skipping",
			zap.String("transaction_id", event.TransactionID))
	}

	if event.DeliveryID != "" {
		if err := s.store.MarkEventProcessed(ctx, event.DeliveryID, event.EventType); err != nil {
			s.logger.Error("Failed to mark event processed", zap.Error(err))
		}
	}

	return nil
}

// SweepOverdue flips payable bills past their due date to OVERDUE and
// publishes BILL_OVERDUE for each actual transition. Each flip is a
// compare-and-set on the bill row, so a payment landing in the same instant
// wins and the bill ends PAID, never OVERDUE. Cancellable between bills.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := util.StartSpan(ctx, "billing.SweepOverdue")
	defer span.End()

	bills, err := s.store.GetDueBills(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to scan due bills: %w", err)
	}

	flipped := 0
	for _, bill := range bills {
		if err := ctx.Err(); err != nil {
			return flipped, err
		}

		changed, err := s.store.MarkBillOverdue(ctx, bill.ID, now)
		if err != nil {
			s.logger.Error("Failed to mark bill overdue",
				zap.Int64("bill_id", bill.ID),
				zap.Error(err))
			continue
		}
		if !changed {
			// Lost the race to a payment; nothing to announce.
			continue
		}

		flipped++
		util.BillsOverdueTotal.Inc()
		s.logger.Info("Bill overdue",
			zap.Int64("bill_id", bill.ID),
			zap.Int64("user_id", bill.UserID))

		event := &models.BillOverdueEvent{
			BaseEvent: models.BaseEvent{
				EventType:     models.EventTypeBillOverdue,
				CorrelationID: bill.BillNumber,
				UserID:        bill.UserID,
				DeliveryID:    uuid.New().String(),
				Timestamp:     now,
			},
			BillID: bill.ID,
			Amount: bill.TotalAmount,
		}

		if err := s.publisher.PublishBillOverdue(ctx, event); err != nil {
			s.logger.Error("Failed to publish BillOverdue event",
				zap.Int64("bill_id", bill.ID),
				zap.Error(err))
		}
	}

	return flipped, nil
}

// GetBill retrieves a bill with its line items
func (s *Service) GetBill(ctx context.Context, billID int64) (*models.Bill, []models.BillItem, error) {
	bill, err := s.store.GetBillByID(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.GetBillItems(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	return bill, items, nil
}

// GetBillByNumber retrieves a bill by its bill number
func (s *Service) GetBillByNumber(ctx context.Context, billNumber string) (*models.Bill, error) {
	return s.store.GetBillByNumber(ctx, billNumber)
}

// GetUserBills retrieves all bills for a user
func (s *Service) GetUserBills(ctx context.Context, userID int64) ([]models.Bill, error) {
	return s.store.GetBillsByUserID(ctx, userID)
}

// GetUnpaidBills retrieves a user's bills still awaiting payment
func (s *Service) GetUnpaidBills(ctx context.Context, userID int64) ([]models.Bill, error) {
	return s.store.GetUnpaidBillsByUserID(ctx, userID)
}
