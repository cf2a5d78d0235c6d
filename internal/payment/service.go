package payment

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"telco-billing/internal/models"
	"telco-billing/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of the entity store the payment processor needs
type Store interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FinalizePayment(ctx context.Context, paymentID int64, status, gatewayResponse string) error
	GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	GetPaymentsByUserID(ctx context.Context, userID int64) ([]models.Payment, error)
	GetPaymentsByBillID(ctx context.Context, billID int64) ([]models.Payment, error)
}

// Publisher publishes payment outcome events
type Publisher interface {
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
}

// ValidationError is a synchronous rejection of a bad request. Nothing is
// persisted and no event is published when one of these is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Service owns the payment lifecycle
type Service struct {
	store          Store
	gateway        Gateway
	publisher      Publisher
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

// NewService creates a new payment service
func NewService(store Store, gateway Gateway, publisher Publisher, gatewayTimeout time.Duration) *Service {
	return &Service{
		store:          store,
		gateway:        gateway,
		publisher:      publisher,
		gatewayTimeout: gatewayTimeout,
		logger:         util.GetLogger(),
	}
}

// ProcessRequest is a request to pay a bill
type ProcessRequest struct {
	UserID int64          `json:"user_id" binding:"required"`
	BillID int64          `json:"bill_id" binding:"required"`
	Amount int64          `json:"amount" binding:"required"`
	Method string         `json:"method" binding:"required"`
	Card   CardInstrument `json:"card"`
}

var (
	cardNumberRe = regexp.MustCompile(`^\d{12,19}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cardCVVRe    = regexp.MustCompile(`^\d{3,4}$`)
)

func validate(req *ProcessRequest) error {
	if req.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if !cardNumberRe.MatchString(req.Card.Number) {
		return &ValidationError{Field: "card_number", Message: "must be 12-19 digits"}
	}
	if !cardExpiryRe.MatchString(req.Card.Expiry) {
		return &ValidationError{Field: "card_expiry", Message: "must be MM/YY"}
	}
	if !cardCVVRe.MatchString(req.Card.CVV) {
		return &ValidationError{Field: "cvv", Message: "must be 3-4 digits"}
	}
	return nil
}

// ProcessPayment validates the request, runs a single gateway charge under a
// bounded timeout and finalizes the payment before returning. The row never
// stays PROCESSING: a gateway timeout or error maps to FAILED. Events are
// published only on success, after the final state is committed.
func (s *Service) ProcessPayment(ctx context.Context, req *ProcessRequest) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "payment.ProcessPayment")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validate(req); err != nil {
		util.PaymentFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	payment := &models.Payment{
		TransactionID: uuid.New().String(),
		UserID:        req.UserID,
		BillID:        req.BillID,
		Amount:        req.Amount,
		Method:        req.Method,
		Status:        models.PaymentStatusProcessing,
		CardLastFour:  req.Card.Number[len(req.Card.Number)-4:],
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		util.PaymentFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.logger.Info("Processing payment",
		zap.String("transaction_id", payment.TransactionID),
		zap.Int64("bill_id", payment.BillID),
		zap.Int64("amount", payment.Amount))

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	result, err := s.gateway.Charge(gwCtx, payment.TransactionID, req.Card, req.Amount)
	cancel()

	if err != nil {
		// Gateway failure is terminal for this attempt; surface as FAILED,
		// never left PROCESSING.
		s.logger.Warn("Gateway call failed",
			zap.String("transaction_id", payment.TransactionID),
			zap.Error(err))
		util.PaymentFailedTotal.WithLabelValues("gateway_error").Inc()
		return s.finalize(ctx, payment, models.PaymentStatusFailed, fmt.Sprintf("gateway error: %v", err))
	}

	if !result.Success {
		util.PaymentFailedTotal.WithLabelValues("declined").Inc()
		return s.finalize(ctx, payment, models.PaymentStatusFailed,
			fmt.Sprintf("%s (ref=%s)", result.Message, result.GatewayRef))
	}

	util.PaymentSuccessTotal.Inc()
	done, err := s.finalize(ctx, payment, models.PaymentStatusCompleted,
		fmt.Sprintf("%s (ref=%s)", result.Message, result.GatewayRef))
	if err != nil {
		return nil, err
	}

	event := &models.PaymentCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventType:     models.EventTypePaymentCompleted,
			CorrelationID: payment.TransactionID,
			UserID:        payment.UserID,
			DeliveryID:    uuid.New().String(),
			Timestamp:     time.Now(),
		},
		PaymentID:     payment.ID,
		BillID:        payment.BillID,
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
	}

	if err := s.publisher.PublishPaymentCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
	}

	return done, nil
}

func (s *Service) finalize(ctx context.Context, payment *models.Payment, status, gatewayResponse string) (*models.Payment, error) {
	if err := s.store.FinalizePayment(ctx, payment.ID, status, gatewayResponse); err != nil {
		return nil, fmt.Errorf("failed to finalize payment: %w", err)
	}
	payment.Status = status
	payment.GatewayResponse = gatewayResponse

	s.logger.Info("Payment finalized",
		zap.String("transaction_id", payment.TransactionID),
		zap.String("status", status))
	return payment, nil
}

// GetPayment retrieves a payment by ID
func (s *Service) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return s.store.GetPaymentByID(ctx, id)
}

// GetPaymentByTransaction retrieves a payment by transaction id
func (s *Service) GetPaymentByTransaction(ctx context.Context, transactionID string) (*models.Payment, error) {
	return s.store.GetPaymentByTransactionID(ctx, transactionID)
}

// GetUserPayments retrieves a user's payments
func (s *Service) GetUserPayments(ctx context.Context, userID int64) ([]models.Payment, error) {
	return s.store.GetPaymentsByUserID(ctx, userID)
}

// GetBillPayments retrieves payments made against a bill
func (s *Service) GetBillPayments(ctx context.Context, billID int64) ([]models.Payment, error) {
	return s.store.GetPaymentsByBillID(ctx, billID)
}
