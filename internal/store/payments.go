package store

import (
	"context"
	"database/sql"
	"fmt"

	"telco-billing/internal/models"
)

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (transaction_id, user_id, bill_id, amount, method, status, card_last_four, gateway_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.TransactionID, payment.UserID, payment.BillID, payment.Amount,
		payment.Method, payment.Status, payment.CardLastFour, payment.GatewayResponse)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByTransactionID retrieves a payment by its transaction id
func (s *Store) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE transaction_id = $1", transactionID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment not found: %s", transactionID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaymentsByUserID retrieves payments for a user, newest first
func (s *Store) GetPaymentsByUserID(ctx context.Context, userID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return payments, err
}

// GetPaymentsByBillID retrieves payments made against a bill
func (s *Store) GetPaymentsByBillID(ctx context.Context, billID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE bill_id = $1 ORDER BY created_at DESC", billID)
	return payments, err
}

// FinalizePayment moves a payment out of PROCESSING exactly once. The status
// guard in the WHERE clause rejects any second transition.
func (s *Store) FinalizePayment(ctx context.Context, paymentID int64, status, gatewayResponse string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, gateway_response = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		status, gatewayResponse, paymentID, models.PaymentStatusProcessing)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("payment %d is not in %s state", paymentID, models.PaymentStatusProcessing)
	}
	return nil
}
