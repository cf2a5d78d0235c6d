package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"telco-billing/internal/models"
)

// CreateBill creates a new bill with its line items in one transaction
func (s *Store) CreateBill(ctx context.Context, bill *models.Bill, items []models.BillItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bills (user_id, mobile_number, bill_number, billing_period, bill_date, due_date, total_amount, paid_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, bill, query,
		bill.UserID, bill.MobileNumber, bill.BillNumber, bill.BillingPeriod,
		bill.BillDate, bill.DueDate, bill.TotalAmount, bill.PaidAmount, bill.Status); err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}

	for i := range items {
		items[i].BillID = bill.ID
		if err := tx.GetContext(ctx, &items[i].ID,
			`INSERT INTO bill_items (bill_id, description, charge_type, amount, quantity)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			items[i].BillID, items[i].Description, items[i].ChargeType,
			items[i].Amount, items[i].Quantity); err != nil {
			return fmt.Errorf("failed to insert bill item: %w", err)
		}
	}

	return tx.Commit()
}

// GetBillByID retrieves a bill by ID
func (s *Store) GetBillByID(ctx context.Context, id int64) (*models.Bill, error) {
	var bill models.Bill
	err := s.db.GetContext(ctx, &bill, "SELECT * FROM bills WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetBillByNumber retrieves a bill by its human-readable bill number
func (s *Store) GetBillByNumber(ctx context.Context, billNumber string) (*models.Bill, error) {
	var bill models.Bill
	err := s.db.GetContext(ctx, &bill, "SELECT * FROM bills WHERE bill_number = $1", billNumber)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill not found: %s", billNumber)
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetBillsByUserID retrieves bills for a user, newest first
func (s *Store) GetBillsByUserID(ctx context.Context, userID int64) ([]models.Bill, error) {
	var bills []models.Bill
	err := s.db.SelectContext(ctx, &bills,
		"SELECT * FROM bills WHERE user_id = $1 ORDER BY bill_date DESC", userID)
	return bills, err
}

// GetUnpaidBillsByUserID retrieves a user's bills still awaiting payment
func (s *Store) GetUnpaidBillsByUserID(ctx context.Context, userID int64) ([]models.Bill, error) {
	var bills []models.Bill
	err := s.db.SelectContext(ctx, &bills,
		"SELECT * FROM bills WHERE user_id = $1 AND status IN ($2, $3, $4) ORDER BY due_date",
		userID, models.BillStatusUnpaid, models.BillStatusPartiallyPaid, models.BillStatusOverdue)
	return bills, err
}

// GetBillItems retrieves all line items for a bill
func (s *Store) GetBillItems(ctx context.Context, billID int64) ([]models.BillItem, error) {
	var items []models.BillItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM bill_items WHERE bill_id = $1 ORDER BY id", billID)
	return items, err
}

// GetDueBills retrieves bills past their due date that are still payable
func (s *Store) GetDueBills(ctx context.Context, now time.Time) ([]models.Bill, error) {
	var bills []models.Bill
	err := s.db.SelectContext(ctx, &bills,
		"SELECT * FROM bills WHERE status IN ($1, $2) AND due_date < $3 ORDER BY due_date",
		models.BillStatusUnpaid, models.BillStatusPartiallyPaid, now)
	return bills, err
}

// MarkBillOverdue flips a bill to OVERDUE iff it is still payable and past
// due. The WHERE clause is the compare-and-set that lets a concurrent payment
// win the race: a bill paid in the same instant never ends up overdue.
func (s *Store) MarkBillOverdue(ctx context.Context, billID int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status IN ($3, $4) AND due_date < $5`,
		models.BillStatusOverdue, billID,
		models.BillStatusUnpaid, models.BillStatusPartiallyPaid, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ApplyPayment credits a payment to a bill exactly once per transaction id.
// The insert into bill_payments is the idempotency point: a redelivered event
// conflicts on transaction_id and the credit is not applied again. The bill
// row is locked so paid_amount and status move together.
func (s *Store) ApplyPayment(ctx context.Context, billID int64, transactionID string, amount int64, now time.Time) (applied bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var bill models.Bill
	err = tx.GetContext(ctx, &bill, "SELECT * FROM bills WHERE id = $1 FOR UPDATE", billID)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("bill not found: %d", billID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock bill: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bill_payments (bill_id, transaction_id, amount)
		 VALUES ($1, $2, $3) ON CONFLICT (transaction_id) DO NOTHING`,
		billID, transactionID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to record applied payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	var paid int64
	if err := tx.GetContext(ctx, &paid,
		"SELECT COALESCE(SUM(amount), 0) FROM bill_payments WHERE bill_id = $1", billID); err != nil {
		return false, fmt.Errorf("failed to sum applied payments: %w", err)
	}

	status := bill.Status
	if !models.IsTerminalBillStatus(status) {
		status = models.DeriveBillStatus(paid, bill.TotalAmount, bill.DueDate, now)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE bills SET paid_amount = $1, status = $2, updated_at = NOW() WHERE id = $3",
		paid, status, billID); err != nil {
		return false, fmt.Errorf("failed to update bill: %w", err)
	}

	return true, tx.Commit()
}
