package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"telco-billing/internal/models"
)

// CreateNotification creates a new notification record in PENDING state
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, phone_number, email, type, subject, message, status, send_email, send_sms, send_push, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, n, query,
		n.UserID, n.PhoneNumber, n.Email, n.Type, n.Subject, n.Message,
		n.Status, n.SendEmail, n.SendSms, n.SendPush, n.Metadata)
}

// UpdateNotificationOutcome persists the result of a dispatch attempt
func (s *Store) UpdateNotificationOutcome(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications
		 SET status = $1, sent_via_email = $2, sent_via_sms = $3, sent_via_push = $4,
		     retry_count = $5, error_detail = $6, sent_at = $7, updated_at = NOW()
		 WHERE id = $8`,
		n.Status, n.SentViaEmail, n.SentViaSms, n.SentViaPush,
		n.RetryCount, n.ErrorDetail, n.SentAt, n.ID)
	return err
}

// GetNotificationByID retrieves a notification by ID
func (s *Store) GetNotificationByID(ctx context.Context, id int64) (*models.Notification, error) {
	var n models.Notification
	err := s.db.GetContext(ctx, &n, "SELECT * FROM notifications WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("notification not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetNotificationsByUserID retrieves notifications for a user, newest first
func (s *Store) GetNotificationsByUserID(ctx context.Context, userID int64) ([]models.Notification, error) {
	var ns []models.Notification
	err := s.db.SelectContext(ctx, &ns,
		"SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return ns, err
}

// notification columns callers may sort history by
var notificationSortColumns = map[string]string{
	"created_at": "created_at",
	"sent_at":    "sent_at",
	"type":       "type",
	"status":     "status",
}

// GetNotificationHistory retrieves a page of a user's notifications. sortBy is
// checked against a fixed column list; anything else falls back to created_at.
func (s *Store) GetNotificationHistory(ctx context.Context, userID int64, offset, limit int, sortBy, sortDir string) ([]models.Notification, int, error) {
	column, ok := notificationSortColumns[strings.ToLower(sortBy)]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(sortDir, "ASC") {
		dir = "ASC"
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1", userID); err != nil {
		return nil, 0, err
	}

	var ns []models.Notification
	query := fmt.Sprintf(
		"SELECT * FROM notifications WHERE user_id = $1 ORDER BY %s %s LIMIT $2 OFFSET $3",
		column, dir)
	err := s.db.SelectContext(ctx, &ns, query, userID, limit, offset)
	return ns, total, err
}

// GetRetryableNotifications retrieves FAILED records still within their retry
// budget
func (s *Store) GetRetryableNotifications(ctx context.Context, maxRetries int) ([]models.Notification, error) {
	var ns []models.Notification
	err := s.db.SelectContext(ctx, &ns,
		"SELECT * FROM notifications WHERE status = $1 AND retry_count < $2 ORDER BY created_at",
		models.NotificationStatusFailed, maxRetries)
	return ns, err
}
