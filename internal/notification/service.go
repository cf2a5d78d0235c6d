package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"telco-billing/internal/models"
	"telco-billing/internal/util"

	"go.uber.org/zap"
)

// Store is the slice of the entity store the dispatcher needs
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	UpdateNotificationOutcome(ctx context.Context, n *models.Notification) error
	GetNotificationByID(ctx context.Context, id int64) (*models.Notification, error)
	GetNotificationsByUserID(ctx context.Context, userID int64) ([]models.Notification, error)
	GetNotificationHistory(ctx context.Context, userID int64, offset, limit int, sortBy, sortDir string) ([]models.Notification, int, error)
	GetRetryableNotifications(ctx context.Context, maxRetries int) ([]models.Notification, error)
}

// Deduper suppresses redelivered events inside a retention window
type Deduper interface {
	MarkDeliverySeen(ctx context.Context, group, deliveryID string, retention time.Duration) (bool, error)
}

// Request is a normalized notification request, whatever upstream event
// produced it
type Request struct {
	UserID      int64  `json:"user_id" binding:"required"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Type        string `json:"type" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
	Message     string `json:"message" binding:"required"`
	SendEmail   bool   `json:"send_email"`
	SendSms     bool   `json:"send_sms"`
	SendPush    bool   `json:"send_push"`
	Metadata    string `json:"metadata"`
}

const consumerGroup = "notification-service-group"

// Dispatcher fans notification requests out to independent channels and
// records per-channel outcomes
type Dispatcher struct {
	store     Store
	email     Sender
	sms       Sender
	push      PushSender
	deduper   Deduper
	retention time.Duration
	logger    *zap.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(store Store, email Sender, sms Sender, push PushSender, deduper Deduper, retention time.Duration) *Dispatcher {
	return &Dispatcher{
		store:     store,
		email:     email,
		sms:       sms,
		push:      push,
		deduper:   deduper,
		retention: retention,
		logger:    util.GetLogger(),
	}
}

// Dispatch creates a PENDING record, attempts every requested channel and
// persists the combined outcome once. One channel failing never aborts the
// others; SENT means at least one requested channel got through.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*models.Notification, error) {
	ctx, span := util.StartSpan(ctx, "notification.Dispatch")
	defer span.End()

	n := &models.Notification{
		UserID:      req.UserID,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Type:        req.Type,
		Subject:     req.Subject,
		Message:     req.Message,
		Status:      models.NotificationStatusPending,
		SendEmail:   req.SendEmail,
		SendSms:     req.SendSms,
		SendPush:    req.SendPush,
		Metadata:    req.Metadata,
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	d.attemptChannels(ctx, n)

	if err := d.store.UpdateNotificationOutcome(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification outcome: %w", err)
	}

	util.NotificationsDispatchedTotal.WithLabelValues(n.Status).Inc()
	d.logger.Info("Notification dispatched",
		zap.Int64("notification_id", n.ID),
		zap.String("type", n.Type),
		zap.String("status", n.Status))

	return n, nil
}

// attemptChannels runs every still-outstanding requested channel
// concurrently, each attempt isolated so a panic or error in one transport
// cannot touch the others, then computes the final status.
func (d *Dispatcher) attemptChannels(ctx context.Context, n *models.Notification) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		errors []string
	)

	attempt := func(channel string, sent *bool, send func(context.Context) error) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				mu.Lock()
				errors = append(errors, fmt.Sprintf("%s: panic: %v", channel, r))
				mu.Unlock()
				util.NotificationChannelSendsTotal.WithLabelValues(channel, "panic").Inc()
			}
		}()

		if err := send(ctx); err != nil {
			util.NotificationChannelSendsTotal.WithLabelValues(channel, "error").Inc()
			d.logger.Warn("Channel send failed",
				zap.Int64("notification_id", n.ID),
				zap.String("channel", channel),
				zap.Error(err))
			mu.Lock()
			errors = append(errors, fmt.Sprintf("%s: %v", channel, err))
			mu.Unlock()
			return
		}

		util.NotificationChannelSendsTotal.WithLabelValues(channel, "ok").Inc()
		mu.Lock()
		*sent = true
		mu.Unlock()
	}

	if n.SendEmail && !n.SentViaEmail {
		wg.Add(1)
		go attempt("email", &n.SentViaEmail, func(ctx context.Context) error {
			return d.email.Send(ctx, n.Email, n.Subject, n.Message)
		})
	}
	if n.SendSms && !n.SentViaSms {
		wg.Add(1)
		go attempt("sms", &n.SentViaSms, func(ctx context.Context) error {
			return d.sms.Send(ctx, n.PhoneNumber, n.Subject, n.Message)
		})
	}
	if n.SendPush && !n.SentViaPush {
		wg.Add(1)
		go attempt("push", &n.SentViaPush, func(ctx context.Context) error {
			return d.push.SendToUser(ctx, n.UserID, n.Subject, n.Message)
		})
	}

	wg.Wait()

	if n.SentViaEmail || n.SentViaSms || n.SentViaPush {
		n.Status = models.NotificationStatusSent
		now := time.Now()
		n.SentAt = &now
	} else {
		n.Status = models.NotificationStatusFailed
	}
	// Partial failures stay visible on a SENT record.
	n.ErrorDetail = strings.Join(errors, "; ")
}

// RetryFailed re-attempts every FAILED record still inside its retry budget.
// retryCount moves up whatever the outcome, so a record that keeps failing
// eventually ages out. Cancellable between records.
func (d *Dispatcher) RetryFailed(ctx context.Context, maxRetries int) (int, error) {
	ctx, span := util.StartSpan(ctx, "notification.RetryFailed")
	defer span.End()

	records, err := d.store.GetRetryableNotifications(ctx, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to load retryable notifications: %w", err)
	}

	retried := 0
	for i := range records {
		if err := ctx.Err(); err != nil {
			return retried, err
		}

		n := &records[i]
		n.RetryCount++
		util.NotificationRetriesTotal.Inc()

		d.attemptChannels(ctx, n)

		if err := d.store.UpdateNotificationOutcome(ctx, n); err != nil {
			d.logger.Error("Failed to persist retry outcome",
				zap.Int64("notification_id", n.ID),
				zap.Error(err))
			continue
		}
		retried++

		d.logger.Info("Notification retried",
			zap.Int64("notification_id", n.ID),
			zap.Int("retry_count", n.RetryCount),
			zap.String("status", n.Status))
	}

	return retried, nil
}

// seenBefore reports whether this delivery id was already consumed inside the
// retention window. Dedup errors fail open: a redelivered notification beats
// a silently dropped one.
func (d *Dispatcher) seenBefore(ctx context.Context, deliveryID string) bool {
	if deliveryID == "" || d.deduper == nil {
		return false
	}
	first, err := d.deduper.MarkDeliverySeen(ctx, consumerGroup, deliveryID, d.retention)
	if err != nil {
		d.logger.Warn("Delivery dedup check failed",
			zap.String("delivery_id", deliveryID),
			zap.Error(err))
		return false
	}
	if !first {
		d.logger.Info("Duplicate delivery suppressed",
			zap.String("delivery_id", deliveryID))
	}
	return !first
}

// HandleBillGenerated consumes a BILL_GENERATED event
func (d *Dispatcher) HandleBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error {
	if d.seenBefore(ctx, event.DeliveryID) {
		return nil
	}
	_, err := d.Dispatch(ctx, RequestFromBillGenerated(event))
	return err
}

// HandleBillOverdue consumes a BILL_OVERDUE event
func (d *Dispatcher) HandleBillOverdue(ctx context.Context, event *models.BillOverdueEvent) error {
	if d.seenBefore(ctx, event.DeliveryID) {
		return nil
	}
	_, err := d.Dispatch(ctx, RequestFromBillOverdue(event))
	return err
}

// HandlePaymentCompleted consumes a PAYMENT_COMPLETED event
func (d *Dispatcher) HandlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	if d.seenBefore(ctx, event.DeliveryID) {
		return nil
	}
	_, err := d.Dispatch(ctx, RequestFromPaymentCompleted(event))
	return err
}

// HandlePaymentFailed consumes a PAYMENT_FAILED event
func (d *Dispatcher) HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	if d.seenBefore(ctx, event.DeliveryID) {
		return nil
	}
	_, err := d.Dispatch(ctx, RequestFromPaymentFailed(event))
	return err
}

// HandleServiceActivated consumes a SERVICE_ACTIVATED event
func (d *Dispatcher) HandleServiceActivated(ctx context.Context, event *models.ServiceActivatedEvent) error {
	if d.seenBefore(ctx, event.DeliveryID) {
		return nil
	}
	_, err := d.Dispatch(ctx, RequestFromServiceActivated(event))
	return err
}

// HandleServiceDeactivated consumes a SERVICE_DEACTIVATED event
func (d *Dispatcher) HandleServiceDeactivated(ctx context.Context, event *models.ServiceDeactivatedEvent) error {
	if d.seenBefore(ctx, event.DeliveryID) {
		return nil
	}
	_, err := d.Dispatch(ctx, RequestFromServiceDeactivated(event))
	return err
}

// HistoryPage is one page of a user's notification history
type HistoryPage struct {
	Items      []models.Notification `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	Size       int                   `json:"size"`
	TotalPages int                   `json:"total_pages"`
}

// GetByUser retrieves a user's notifications
func (d *Dispatcher) GetByUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	return d.store.GetNotificationsByUserID(ctx, userID)
}

// GetNotification retrieves one notification record
func (d *Dispatcher) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	return d.store.GetNotificationByID(ctx, id)
}

// GetHistory retrieves a sorted page of a user's notification history
func (d *Dispatcher) GetHistory(ctx context.Context, userID int64, page, size int, sortBy, sortDir string) (*HistoryPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 10
	}

	items, total, err := d.store.GetNotificationHistory(ctx, userID, page*size, size, sortBy, sortDir)
	if err != nil {
		return nil, err
	}

	totalPages := (total + size - 1) / size
	return &HistoryPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages,
	}, nil
}

// Broadcast pushes an announcement to every connected client, recording
// nothing per user
func (d *Dispatcher) Broadcast(ctx context.Context, title, message string) error {
	return d.push.Broadcast(ctx, title, message)
}
