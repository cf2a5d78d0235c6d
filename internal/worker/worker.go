package worker

import (
	"context"
	"log"

	"telco-billing/internal/billing"
	"telco-billing/internal/broker"
	"telco-billing/internal/notification"
)

// BillingWorker consumes payment events and reconciles them against bills
type BillingWorker struct {
	consumer *broker.Consumer
	router   *broker.EventRouter
}

// NewBillingWorker creates a billing worker bound to the payment channel
func NewBillingWorker(consumer *broker.Consumer, billingService *billing.Service) *BillingWorker {
	router := broker.NewEventRouter()
	router.OnPaymentCompleted(billingService.HandlePaymentCompleted)

	return &BillingWorker{
		consumer: consumer,
		router:   router,
	}
}

// Start starts the worker
func (w *BillingWorker) Start(ctx context.Context) error {
	log.Println("Starting billing worker...")
	return w.consumer.StartConsuming(ctx, w.router.HandleMessage)
}

// Stop stops the worker
func (w *BillingWorker) Stop() error {
	log.Println("Stopping billing worker...")
	return w.consumer.Close()
}

// NotificationWorker consumes the notification channel and fans events out to
// the dispatcher
type NotificationWorker struct {
	consumer *broker.Consumer
	router   *broker.EventRouter
}

// NewNotificationWorker creates a notification worker
func NewNotificationWorker(consumer *broker.Consumer, dispatcher *notification.Dispatcher) *NotificationWorker {
	router := broker.NewEventRouter()
	router.OnBillGenerated(dispatcher.HandleBillGenerated)
	router.OnBillOverdue(dispatcher.HandleBillOverdue)
	router.OnPaymentCompleted(dispatcher.HandlePaymentCompleted)
	router.OnPaymentFailed(dispatcher.HandlePaymentFailed)
	router.OnServiceActivated(dispatcher.HandleServiceActivated)
	router.OnServiceDeactivated(dispatcher.HandleServiceDeactivated)

	return &NotificationWorker{
		consumer: consumer,
		router:   router,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.router.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}
