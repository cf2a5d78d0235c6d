package models

import "time"

// Event types
const (
	EventTypeBillGenerated      = "BILL_GENERATED"
	EventTypeBillOverdue        = "BILL_OVERDUE"
	EventTypePaymentCompleted   = "PAYMENT_COMPLETED"
	EventTypePaymentFailed      = "PAYMENT_FAILED"
	EventTypeServiceActivated   = "SERVICE_ACTIVATED"
	EventTypeServiceDeactivated = "SERVICE_DEACTIVATED"
)

// Channel names shared by every producer and consumer. A logical event may be
// published to more than one channel so that independent consumer groups do not
// have to share a topic.
const (
	ChannelBilling      = "billing-events"
	ChannelPayment      = "payment-events"
	ChannelService      = "service-events"
	ChannelNotification = "notification-events"
)

// BaseEvent contains the envelope fields common to all events. Envelopes are
// immutable once published; consumers copy what they need into derived records.
type BaseEvent struct {
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id"`
	UserID        int64     `json:"user_id"`
	DeliveryID    string    `json:"delivery_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// BillGeneratedEvent published when a bill is generated
type BillGeneratedEvent struct {
	BaseEvent
	BillID        int64     `json:"bill_id"`
	PhoneNumber   string    `json:"phone_number"`
	Email         string    `json:"email"`
	BillNumber    string    `json:"bill_number"`
	Amount        int64     `json:"amount"`
	DueDate       time.Time `json:"due_date"`
	BillingPeriod string    `json:"billing_period"`
}

// BillOverdueEvent published when the overdue sweep flips a bill
type BillOverdueEvent struct {
	BaseEvent
	BillID int64 `json:"bill_id"`
	Amount int64 `json:"amount"`
}

// PaymentCompletedEvent published when a payment settles
type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	BillID        int64  `json:"bill_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

// PaymentFailedEvent published when a payment is declined
type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	BillID        int64  `json:"bill_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
}

// ServiceActivatedEvent published by the service catalog when a plan goes live
type ServiceActivatedEvent struct {
	BaseEvent
	ServiceID    int64  `json:"service_id"`
	MobileNumber string `json:"mobile_number"`
	ServiceType  string `json:"service_type"`
	ServiceName  string `json:"service_name"`
}

// ServiceDeactivatedEvent published by the service catalog on deactivation
type ServiceDeactivatedEvent struct {
	BaseEvent
	ServiceID    int64  `json:"service_id"`
	MobileNumber string `json:"mobile_number"`
	ServiceType  string `json:"service_type"`
	ServiceName  string `json:"service_name"`
}
