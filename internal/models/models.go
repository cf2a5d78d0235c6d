package models

import (
	"strings"
	"time"
)

// Bill represents a monthly bill for a subscriber
type Bill struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	MobileNumber  string    `db:"mobile_number" json:"mobile_number"`
	BillNumber    string    `db:"bill_number" json:"bill_number"`
	BillingPeriod string    `db:"billing_period" json:"billing_period"`
	BillDate      time.Time `db:"bill_date" json:"bill_date"`
	DueDate       time.Time `db:"due_date" json:"due_date"`
	TotalAmount   int64     `db:"total_amount" json:"total_amount"`
	PaidAmount    int64     `db:"paid_amount" json:"paid_amount"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// BillItem represents a single charge line on a bill
type BillItem struct {
	ID          int64  `db:"id" json:"id"`
	BillID      int64  `db:"bill_id" json:"bill_id"`
	Description string `db:"description" json:"description"`
	ChargeType  string `db:"charge_type" json:"charge_type"`
	Amount      int64  `db:"amount" json:"amount"`
	Quantity    int    `db:"quantity" json:"quantity"`
}

// Payment represents a payment transaction against a bill
type Payment struct {
	ID              int64     `db:"id" json:"id"`
	TransactionID   string    `db:"transaction_id" json:"transaction_id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	BillID          int64     `db:"bill_id" json:"bill_id"`
	Amount          int64     `db:"amount" json:"amount"`
	Method          string    `db:"method" json:"method"`
	Status          string    `db:"status" json:"status"`
	CardLastFour    string    `db:"card_last_four" json:"card_last_four,omitempty"`
	GatewayResponse string    `db:"gateway_response" json:"gateway_response,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Notification records one notification request and its per-channel outcome
type Notification struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	PhoneNumber  string     `db:"phone_number" json:"phone_number"`
	Email        string     `db:"email" json:"email"`
	Type         string     `db:"type" json:"type"`
	Subject      string     `db:"subject" json:"subject"`
	Message      string     `db:"message" json:"message"`
	Status       string     `db:"status" json:"status"`
	SendEmail    bool       `db:"send_email" json:"send_email"`
	SendSms      bool       `db:"send_sms" json:"send_sms"`
	SendPush     bool       `db:"send_push" json:"send_push"`
	SentViaEmail bool       `db:"sent_via_email" json:"sent_via_email"`
	SentViaSms   bool       `db:"sent_via_sms" json:"sent_via_sms"`
	SentViaPush  bool       `db:"sent_via_push" json:"sent_via_push"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	ErrorDetail  string     `db:"error_detail" json:"error_detail,omitempty"`
	Metadata     string     `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}

// Bill statuses
const (
	BillStatusUnpaid        = "UNPAID"
	BillStatusPartiallyPaid = "PARTIALLY_PAID"
	BillStatusPaid          = "PAID"
	BillStatusOverdue       = "OVERDUE"
	BillStatusCancelled     = "CANCELLED"
)

// Payment statuses
const (
	PaymentStatusProcessing = "PROCESSING"
	PaymentStatusCompleted  = "COMPLETED"
	PaymentStatusFailed     = "FAILED"
)

// Notification statuses
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Charge types for bill items
const (
	ChargeTypeSubscription = "SUBSCRIPTION"
	ChargeTypeVoice        = "VOICE"
	ChargeTypeData         = "DATA"
	ChargeTypeSMS          = "SMS"
	ChargeTypeRoaming      = "ROAMING"
	ChargeTypeVAS          = "VAS"
)

// DeriveBillStatus computes bill status purely from the payment position and
// due date. PAID and CANCELLED are terminal: once a bill reaches either, the
// stored status must not be recomputed past it.
func DeriveBillStatus(paidAmount, totalAmount int64, dueDate, now time.Time) string {
	if paidAmount >= totalAmount {
		return BillStatusPaid
	}
	if now.After(dueDate) {
		return BillStatusOverdue
	}
	if paidAmount > 0 {
		return BillStatusPartiallyPaid
	}
	return BillStatusUnpaid
}

// IsTerminalBillStatus reports whether a bill status admits no further transitions.
func IsTerminalBillStatus(status string) bool {
	return status == BillStatusPaid || status == BillStatusCancelled
}

// ProcessedEvent tracks consumed delivery ids for consumer-side idempotency
type ProcessedEvent struct {
	DeliveryID  string    `db:"delivery_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// NormalizeChargeType maps a catalog service category onto a known charge type,
// falling back to VAS for categories the rate table does not know.
func NormalizeChargeType(category string) (string, bool) {
	switch strings.ToUpper(category) {
	case ChargeTypeVoice, ChargeTypeData, ChargeTypeSMS, ChargeTypeRoaming, ChargeTypeVAS:
		return strings.ToUpper(category), true
	}
	return ChargeTypeVAS, false
}
