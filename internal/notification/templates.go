package notification

import (
	"fmt"

	"telco-billing/internal/models"
)

// lkr formats a cents amount the way customer-facing messages show it
func lkr(cents int64) string {
	return fmt.Sprintf("LKR %d.%02d", cents/100, cents%100)
}

// RequestFromBillGenerated normalizes a BILL_GENERATED event into a
// notification request
func RequestFromBillGenerated(event *models.BillGeneratedEvent) *Request {
	return &Request{
		UserID:      event.UserID,
		PhoneNumber: event.PhoneNumber,
		Email:       event.Email,
		Type:        models.EventTypeBillGenerated,
		Subject:     "Your Bill is Ready",
		Message: fmt.Sprintf(
			"Dear customer, your bill of %s has been generated. Due date: %s. Please pay to avoid disconnection.",
			lkr(event.Amount), event.DueDate.Format("2006-01-02")),
		SendEmail: true,
		SendSms:   true,
		SendPush:  true,
		Metadata:  fmt.Sprintf("billId:%d", event.BillID),
	}
}

// RequestFromBillOverdue normalizes a BILL_OVERDUE event
func RequestFromBillOverdue(event *models.BillOverdueEvent) *Request {
	return &Request{
		UserID: event.UserID,
		Type:   models.EventTypeBillOverdue,
		Subject: fmt.Sprintf(
			"Bill %s Overdue", event.CorrelationID),
		Message: fmt.Sprintf(
			"Dear customer, your bill of %s is overdue. Please settle it to avoid service interruption.",
			lkr(event.Amount)),
		SendEmail: true,
		SendSms:   true,
		SendPush:  true,
		Metadata:  fmt.Sprintf("billId:%d", event.BillID),
	}
}

// RequestFromPaymentCompleted normalizes a PAYMENT_COMPLETED event
func RequestFromPaymentCompleted(event *models.PaymentCompletedEvent) *Request {
	return &Request{
		UserID:  event.UserID,
		Type:    models.EventTypePaymentCompleted,
		Subject: "Payment Successful",
		Message: fmt.Sprintf(
			"Your payment of %s has been successfully processed. Transaction ID: %s",
			lkr(event.Amount), event.TransactionID),
		SendEmail: true,
		SendSms:   true,
		SendPush:  true,
		Metadata:  fmt.Sprintf("transactionId:%s", event.TransactionID),
	}
}

// RequestFromPaymentFailed normalizes a PAYMENT_FAILED event
func RequestFromPaymentFailed(event *models.PaymentFailedEvent) *Request {
	return &Request{
		UserID:  event.UserID,
		Type:    models.EventTypePaymentFailed,
		Subject: "Payment Failed",
		Message: fmt.Sprintf(
			"Your payment of %s has failed. Please try again or contact support.",
			lkr(event.Amount)),
		SendEmail: true,
		SendSms:   true,
		SendPush:  true,
		Metadata:  fmt.Sprintf("transactionId:%s", event.TransactionID),
	}
}

// RequestFromServiceActivated normalizes a SERVICE_ACTIVATED event
func RequestFromServiceActivated(event *models.ServiceActivatedEvent) *Request {
	return &Request{
		UserID:      event.UserID,
		PhoneNumber: event.MobileNumber,
		Type:        models.EventTypeServiceActivated,
		Subject:     "Service Activated",
		Message: fmt.Sprintf(
			"Your %s service has been activated successfully.", event.ServiceName),
		SendEmail: true,
		SendSms:   true,
		SendPush:  true,
		Metadata:  fmt.Sprintf("serviceId:%d", event.ServiceID),
	}
}

// RequestFromServiceDeactivated normalizes a SERVICE_DEACTIVATED event
func RequestFromServiceDeactivated(event *models.ServiceDeactivatedEvent) *Request {
	return &Request{
		UserID:      event.UserID,
		PhoneNumber: event.MobileNumber,
		Type:        models.EventTypeServiceDeactivated,
		Subject:     "Service Deactivated",
		Message: fmt.Sprintf(
			"Your %s service has been deactivated.", event.ServiceName),
		SendEmail: true,
		SendSms:   true,
		SendPush:  true,
		Metadata:  fmt.Sprintf("serviceId:%d", event.ServiceID),
	}
}
