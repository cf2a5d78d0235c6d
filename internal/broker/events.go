package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"telco-billing/internal/models"
	"telco-billing/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EncodeEvent serializes an event envelope for publication.
func EncodeEvent(event interface{}) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// DecodeEnvelope extracts the base envelope fields from raw bytes. Unknown
// additive fields are ignored; a payload that does not parse fails closed.
func DecodeEnvelope(data []byte) (models.BaseEvent, error) {
	var base models.BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return models.BaseEvent{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if base.EventType == "" {
		return models.BaseEvent{}, fmt.Errorf("envelope missing event_type")
	}
	return base, nil
}

// EventPublisher handles publishing domain events. Each publish method fans
// the same envelope out to every channel its consumer groups listen on.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer, logger: util.GetLogger()}
}

func (ep *EventPublisher) publish(ctx context.Context, event interface{}, key string, topics ...string) error {
	data, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	for _, topic := range topics {
		if err := ep.producer.Publish(ctx, topic, key, data); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
		util.EventsPublishedTotal.WithLabelValues(topic).Inc()
	}

	ep.logger.Info("Published event",
		zap.String("key", key),
		zap.Strings("topics", topics))
	return nil
}

// PublishBillGenerated publishes BILL_GENERATED to the billing and
// notification channels.
func (ep *EventPublisher) PublishBillGenerated(ctx context.Context, event *models.BillGeneratedEvent) error {
	return ep.publish(ctx, event, event.CorrelationID,
		models.ChannelBilling, models.ChannelNotification)
}

// PublishBillOverdue publishes BILL_OVERDUE to the notification channel.
func (ep *EventPublisher) PublishBillOverdue(ctx context.Context, event *models.BillOverdueEvent) error {
	return ep.publish(ctx, event, event.CorrelationID, models.ChannelNotification)
}

// PublishPaymentCompleted publishes PAYMENT_COMPLETED to the payment and
// notification channels.
func (ep *EventPublisher) PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	return ep.publish(ctx, event, event.CorrelationID,
		models.ChannelPayment, models.ChannelNotification)
}

// PublishPaymentFailed publishes PAYMENT_FAILED to the payment channel.
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.publish(ctx, event, event.CorrelationID, models.ChannelPayment)
}

// EventRouter routes consumed messages to typed handlers by event type.
type EventRouter struct {
	logger             *zap.Logger
	onBillGenerated    func(context.Context, *models.BillGeneratedEvent) error
	onBillOverdue      func(context.Context, *models.BillOverdueEvent) error
	onPaymentCompleted func(context.Context, *models.PaymentCompletedEvent) error
	onPaymentFailed    func(context.Context, *models.PaymentFailedEvent) error
	onServiceActivated func(context.Context, *models.ServiceActivatedEvent) error
	onServiceDeactived func(context.Context, *models.ServiceDeactivatedEvent) error
}

// NewEventRouter creates a new event router
func NewEventRouter() *EventRouter {
	return &EventRouter{logger: util.GetLogger()}
}

// OnBillGenerated registers a handler for BILL_GENERATED events
func (er *EventRouter) OnBillGenerated(h func(context.Context, *models.BillGeneratedEvent) error) {
	er.onBillGenerated = h
}

// OnBillOverdue registers a handler for BILL_OVERDUE events
func (er *EventRouter) OnBillOverdue(h func(context.Context, *models.BillOverdueEvent) error) {
	er.onBillOverdue = h
}

// OnPaymentCompleted registers a handler for PAYMENT_COMPLETED events
func (er *EventRouter) OnPaymentCompleted(h func(context.Context, *models.PaymentCompletedEvent) error) {
	er.onPaymentCompleted = h
}

// OnPaymentFailed registers a handler for PAYMENT_FAILED events
func (er *EventRouter) OnPaymentFailed(h func(context.Context, *models.PaymentFailedEvent) error) {
	er.onPaymentFailed = h
}

// OnServiceActivated registers a handler for SERVICE_ACTIVATED events
func (er *EventRouter) OnServiceActivated(h func(context.Context, *models.ServiceActivatedEvent) error) {
	er.onServiceActivated = h
}

// OnServiceDeactivated registers a handler for SERVICE_DEACTIVATED events
func (er *EventRouter) OnServiceDeactivated(h func(context.Context, *models.ServiceDeactivatedEvent) error) {
	er.onServiceDeactived = h
}

// HandleMessage decodes an envelope and dispatches it to the registered
// handler. Unparseable envelopes are logged and dropped; the consumer loop
// must keep running regardless of what arrives on the wire.
func (er *EventRouter) HandleMessage(ctx context.Context, msg kafka.Message) error {
	base, err := DecodeEnvelope(msg.Value)
	if err != nil {
		util.EventsDroppedTotal.WithLabelValues("decode_error").Inc()
		er.logger.Error("Dropping undecodable event",
			zap.ByteString("key", msg.Key),
			zap.Error(err))
		return nil
	}

	er.logger.Info("Handling event",
		zap.String("event_type", base.EventType),
		zap.String("correlation_id", base.CorrelationID),
		zap.String("delivery_id", base.DeliveryID))

	switch base.EventType {
	case models.EventTypeBillGenerated:
		return decodeAndHandle(ctx, er, msg.Value, base.EventType, er.onBillGenerated)
	case models.EventTypeBillOverdue:
		return decodeAndHandle(ctx, er, msg.Value, base.EventType, er.onBillOverdue)
	case models.EventTypePaymentCompleted:
		return decodeAndHandle(ctx, er, msg.Value, base.EventType, er.onPaymentCompleted)
	case models.EventTypePaymentFailed:
		return decodeAndHandle(ctx, er, msg.Value, base.EventType, er.onPaymentFailed)
	case models.EventTypeServiceActivated:
		return decodeAndHandle(ctx, er, msg.Value, base.EventType, er.onServiceActivated)
	case models.EventTypeServiceDeactivated:
		return decodeAndHandle(ctx, er, msg.Value, base.EventType, er.onServiceDeactived)
	default:
		er.logger.Debug("Unhandled event type", zap.String("event_type", base.EventType))
	}

	return nil
}

func decodeAndHandle[E any](ctx context.Context, er *EventRouter, data []byte, eventType string, handler func(context.Context, *E) error) error {
	if handler == nil {
		return nil
	}

	var event E
	if err := json.Unmarshal(data, &event); err != nil {
		util.EventsDroppedTotal.WithLabelValues("decode_error").Inc()
		er.logger.Error("Dropping event with undecodable payload",
			zap.String("event_type", eventType),
			zap.Error(err))
		return nil
	}

	return handler(ctx, &event)
}
