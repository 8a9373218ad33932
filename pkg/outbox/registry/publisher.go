// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads before publish.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its data
// decodes.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row that passed validation and is ready to send.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will never publish no matter how often
// it is retried. The relay dead-letters it.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox event"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// NewNonRetryableError wraps err so errors.As finds a NonRetryableError.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func fatalf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// route binds an event type to a topic with T as its payload shape.
func route[T any](evt enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     evt,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			p := new(T)
			if err := json.Unmarshal(raw, p); err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

// EventRegistry is the routing table for every event the services emit.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry sends order lifecycle events to the orders topic and
// settlement events to the payments topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	orders, payments := cfg.OrdersTopic, cfg.PaymentsTopic
	var errs []error
	if orders == "" {
		errs = append(errs, errors.New("orders topic is required"))
	}
	if payments == "" {
		errs = append(errs, errors.New("payments topic is required"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	table := []EventDescriptor{
		route[payloads.OrderPlaced](enums.EventOrderPlaced, orders),
		route[payloads.OrderAccepted](enums.EventOrderAccepted, orders),
		route[payloads.OrderRejected](enums.EventOrderRejected, orders),
		route[payloads.OrderStatusChanged](enums.EventOrderStatusChanged, orders),
		route[payloads.OrderCancelled](enums.EventOrderCancelled, orders),
		route[payloads.DeliveryBoyAssigned](enums.EventCourierAssigned, orders),

		route[payloads.PaymentReceived](enums.EventPaymentReceived, payments),
		route[payloads.PaymentAdjusted](enums.EventPaymentAdjusted, payments),
		route[payloads.PaymentChangeRequested](enums.EventPaymentChangeRequested, payments),
		route[payloads.PaymentChangeApproved](enums.EventPaymentChangeApproved, payments),
		route[payloads.PaymentChangeRejected](enums.EventPaymentChangeRejected, payments),
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(table))}
	for _, d := range table {
		reg.routes[d.EventType] = d
	}
	return reg, nil
}

// Topics lists the distinct destination topics, sorted. The relay checks
// each one exists at startup.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, d := range r.routes {
		if !slices.Contains(topics, d.Topic) {
			topics = append(topics, d.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against its route and decodes the envelope data.
// Malformed rows fail with NonRetryableError. An envelope from a newer
// schema fails with a plain error so the row waits for an upgraded relay.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, fatalf("unsupported event type %s", event.EventType)
	case d.AggregateType != event.AggregateType:
		return nil, fatalf("%s belongs to aggregate %s, row says %s", event.EventType, d.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, fatalf("%s row has no aggregate id", event.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, fatalf("decode envelope: %w", err)
	}
	if env.Version > outbox.CurrentSchemaVersion {
		return nil, fmt.Errorf("envelope version %d is newer than supported %d", env.Version, outbox.CurrentSchemaVersion)
	}
	if event.ID != uuid.Nil && env.EventID != "" && env.EventID != event.ID.String() {
		return nil, fatalf("envelope event id %s does not match row %s", env.EventID, event.ID)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fatalf("%s envelope carries no data", event.EventType)
	}
	payload, err := d.decode(data)
	if err != nil {
		return nil, fatalf("decode %s data: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: env, Payload: payload}, nil
}
