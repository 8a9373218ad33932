package outbox

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

// CurrentSchemaVersion is stamped on envelopes whose event leaves Version
// unset. The relay holds back envelopes newer than it understands.
const CurrentSchemaVersion = 1

// ActorRef is the user whose action produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the message body. EventID is the row id; subscribers dedupe on it.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Recipients []uuid.UUID     `json:"recipients,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DomainEvent is one order, ledger or settlement fact to publish once the
// caller's transaction commits.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Recipients    []uuid.UUID
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s: aggregate id required", e.EventType)
	}
	return nil
}

// seal encodes e under id. now stands in for a missing OccurredAt.
func (e DomainEvent) seal(id uuid.UUID, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s data: %w", e.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    max(e.Version, 0),
		EventID:    id.String(),
		OccurredAt: e.OccurredAt,
		Actor:      e.Actor,
		Recipients: recipients(e.Recipients),
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = CurrentSchemaVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	env.OccurredAt = env.OccurredAt.UTC()
	return env, nil
}

// recipients drops nil and repeated ids, keeping first-seen order.
func recipients(ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range ids {
		if id != uuid.Nil && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
