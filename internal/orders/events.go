package orders

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/google/uuid"
)

// EventRecord describes one timeline row. A nil ActorID marks a system action.
type EventRecord struct {
	Type      enums.OrderEventType
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	From      enums.OrderStatus
	To        enums.OrderStatus
	Note      string
	Metadata  map[string]any
}

// RecordEvent appends rec to the order timeline.
func RecordEvent(ctx context.Context, repo Repository, orderID uuid.UUID, rec EventRecord) error {
	event := &models.OrderEvent{
		OrderID:   orderID,
		EventType: rec.Type,
	}
	if rec.ActorID != uuid.Nil {
		actor := rec.ActorID
		event.ActorID = &actor
	}
	if rec.ActorRole != "" {
		role := rec.ActorRole
		event.ActorRole = &role
	}
	if rec.From != "" {
		from := rec.From
		event.FromStatus = &from
	}
	if rec.To != "" {
		to := rec.To
		event.ToStatus = &to
	}
	if rec.Note != "" {
		note := rec.Note
		event.Note = &note
	}
	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order event metadata")
		}
		event.Metadata = raw
	}
	if err := repo.AppendEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
	}
	return nil
}
