package notifier

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox"
)

const stageSavepoint = "notifier_stage"

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier turns order and settlement events into deliveries.
//
// Stage records events in the transactional outbox inside the caller's
// transaction; Dispatch fans events out to the ports after commit. Neither
// returns an error: a lost notification never rolls back the state change
// that produced it.
type Notifier struct {
	ports  []Port
	outbox outboxEmitter
	logg   *logger.Logger
}

// New builds a Notifier. outbox may be nil to skip staging.
func New(logg *logger.Logger, ob outboxEmitter, ports ...Port) (*Notifier, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	active := make([]Port, 0, len(ports))
	for _, p := range ports {
		if p != nil {
			active = append(active, p)
		}
	}
	return &Notifier{ports: active, outbox: ob, logg: logg}, nil
}

// Stage writes one outbox row per event inside tx. Rows are written under a
// savepoint so a failed insert leaves the surrounding transaction usable.
func (n *Notifier) Stage(ctx context.Context, tx *gorm.DB, events ...Event) {
	if n == nil || n.outbox == nil || len(events) == 0 {
		return
	}
	if tx == nil {
		n.logg.Warn(ctx, "notifier stage called without transaction")
		return
	}
	if err := tx.SavePoint(stageSavepoint).Error; err != nil {
		n.logg.Warn(n.logg.WithField(ctx, "error", err.Error()), "notifier savepoint failed")
		return
	}
	for _, evt := range events {
		if err := n.stageOne(ctx, tx, evt); err != nil {
			if rbErr := tx.RollbackTo(stageSavepoint).Error; rbErr != nil {
				n.logg.Error(ctx, "notifier savepoint rollback failed", rbErr)
			}
			logCtx := n.logg.WithFields(ctx, map[string]any{
				"notification_type": string(evt.Type),
				"order_id":          evt.OrderID.String(),
				"error":             err.Error(),
			})
			n.logg.Warn(logCtx, "outbox staging failed; events dropped")
			return
		}
	}
}

func (n *Notifier) stageOne(ctx context.Context, tx *gorm.DB, evt Event) error {
	eventType, ok := evt.Type.OutboxEventType()
	if !ok {
		return fmt.Errorf("no outbox event for %s", evt.Type)
	}
	return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   evt.OrderID,
		Recipients:    evt.Recipients,
		Data:          evt.Payload,
		OccurredAt:    evt.OccurredAt,
	})
}

// Dispatch delivers every event to each recipient through every port.
// Failures are logged at warn level and otherwise ignored.
func (n *Notifier) Dispatch(ctx context.Context, events ...Event) {
	if n == nil {
		return
	}
	for _, evt := range events {
		for _, recipient := range uniqueRecipients(evt.Recipients) {
			for _, port := range n.ports {
				if err := port.Notify(ctx, recipient, evt); err != nil {
					logCtx := n.logg.WithFields(ctx, map[string]any{
						"port":              port.Name(),
						"notification_type": string(evt.Type),
						"order_id":          evt.OrderID.String(),
						"recipient_id":      recipient.String(),
						"error":             err.Error(),
					})
					n.logg.Warn(logCtx, "notification delivery failed")
				}
			}
		}
		logCtx := n.logg.WithFields(ctx, map[string]any{
			"notification_type": string(evt.Type),
			"order_id":          evt.OrderID.String(),
			"recipients":        len(evt.Recipients),
		})
		n.logg.Debug(logCtx, "notification dispatched")
	}
}
