package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgredis "github.com/angelmondragon/khatabook-backend/pkg/redis"
)

// Port delivers one event to one recipient. Implementations must be safe for
// concurrent use.
type Port interface {
	Name() string
	Notify(ctx context.Context, recipient uuid.UUID, evt Event) error
}

// Message is the realtime wire format pushed to connected clients.
type Message struct {
	Type    enums.NotificationType `json:"type"`
	OrderID uuid.UUID              `json:"orderId"`
	Data    any                    `json:"data"`
}

// RedisPort publishes each event on a per-user channel. Socket gateways
// subscribe to the channel of every connected user.
type RedisPort struct {
	publisher pkgredis.Publisher
	prefix    string
}

// NewRedisPort builds a RedisPort publishing on "<prefix>:<userID>".
func NewRedisPort(publisher pkgredis.Publisher, prefix string) (*RedisPort, error) {
	if publisher == nil {
		return nil, errors.New("redis publisher required")
	}
	if prefix == "" {
		prefix = "notify"
	}
	return &RedisPort{publisher: publisher, prefix: prefix}, nil
}

func (p *RedisPort) Name() string { return "redis" }

// Channel returns the channel a recipient's gateway listens on.
func (p *RedisPort) Channel(recipient uuid.UUID) string {
	return fmt.Sprintf("%s:%s", p.prefix, recipient)
}

func (p *RedisPort) Notify(ctx context.Context, recipient uuid.UUID, evt Event) error {
	body, err := json.Marshal(Message{Type: evt.Type, OrderID: evt.OrderID, Data: evt.Payload})
	if err != nil {
		return fmt.Errorf("encode realtime message: %w", err)
	}
	if _, err := p.publisher.Publish(ctx, p.Channel(recipient), body); err != nil {
		return fmt.Errorf("publish realtime message: %w", err)
	}
	return nil
}

type inboxRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// InboxPort stores each delivered event as an in-app notification row.
type InboxPort struct {
	repo inboxRepository
}

// NewInboxPort builds an InboxPort backed by the notifications repository.
func NewInboxPort(repo inboxRepository) (*InboxPort, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	return &InboxPort{repo: repo}, nil
}

func (p *InboxPort) Name() string { return "inbox" }

func (p *InboxPort) Notify(ctx context.Context, recipient uuid.UUID, evt Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}
	title, message := render(evt)
	orderID := evt.OrderID
	row := &models.Notification{
		UserID:  recipient,
		OrderID: &orderID,
		Type:    evt.Type,
		Title:   title,
		Message: message,
		Payload: payload,
	}
	if evt.OrderID == uuid.Nil {
		row.OrderID = nil
	}
	return p.repo.Create(ctx, row)
}
