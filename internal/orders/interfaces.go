package orders

import (
	"context"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository captures the persistence surface shared by the order state
// machine and payment settlement.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// LockByID loads the order row FOR UPDATE; the caller must hold a transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateIfStatus applies updates only while the row still has the observed
	// status and reports whether a row changed.
	UpdateIfStatus(ctx context.Context, id uuid.UUID, observed enums.OrderStatus, updates map[string]any) (bool, error)
	MarkLiabilityPosted(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Order, *pagination.Cursor, error)
	AppendEvent(ctx context.Context, event *models.OrderEvent) error
	ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
	FindStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	FindListings(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) ([]models.Listing, error)
}

// ListFilter narrows order lists to one party and, optionally, one status.
type ListFilter struct {
	OwnerID    *uuid.UUID
	RetailerID *uuid.UUID
	CourierID  *uuid.UUID
	Status     *enums.OrderStatus
}
