package couriers

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/khatabook-backend/internal/users"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages which couriers a retailer may assign orders to.
type Service interface {
	Link(ctx context.Context, retailerID, courierID uuid.UUID) (*LinkDTO, error)
	Unlink(ctx context.Context, retailerID, courierID uuid.UUID) error
	List(ctx context.Context, retailerID uuid.UUID, includeInactive bool) ([]LinkDTO, error)
}

type service struct {
	repo  Repository
	users users.Repository
	tx    txRunner
}

// NewService builds a courier link service.
func NewService(repo Repository, usersRepo users.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("couriers repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, users: usersRepo, tx: tx}, nil
}

// Link activates the retailer/courier link, creating it on first use.
func (s *service) Link(ctx context.Context, retailerID, courierID uuid.UUID) (*LinkDTO, error) {
	if retailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if courierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier id required")
	}

	var out *LinkDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		courier, err := s.users.WithTx(tx).FindActiveByRole(ctx, courierID, enums.UserRoleDeliveryBoy)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "courier not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier")
		}

		repo := s.repo.WithTx(tx)
		link, err := repo.Find(ctx, retailerID, courierID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			link = &models.RetailerDeliveryBoy{
				RetailerID:    retailerID,
				DeliveryBoyID: courierID,
				Status:        enums.CourierLinkActive,
			}
			if err := repo.Create(ctx, link); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create courier link")
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier link")
		case link.Status != enums.CourierLinkActive:
			if err := repo.SetStatus(ctx, link.ID, enums.CourierLinkActive); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate courier link")
			}
			link.Status = enums.CourierLinkActive
		}

		out = linkToDTO(link, courier)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unlink deactivates the link. Orders already assigned to the courier keep
// their assignment.
func (s *service) Unlink(ctx context.Context, retailerID, courierID uuid.UUID) error {
	if retailerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	link, err := s.repo.Find(ctx, retailerID, courierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "courier link not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier link")
	}
	if link.Status == enums.CourierLinkInactive {
		return nil
	}
	if err := s.repo.SetStatus(ctx, link.ID, enums.CourierLinkInactive); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate courier link")
	}
	return nil
}

func (s *service) List(ctx context.Context, retailerID uuid.UUID, includeInactive bool) ([]LinkDTO, error) {
	if retailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	links, err := s.repo.ListByRetailer(ctx, retailerID, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list courier links")
	}
	return links, nil
}
