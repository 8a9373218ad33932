package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/db"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
)

// Repository is the identity lookup shared by the order and courier flows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindActiveByRole(ctx context.Context, id uuid.UUID, role enums.UserRole) (*models.User, error)
}

type userStore struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &userStore{db: conn}
}

func (r *userStore) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &userStore{db: tx}
}

// Create persists a normalized user. A phone or email already in use is a
// conflict.
func (r *userStore) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user, err := dto.ToModel()
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "phone or email already registered")
		}
		return nil, err
	}
	return user, nil
}

// FindActiveByRole returns gorm.ErrRecordNotFound unless id names an active
// user holding role.
func (r *userStore) FindActiveByRole(ctx context.Context, id uuid.UUID, role enums.UserRole) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where(map[string]any{"id": id, "role": role, "is_active": true}).
		Take(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
