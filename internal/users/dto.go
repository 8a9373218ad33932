package users

import (
	"strings"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
)

// CreateUserDTO is the input for provisioning an account. Users are created
// by onboarding and fixtures only; the order flows just look them up.
type CreateUserDTO struct {
	Name     string
	Phone    *string
	Email    *string
	Role     enums.UserRole
	IsActive *bool
}

func trimmed(v *string, fold bool) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if fold {
		s = strings.ToLower(s)
	}
	if s == "" {
		return nil
	}
	return &s
}

// ToModel normalizes the input. Blank contact fields become NULL so the
// partial unique indexes ignore them.
func (c CreateUserDTO) ToModel() (*models.User, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if !c.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role").
			WithDetails(map[string]any{"role": c.Role})
	}

	active := c.IsActive == nil || *c.IsActive
	return &models.User{
		Name:     name,
		Phone:    trimmed(c.Phone, false),
		Email:    trimmed(c.Email, true),
		Role:     c.Role,
		IsActive: active,
	}, nil
}
