package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

// actor is the authenticated caller as the Auth middleware saw it. Values
// stay raw strings so a malformed id surfaces as a validation error at the
// handler instead of a silent zero UUID.
type actor struct {
	userID string
	role   string
}

func actorOf(ctx context.Context) actor {
	if ctx == nil {
		return actor{}
	}
	a, _ := ctx.Value(actorKey).(actor)
	return a
}

func withActor(ctx context.Context, a actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, a)
}

func UserIDFromContext(ctx context.Context) string { return actorOf(ctx).userID }

func RoleFromContext(ctx context.Context) string { return actorOf(ctx).role }

// WithUserID replaces the caller id, keeping the role.
func WithUserID(ctx context.Context, userID string) context.Context {
	a := actorOf(ctx)
	a.userID = userID
	return withActor(ctx, a)
}

// WithRole replaces the caller role, keeping the id.
func WithRole(ctx context.Context, role string) context.Context {
	a := actorOf(ctx)
	a.role = role
	return withActor(ctx, a)
}

// ActorFromContext returns the authenticated user id and role.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.UserRole, error) {
	a := actorOf(ctx)
	if a.userID == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(a.userID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(a.role)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return userID, role, nil
}
