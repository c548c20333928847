package ports

import (
	"context"

	"github.com/99minutos/identity-core/internal/core/domain"
)

// ProfileInput holds the profile fields a caller may change. Nil means
// unchanged.
type ProfileInput struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// AccessService manages role assignment and authorization decisions.
type AccessService interface {
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	ListUsers(ctx context.Context, req domain.PageRequest) (domain.Page[*domain.User], error)
	ChangeRoles(ctx context.Context, id domain.UserID, roleIDs []domain.RoleID, expectedVersion int64, actor string) (*domain.User, error)
	Authorize(ctx context.Context, id domain.UserID, resource, action string) error
	UpdateProfile(ctx context.Context, id domain.UserID, in ProfileInput, expectedVersion int64, actor string) (*domain.User, error)
	Deactivate(ctx context.Context, id domain.UserID, reason string, expectedVersion int64, actor string) (*domain.User, error)
}
