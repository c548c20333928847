package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/identity-core/internal/core/domain"
)

// UserRepository loads and stores fully hydrated User aggregates.
//
// Lookups report absence through the bool result; err is reserved for
// storage failures. A returned user always carries its complete active role
// set, each role with its permissions.
type UserRepository interface {
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*domain.User, bool, error)
	FindByUsername(ctx context.Context, username domain.Username) (*domain.User, bool, error)
	FindByEmail(ctx context.Context, email domain.Email) (*domain.User, bool, error)
	// FindByUsernameOrEmail matches login against either column; when both
	// match different rows the one with the smaller username wins.
	FindByUsernameOrEmail(ctx context.Context, login string) (*domain.User, bool, error)

	// Search matches pattern case-insensitively against username, email and
	// names. Results are ordered by username, then id.
	Search(ctx context.Context, pattern string) ([]*domain.User, error)
	FindByRoleName(ctx context.Context, roleName string) ([]*domain.User, error)
	// FindPage orders by created_at DESC, then id DESC.
	FindPage(ctx context.Context, req domain.PageRequest) (domain.Page[*domain.User], error)

	// Create inserts user and links roleIDs, returning the stored aggregate.
	Create(ctx context.Context, user *domain.User, roleIDs []domain.RoleID) (*domain.User, error)
	// Update writes the mutable profile fields if the stored version still
	// equals expectedVersion, and bumps it.
	Update(ctx context.Context, user *domain.User, expectedVersion int64) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id domain.UserID, at time.Time) (*domain.User, bool, error)
	ReplaceRoles(ctx context.Context, id domain.UserID, roleIDs []domain.RoleID, expectedVersion int64) (*domain.User, error)

	HasPermission(ctx context.Context, id domain.UserID, resource, action string) (bool, error)
	CountActiveRoles(ctx context.Context, id domain.UserID) (int64, error)
}
