package ports

import (
	"context"

	"github.com/99minutos/identity-core/internal/core/domain"
)

// RoleRepository loads roles with their permissions.
type RoleRepository interface {
	FindByID(ctx context.Context, id domain.RoleID) (*domain.Role, bool, error)
	FindByName(ctx context.Context, name string) (*domain.Role, bool, error)
	// FindAllActive returns active roles ordered by name.
	FindAllActive(ctx context.Context) ([]domain.Role, error)
	// FindByIDs returns the roles that exist among ids, active or not,
	// ordered by id. Missing ids are simply absent from the result.
	FindByIDs(ctx context.Context, ids []domain.RoleID) ([]domain.Role, error)
	Create(ctx context.Context, role *domain.Role, permissionIDs []domain.PermissionID) (*domain.Role, error)
}
