package hydrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/ports"
	"github.com/99minutos/identity-core/internal/core/query"
	"github.com/99minutos/identity-core/internal/metrics"
)

const defaultMaxConcurrency = 8

var _ ports.RoleRepository = (*RoleHydrator)(nil)

// RoleHydrator loads roles and fills each active role's permissions.
type RoleHydrator struct {
	exec           query.Executor
	maxConcurrency int
	log            zerolog.Logger
}

// NewRoleHydrator returns a RoleHydrator. maxConcurrency bounds the
// permission queries in flight for one call; <= 0 selects the default.
func NewRoleHydrator(exec query.Executor, maxConcurrency int, log zerolog.Logger) *RoleHydrator {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &RoleHydrator{exec: exec, maxConcurrency: maxConcurrency, log: log}
}

func (h *RoleHydrator) FindByID(ctx context.Context, id domain.RoleID) (*domain.Role, bool, error) {
	return h.findOne(ctx, roleByIDQuery(id))
}

func (h *RoleHydrator) FindByName(ctx context.Context, name string) (*domain.Role, bool, error) {
	return h.findOne(ctx, roleByNameQuery(name))
}

func (h *RoleHydrator) FindAllActive(ctx context.Context) ([]domain.Role, error) {
	return h.findMany(ctx, activeRolesQuery())
}

func (h *RoleHydrator) FindByIDs(ctx context.Context, ids []domain.RoleID) ([]domain.Role, error) {
	ids = uniqueRoleIDs(ids)
	if len(ids) == 0 {
		return []domain.Role{}, nil
	}
	return h.findMany(ctx, rolesByIDsQuery(ids))
}

// Create inserts role and links permissionIDs. A taken name yields
// EntityAlreadyExists on "name".
func (h *RoleHydrator) Create(ctx context.Context, role *domain.Role, permissionIDs []domain.PermissionID) (*domain.Role, error) {
	const op = "role.create"
	start := time.Now()

	in := *role
	ts := now()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = ts
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = in.CreatedAt
	}

	var shell domain.Role
	err := atomically(ctx, h.exec, func(ex query.Executor) error {
		row, found, err := ex.QueryOne(ctx, insertRoleQuery(&in))
		if err != nil {
			return err
		}
		if !found {
			return errNoReturnedRow
		}
		if shell, err = mapRole(row); err != nil {
			return err
		}
		for _, pid := range uniquePermissionIDs(permissionIDs) {
			if _, err := ex.Exec(ctx, linkRolePermissionQuery(shell.ID, pid)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, h.fail(op, start, translateWrite(op, "Role", err, conflict{field: "name", value: role.Name}))
	}

	out, err := h.withPermissions(ctx, []domain.Role{shell})
	if err != nil {
		return nil, h.fail(op, start, storageFailure(op, err))
	}
	observe(op, resultFound, start)
	return &out[0], nil
}

func (h *RoleHydrator) findOne(ctx context.Context, q query.Query) (*domain.Role, bool, error) {
	start := time.Now()
	metrics.HydrationQueriesTotal.WithLabelValues(levelRoot).Inc()
	row, found, err := h.exec.QueryOne(ctx, q)
	if errors.Is(err, errNoRows) {
		found, err = false, nil
	}
	if err != nil {
		return nil, false, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	if !found {
		observe(q.Name, resultAbsent, start)
		return nil, false, nil
	}
	shell, err := mapRole(row)
	if err != nil {
		return nil, false, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	roles, err := h.withPermissions(ctx, []domain.Role{shell})
	if err != nil {
		return nil, false, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	observe(q.Name, resultFound, start)
	return &roles[0], true, nil
}

func (h *RoleHydrator) findMany(ctx context.Context, q query.Query) ([]domain.Role, error) {
	start := time.Now()
	metrics.HydrationQueriesTotal.WithLabelValues(levelRoot).Inc()
	rows, err := h.exec.QueryMany(ctx, q)
	if err != nil {
		return nil, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	shells := make([]domain.Role, 0, len(rows))
	for _, row := range rows {
		r, err := mapRole(row)
		if err != nil {
			return nil, h.fail(q.Name, start, storageFailure(q.Name, err))
		}
		shells = append(shells, r)
	}
	roles, err := h.withPermissions(ctx, shells)
	if err != nil {
		return nil, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	observe(q.Name, resultFound, start)
	return roles, nil
}

// activeRolesOf returns the user's active roles, each with its permissions.
func (h *RoleHydrator) activeRolesOf(ctx context.Context, id domain.UserID) ([]domain.Role, error) {
	metrics.HydrationQueriesTotal.WithLabelValues(levelRoles).Inc()
	rows, err := h.exec.QueryMany(ctx, activeRolesOfUserQuery(id))
	if err != nil {
		return nil, err
	}
	shells := make([]domain.Role, 0, len(rows))
	for _, row := range rows {
		r, err := mapRole(row)
		if err != nil {
			return nil, err
		}
		if !r.Active {
			continue
		}
		shells = append(shells, r)
	}
	return h.withPermissions(ctx, shells)
}

// withPermissions loads permissions for every active role concurrently and
// returns the roles only after all loads finished. Inactive roles keep an
// empty permission set. The first failure cancels the remaining loads.
func (h *RoleHydrator) withPermissions(ctx context.Context, roles []domain.Role) ([]domain.Role, error) {
	out := make([]domain.Role, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.maxConcurrency)
	for i, role := range roles {
		if !role.Active {
			out[i] = role
			continue
		}
		g.Go(func() error {
			perms, err := h.permissionsOf(gctx, role.ID)
			if err != nil {
				return err
			}
			role.Permissions = perms
			out[i] = role
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *RoleHydrator) permissionsOf(ctx context.Context, id domain.RoleID) ([]domain.Permission, error) {
	metrics.HydrationQueriesTotal.WithLabelValues(levelPermissions).Inc()
	rows, err := h.exec.QueryMany(ctx, permissionsOfRoleQuery(id))
	if err != nil {
		return nil, err
	}
	perms := make([]domain.Permission, 0, len(rows))
	for _, row := range rows {
		p, err := mapPermission(row)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

func (h *RoleHydrator) fail(op string, start time.Time, err error) error {
	return failed(h.log, op, start, err)
}

func uniquePermissionIDs(ids []domain.PermissionID) []domain.PermissionID {
	seen := make(map[domain.PermissionID]struct{}, len(ids))
	out := make([]domain.PermissionID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uniqueRoleIDs(ids []domain.RoleID) []domain.RoleID {
	seen := make(map[domain.RoleID]struct{}, len(ids))
	out := make([]domain.RoleID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
