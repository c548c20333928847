package hydrator

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/ports"
	"github.com/99minutos/identity-core/internal/core/query"
	"github.com/99minutos/identity-core/internal/metrics"
)

const entityUser = "User"

var _ ports.UserRepository = (*UserHydrator)(nil)

// UserHydrator implements ports.UserRepository over a query.Executor.
type UserHydrator struct {
	exec           query.Executor
	roles          *RoleHydrator
	maxConcurrency int
	log            zerolog.Logger
}

// NewUserHydrator returns a UserHydrator. maxConcurrency bounds how many
// users of one multi-row result hydrate at once; <= 0 selects the default.
func NewUserHydrator(exec query.Executor, maxConcurrency int, log zerolog.Logger) *UserHydrator {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &UserHydrator{
		exec:           exec,
		roles:          NewRoleHydrator(exec, maxConcurrency, log),
		maxConcurrency: maxConcurrency,
		log:            log,
	}
}

func (h *UserHydrator) FindByID(ctx context.Context, id domain.UserID) (*domain.User, bool, error) {
	return h.findOne(ctx, userByIDQuery(id))
}

func (h *UserHydrator) FindByUUID(ctx context.Context, id uuid.UUID) (*domain.User, bool, error) {
	return h.findOne(ctx, userByUUIDQuery(id.String()))
}

func (h *UserHydrator) FindByUsername(ctx context.Context, username domain.Username) (*domain.User, bool, error) {
	return h.findOne(ctx, userByUsernameQuery(username))
}

func (h *UserHydrator) FindByEmail(ctx context.Context, email domain.Email) (*domain.User, bool, error) {
	return h.findOne(ctx, userByEmailQuery(email))
}

func (h *UserHydrator) FindByUsernameOrEmail(ctx context.Context, login string) (*domain.User, bool, error) {
	return h.findOne(ctx, userByLoginQuery(login))
}

func (h *UserHydrator) Search(ctx context.Context, pattern string) ([]*domain.User, error) {
	return h.findMany(ctx, userSearchQuery(pattern))
}

func (h *UserHydrator) FindByRoleName(ctx context.Context, roleName string) ([]*domain.User, error) {
	return h.findMany(ctx, usersByRoleNameQuery(roleName))
}

func (h *UserHydrator) FindPage(ctx context.Context, req domain.PageRequest) (domain.Page[*domain.User], error) {
	const op = "user.find_page"
	req = req.Normalize()
	page := domain.Page[*domain.User]{Offset: req.Offset, Limit: req.Limit}

	total, err := h.count(ctx, userCountQuery())
	if err != nil {
		return page, err
	}
	items, err := h.findMany(ctx, userPageQuery(req))
	if err != nil {
		return page, err
	}
	page.Items = items
	page.Total = total
	h.log.Debug().Str("op", op).Int("offset", req.Offset).Int("limit", req.Limit).Int64("total", total).Msg("page loaded")
	return page, nil
}

// Create inserts user, links roleIDs and returns the stored aggregate. A
// zero UUID or timestamp is filled in; the version starts at 1.
func (h *UserHydrator) Create(ctx context.Context, user *domain.User, roleIDs []domain.RoleID) (*domain.User, error) {
	const op = "user.create"
	start := time.Now()

	in := *user
	if in.UUID == uuid.Nil {
		in.UUID = uuid.New()
	}
	ts := now()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = ts
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = in.CreatedAt
	}
	if in.UpdatedBy == "" {
		in.UpdatedBy = in.CreatedBy
	}
	in.Version = 1

	var shell *domain.User
	err := atomically(ctx, h.exec, func(ex query.Executor) error {
		row, found, err := ex.QueryOne(ctx, insertUserQuery(&in))
		if err != nil {
			return err
		}
		if !found {
			return errNoReturnedRow
		}
		if shell, err = mapUser(row); err != nil {
			return err
		}
		return linkRoles(ctx, ex, shell.ID, roleIDs)
	})
	if err != nil {
		return nil, h.fail(op, start, translateWrite(op, entityUser, err, userConflicts(&in)...))
	}
	return h.complete(ctx, op, start, shell)
}

// Update writes the profile and status fields of user when the stored
// version equals expectedVersion.
func (h *UserHydrator) Update(ctx context.Context, user *domain.User, expectedVersion int64) (*domain.User, error) {
	const op = "user.update"
	start := time.Now()

	row, found, err := h.exec.QueryOne(ctx, updateUserQuery(user, expectedVersion, now()))
	if err != nil {
		return nil, h.fail(op, start, translateWrite(op, entityUser, err, userConflicts(user)...))
	}
	if !found {
		return nil, h.fail(op, start, versionMismatch(ctx, h.exec, op, user.ID, expectedVersion))
	}
	shell, err := mapUser(row)
	if err != nil {
		return nil, h.fail(op, start, storageFailure(op, err))
	}
	return h.complete(ctx, op, start, shell)
}

func (h *UserHydrator) UpdateLastLogin(ctx context.Context, id domain.UserID, at time.Time) (*domain.User, bool, error) {
	return h.findOne(ctx, updateLastLoginQuery(id, at.UTC()))
}

// ReplaceRoles swaps the user's role links for roleIDs and bumps the version.
func (h *UserHydrator) ReplaceRoles(ctx context.Context, id domain.UserID, roleIDs []domain.RoleID, expectedVersion int64) (*domain.User, error) {
	const op = "user.replace_roles"
	start := time.Now()

	var shell *domain.User
	err := atomically(ctx, h.exec, func(ex query.Executor) error {
		row, found, err := ex.QueryOne(ctx, bumpUserVersionQuery(id, expectedVersion, now()))
		if err != nil {
			return err
		}
		if !found {
			return versionMismatch(ctx, ex, op, id, expectedVersion)
		}
		if shell, err = mapUser(row); err != nil {
			return err
		}
		if _, err := ex.Exec(ctx, unlinkUserRolesQuery(id)); err != nil {
			return err
		}
		return linkRoles(ctx, ex, id, roleIDs)
	})
	if err != nil {
		return nil, h.fail(op, start, translateWrite(op, entityUser, err))
	}
	return h.complete(ctx, op, start, shell)
}

// HasPermission counts matching grants; zero is a valid false.
func (h *UserHydrator) HasPermission(ctx context.Context, id domain.UserID, resource, action string) (bool, error) {
	n, err := h.count(ctx, hasPermissionQuery(id, resource, action))
	return n > 0, err
}

func (h *UserHydrator) CountActiveRoles(ctx context.Context, id domain.UserID) (int64, error) {
	return h.count(ctx, countActiveRolesQuery(id))
}

func (h *UserHydrator) findOne(ctx context.Context, q query.Query) (*domain.User, bool, error) {
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
	shell, err := mapUser(row)
	if err != nil {
		return nil, false, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	user, err := h.complete(ctx, q.Name, start, shell)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (h *UserHydrator) findMany(ctx context.Context, q query.Query) ([]*domain.User, error) {
	start := time.Now()
	metrics.HydrationQueriesTotal.WithLabelValues(levelRoot).Inc()
	rows, err := h.exec.QueryMany(ctx, q)
	if err != nil {
		return nil, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	shells := make([]*domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := mapUser(row)
		if err != nil {
			return nil, h.fail(q.Name, start, storageFailure(q.Name, err))
		}
		shells = append(shells, u)
	}

	out := make([]*domain.User, len(shells))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.maxConcurrency)
	for i, shell := range shells {
		g.Go(func() error {
			u, err := h.hydrate(gctx, shell)
			if err != nil {
				return err
			}
			out[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	observe(q.Name, resultFound, start)
	return out, nil
}

func (h *UserHydrator) count(ctx context.Context, q query.Query) (int64, error) {
	start := time.Now()
	row, found, err := h.exec.QueryOne(ctx, q)
	if errors.Is(err, errNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	if !found {
		return 0, nil
	}
	n, err := mapCount(row)
	if err != nil {
		return 0, h.fail(q.Name, start, storageFailure(q.Name, err))
	}
	return n, nil
}

// complete hydrates shell and records the outcome of op.
func (h *UserHydrator) complete(ctx context.Context, op string, start time.Time, shell *domain.User) (*domain.User, error) {
	user, err := h.hydrate(ctx, shell)
	if err != nil {
		return nil, h.fail(op, start, storageFailure(op, err))
	}
	observe(op, resultFound, start)
	return user, nil
}

// hydrate attaches the active roles of shell. shell is only returned once
// every role has its permissions.
func (h *UserHydrator) hydrate(ctx context.Context, shell *domain.User) (*domain.User, error) {
	roles, err := h.roles.activeRolesOf(ctx, shell.ID)
	if err != nil {
		return nil, err
	}
	shell.Roles = roles
	return shell, nil
}

func (h *UserHydrator) fail(op string, start time.Time, err error) error {
	return failed(h.log, op, start, err)
}

func linkRoles(ctx context.Context, ex query.Executor, id domain.UserID, roleIDs []domain.RoleID) error {
	for _, rid := range uniqueRoleIDs(roleIDs) {
		if _, err := ex.Exec(ctx, linkUserRoleQuery(id, rid)); err != nil {
			return err
		}
	}
	return nil
}

// versionMismatch explains why a version-guarded write matched no row.
func versionMismatch(ctx context.Context, ex query.Executor, op string, id domain.UserID, expected int64) error {
	row, found, err := ex.QueryOne(ctx, userVersionQuery(id))
	if errors.Is(err, errNoRows) {
		found, err = false, nil
	}
	if err != nil {
		return storageFailure(op, err)
	}
	entityID := strconv.FormatInt(int64(id), 10)
	if !found {
		return domain.EntityNotFound(entityUser, entityID)
	}
	actual, err := row.Int64("version")
	if err != nil {
		return storageFailure(op, err)
	}
	return domain.ConcurrencyConflict(entityUser, entityID, expected, actual)
}
