package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/events"
	"github.com/99minutos/identity-core/internal/core/ports"
)

const (
	entityUser             = "User"
	defaultMaxRolesPerUser = 10
	limitRolesPerUser      = "roles_per_user"
)

var _ ports.AccessService = (*AccessService)(nil)

// AccessService manages role assignment, profile changes and authorization.
type AccessService struct {
	users           ports.UserRepository
	roles           ports.RoleRepository
	sink            ports.EventSink
	maxRolesPerUser int
	log             zerolog.Logger
}

func NewAccessService(
	users ports.UserRepository,
	roles ports.RoleRepository,
	sink ports.EventSink,
	maxRolesPerUser int,
	log zerolog.Logger,
) *AccessService {
	if maxRolesPerUser <= 0 {
		maxRolesPerUser = defaultMaxRolesPerUser
	}
	return &AccessService{
		users:           users,
		roles:           roles,
		sink:            sink,
		maxRolesPerUser: maxRolesPerUser,
		log:             log,
	}
}

// GetUser returns the hydrated user or ENTITY_NOT_FOUND.
func (s *AccessService) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	user, found, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.EntityNotFound(entityUser, userKey(id))
	}
	return user, nil
}

// ChangeRoles replaces the user's role set. Every role must exist and be
// active, and the set may not exceed the configured maximum.
func (s *AccessService) ChangeRoles(ctx context.Context, id domain.UserID, roleIDs []domain.RoleID, expectedVersion int64, actor string) (*domain.User, error) {
	ids := uniqueRoleIDs(roleIDs)
	if len(ids) > s.maxRolesPerUser {
		return nil, domain.LimitExceeded(limitRolesPerUser, s.maxRolesPerUser, len(ids))
	}

	roles, err := s.roles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[domain.RoleID]domain.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	for _, rid := range ids {
		r, ok := byID[rid]
		if !ok {
			return nil, domain.BusinessRuleViolation("role_must_exist",
				fmt.Sprintf("role %d does not exist", rid), map[string]string{"roleId": roleKey(rid)})
		}
		if !r.Active {
			return nil, domain.BusinessRuleViolation("role_must_be_active",
				fmt.Sprintf("role %s is inactive", r.Name), map[string]string{"roleId": roleKey(rid), "role": r.Name})
		}
	}

	before, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	after, err := s.users.ReplaceRoles(ctx, id, ids, expectedVersion)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", int64(id)).Strs("roles", after.RoleNames()).Str("actor", actor).Msg("user roles changed")
	publish(ctx, s.sink, s.log, events.NewUserRolesChanged(id, before.RoleNames(), after.RoleNames(), actor))
	if prev, next := before.Authorities(), after.Authorities(); !slices.Equal(prev, next) {
		publish(ctx, s.sink, s.log, events.NewUserPermissionsChanged(id, prev, next, actor))
	}
	return after, nil
}

// Authorize returns INSUFFICIENT_PERMISSIONS unless one of the user's active
// roles grants resource:action. An unusable account is reported as
// INACTIVE_USER_ACCOUNT whatever its roles grant.
func (s *AccessService) Authorize(ctx context.Context, id domain.UserID, resource, action string) error {
	ok, err := s.users.HasPermission(ctx, id, resource, action)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	u, found, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if found && !u.Status.Usable() {
		return domain.InactiveUserAccount(id, u.Status.Reason())
	}
	return domain.InsufficientPermissions(id, resource, action).WithOp("access.authorize")
}

// ListUsers returns one window of users, newest first.
func (s *AccessService) ListUsers(ctx context.Context, req domain.PageRequest) (domain.Page[*domain.User], error) {
	return s.users.FindPage(ctx, req)
}

// UpdateProfile applies the non-nil fields of in. A request that changes
// nothing performs no write and emits no event.
func (s *AccessService) UpdateProfile(ctx context.Context, id domain.UserID, in ports.ProfileInput, expectedVersion int64, actor string) (*domain.User, error) {
	current, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, domain.ConcurrencyConflict(entityUser, userKey(id), expectedVersion, current.Version)
	}

	next := current.Clone()
	var changed []string
	if in.Email != nil {
		email, err := domain.NewEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if email != next.Email {
			next.Email = email
			changed = append(changed, "email")
		}
	}
	if in.FirstName != nil {
		if v := strings.TrimSpace(*in.FirstName); v != next.FirstName {
			next.FirstName = v
			changed = append(changed, "first_name")
		}
	}
	if in.LastName != nil {
		if v := strings.TrimSpace(*in.LastName); v != next.LastName {
			next.LastName = v
			changed = append(changed, "last_name")
		}
	}
	if len(changed) == 0 {
		return current, nil
	}

	next.UpdatedBy = actor
	updated, err := s.users.Update(ctx, next, expectedVersion)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.sink, s.log, events.NewUserUpdated(id, changed, actor, updated.Version))
	return updated, nil
}

// Deactivate disables the account. Disabling an already disabled account is
// an INVALID_STATE_TRANSITION.
func (s *AccessService) Deactivate(ctx context.Context, id domain.UserID, reason string, expectedVersion int64, actor string) (*domain.User, error) {
	current, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.Enabled {
		return nil, domain.InvalidStateTransition(entityUser, userKey(id), "disabled", "disabled")
	}

	next := current.Clone()
	next.Status.Enabled = false
	next.UpdatedBy = actor
	updated, err := s.users.Update(ctx, next, expectedVersion)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("user_id", int64(id)).Str("reason", reason).Str("actor", actor).Msg("user deactivated")
	publish(ctx, s.sink, s.log, events.NewUserDeactivated(id, reason, actor))
	return updated, nil
}

func uniqueRoleIDs(in []domain.RoleID) []domain.RoleID {
	seen := make(map[domain.RoleID]struct{}, len(in))
	out := make([]domain.RoleID, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func userKey(id domain.UserID) string { return strconv.FormatInt(int64(id), 10) }
func roleKey(id domain.RoleID) string { return strconv.FormatInt(int64(id), 10) }
