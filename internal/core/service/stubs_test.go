package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/events"
)

var errStorage = errors.New("storage down")

var (
	permRead   = domain.Permission{ID: 1, Name: "read documents", Resource: "document", Action: "read"}
	permWrite  = domain.Permission{ID: 2, Name: "write documents", Resource: "document", Action: "write"}
	permManage = domain.Permission{ID: 3, Name: "manage users", Resource: "user", Action: "manage"}
)

type stubRoleRepo struct {
	roles map[domain.RoleID]domain.Role
	err   error
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{roles: map[domain.RoleID]domain.Role{
		1: {ID: 1, Name: "USER", Active: true, Permissions: []domain.Permission{permRead}},
		2: {ID: 2, Name: "EDITOR", Active: true, Permissions: []domain.Permission{permRead, permWrite}},
		3: {ID: 3, Name: "ADMIN", Active: true, Permissions: []domain.Permission{permManage}},
		4: {ID: 4, Name: "LEGACY", Active: false, Permissions: []domain.Permission{}},
	}}
}

func (r *stubRoleRepo) FindByID(_ context.Context, id domain.RoleID) (*domain.Role, bool, error) {
	if r.err != nil {
		return nil, false, r.err
	}
	role, ok := r.roles[id]
	if !ok {
		return nil, false, nil
	}
	out := role.Clone()
	return &out, true, nil
}

func (r *stubRoleRepo) FindByName(_ context.Context, name string) (*domain.Role, bool, error) {
	if r.err != nil {
		return nil, false, r.err
	}
	for _, role := range r.roles {
		if role.Name == name {
			out := role.Clone()
			return &out, true, nil
		}
	}
	return nil, false, nil
}

func (r *stubRoleRepo) FindAllActive(context.Context) ([]domain.Role, error) {
	var out []domain.Role
	for _, role := range r.roles {
		if role.Active {
			out = append(out, role.Clone())
		}
	}
	return out, r.err
}

func (r *stubRoleRepo) FindByIDs(_ context.Context, ids []domain.RoleID) ([]domain.Role, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []domain.Role{}
	for _, id := range ids {
		if role, ok := r.roles[id]; ok {
			out = append(out, role.Clone())
		}
	}
	return out, nil
}

func (r *stubRoleRepo) Create(_ context.Context, role *domain.Role, _ []domain.PermissionID) (*domain.Role, error) {
	out := role.Clone()
	out.ID = domain.RoleID(len(r.roles) + 1)
	r.roles[out.ID] = out
	return &out, nil
}

// stubUserRepo keeps users in memory and resolves roles through a stubRoleRepo.
type stubUserRepo struct {
	mu     sync.Mutex
	roles  *stubRoleRepo
	users  map[domain.UserID]*domain.User
	links  map[domain.UserID][]domain.RoleID
	nextID domain.UserID
	err    error
}

func newStubUserRepo(roles *stubRoleRepo) *stubUserRepo {
	return &stubUserRepo{
		roles:  roles,
		users:  make(map[domain.UserID]*domain.User),
		links:  make(map[domain.UserID][]domain.RoleID),
		nextID: 1,
	}
}

func (r *stubUserRepo) hydrate(u *domain.User) *domain.User {
	out := u.Clone()
	out.Roles = []domain.Role{}
	for _, id := range r.links[u.ID] {
		if role, ok := r.roles.roles[id]; ok && role.Active {
			out.Roles = append(out.Roles, role.Clone())
		}
	}
	return out
}

func (r *stubUserRepo) find(match func(*domain.User) bool) (*domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, false, r.err
	}
	for _, u := range r.users {
		if match(u) {
			return r.hydrate(u), true, nil
		}
	}
	return nil, false, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id domain.UserID) (*domain.User, bool, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *stubUserRepo) FindByUUID(_ context.Context, id uuid.UUID) (*domain.User, bool, error) {
	return r.find(func(u *domain.User) bool { return u.UUID == id })
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username domain.Username) (*domain.User, bool, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email domain.Email) (*domain.User, bool, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *stubUserRepo) FindByUsernameOrEmail(_ context.Context, login string) (*domain.User, bool, error) {
	return r.find(func(u *domain.User) bool {
		return string(u.Username) == login || string(u.Email) == strings.ToLower(login)
	})
}

func (r *stubUserRepo) Search(context.Context, string) ([]*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (r *stubUserRepo) FindByRoleName(context.Context, string) ([]*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (r *stubUserRepo) FindPage(context.Context, domain.PageRequest) (domain.Page[*domain.User], error) {
	return domain.Page[*domain.User]{}, errors.New("not implemented")
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User, roleIDs []domain.RoleID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return nil, domain.EntityAlreadyExists(entityUser, "username", string(user.Username))
		}
		if u.Email == user.Email {
			return nil, domain.EntityAlreadyExists(entityUser, "email", string(user.Email))
		}
	}
	stored := user.Clone()
	stored.ID = r.nextID
	stored.UUID = uuid.New()
	stored.Version = 1
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	r.nextID++
	r.users[stored.ID] = stored
	r.links[stored.ID] = append([]domain.RoleID(nil), roleIDs...)
	return r.hydrate(stored), nil
}

func (r *stubUserRepo) guard(id domain.UserID, expected int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.EntityNotFound(entityUser, userKey(id))
	}
	if u.Version != expected {
		return nil, domain.ConcurrencyConflict(entityUser, userKey(id), expected, u.Version)
	}
	return u, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User, expectedVersion int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	stored, err := r.guard(user.ID, expectedVersion)
	if err != nil {
		return nil, err
	}
	stored.Email = user.Email
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Status = user.Status
	stored.UpdatedBy = user.UpdatedBy
	stored.Version++
	return r.hydrate(stored), nil
}

func (r *stubUserRepo) UpdateLastLogin(_ context.Context, id domain.UserID, at time.Time) (*domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, false, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, false, nil
	}
	ts := at
	u.LastLoginAt = &ts
	return r.hydrate(u), true, nil
}

func (r *stubUserRepo) ReplaceRoles(_ context.Context, id domain.UserID, roleIDs []domain.RoleID, expectedVersion int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	stored, err := r.guard(id, expectedVersion)
	if err != nil {
		return nil, err
	}
	r.links[id] = append([]domain.RoleID(nil), roleIDs...)
	stored.Version++
	return r.hydrate(stored), nil
}

func (r *stubUserRepo) HasPermission(_ context.Context, id domain.UserID, resource, action string) (bool, error) {
	u, found, err := r.FindByID(context.Background(), id)
	if err != nil || !found {
		return false, err
	}
	return u.Status.Usable() && u.HasPermission(resource, action), nil
}

func (r *stubUserRepo) CountActiveRoles(_ context.Context, id domain.UserID) (int64, error) {
	u, found, err := r.FindByID(context.Background(), id)
	if err != nil || !found {
		return 0, err
	}
	return int64(len(u.Roles)), nil
}

type recordingSink struct {
	mu  sync.Mutex
	got []events.Event
	err error
}

func (s *recordingSink) Publish(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
	return s.err
}

func (s *recordingSink) types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Type, 0, len(s.got))
	for _, e := range s.got {
		out = append(out, e.EventType())
	}
	return out
}
