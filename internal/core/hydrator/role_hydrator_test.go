package hydrator

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-core/internal/core/domain"
)

func newRoles(f *fakeExecutor) *RoleHydrator {
	return NewRoleHydrator(f, 4, zerolog.Nop())
}

func TestRoleFindByName(t *testing.T) {
	h := newRoles(seeded())

	r, found, err := h.FindByName(context.Background(), "EDITOR")
	if err != nil || !found {
		t.Fatalf("expected EDITOR, got found=%v err=%v", found, err)
	}
	if len(r.Permissions) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(r.Permissions))
	}

	r, found, err = h.FindByName(context.Background(), "MISSING")
	if err != nil || found || r != nil {
		t.Fatalf("expected absence, got %v %v %v", r, found, err)
	}
}

func TestRoleFindByID_InactiveHasNoPermissions(t *testing.T) {
	r, found, err := newRoles(seeded()).FindByID(context.Background(), 3)
	if err != nil || !found {
		t.Fatalf("unexpected result found=%v err=%v", found, err)
	}
	if r.Active || r.Permissions == nil || len(r.Permissions) != 0 {
		t.Fatalf("inactive role should carry an empty permission set: %+v", r)
	}
}

func TestFindAllActive(t *testing.T) {
	roles, err := newRoles(seeded()).FindAllActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 active roles, got %d", len(roles))
	}
	for _, r := range roles {
		if !r.Active || len(r.Permissions) == 0 {
			t.Errorf("unexpected role %+v", r)
		}
	}
}

func TestFindByIDs(t *testing.T) {
	h := newRoles(seeded())

	roles, err := h.FindByIDs(context.Background(), []domain.RoleID{3, 1, 3, 77})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 2 || roles[0].ID != 1 || roles[1].ID != 3 {
		t.Fatalf("unexpected roles %+v", roles)
	}

	none, err := h.FindByIDs(context.Background(), nil)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty result without a query, got %v %v", none, err)
	}
}

func TestFindAllActive_PermissionFailure(t *testing.T) {
	f := seeded()
	f.failPermsFor[1] = errBroken

	roles, err := newRoles(f).FindAllActive(context.Background())
	if err == nil || roles != nil {
		t.Fatalf("expected failure without roles, got %v %v", roles, err)
	}
}

func TestRoleCreate(t *testing.T) {
	f := seeded()
	h := newRoles(f)

	r, err := h.Create(context.Background(), &domain.Role{Name: "AUDITOR", Active: true}, []domain.PermissionID{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID == 0 || len(r.Permissions) != 1 || r.Permissions[0].Authority() != "document:read" {
		t.Fatalf("unexpected role %+v", r)
	}

	f.uniqueOn = "roles_name_key"
	_, err = h.Create(context.Background(), &domain.Role{Name: "ADMIN", Active: true}, nil)
	if !errors.Is(err, domain.ErrEntityAlreadyExists) {
		t.Fatalf("expected EntityAlreadyExists, got %v", err)
	}
	if ctx := domain.ContextOf(err); ctx[domain.KeyConflictField] != "name" || ctx[domain.KeyConflictValue] != "ADMIN" {
		t.Fatalf("unexpected conflict %v", ctx)
	}
}
