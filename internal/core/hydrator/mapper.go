package hydrator

import (
	"time"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/query"
)

// fields reads typed columns from one row and keeps the first error, so a
// mapper can read every column and check once at the end.
type fields struct {
	row query.Row
	err error
}

func (f *fields) int64(col string) int64 {
	if f.err != nil {
		return 0
	}
	v, err := f.row.Int64(col)
	f.err = err
	return v
}

func (f *fields) str(col string) string {
	if f.err != nil {
		return ""
	}
	v, err := f.row.String(col)
	f.err = err
	return v
}

func (f *fields) nullStr(col string) string {
	if f.err != nil {
		return ""
	}
	v, err := f.row.NullString(col)
	f.err = err
	return v
}

func (f *fields) boolean(col string) bool {
	if f.err != nil {
		return false
	}
	v, err := f.row.Bool(col)
	f.err = err
	return v
}

func (f *fields) ts(col string) time.Time {
	if f.err != nil {
		return time.Time{}
	}
	v, err := f.row.Time(col)
	f.err = err
	return v
}

func mapPermission(row query.Row) (domain.Permission, error) {
	f := fields{row: row}
	p := domain.Permission{
		ID:          domain.PermissionID(f.int64("id")),
		Name:        f.str("name"),
		Description: f.nullStr("description"),
		Resource:    f.str("resource"),
		Action:      f.str("action"),
		CreatedAt:   f.ts("created_at"),
	}
	if f.err != nil {
		return domain.Permission{}, f.err
	}
	return p, nil
}

// mapRole returns a role shell with an empty permission set.
func mapRole(row query.Row) (domain.Role, error) {
	f := fields{row: row}
	r := domain.Role{
		ID:          domain.RoleID(f.int64("id")),
		Name:        f.str("name"),
		Description: f.nullStr("description"),
		Active:      f.boolean("active"),
		CreatedAt:   f.ts("created_at"),
		UpdatedAt:   f.ts("updated_at"),
		Permissions: []domain.Permission{},
	}
	if f.err != nil {
		return domain.Role{}, f.err
	}
	return r, nil
}

// mapUser returns a user shell with an empty role set.
func mapUser(row query.Row) (*domain.User, error) {
	f := fields{row: row}
	u := &domain.User{
		ID:           domain.UserID(f.int64("id")),
		Username:     domain.Username(f.str("username")),
		Email:        domain.Email(f.str("email")),
		PasswordHash: f.str("password_hash"),
		FirstName:    f.nullStr("first_name"),
		LastName:     f.nullStr("last_name"),
		Status: domain.AccountStatus{
			Enabled:               f.boolean("enabled"),
			AccountNonExpired:     f.boolean("account_non_expired"),
			AccountNonLocked:      f.boolean("account_non_locked"),
			CredentialsNonExpired: f.boolean("credentials_non_expired"),
		},
		CreatedAt: f.ts("created_at"),
		UpdatedAt: f.ts("updated_at"),
		CreatedBy: f.nullStr("created_by"),
		UpdatedBy: f.nullStr("updated_by"),
		Version:   f.int64("version"),
		Roles:     []domain.Role{},
	}
	if f.err != nil {
		return nil, f.err
	}
	id, err := row.UUID("uuid")
	if err != nil {
		return nil, err
	}
	u.UUID = id
	lastLogin, err := row.NullTime("last_login_at")
	if err != nil {
		return nil, err
	}
	u.LastLoginAt = lastLogin
	return u, nil
}

func mapCount(row query.Row) (int64, error) {
	return row.Int64("total")
}
