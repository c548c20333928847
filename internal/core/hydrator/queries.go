package hydrator

import (
	"strings"
	"time"

	"github.com/99minutos/identity-core/internal/core/domain"
	"github.com/99minutos/identity-core/internal/core/query"
)

var (
	userColumns = []string{
		"id", "uuid", "username", "email", "password_hash", "first_name", "last_name",
		"enabled", "account_non_expired", "account_non_locked", "credentials_non_expired",
		"created_at", "updated_at", "created_by", "updated_by", "last_login_at", "version",
	}
	roleColumns       = []string{"id", "name", "description", "active", "created_at", "updated_at"}
	permissionColumns = []string{"id", "name", "description", "resource", "action", "created_at"}
)

func columns(alias string, cols []string) string {
	if alias == "" {
		return strings.Join(cols, ", ")
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// escapeLike escapes LIKE wildcards so pattern is matched literally.
func escapeLike(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(pattern)
}

var (
	selectUsers       = "SELECT " + columns("", userColumns) + " FROM users"
	selectUsersJoined = "SELECT " + columns("u", userColumns) + " FROM users u"
	returningUser     = " RETURNING " + columns("", userColumns)
	selectRoles       = "SELECT " + columns("", roleColumns) + " FROM roles"
	returningRole     = " RETURNING " + columns("", roleColumns)
)

// --- User root queries ---

func userByIDQuery(id domain.UserID) query.Query {
	return query.New("user.find_by_id", selectUsers+" WHERE id = ?", int64(id))
}

func userByUUIDQuery(id string) query.Query {
	return query.New("user.find_by_uuid", selectUsers+" WHERE uuid = ?", id)
}

func userByUsernameQuery(username domain.Username) query.Query {
	return query.New("user.find_by_username", selectUsers+" WHERE username = ?", string(username))
}

func userByEmailQuery(email domain.Email) query.Query {
	return query.New("user.find_by_email", selectUsers+" WHERE email = ?", string(email))
}

func userByLoginQuery(login string) query.Query {
	return query.New("user.find_by_username_or_email",
		selectUsers+" WHERE username = ? OR email = ? ORDER BY username, id LIMIT 1",
		login, strings.ToLower(login))
}

func userSearchQuery(pattern string) query.Query {
	like := "%" + escapeLike(strings.ToLower(pattern)) + "%"
	return query.New("user.search",
		selectUsers+` WHERE LOWER(username) LIKE ? ESCAPE '\'`+
			` OR LOWER(email) LIKE ? ESCAPE '\'`+
			` OR LOWER(COALESCE(first_name, '')) LIKE ? ESCAPE '\'`+
			` OR LOWER(COALESCE(last_name, '')) LIKE ? ESCAPE '\'`+
			" ORDER BY username, id",
		like, like, like, like)
}

func usersByRoleNameQuery(name string) query.Query {
	return query.New("user.find_by_role_name",
		selectUsersJoined+
			" JOIN user_roles ur ON ur.user_id = u.id"+
			" JOIN roles r ON r.id = ur.role_id"+
			" WHERE r.name = ? AND r.active = TRUE"+
			" ORDER BY u.username, u.id",
		name)
}

func userCountQuery() query.Query {
	return query.New("user.count", "SELECT COUNT(*) AS total FROM users")
}

func userPageQuery(req domain.PageRequest) query.Query {
	return query.New("user.find_page",
		selectUsers+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		req.Limit, req.Offset)
}

func userVersionQuery(id domain.UserID) query.Query {
	return query.New("user.current_version", "SELECT version FROM users WHERE id = ?", int64(id))
}

// --- User writes ---

func insertUserQuery(u *domain.User) query.Query {
	return query.New("user.create",
		"INSERT INTO users (uuid, username, email, password_hash, first_name, last_name,"+
			" enabled, account_non_expired, account_non_locked, credentials_non_expired,"+
			" created_at, updated_at, created_by, updated_by, version)"+
			" VALUES ("+placeholders(15)+")"+returningUser,
		u.UUID.String(), string(u.Username), string(u.Email), u.PasswordHash, u.FirstName, u.LastName,
		u.Status.Enabled, u.Status.AccountNonExpired, u.Status.AccountNonLocked, u.Status.CredentialsNonExpired,
		u.CreatedAt, u.UpdatedAt, u.CreatedBy, u.UpdatedBy, u.Version)
}

func updateUserQuery(u *domain.User, expectedVersion int64, at time.Time) query.Query {
	return query.New("user.update",
		"UPDATE users SET email = ?, first_name = ?, last_name = ?,"+
			" enabled = ?, account_non_expired = ?, account_non_locked = ?, credentials_non_expired = ?,"+
			" updated_at = ?, updated_by = ?, version = version + 1"+
			" WHERE id = ? AND version = ?"+returningUser,
		string(u.Email), u.FirstName, u.LastName,
		u.Status.Enabled, u.Status.AccountNonExpired, u.Status.AccountNonLocked, u.Status.CredentialsNonExpired,
		at, u.UpdatedBy, int64(u.ID), expectedVersion)
}

func bumpUserVersionQuery(id domain.UserID, expectedVersion int64, at time.Time) query.Query {
	return query.New("user.replace_roles",
		"UPDATE users SET updated_at = ?, version = version + 1 WHERE id = ? AND version = ?"+returningUser,
		at, int64(id), expectedVersion)
}

func updateLastLoginQuery(id domain.UserID, at time.Time) query.Query {
	return query.New("user.update_last_login",
		"UPDATE users SET last_login_at = ? WHERE id = ?"+returningUser,
		at, int64(id))
}

func linkUserRoleQuery(userID domain.UserID, roleID domain.RoleID) query.Query {
	return query.New("user.link_role",
		"INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)",
		int64(userID), int64(roleID))
}

func unlinkUserRolesQuery(userID domain.UserID) query.Query {
	return query.New("user.unlink_roles", "DELETE FROM user_roles WHERE user_id = ?", int64(userID))
}

// --- User checks ---

func hasPermissionQuery(id domain.UserID, resource, action string) query.Query {
	return query.New("user.has_permission",
		"SELECT COUNT(*) AS total FROM user_roles ur"+
			" JOIN users u ON u.id = ur.user_id"+
			" JOIN roles r ON r.id = ur.role_id"+
			" JOIN role_permissions rp ON rp.role_id = r.id"+
			" JOIN permissions p ON p.id = rp.permission_id"+
			" WHERE ur.user_id = ? AND r.active = TRUE AND p.resource = ? AND p.action = ?"+
			" AND u.enabled AND u.account_non_locked AND u.account_non_expired AND u.credentials_non_expired",
		int64(id), resource, action)
}

func countActiveRolesQuery(id domain.UserID) query.Query {
	return query.New("user.count_active_roles",
		"SELECT COUNT(*) AS total FROM user_roles ur"+
			" JOIN roles r ON r.id = ur.role_id"+
			" WHERE ur.user_id = ? AND r.active = TRUE",
		int64(id))
}

// --- Role queries ---

func activeRolesOfUserQuery(id domain.UserID) query.Query {
	return query.New("role.find_active_by_user",
		"SELECT "+columns("r", roleColumns)+" FROM roles r"+
			" JOIN user_roles ur ON ur.role_id = r.id"+
			" WHERE ur.user_id = ? AND r.active = TRUE"+
			" ORDER BY r.name, r.id",
		int64(id))
}

func permissionsOfRoleQuery(id domain.RoleID) query.Query {
	return query.New("permission.find_by_role",
		"SELECT "+columns("p", permissionColumns)+" FROM permissions p"+
			" JOIN role_permissions rp ON rp.permission_id = p.id"+
			" WHERE rp.role_id = ?"+
			" ORDER BY p.resource, p.action, p.id",
		int64(id))
}

func roleByIDQuery(id domain.RoleID) query.Query {
	return query.New("role.find_by_id", selectRoles+" WHERE id = ?", int64(id))
}

func roleByNameQuery(name string) query.Query {
	return query.New("role.find_by_name", selectRoles+" WHERE name = ?", name)
}

func activeRolesQuery() query.Query {
	return query.New("role.find_all_active", selectRoles+" WHERE active = TRUE ORDER BY name, id")
}

func rolesByIDsQuery(ids []domain.RoleID) query.Query {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	return query.New("role.find_by_ids",
		selectRoles+" WHERE id IN ("+placeholders(len(ids))+") ORDER BY id",
		args...)
}

func insertRoleQuery(r *domain.Role) query.Query {
	return query.New("role.create",
		"INSERT INTO roles (name, description, active, created_at, updated_at)"+
			" VALUES ("+placeholders(5)+")"+returningRole,
		r.Name, r.Description, r.Active, r.CreatedAt, r.UpdatedAt)
}

func linkRolePermissionQuery(roleID domain.RoleID, permissionID domain.PermissionID) query.Query {
	return query.New("role.link_permission",
		"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
		int64(roleID), int64(permissionID))
}
