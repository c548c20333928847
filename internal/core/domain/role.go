package domain

import "time"

// RoleID is the numeric key of a role.
type RoleID int64

// PermissionID is the numeric key of a permission.
type PermissionID int64

// Role groups permissions. Only active roles contribute to a user's
// effective role set.
type Role struct {
	ID          RoleID       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Permissions []Permission `json:"permissions"`
}

// Clone copies the role and its permission slice.
func (r Role) Clone() Role {
	out := r
	out.Permissions = make([]Permission, len(r.Permissions))
	copy(out.Permissions, r.Permissions)
	return out
}

// Permission is a leaf value granting one action on one resource.
type Permission struct {
	ID          PermissionID `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Resource    string       `json:"resource"`
	Action      string       `json:"action"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Authority is the resource:action pair used in tokens and audit events.
func (p Permission) Authority() string {
	return p.Resource + ":" + p.Action
}
