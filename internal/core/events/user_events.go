package events

import (
	"strconv"
	"time"

	"github.com/99minutos/identity-core/internal/core/domain"
)

func userAggregateID(id domain.UserID) string {
	return strconv.FormatInt(int64(id), 10)
}

// UserCreated records a new account.
type UserCreated struct {
	Base
	userID    domain.UserID
	userUUID  string
	username  string
	email     string
	roles     []string
	createdBy string
}

func NewUserCreated(id domain.UserID, userUUID string, username domain.Username, email domain.Email, roles []string, createdBy string) UserCreated {
	return UserCreated{
		Base:      newBase(TypeUserCreated, AggregateUser, userAggregateID(id)),
		userID:    id,
		userUUID:  userUUID,
		username:  string(username),
		email:     string(email),
		roles:     stringSet(roles),
		createdBy: createdBy,
	}
}

func (e UserCreated) UserID() domain.UserID { return e.userID }
func (e UserCreated) Username() string      { return e.username }
func (e UserCreated) Roles() []string       { return cloneStrings(e.roles) }

func (e UserCreated) EventData() map[string]any {
	return map[string]any{
		"userId":    int64(e.userID),
		"userUuid":  e.userUUID,
		"username":  e.username,
		"email":     e.email,
		"roles":     cloneStrings(e.roles),
		"createdBy": e.createdBy,
	}
}

// UserUpdated records a profile change; ChangedFields names what moved.
type UserUpdated struct {
	Base
	userID        domain.UserID
	changedFields []string
	updatedBy     string
	newVersion    int64
}

func NewUserUpdated(id domain.UserID, changedFields []string, updatedBy string, newVersion int64) UserUpdated {
	return UserUpdated{
		Base:          newBase(TypeUserUpdated, AggregateUser, userAggregateID(id)),
		userID:        id,
		changedFields: stringSet(changedFields),
		updatedBy:     updatedBy,
		newVersion:    newVersion,
	}
}

func (e UserUpdated) ChangedFields() []string { return cloneStrings(e.changedFields) }

func (e UserUpdated) EventData() map[string]any {
	return map[string]any{
		"userId":        int64(e.userID),
		"changedFields": cloneStrings(e.changedFields),
		"updatedBy":     e.updatedBy,
		"newVersion":    e.newVersion,
	}
}

// UserLoggedIn records a successful authentication.
type UserLoggedIn struct {
	Base
	userID    domain.UserID
	username  string
	loginAt   time.Time
	ipAddress string
	userAgent string
}

func NewUserLoggedIn(id domain.UserID, username domain.Username, loginAt time.Time, ipAddress, userAgent string) UserLoggedIn {
	return UserLoggedIn{
		Base:      newBase(TypeUserLoggedIn, AggregateUser, userAggregateID(id)),
		userID:    id,
		username:  string(username),
		loginAt:   loginAt.UTC(),
		ipAddress: ipAddress,
		userAgent: userAgent,
	}
}

func (e UserLoggedIn) LoginAt() time.Time { return e.loginAt }

func (e UserLoggedIn) EventData() map[string]any {
	return map[string]any{
		"userId":    int64(e.userID),
		"username":  e.username,
		"loginAt":   formatTime(e.loginAt),
		"ipAddress": e.ipAddress,
		"userAgent": e.userAgent,
	}
}

// UserRolesChanged records a replacement of the user's role set.
type UserRolesChanged struct {
	Base
	userID        domain.UserID
	previousRoles []string
	currentRoles  []string
	changedBy     string
}

func NewUserRolesChanged(id domain.UserID, previous, current []string, changedBy string) UserRolesChanged {
	return UserRolesChanged{
		Base:          newBase(TypeUserRolesChanged, AggregateUser, userAggregateID(id)),
		userID:        id,
		previousRoles: stringSet(previous),
		currentRoles:  stringSet(current),
		changedBy:     changedBy,
	}
}

func (e UserRolesChanged) PreviousRoles() []string { return cloneStrings(e.previousRoles) }
func (e UserRolesChanged) CurrentRoles() []string  { return cloneStrings(e.currentRoles) }

func (e UserRolesChanged) EventData() map[string]any {
	return map[string]any{
		"userId":        int64(e.userID),
		"previousRoles": cloneStrings(e.previousRoles),
		"currentRoles":  cloneStrings(e.currentRoles),
		"addedRoles":    diff(e.currentRoles, e.previousRoles),
		"removedRoles":  diff(e.previousRoles, e.currentRoles),
		"changedBy":     e.changedBy,
	}
}

// UserPermissionsChanged records the effective authority delta caused by a
// role change.
type UserPermissionsChanged struct {
	Base
	userID    domain.UserID
	granted   []string
	revoked   []string
	changedBy string
}

func NewUserPermissionsChanged(id domain.UserID, before, after []string, changedBy string) UserPermissionsChanged {
	b, a := stringSet(before), stringSet(after)
	return UserPermissionsChanged{
		Base:      newBase(TypeUserPermissionsChanged, AggregateUser, userAggregateID(id)),
		userID:    id,
		granted:   diff(a, b),
		revoked:   diff(b, a),
		changedBy: changedBy,
	}
}

func (e UserPermissionsChanged) Granted() []string { return cloneStrings(e.granted) }
func (e UserPermissionsChanged) Revoked() []string { return cloneStrings(e.revoked) }

func (e UserPermissionsChanged) EventData() map[string]any {
	return map[string]any{
		"userId":    int64(e.userID),
		"granted":   cloneStrings(e.granted),
		"revoked":   cloneStrings(e.revoked),
		"changedBy": e.changedBy,
	}
}

// UserDeactivated records an account being disabled.
type UserDeactivated struct {
	Base
	userID        domain.UserID
	reason        string
	deactivatedBy string
}

func NewUserDeactivated(id domain.UserID, reason, deactivatedBy string) UserDeactivated {
	return UserDeactivated{
		Base:          newBase(TypeUserDeactivated, AggregateUser, userAggregateID(id)),
		userID:        id,
		reason:        reason,
		deactivatedBy: deactivatedBy,
	}
}

func (e UserDeactivated) EventData() map[string]any {
	return map[string]any{
		"userId":        int64(e.userID),
		"reason":        e.reason,
		"deactivatedBy": e.deactivatedBy,
	}
}
