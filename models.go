package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RoleName identifies one of the platform's closed set of roles
type RoleName = string

const (
	// RoleStandard is the default role every account gets
	RoleStandard RoleName = "standard"
	// RoleModerator can manage user generated content
	RoleModerator RoleName = "moderator"
	// RoleAdministrator can manage accounts and reference data
	RoleAdministrator RoleName = "administrator"
)

// User is the credential record the authentication core operates on
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Enabled        bool       `bun:"enabled,notnull,default:true" json:"enabled"`
	FailedAttempts int        `bun:"failed_attempts,notnull,default:0" json:"-"`
	LockedUntil    *time.Time `bun:"locked_until,nullzero" json:"-"`
	LastLoginAt    *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	LastLoginIP    string     `bun:"last_login_ip,nullzero" json:"last_login_ip,omitempty"`
	Roles          []*Role    `bun:"m2m:user_roles,join:User=Role" json:"roles,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// RoleNames returns the names of the roles held by the user
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		if role != nil {
			names = append(names, role.Name)
		}
	}
	return names
}

// HasRole reports whether the user holds the given role
func (u *User) HasRole(name RoleName) bool {
	for _, role := range u.Roles {
		if role != nil && role.Name == name {
			return true
		}
	}
	return false
}

// LockoutState exposes the failed-login counters as a policy input
func (u *User) LockoutState() LockoutState {
	return LockoutState{
		FailedAttempts: u.FailedAttempts,
		LockedUntil:    u.LockedUntil,
	}
}

// ApplyLockoutState copies a policy decision back onto the record
func (u *User) ApplyLockoutState(state LockoutState) *User {
	u.FailedAttempts = state.FailedAttempts
	u.LockedUntil = state.LockedUntil
	return u
}

// Role is reference data, created once at bootstrap and never owned by users
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          RoleName   `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserRole is the users<->roles join table
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:usrrol"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}
