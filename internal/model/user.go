package model

import (
	"fmt"
	"regexp"
	"time"
)

// User represents a registered portal account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role is one of the closed set of account roles.
type Role string

// Roles.
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Permission names an action gated by role.
type Permission int

// Permissions.
const (
	PermModerate Permission = iota + 1
	PermManageRoles
)

// Policy decides which roles hold which permissions.
//
// By default only the admin role may moderate; super-admins are granted
// moderation only when SuperAdminModerates is set.
type Policy struct {
	SuperAdminModerates bool
}

// Allows reports whether role holds perm under this policy. Unknown roles
// and permissions fail closed.
func (p Policy) Allows(role Role, perm Permission) bool {
	switch perm {
	case PermModerate:
		return role == RoleAdmin || (p.SuperAdminModerates && role == RoleSuperAdmin)
	case PermManageRoles:
		return role == RoleSuperAdmin
	}
	return false
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ValidatePassword checks password strength requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
