package models

import "strings"

// Role is the closed set of identity roles.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// Capability names an operation class gated by role.
type Capability string

const (
	// CapWritePosts allows creating, editing and publishing one's own posts.
	CapWritePosts Capability = "posts:write"
	// CapManageAnyPost allows editing or deleting posts owned by someone else.
	CapManageAnyPost Capability = "posts:manage_any"
	// CapAdminConsole allows the /admin endpoints.
	CapAdminConsole Capability = "admin:console"
)

var capabilities = map[Role]map[Capability]bool{
	RoleStudent: {CapWritePosts: true},
	RoleFaculty: {CapWritePosts: true},
	RoleAdmin:   {CapWritePosts: true, CapManageAnyPost: true, CapAdminConsole: true},
}

// ParseRole maps s onto a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	_, ok := capabilities[r]
	return r, ok
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// Can reports whether r holds capability c. Administrators hold every capability.
func (r Role) Can(c Capability) bool {
	if r == RoleAdmin {
		return true
	}
	return capabilities[r][c]
}

// PublicRoles are the roles open to self-registration without the admin code.
func PublicRoles() []Role {
	return []Role{RoleStudent, RoleFaculty}
}
