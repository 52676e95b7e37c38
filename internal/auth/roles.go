package auth

import "slices"

// Admin role constants.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleOwner  = "owner"
)

// AllAdminRoles returns all valid admin roles.
func AllAdminRoles() []string {
	return []string{RoleViewer, RoleEditor, RoleOwner}
}

// WriteRoles returns roles that can change the catalog, tournaments and broadcasts.
func WriteRoles() []string {
	return []string{RoleEditor, RoleOwner}
}

// ValidRole reports whether role is a known admin role.
func ValidRole(role string) bool {
	return slices.Contains(AllAdminRoles(), role)
}
